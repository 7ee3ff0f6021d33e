package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// TriggerType is one of the three independent timer conditions that can cause
// an escalation.
type TriggerType string

const (
	TriggerUnassigned TriggerType = "unassigned" // state=new, measured from created_at
	TriggerUnstarted  TriggerType = "unstarted"  // state=assigned, measured from updated_at
	TriggerUnresolved TriggerType = "unresolved" // state=in_progress, measured from updated_at
)

// AllTriggerTypes lists the trigger types in evaluation order.
var AllTriggerTypes = []TriggerType{TriggerUnassigned, TriggerUnstarted, TriggerUnresolved}

// IsValid reports whether the trigger type is known.
func (t TriggerType) IsValid() bool {
	return t == TriggerUnassigned || t == TriggerUnstarted || t == TriggerUnresolved
}

// CandidateState returns the work item state a trigger scans.
func (t TriggerType) CandidateState() WorkItemState {
	switch t {
	case TriggerUnassigned:
		return StateNew
	case TriggerUnstarted:
		return StateAssigned
	default:
		return StateInProgress
	}
}

// UsesCreatedAt reports whether the trigger measures age from created_at
// instead of updated_at.
func (t TriggerType) UsesCreatedAt() bool {
	return t == TriggerUnassigned
}

// ActionType is the corrective action an escalation rule applies.
type ActionType string

const (
	ActionNotify           ActionType = "notify"
	ActionReassign         ActionType = "reassign"
	ActionIncreasePriority ActionType = "increase_priority"
)

// IsValid reports whether the action type is known.
func (a ActionType) IsValid() bool {
	return a == ActionNotify || a == ActionReassign || a == ActionIncreasePriority
}

// RuleParams holds the action parameters of an escalation rule, stored as JSON
// in the params column.
type RuleParams struct {
	// RecipientRoles resolves to employee emails by role within the tenant (notify).
	RecipientRoles []string `json:"recipient_roles,omitempty"`
	// RecipientEmails are explicit addresses notified as-is (notify).
	RecipientEmails []string `json:"recipient_emails,omitempty"`
	// PriorityStep is how many levels increase_priority moves toward 1.
	PriorityStep int `json:"priority_step,omitempty"`
}

// ParseRuleParams parses the JSON params column of an escalation rule.
// A NULL or empty column yields an empty params struct.
func ParseRuleParams(raw sql.NullString) (*RuleParams, error) {
	if !raw.Valid || raw.String == "" {
		return &RuleParams{}, nil
	}
	var params RuleParams
	if err := json.Unmarshal([]byte(raw.String), &params); err != nil {
		return nil, fmt.Errorf("failed to parse rule params: %w", err)
	}
	return &params, nil
}

// EncodeRuleParams serializes rule params for storage.
func EncodeRuleParams(params *RuleParams) (sql.NullString, error) {
	if params == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode rule params: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// EscalationRule is a tenant-scoped escalation rule. A threshold of zero
// disables that trigger for the rule. A rule without category or priority
// filter applies tenant-wide.
type EscalationRule struct {
	RuleID   int64  `db:"rule_id" json:"rule_id"`
	TenantID int64  `db:"tenant_id" json:"tenant_id"`
	Name     string `db:"name" json:"name"`
	IsActive bool   `db:"is_active" json:"is_active"`

	// Thresholds, stored as whole seconds in the database. Serialized for the
	// API by the rule handler (seconds), not by this struct.
	UnassignedAfter time.Duration `json:"-"`
	UnstartedAfter  time.Duration `json:"-"`
	UnresolvedAfter time.Duration `json:"-"`

	// CategoryID limits the rule to one category when set.
	CategoryID sql.NullInt64 `db:"category_id" json:"category_id"`
	// MinUrgency limits the rule to items at least as urgent as the given
	// priority: an item matches when its priority <= MinUrgency (lower number
	// means more urgent).
	MinUrgency sql.NullInt64 `db:"min_urgency" json:"min_urgency"`

	Action ActionType     `db:"action" json:"action"`
	Params sql.NullString `db:"params" json:"params"` // JSON, see RuleParams

	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt sql.NullTime `db:"updated_at" json:"updated_at"`
}

// ThresholdFor returns the rule's threshold for a trigger type.
func (r *EscalationRule) ThresholdFor(t TriggerType) time.Duration {
	switch t {
	case TriggerUnassigned:
		return r.UnassignedAfter
	case TriggerUnstarted:
		return r.UnstartedAfter
	default:
		return r.UnresolvedAfter
	}
}

// Validate rejects malformed rules at creation/update time so they never
// reach the evaluator.
func (r *EscalationRule) Validate() error {
	if r.TenantID <= 0 {
		return fmt.Errorf("rule tenant_id is required")
	}
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.UnassignedAfter < 0 || r.UnstartedAfter < 0 || r.UnresolvedAfter < 0 {
		return fmt.Errorf("rule thresholds must be non-negative")
	}
	if r.UnassignedAfter == 0 && r.UnstartedAfter == 0 && r.UnresolvedAfter == 0 {
		return fmt.Errorf("rule must enable at least one trigger threshold")
	}
	if !r.Action.IsValid() {
		return fmt.Errorf("unknown rule action %q", r.Action)
	}
	if r.MinUrgency.Valid && !ValidPriority(int(r.MinUrgency.Int64)) {
		return fmt.Errorf("rule min_urgency must be between %d and %d", PriorityMostUrgent, PriorityLeastUrgent)
	}

	params, err := ParseRuleParams(r.Params)
	if err != nil {
		return err
	}
	switch r.Action {
	case ActionNotify:
		if len(params.RecipientRoles) == 0 && len(params.RecipientEmails) == 0 {
			return fmt.Errorf("notify rule requires recipient roles or emails")
		}
	case ActionIncreasePriority:
		if params.PriorityStep < 0 {
			return fmt.Errorf("priority step must be non-negative")
		}
	}
	return nil
}

// ApplyPriorityStep returns the priority after an increase_priority action:
// max(1, old - step). Clamped so an item never becomes more urgent than 1.
func ApplyPriorityStep(old, step int) int {
	next := old - step
	if next < PriorityMostUrgent {
		next = PriorityMostUrgent
	}
	return next
}

// EscalationLedgerEntry is one append-only record of an executed escalation.
// The ledger is the source of truth for "already escalated recently".
type EscalationLedgerEntry struct {
	EntryID        int64         `db:"entry_id" json:"entry_id"`
	TenantID       int64         `db:"tenant_id" json:"tenant_id"`
	WorkItemID     int64         `db:"work_item_id" json:"work_item_id"`
	RuleID         int64         `db:"rule_id" json:"rule_id"`
	TriggerType    TriggerType   `db:"trigger_type" json:"trigger_type"`
	ActionTaken    ActionType    `db:"action_taken" json:"action_taken"`
	PriorityBefore sql.NullInt64 `db:"priority_before" json:"priority_before"`
	PriorityAfter  sql.NullInt64 `db:"priority_after" json:"priority_after"`
	Reason         string        `db:"reason" json:"reason"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}

// EscalationCandidate is a work item that breached a trigger threshold,
// carrying every field the evaluator needs so no lazy loading happens later.
type EscalationCandidate struct {
	WorkItemID int64
	ItemNumber string
	TenantID   int64
	State      WorkItemState
	Priority   int
	CategoryID sql.NullInt64
	AssigneeID sql.NullInt64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ExecutedEscalation is one escalation actually performed during a pass.
type ExecutedEscalation struct {
	WorkItemID     int64       `json:"work_item_id"`
	TenantID       int64       `json:"tenant_id"`
	RuleID         int64       `json:"rule_id"`
	TriggerType    TriggerType `json:"trigger_type"`
	Action         ActionType  `json:"action"`
	PriorityBefore *int        `json:"priority_before,omitempty"`
	PriorityAfter  *int        `json:"priority_after,omitempty"`
	Reason         string      `json:"reason"`
	ExecutedAt     time.Time   `json:"executed_at"`
}

// EscalationFailure records one escalation that started but could not complete.
type EscalationFailure struct {
	WorkItemID  int64       `json:"work_item_id"`
	RuleID      int64       `json:"rule_id"`
	TriggerType TriggerType `json:"trigger_type"`
	Reason      string      `json:"reason"`
}

// EvaluationReport is the outcome of one evaluation pass.
type EvaluationReport struct {
	TenantID          *int64               `json:"tenant_id,omitempty"` // nil = all tenants
	StartedAt         time.Time            `json:"started_at"`
	FinishedAt        time.Time            `json:"finished_at"`
	RulesEvaluated    int                  `json:"rules_evaluated"`
	CandidatesChecked int                  `json:"candidates_checked"`
	Deduplicated      int                  `json:"deduplicated"`
	Executed          []ExecutedEscalation `json:"executed"`
	Failures          []EscalationFailure  `json:"failures,omitempty"`
	Warnings          []string             `json:"warnings,omitempty"`
}

// PendingEscalation is a work item that will breach a trigger threshold within
// the lookahead margin. Remaining is negative when the threshold is already
// breached.
type PendingEscalation struct {
	WorkItemID  int64         `json:"work_item_id"`
	ItemNumber  string        `json:"item_number"`
	TenantID    int64         `json:"tenant_id"`
	RuleID      int64         `json:"rule_id"`
	TriggerType TriggerType   `json:"trigger_type"`
	Deadline    time.Time     `json:"deadline"`
	Remaining   time.Duration `json:"remaining_seconds"`
}
