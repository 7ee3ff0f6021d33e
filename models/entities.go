package models

import (
	"database/sql"
	"time"
)

// WorkItemState represents the possible lifecycle states of a work item
type WorkItemState string

const (
	StateNew                 WorkItemState = "new"
	StateReceived            WorkItemState = "received"
	StateAssigned            WorkItemState = "assigned"
	StateInProgress          WorkItemState = "in_progress"
	StatePendingConfirmation WorkItemState = "pending_confirmation"
	StateResolved            WorkItemState = "resolved"
	StateRejected            WorkItemState = "rejected"
)

// Priority bounds for work items. 1 is the most urgent.
const (
	PriorityMostUrgent  = 1
	PriorityLeastUrgent = 5
	DefaultPriority     = 3
)

// ValidPriority reports whether p is inside the allowed priority range.
func ValidPriority(p int) bool {
	return p >= PriorityMostUrgent && p <= PriorityLeastUrgent
}

// IsValid reports whether the state is one of the enumerated lifecycle states.
func (s WorkItemState) IsValid() bool {
	switch s {
	case StateNew, StateReceived, StateAssigned, StateInProgress,
		StatePendingConfirmation, StateResolved, StateRejected:
		return true
	}
	return false
}

// IsTerminal reports whether the state accepts no further transitions.
func (s WorkItemState) IsTerminal() bool {
	return s == StateResolved || s == StateRejected
}

// allowedTransitions is the lifecycle transition table.
// new -> assigned is the legacy direct path kept for backward compatibility;
// received and pending_confirmation are optional intermediate states a
// deployment may skip. rejected is reachable from every pre-resolution state.
var allowedTransitions = map[WorkItemState][]WorkItemState{
	StateNew:                 {StateReceived, StateAssigned, StateRejected},
	StateReceived:            {StateAssigned, StateRejected},
	StateAssigned:            {StateInProgress, StateRejected},
	StateInProgress:          {StatePendingConfirmation, StateResolved, StateRejected},
	StatePendingConfirmation: {StateResolved, StateRejected},
}

// CanTransition reports whether the lifecycle allows moving from one state to another.
func CanTransition(from, to WorkItemState) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ActorType represents who performed an action
type ActorType string

const (
	ActorSystem  ActorType = "system"
	ActorStaff   ActorType = "staff"
	ActorCitizen ActorType = "citizen"
)

// WorkItem represents one municipal complaint tracked through its lifecycle.
// UpdatedAt is refreshed on every state change; the unstarted/unresolved
// escalation triggers rely on that invariant.
type WorkItem struct {
	WorkItemID  int64         `db:"work_item_id" json:"work_item_id"`
	ItemNumber  string        `db:"item_number" json:"item_number"`
	TenantID    int64         `db:"tenant_id" json:"tenant_id"`
	Title       string        `db:"title" json:"title"`
	Description string        `db:"description" json:"description"`
	State       WorkItemState `db:"state" json:"state"`
	Priority    int           `db:"priority" json:"priority"`
	CategoryID  sql.NullInt64 `db:"category_id" json:"category_id"`
	AssigneeID  sql.NullInt64 `db:"assignee_id" json:"assignee_id"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// LifecycleHistoryEntry represents one immutable audit record per meaningful
// mutation of a work item. Escalation side effects write entries where
// StateBefore equals StateAfter.
type LifecycleHistoryEntry struct {
	HistoryID   int64          `db:"history_id" json:"history_id"`
	WorkItemID  int64          `db:"work_item_id" json:"work_item_id"`
	ActorType   ActorType      `db:"actor_type" json:"actor_type"`
	ActorID     sql.NullInt64  `db:"actor_id" json:"actor_id"` // NULL for system actions
	StateBefore sql.NullString `db:"state_before" json:"state_before"`
	StateAfter  WorkItemState  `db:"state_after" json:"state_after"`
	Action      string         `db:"action" json:"action"`
	Comment     sql.NullString `db:"comment" json:"comment"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// EmployeeRole is the role an employee holds inside a tenant.
type EmployeeRole string

const (
	RoleAdmin      EmployeeRole = "admin"
	RoleSupervisor EmployeeRole = "supervisor"
	RoleOperator   EmployeeRole = "operator"
)

// Employee represents a municipal staff member (assignee, notification
// recipient, API login).
type Employee struct {
	EmployeeID   int64        `db:"employee_id" json:"employee_id"`
	TenantID     int64        `db:"tenant_id" json:"tenant_id"`
	FullName     string       `db:"full_name" json:"full_name"`
	Email        string       `db:"email" json:"email"`
	Role         EmployeeRole `db:"role" json:"role"`
	PasswordHash string       `db:"password_hash" json:"-"`
	IsActive     bool         `db:"is_active" json:"is_active"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}
