package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/arenazl/munify-sub001/models"
	"github.com/arenazl/munify-sub001/repository"
)

// WorkItemStore is the read/mutate surface the evaluator needs from the work
// item store. Candidates arrive as plain records carrying every field the
// evaluator reads; nothing is lazily loaded afterwards.
type WorkItemStore interface {
	FindCandidates(ctx context.Context, filter repository.CandidateFilter) ([]models.EscalationCandidate, error)
	UpdatePriority(ctx context.Context, workItemID int64, priority int) error
}

// RuleCatalog loads active escalation rules, tenant-scoped or global.
type RuleCatalog interface {
	ActiveRules(ctx context.Context, tenantID *int64) ([]models.EscalationRule, error)
}

// Ledger is the append-only escalation audit used for dedup. RecordIfAbsent
// must perform the window check and the insert as one conditional operation.
type Ledger interface {
	RecordIfAbsent(ctx context.Context, entry *models.EscalationLedgerEntry, window time.Duration) (bool, error)
}

// HistorySink records human-readable lifecycle audit entries.
type HistorySink interface {
	Append(ctx context.Context, entry *models.LifecycleHistoryEntry) error
}

// NotificationSink emits one alert to one recipient. Delivery retries belong
// to the sink, not to the evaluator.
type NotificationSink interface {
	Notify(ctx context.Context, tenantID, workItemID int64, recipient, subject, body string) error
}

// RecipientDirectory resolves notification recipient roles to addresses.
type RecipientDirectory interface {
	EmailsByRoles(ctx context.Context, tenantID int64, roles []string) ([]string, error)
}

// Evaluator is the escalation engine core. It orchestrates one evaluation
// pass: load active rules, scan candidates per rule per trigger type, dedup
// via the ledger, execute the rule's action, write ledger and history entries.
// Created once per process and reused across passes; all state between passes
// lives in the ledger.
type Evaluator struct {
	workItems  WorkItemStore
	rules      RuleCatalog
	ledger     Ledger
	history    HistorySink
	notifier   NotificationSink
	recipients RecipientDirectory

	dedupWindow time.Duration
	poolSize    int
	now         func() time.Time
}

// NewEvaluator creates the escalation evaluator. dedupWindow is the rolling
// period during which a work item cannot be re-escalated for the same trigger
// type; poolSize bounds per-pass concurrency across candidates.
func NewEvaluator(
	workItems WorkItemStore,
	rules RuleCatalog,
	ledger Ledger,
	history HistorySink,
	notifier NotificationSink,
	recipients RecipientDirectory,
	dedupWindow time.Duration,
	poolSize int,
) *Evaluator {
	if dedupWindow <= 0 {
		dedupWindow = 24 * time.Hour
	}
	if poolSize <= 0 {
		poolSize = 1
	}
	return &Evaluator{
		workItems:   workItems,
		rules:       rules,
		ledger:      ledger,
		history:     history,
		notifier:    notifier,
		recipients:  recipients,
		dedupWindow: dedupWindow,
		poolSize:    poolSize,
		now:         time.Now,
	}
}

// RunEvaluationPass runs one evaluation pass over a single tenant (tenantID
// set) or all tenants (tenantID nil). Rules are evaluated independently; a
// failure escalating one item never aborts the batch. The returned report
// lists executed escalations sorted by work item ID.
func (e *Evaluator) RunEvaluationPass(ctx context.Context, tenantID *int64) (*models.EvaluationReport, error) {
	start := e.now().UTC()
	report := &models.EvaluationReport{
		TenantID:  tenantID,
		StartedAt: start,
	}

	rules, err := e.rules.ActiveRules(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load escalation rules: %w", err)
	}
	if len(rules) == 0 {
		log.Printf("[ESCALATION] No active rules - nothing to evaluate")
		report.FinishedAt = e.now().UTC()
		return report, nil
	}

	var mu sync.Mutex
	for i := range rules {
		rule := rules[i]
		report.RulesEvaluated++

		if rule.Action == models.ActionReassign {
			// Declared in the rule schema but the assignment policy is not
			// specified yet. Skip without a ledger entry.
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("rule %d (%s): reassign action not implemented, rule skipped", rule.RuleID, rule.Name))
			continue
		}

		params, err := models.ParseRuleParams(rule.Params)
		if err != nil {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("rule %d (%s): %v", rule.RuleID, rule.Name, err))
			continue
		}

		for _, trigger := range models.AllTriggerTypes {
			if err := ctx.Err(); err != nil {
				// Pass-level timeout: abort remaining candidates, keep what
				// already completed.
				report.Warnings = append(report.Warnings, fmt.Sprintf("pass aborted: %v", err))
				e.finishReport(report)
				return report, nil
			}
			e.evaluateTrigger(ctx, &rule, params, trigger, report, &mu)
		}
	}

	e.finishReport(report)
	log.Printf("[ESCALATION] Pass complete: rules=%d candidates=%d executed=%d deduplicated=%d failures=%d warnings=%d",
		report.RulesEvaluated, report.CandidatesChecked, len(report.Executed),
		report.Deduplicated, len(report.Failures), len(report.Warnings))
	return report, nil
}

// evaluateTrigger scans one (rule, trigger type) pair and escalates every
// matching candidate through a bounded worker pool.
func (e *Evaluator) evaluateTrigger(
	ctx context.Context,
	rule *models.EscalationRule,
	params *models.RuleParams,
	trigger models.TriggerType,
	report *models.EvaluationReport,
	mu *sync.Mutex,
) {
	threshold := rule.ThresholdFor(trigger)
	if threshold <= 0 {
		return
	}
	cutoff := e.now().UTC().Add(-threshold)

	filter := repository.CandidateFilter{
		TenantID:    rule.TenantID,
		State:       trigger.CandidateState(),
		Cutoff:      cutoff,
		ByCreatedAt: trigger.UsesCreatedAt(),
	}
	if rule.CategoryID.Valid {
		categoryID := rule.CategoryID.Int64
		filter.CategoryID = &categoryID
	}
	if rule.MinUrgency.Valid {
		minUrgency := int(rule.MinUrgency.Int64)
		filter.MinUrgency = &minUrgency
	}

	candidates, err := e.workItems.FindCandidates(ctx, filter)
	if err != nil {
		log.Printf("[ESCALATION] Candidate query failed for rule %d trigger %s: %v", rule.RuleID, trigger, err)
		mu.Lock()
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("rule %d trigger %s: candidate query failed: %v", rule.RuleID, trigger, err))
		mu.Unlock()
		return
	}

	sem := make(chan struct{}, e.poolSize)
	var wg sync.WaitGroup
	for i := range candidates {
		if ctx.Err() != nil {
			break
		}
		candidate := candidates[i]
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			e.escalateCandidate(ctx, rule, params, trigger, threshold, candidate, report, mu)
		}()
	}
	wg.Wait()
}

// escalateCandidate runs the read-check-act sequence for a single candidate.
// The conditional ledger insert happens before any side effect, so concurrent
// workers (or overlapping passes) can never double-escalate the same item for
// the same trigger within the dedup window.
func (e *Evaluator) escalateCandidate(
	ctx context.Context,
	rule *models.EscalationRule,
	params *models.RuleParams,
	trigger models.TriggerType,
	threshold time.Duration,
	candidate models.EscalationCandidate,
	report *models.EvaluationReport,
	mu *sync.Mutex,
) {
	mu.Lock()
	report.CandidatesChecked++
	mu.Unlock()

	// Data invariant violations are warnings, never crashes.
	if candidate.TenantID != rule.TenantID {
		e.warn(report, mu, fmt.Sprintf("work item %d: tenant %d does not match rule %d tenant %d, skipped",
			candidate.WorkItemID, candidate.TenantID, rule.RuleID, rule.TenantID))
		return
	}
	if !models.ValidPriority(candidate.Priority) {
		e.warn(report, mu, fmt.Sprintf("work item %d: priority %d out of range, skipped",
			candidate.WorkItemID, candidate.Priority))
		return
	}
	if !candidate.State.IsValid() {
		e.warn(report, mu, fmt.Sprintf("work item %d: unknown state %q, skipped",
			candidate.WorkItemID, candidate.State))
		return
	}

	referenceTime := candidate.UpdatedAt
	if trigger.UsesCreatedAt() {
		referenceTime = candidate.CreatedAt
	}
	age := e.now().UTC().Sub(referenceTime)
	reason := fmt.Sprintf("%s for %s (threshold %s)", trigger, age.Round(time.Second), threshold)

	entry := &models.EscalationLedgerEntry{
		TenantID:    candidate.TenantID,
		WorkItemID:  candidate.WorkItemID,
		RuleID:      rule.RuleID,
		TriggerType: trigger,
		ActionTaken: rule.Action,
		Reason:      reason,
	}

	var priorityBefore, priorityAfter int
	if rule.Action == models.ActionIncreasePriority {
		priorityBefore = candidate.Priority
		priorityAfter = models.ApplyPriorityStep(priorityBefore, params.PriorityStep)
		entry.PriorityBefore = sql.NullInt64{Int64: int64(priorityBefore), Valid: true}
		entry.PriorityAfter = sql.NullInt64{Int64: int64(priorityAfter), Valid: true}
	}

	inserted, err := e.ledger.RecordIfAbsent(ctx, entry, e.dedupWindow)
	if err != nil {
		e.fail(report, mu, candidate.WorkItemID, rule.RuleID, trigger,
			fmt.Sprintf("ledger write failed: %v", err))
		return
	}
	if !inserted {
		// Already escalated for this trigger within the dedup window.
		mu.Lock()
		report.Deduplicated++
		mu.Unlock()
		return
	}

	executed := models.ExecutedEscalation{
		WorkItemID:  candidate.WorkItemID,
		TenantID:    candidate.TenantID,
		RuleID:      rule.RuleID,
		TriggerType: trigger,
		Action:      rule.Action,
		Reason:      reason,
		ExecutedAt:  entry.CreatedAt,
	}

	var comment string
	switch rule.Action {
	case models.ActionNotify:
		delivered, total, err := e.executeNotify(ctx, rule, params, trigger, candidate, reason)
		if err != nil {
			e.fail(report, mu, candidate.WorkItemID, rule.RuleID, trigger, err.Error())
			return
		}
		comment = fmt.Sprintf("Escalation notice sent to %d of %d recipients: %s", delivered, total, reason)

	case models.ActionIncreasePriority:
		executed.PriorityBefore = &priorityBefore
		executed.PriorityAfter = &priorityAfter
		if err := e.workItems.UpdatePriority(ctx, candidate.WorkItemID, priorityAfter); err != nil {
			e.fail(report, mu, candidate.WorkItemID, rule.RuleID, trigger,
				fmt.Sprintf("priority update failed: %v", err))
			return
		}
		comment = fmt.Sprintf("Priority raised from %d to %d: %s", priorityBefore, priorityAfter, reason)
	}

	// Pure side-effect escalations keep state_before == state_after.
	historyEntry := &models.LifecycleHistoryEntry{
		WorkItemID:  candidate.WorkItemID,
		ActorType:   models.ActorSystem,
		ActorID:     sql.NullInt64{Valid: false},
		StateBefore: sql.NullString{String: string(candidate.State), Valid: true},
		StateAfter:  candidate.State,
		Action:      "escalation_" + string(rule.Action),
		Comment:     sql.NullString{String: comment, Valid: true},
	}
	if err := e.history.Append(ctx, historyEntry); err != nil {
		log.Printf("[ESCALATION] History write failed for work item %d: %v", candidate.WorkItemID, err)
		e.fail(report, mu, candidate.WorkItemID, rule.RuleID, trigger,
			fmt.Sprintf("history write failed: %v", err))
		return
	}

	mu.Lock()
	report.Executed = append(report.Executed, executed)
	mu.Unlock()
	log.Printf("[ESCALATION] ESCALATION FIRED work_item=%d tenant=%d rule=%d trigger=%s action=%s",
		candidate.WorkItemID, candidate.TenantID, rule.RuleID, trigger, rule.Action)
}

// executeNotify resolves the configured recipient set and emits one alert per
// recipient. Partial delivery is acceptable; a recipient failure is logged and
// the remaining recipients still get their alert.
func (e *Evaluator) executeNotify(
	ctx context.Context,
	rule *models.EscalationRule,
	params *models.RuleParams,
	trigger models.TriggerType,
	candidate models.EscalationCandidate,
	reason string,
) (delivered, total int, err error) {
	recipients := make([]string, 0, len(params.RecipientEmails))
	recipients = append(recipients, params.RecipientEmails...)

	if len(params.RecipientRoles) > 0 {
		roleEmails, lookupErr := e.recipients.EmailsByRoles(ctx, rule.TenantID, params.RecipientRoles)
		if lookupErr != nil {
			// Recipient lookup trouble must not sink the escalation when
			// explicit addresses remain.
			log.Printf("[ESCALATION] Recipient role lookup failed for rule %d: %v", rule.RuleID, lookupErr)
			if len(recipients) == 0 {
				return 0, 0, fmt.Errorf("recipient lookup failed: %v", lookupErr)
			}
		} else {
			recipients = append(recipients, roleEmails...)
		}
	}

	recipients = dedupeStrings(recipients)
	if len(recipients) == 0 {
		return 0, 0, fmt.Errorf("no recipients resolved for rule %d", rule.RuleID)
	}

	subject := fmt.Sprintf("Escalation: work item %s (%s)", candidate.ItemNumber, trigger)
	body := fmt.Sprintf("Work item %s (tenant %d, priority %d) breached its service-level expectation: %s.",
		candidate.ItemNumber, candidate.TenantID, candidate.Priority, reason)

	for _, recipient := range recipients {
		if notifyErr := e.notifier.Notify(ctx, candidate.TenantID, candidate.WorkItemID, recipient, subject, body); notifyErr != nil {
			log.Printf("[ESCALATION] Notify failed for work item %d recipient %s: %v",
				candidate.WorkItemID, recipient, notifyErr)
			continue
		}
		delivered++
	}
	return delivered, len(recipients), nil
}

func (e *Evaluator) finishReport(report *models.EvaluationReport) {
	sort.Slice(report.Executed, func(i, j int) bool {
		if report.Executed[i].WorkItemID == report.Executed[j].WorkItemID {
			return report.Executed[i].TriggerType < report.Executed[j].TriggerType
		}
		return report.Executed[i].WorkItemID < report.Executed[j].WorkItemID
	})
	report.FinishedAt = e.now().UTC()
}

func (e *Evaluator) warn(report *models.EvaluationReport, mu *sync.Mutex, message string) {
	log.Printf("[ESCALATION] Warning: %s", message)
	mu.Lock()
	report.Warnings = append(report.Warnings, message)
	mu.Unlock()
}

func (e *Evaluator) fail(report *models.EvaluationReport, mu *sync.Mutex, workItemID, ruleID int64, trigger models.TriggerType, reason string) {
	log.Printf("[ESCALATION] Failure for work item %d: %s", workItemID, reason)
	mu.Lock()
	report.Failures = append(report.Failures, models.EscalationFailure{
		WorkItemID:  workItemID,
		RuleID:      ruleID,
		TriggerType: trigger,
		Reason:      reason,
	})
	mu.Unlock()
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
