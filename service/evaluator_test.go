package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/arenazl/munify-sub001/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func notifyRule(ruleID, tenantID int64, threshold time.Duration, params models.RuleParams) models.EscalationRule {
	encoded, err := models.EncodeRuleParams(&params)
	if err != nil {
		panic(err)
	}
	return models.EscalationRule{
		RuleID:          ruleID,
		TenantID:        tenantID,
		Name:            "notify rule",
		IsActive:        true,
		UnassignedAfter: threshold,
		Action:          models.ActionNotify,
		Params:          encoded,
	}
}

func priorityRule(ruleID, tenantID int64, threshold time.Duration, step int) models.EscalationRule {
	encoded, err := models.EncodeRuleParams(&models.RuleParams{PriorityStep: step})
	if err != nil {
		panic(err)
	}
	return models.EscalationRule{
		RuleID:          ruleID,
		TenantID:        tenantID,
		Name:            "priority rule",
		IsActive:        true,
		UnresolvedAfter: threshold,
		Action:          models.ActionIncreasePriority,
		Params:          encoded,
	}
}

func candidate(id, tenantID int64, state models.WorkItemState, priority int, age time.Duration) models.EscalationCandidate {
	ref := testNow.Add(-age)
	return models.EscalationCandidate{
		WorkItemID: id,
		ItemNumber: "WI-20260310-abc",
		TenantID:   tenantID,
		State:      state,
		Priority:   priority,
		CreatedAt:  ref,
		UpdatedAt:  ref,
	}
}

func newTestEvaluator(store *fakeWorkItemStore, rules *fakeRuleCatalog, ledger *fakeLedger, notifier *fakeNotifier, directory *fakeDirectory) (*Evaluator, *fakeHistorySink) {
	history := &fakeHistorySink{}
	if directory == nil {
		directory = &fakeDirectory{byRole: map[string][]string{}}
	}
	ev := NewEvaluator(store, rules, ledger, history, notifier, directory, 24*time.Hour, 4)
	ev.now = func() time.Time { return testNow }
	ledger.now = ev.now
	return ev, history
}

func TestRunEvaluationPassNotifiesAndDedups(t *testing.T) {
	store := newFakeWorkItemStore(candidate(1, 7, models.StateNew, 3, 30*time.Hour))
	rules := &fakeRuleCatalog{rules: []models.EscalationRule{
		notifyRule(1, 7, 24*time.Hour, models.RuleParams{RecipientRoles: []string{"supervisor"}}),
	}}
	ledger := newFakeLedger()
	notifier := newFakeNotifier()
	directory := &fakeDirectory{byRole: map[string][]string{"supervisor": {"sup@town.gov"}}}
	ev, history := newTestEvaluator(store, rules, ledger, notifier, directory)

	report, err := ev.RunEvaluationPass(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, report.Executed, 1)
	assert.Equal(t, int64(1), report.Executed[0].WorkItemID)
	assert.Equal(t, models.TriggerUnassigned, report.Executed[0].TriggerType)
	assert.Equal(t, []string{"sup@town.gov"}, notifier.recipients())
	require.Len(t, ledger.entriesFor(1), 1)
	assert.Equal(t, "unassigned", string(ledger.entriesFor(1)[0].TriggerType))

	// The audit trail records the side effect without a state change.
	require.Len(t, history.entries, 1)
	assert.Equal(t, "escalation_notify", history.entries[0].Action)
	assert.Equal(t, models.ActorSystem, history.entries[0].ActorType)
	assert.Equal(t, string(models.StateNew), history.entries[0].StateBefore.String)
	assert.Equal(t, models.StateNew, history.entries[0].StateAfter)

	// An immediate second pass is fully suppressed by the ledger.
	second, err := ev.RunEvaluationPass(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, second.Executed)
	assert.Equal(t, 1, second.Deduplicated)
	assert.Len(t, notifier.recipients(), 1)
}

func TestDedupWindowExpiry(t *testing.T) {
	store := newFakeWorkItemStore(candidate(1, 7, models.StateNew, 3, 30*time.Hour))
	rules := &fakeRuleCatalog{rules: []models.EscalationRule{
		notifyRule(1, 7, 24*time.Hour, models.RuleParams{RecipientEmails: []string{"ops@town.gov"}}),
	}}
	ledger := newFakeLedger()
	notifier := newFakeNotifier()
	ev, _ := newTestEvaluator(store, rules, ledger, notifier, nil)

	clock := testNow
	ev.now = func() time.Time { return clock }
	ledger.now = ev.now

	report, err := ev.RunEvaluationPass(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, report.Executed, 1)

	// 23h later the window still holds.
	clock = testNow.Add(23 * time.Hour)
	report, err = ev.RunEvaluationPass(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Executed)
	assert.Equal(t, 1, report.Deduplicated)

	// At exactly T+24h the window has elapsed and the item is eligible again.
	clock = testNow.Add(24 * time.Hour)
	report, err = ev.RunEvaluationPass(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, report.Executed, 1)
	assert.Equal(t, 0, report.Deduplicated)
	assert.Len(t, ledger.entriesFor(1), 2)
}

func TestIncreasePriorityClampsAtMostUrgent(t *testing.T) {
	store := newFakeWorkItemStore(
		candidate(1, 7, models.StateInProgress, 1, 80*time.Hour),
		candidate(2, 7, models.StateInProgress, 3, 80*time.Hour),
	)
	rules := &fakeRuleCatalog{rules: []models.EscalationRule{
		priorityRule(1, 7, 72*time.Hour, 1),
	}}
	ledger := newFakeLedger()
	ev, _ := newTestEvaluator(store, rules, ledger, newFakeNotifier(), nil)

	report, err := ev.RunEvaluationPass(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, report.Executed, 2)

	// Already at the ceiling: before == after == 1, still audited.
	first := report.Executed[0]
	require.NotNil(t, first.PriorityBefore)
	require.NotNil(t, first.PriorityAfter)
	assert.Equal(t, 1, *first.PriorityBefore)
	assert.Equal(t, 1, *first.PriorityAfter)
	assert.Equal(t, 1, store.priorities[1])

	second := report.Executed[1]
	assert.Equal(t, 3, *second.PriorityBefore)
	assert.Equal(t, 2, *second.PriorityAfter)
	assert.Equal(t, 2, store.priorities[2])

	entries := ledger.entriesFor(1)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].PriorityBefore.Int64)
	assert.Equal(t, int64(1), entries[0].PriorityAfter.Int64)
}

func TestTenantIsolation(t *testing.T) {
	store := newFakeWorkItemStore(
		candidate(1, 7, models.StateNew, 3, 30*time.Hour),
		candidate(2, 8, models.StateNew, 3, 30*time.Hour),
	)
	rules := &fakeRuleCatalog{rules: []models.EscalationRule{
		notifyRule(1, 7, 24*time.Hour, models.RuleParams{RecipientEmails: []string{"ops@town.gov"}}),
	}}
	ev, _ := newTestEvaluator(store, rules, newFakeLedger(), newFakeNotifier(), nil)

	report, err := ev.RunEvaluationPass(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, report.Executed, 1)
	assert.Equal(t, int64(1), report.Executed[0].WorkItemID)
	assert.Equal(t, int64(7), report.Executed[0].TenantID)
}

func TestTriggerBoundary(t *testing.T) {
	// Exactly at the threshold escalates; one second short does not.
	store := newFakeWorkItemStore(
		candidate(1, 7, models.StateNew, 3, time.Hour),
		candidate(2, 7, models.StateNew, 3, time.Hour-time.Second),
	)
	rules := &fakeRuleCatalog{rules: []models.EscalationRule{
		notifyRule(1, 7, time.Hour, models.RuleParams{RecipientEmails: []string{"ops@town.gov"}}),
	}}
	ev, _ := newTestEvaluator(store, rules, newFakeLedger(), newFakeNotifier(), nil)

	report, err := ev.RunEvaluationPass(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, report.Executed, 1)
	assert.Equal(t, int64(1), report.Executed[0].WorkItemID)
}

func TestRuleFiltersApplied(t *testing.T) {
	roads := sql.NullInt64{Int64: 5, Valid: true}
	items := []models.EscalationCandidate{
		candidate(1, 7, models.StateNew, 2, 30*time.Hour),
		candidate(2, 7, models.StateNew, 4, 30*time.Hour), // too low urgency
		candidate(3, 7, models.StateNew, 2, 30*time.Hour), // wrong category
	}
	items[0].CategoryID = roads
	items[2].CategoryID = sql.NullInt64{Int64: 9, Valid: true}

	rule := notifyRule(1, 7, 24*time.Hour, models.RuleParams{RecipientEmails: []string{"ops@town.gov"}})
	rule.CategoryID = roads
	rule.MinUrgency = sql.NullInt64{Int64: 3, Valid: true}

	store := newFakeWorkItemStore(items...)
	ev, _ := newTestEvaluator(store, &fakeRuleCatalog{rules: []models.EscalationRule{rule}}, newFakeLedger(), newFakeNotifier(), nil)

	report, err := ev.RunEvaluationPass(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, report.Executed, 1)
	assert.Equal(t, int64(1), report.Executed[0].WorkItemID)
}

func TestFailureDoesNotAbortBatch(t *testing.T) {
	store := newFakeWorkItemStore(
		candidate(1, 7, models.StateInProgress, 3, 80*time.Hour),
		candidate(2, 7, models.StateInProgress, 3, 80*time.Hour),
	)
	store.updateErrFor[1] = errors.New("connection reset")
	rules := &fakeRuleCatalog{rules: []models.EscalationRule{
		priorityRule(1, 7, 72*time.Hour, 1),
	}}
	ledger := newFakeLedger()
	ev, _ := newTestEvaluator(store, rules, ledger, newFakeNotifier(), nil)

	report, err := ev.RunEvaluationPass(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, report.Executed, 1)
	assert.Equal(t, int64(2), report.Executed[0].WorkItemID)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, int64(1), report.Failures[0].WorkItemID)
	assert.Contains(t, report.Failures[0].Reason, "priority update failed")

	// The ledger entry lands before the action, so the failed item is also
	// suppressed until the window expires.
	assert.Len(t, ledger.entriesFor(1), 1)
}

func TestInvariantViolationsBecomeWarnings(t *testing.T) {
	bad := candidate(1, 99, models.StateNew, 3, 30*time.Hour) // tenant mismatch
	badPriority := candidate(2, 7, models.StateNew, 9, 30*time.Hour)
	badState := candidate(3, 7, models.StateNew, 3, 30*time.Hour)
	badState.State = "vanished"

	store := newFakeWorkItemStore(bad, badPriority, badState)
	store.returnAll = true
	rules := &fakeRuleCatalog{rules: []models.EscalationRule{
		notifyRule(1, 7, 24*time.Hour, models.RuleParams{RecipientEmails: []string{"ops@town.gov"}}),
	}}
	ledger := newFakeLedger()
	ev, _ := newTestEvaluator(store, rules, ledger, newFakeNotifier(), nil)

	report, err := ev.RunEvaluationPass(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Executed)
	assert.Empty(t, report.Failures)
	assert.Equal(t, 3, report.CandidatesChecked)
	assert.Len(t, report.Warnings, 3)
	assert.Empty(t, ledger.entries)
}

func TestReassignRuleSkippedWithWarning(t *testing.T) {
	rule := models.EscalationRule{
		RuleID:          1,
		TenantID:        7,
		Name:            "reassign stale",
		IsActive:        true,
		UnassignedAfter: 24 * time.Hour,
		Action:          models.ActionReassign,
	}
	store := newFakeWorkItemStore(candidate(1, 7, models.StateNew, 3, 30*time.Hour))
	ledger := newFakeLedger()
	ev, _ := newTestEvaluator(store, &fakeRuleCatalog{rules: []models.EscalationRule{rule}}, ledger, newFakeNotifier(), nil)

	report, err := ev.RunEvaluationPass(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.RulesEvaluated)
	assert.Equal(t, 0, report.CandidatesChecked)
	assert.Empty(t, report.Executed)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "reassign action not implemented")
	assert.Empty(t, ledger.entries)
}

func TestNotifyDedupsRecipients(t *testing.T) {
	store := newFakeWorkItemStore(candidate(1, 7, models.StateNew, 3, 30*time.Hour))
	rules := &fakeRuleCatalog{rules: []models.EscalationRule{
		notifyRule(1, 7, 24*time.Hour, models.RuleParams{
			RecipientEmails: []string{"sup@town.gov", "ops@town.gov"},
			RecipientRoles:  []string{"supervisor"},
		}),
	}}
	notifier := newFakeNotifier()
	directory := &fakeDirectory{byRole: map[string][]string{"supervisor": {"sup@town.gov"}}}
	ev, _ := newTestEvaluator(store, rules, newFakeLedger(), notifier, directory)

	report, err := ev.RunEvaluationPass(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, report.Executed, 1)
	assert.ElementsMatch(t, []string{"sup@town.gov", "ops@town.gov"}, notifier.recipients())
}

func TestNotifyWithoutResolvableRecipientsFails(t *testing.T) {
	store := newFakeWorkItemStore(candidate(1, 7, models.StateNew, 3, 30*time.Hour))
	rules := &fakeRuleCatalog{rules: []models.EscalationRule{
		notifyRule(1, 7, 24*time.Hour, models.RuleParams{RecipientRoles: []string{"supervisor"}}),
	}}
	directory := &fakeDirectory{err: errors.New("directory offline")}
	ev, _ := newTestEvaluator(store, rules, newFakeLedger(), newFakeNotifier(), directory)

	report, err := ev.RunEvaluationPass(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Executed)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0].Reason, "recipient lookup failed")
}

func TestPartialDeliveryStillExecutes(t *testing.T) {
	store := newFakeWorkItemStore(candidate(1, 7, models.StateNew, 3, 30*time.Hour))
	rules := &fakeRuleCatalog{rules: []models.EscalationRule{
		notifyRule(1, 7, 24*time.Hour, models.RuleParams{
			RecipientEmails: []string{"dead@town.gov", "ops@town.gov"},
		}),
	}}
	notifier := newFakeNotifier()
	notifier.failFor["dead@town.gov"] = errors.New("mailbox full")
	ev, history := newTestEvaluator(store, rules, newFakeLedger(), notifier, nil)

	report, err := ev.RunEvaluationPass(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, report.Executed, 1)
	assert.Equal(t, []string{"ops@town.gov"}, notifier.recipients())
	require.Len(t, history.entries, 1)
	assert.Contains(t, history.entries[0].Comment.String, "1 of 2 recipients")
}

func TestReportExecutedSortedByWorkItemID(t *testing.T) {
	store := newFakeWorkItemStore(
		candidate(9, 7, models.StateNew, 3, 30*time.Hour),
		candidate(2, 7, models.StateNew, 3, 30*time.Hour),
		candidate(5, 7, models.StateNew, 3, 30*time.Hour),
	)
	rules := &fakeRuleCatalog{rules: []models.EscalationRule{
		notifyRule(1, 7, 24*time.Hour, models.RuleParams{RecipientEmails: []string{"ops@town.gov"}}),
	}}
	ev, _ := newTestEvaluator(store, rules, newFakeLedger(), newFakeNotifier(), nil)

	report, err := ev.RunEvaluationPass(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, report.Executed, 3)
	assert.Equal(t, int64(2), report.Executed[0].WorkItemID)
	assert.Equal(t, int64(5), report.Executed[1].WorkItemID)
	assert.Equal(t, int64(9), report.Executed[2].WorkItemID)
}

func TestTenantScopedPassLoadsOnlyTenantRules(t *testing.T) {
	store := newFakeWorkItemStore(
		candidate(1, 7, models.StateNew, 3, 30*time.Hour),
		candidate(2, 8, models.StateNew, 3, 30*time.Hour),
	)
	rules := &fakeRuleCatalog{rules: []models.EscalationRule{
		notifyRule(1, 7, 24*time.Hour, models.RuleParams{RecipientEmails: []string{"a@town.gov"}}),
		notifyRule(2, 8, 24*time.Hour, models.RuleParams{RecipientEmails: []string{"b@town.gov"}}),
	}}
	ev, _ := newTestEvaluator(store, rules, newFakeLedger(), newFakeNotifier(), nil)

	tenant := int64(8)
	report, err := ev.RunEvaluationPass(context.Background(), &tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, report.RulesEvaluated)
	require.Len(t, report.Executed, 1)
	assert.Equal(t, int64(2), report.Executed[0].WorkItemID)
}

func TestHistoryFailureRecordedAsFailure(t *testing.T) {
	store := newFakeWorkItemStore(candidate(1, 7, models.StateNew, 3, 30*time.Hour))
	rules := &fakeRuleCatalog{rules: []models.EscalationRule{
		notifyRule(1, 7, 24*time.Hour, models.RuleParams{RecipientEmails: []string{"ops@town.gov"}}),
	}}
	ledger := newFakeLedger()
	history := &fakeHistorySink{err: errors.New("table locked")}
	directory := &fakeDirectory{byRole: map[string][]string{}}
	ev := NewEvaluator(store, rules, ledger, history, newFakeNotifier(), directory, 24*time.Hour, 4)
	ev.now = func() time.Time { return testNow }
	ledger.now = ev.now

	report, err := ev.RunEvaluationPass(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Executed)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0].Reason, "history write failed")
}
