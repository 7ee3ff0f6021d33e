package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/arenazl/munify-sub001/models"
	"github.com/arenazl/munify-sub001/repository"
)

// fakeWorkItemStore holds candidates in memory and applies the same filter
// semantics as the SQL query: reference time at or before the cutoff, optional
// category and priority ceiling. With returnAll set it skips filtering, which
// lets tests feed the evaluator rows that the real query would never produce.
type fakeWorkItemStore struct {
	mu        sync.Mutex
	items     []models.EscalationCandidate
	returnAll bool

	priorities   map[int64]int
	updateErrFor map[int64]error
	findErr      error
}

func newFakeWorkItemStore(items ...models.EscalationCandidate) *fakeWorkItemStore {
	return &fakeWorkItemStore{
		items:        items,
		priorities:   make(map[int64]int),
		updateErrFor: make(map[int64]error),
	}
}

func (f *fakeWorkItemStore) FindCandidates(ctx context.Context, filter repository.CandidateFilter) ([]models.EscalationCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.returnAll {
		return append([]models.EscalationCandidate(nil), f.items...), nil
	}
	var out []models.EscalationCandidate
	for _, c := range f.items {
		if c.TenantID != filter.TenantID || c.State != filter.State {
			continue
		}
		ref := c.UpdatedAt
		if filter.ByCreatedAt {
			ref = c.CreatedAt
		}
		if ref.After(filter.Cutoff) {
			continue
		}
		if filter.CategoryID != nil && (!c.CategoryID.Valid || c.CategoryID.Int64 != *filter.CategoryID) {
			continue
		}
		if filter.MinUrgency != nil && c.Priority > *filter.MinUrgency {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeWorkItemStore) UpdatePriority(ctx context.Context, workItemID int64, priority int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.updateErrFor[workItemID]; err != nil {
		return err
	}
	f.priorities[workItemID] = priority
	return nil
}

type fakeRuleCatalog struct {
	rules []models.EscalationRule
	err   error
}

func (f *fakeRuleCatalog) ActiveRules(ctx context.Context, tenantID *int64) ([]models.EscalationRule, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.EscalationRule
	for _, r := range f.rules {
		if !r.IsActive {
			continue
		}
		if tenantID != nil && r.TenantID != *tenantID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// fakeLedger mimics the conditional insert: an entry is suppressed when one
// for the same work item and trigger already exists inside the window. The
// clock is injectable so tests can move past the window.
type fakeLedger struct {
	mu      sync.Mutex
	entries []models.EscalationLedgerEntry
	err     error
	now     func() time.Time
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{now: time.Now}
}

func (f *fakeLedger) RecordIfAbsent(ctx context.Context, entry *models.EscalationLedgerEntry, window time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	now := f.now().UTC()
	windowStart := now.Add(-window)
	for _, existing := range f.entries {
		if existing.WorkItemID == entry.WorkItemID &&
			existing.TriggerType == entry.TriggerType &&
			existing.CreatedAt.After(windowStart) {
			return false, nil
		}
	}
	entry.CreatedAt = now
	entry.EntryID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, *entry)
	return true, nil
}

func (f *fakeLedger) RecentExists(ctx context.Context, workItemID int64, trigger models.TriggerType, window time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	windowStart := f.now().UTC().Add(-window)
	for _, existing := range f.entries {
		if existing.WorkItemID == workItemID &&
			existing.TriggerType == trigger &&
			existing.CreatedAt.After(windowStart) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) entriesFor(workItemID int64) []models.EscalationLedgerEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EscalationLedgerEntry
	for _, e := range f.entries {
		if e.WorkItemID == workItemID {
			out = append(out, e)
		}
	}
	return out
}

type fakeHistorySink struct {
	mu      sync.Mutex
	entries []models.LifecycleHistoryEntry
	err     error
}

func (f *fakeHistorySink) Append(ctx context.Context, entry *models.LifecycleHistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	entry.HistoryID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, *entry)
	return nil
}

type sentAlert struct {
	TenantID   int64
	WorkItemID int64
	Recipient  string
	Subject    string
	Body       string
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []sentAlert
	failFor map[string]error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{failFor: make(map[string]error)}
}

func (f *fakeNotifier) Notify(ctx context.Context, tenantID, workItemID int64, recipient, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[recipient]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentAlert{
		TenantID:   tenantID,
		WorkItemID: workItemID,
		Recipient:  recipient,
		Subject:    subject,
		Body:       body,
	})
	return nil
}

func (f *fakeNotifier) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.Recipient)
	}
	return out
}

type fakeDirectory struct {
	byRole map[string][]string
	err    error
}

func (f *fakeDirectory) EmailsByRoles(ctx context.Context, tenantID int64, roles []string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []string
	for _, role := range roles {
		out = append(out, f.byRole[role]...)
	}
	return out, nil
}

// fakeLifecycleStore backs the lifecycle service tests with an in-memory map.
type fakeLifecycleStore struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*models.WorkItem
}

func newFakeLifecycleStore() *fakeLifecycleStore {
	return &fakeLifecycleStore{items: make(map[int64]*models.WorkItem)}
}

func (f *fakeLifecycleStore) Create(ctx context.Context, item *models.WorkItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	item.WorkItemID = f.nextID
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	copied := *item
	f.items[item.WorkItemID] = &copied
	return nil
}

func (f *fakeLifecycleStore) GetByID(ctx context.Context, workItemID int64) (*models.WorkItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[workItemID]
	if !ok {
		return nil, nil
	}
	copied := *item
	return &copied, nil
}

func (f *fakeLifecycleStore) UpdateState(ctx context.Context, workItemID int64, state models.WorkItemState, assigneeID *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[workItemID]
	if !ok {
		return fmt.Errorf("work item %d not found", workItemID)
	}
	item.State = state
	item.UpdatedAt = time.Now().UTC()
	if assigneeID != nil {
		item.AssigneeID = sql.NullInt64{Int64: *assigneeID, Valid: true}
	}
	return nil
}

func (f *fakeLifecycleStore) GenerateItemNumber() string {
	return fmt.Sprintf("WI-TEST-%04d", f.nextID+1)
}
