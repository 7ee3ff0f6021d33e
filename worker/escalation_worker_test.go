package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/arenazl/munify-sub001/models"
	"github.com/arenazl/munify-sub001/repository"
	"github.com/arenazl/munify-sub001/service"
)

// idleDeps satisfies every evaluator dependency with no-ops so the worker
// loop can spin without a database.
type idleDeps struct{}

func (idleDeps) FindCandidates(ctx context.Context, filter repository.CandidateFilter) ([]models.EscalationCandidate, error) {
	return nil, nil
}

func (idleDeps) UpdatePriority(ctx context.Context, workItemID int64, priority int) error {
	return nil
}

func (idleDeps) ActiveRules(ctx context.Context, tenantID *int64) ([]models.EscalationRule, error) {
	return nil, nil
}

func (idleDeps) RecordIfAbsent(ctx context.Context, entry *models.EscalationLedgerEntry, window time.Duration) (bool, error) {
	return true, nil
}

func (idleDeps) Append(ctx context.Context, entry *models.LifecycleHistoryEntry) error {
	return nil
}

func (idleDeps) Notify(ctx context.Context, tenantID, workItemID int64, recipient, subject, body string) error {
	return nil
}

func (idleDeps) EmailsByRoles(ctx context.Context, tenantID int64, roles []string) ([]string, error) {
	return nil, nil
}

func newIdleWorker(interval time.Duration) *EscalationWorker {
	deps := idleDeps{}
	evaluator := service.NewEvaluator(deps, deps, deps, deps, deps, deps, 24*time.Hour, 1)
	return NewEscalationWorker(evaluator, interval)
}

func TestEscalationWorkerStartIsIdempotent(t *testing.T) {
	w := newIdleWorker(time.Hour)
	w.Start()
	w.Start()
	w.Stop()
}

func TestEscalationWorkerStopIsIdempotent(t *testing.T) {
	w := newIdleWorker(time.Hour)
	w.Start()
	w.Stop()
	// A second Stop must not close the channel again.
	w.Stop()
}

func TestEscalationWorkerConcurrentStop(t *testing.T) {
	w := newIdleWorker(time.Hour)
	w.Start()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Stop()
		}()
	}
	wg.Wait()
}
