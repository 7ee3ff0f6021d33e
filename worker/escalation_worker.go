package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/arenazl/munify-sub001/service"
)

// EscalationWorker periodically runs an all-tenant evaluation pass. Passes are
// designed not to overlap, but overlap is tolerated: the ledger's conditional
// insert keeps at-most-one-escalation-per-window enforced by data, not a lock.
type EscalationWorker struct {
	evaluator *service.Evaluator
	interval  time.Duration
	stopChan  chan struct{}

	mu      sync.Mutex
	running bool
}

// NewEscalationWorker creates a new escalation worker
func NewEscalationWorker(evaluator *service.Evaluator, interval time.Duration) *EscalationWorker {
	return &EscalationWorker{
		evaluator: evaluator,
		interval:  interval,
		stopChan:  make(chan struct{}),
		running:   false,
	}
}

// Start starts the escalation worker in its own goroutine.
func (w *EscalationWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		log.Println("Escalation worker is already running")
		return
	}
	w.running = true
	log.Printf("Escalation worker started (interval: %v)", w.interval)
	go w.run()
}

// Stop stops the escalation worker. Safe to call more than once.
func (w *EscalationWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	log.Println("Stopping escalation worker...")
	close(w.stopChan)
	w.running = false
	log.Println("Escalation worker stopped")
}

// run is the main worker loop. Processes immediately on start, then on every
// tick.
func (w *EscalationWorker) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runPass()
	for {
		select {
		case <-ticker.C:
			w.runPass()
		case <-w.stopChan:
			return
		}
	}
}

// runPass executes one evaluation pass across all tenants. Safe to call
// repeatedly: re-running after a partial failure cannot double-escalate.
func (w *EscalationWorker) runPass() {
	startTime := time.Now()
	log.Println("Starting escalation pass...")

	report, err := w.evaluator.RunEvaluationPass(context.Background(), nil)
	if err != nil {
		log.Printf("Error running escalation pass: %v", err)
		return
	}

	log.Printf("Escalation pass completed in %v: %d executed, %d deduplicated, %d failures, %d warnings",
		time.Since(startTime), len(report.Executed), report.Deduplicated,
		len(report.Failures), len(report.Warnings))
}
