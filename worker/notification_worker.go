package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/arenazl/munify-sub001/service"
)

// NotificationWorker drains the notification queue in the background.
type NotificationWorker struct {
	notifications *service.NotificationService
	interval      time.Duration
	stopChan      chan struct{}

	mu      sync.Mutex
	running bool
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(notifications *service.NotificationService, interval time.Duration) *NotificationWorker {
	return &NotificationWorker{
		notifications: notifications,
		interval:      interval,
		stopChan:      make(chan struct{}),
		running:       false,
	}
}

// Start starts the notification worker in its own goroutine.
func (w *NotificationWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		log.Println("Notification worker is already running")
		return
	}
	w.running = true
	log.Printf("Notification worker started (interval: %v)", w.interval)
	go w.run()
}

// Stop stops the notification worker. Safe to call more than once.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	log.Println("Stopping notification worker...")
	close(w.stopChan)
	w.running = false
	log.Println("Notification worker stopped")
}

func (w *NotificationWorker) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.processBatch()
	for {
		select {
		case <-ticker.C:
			w.processBatch()
		case <-w.stopChan:
			return
		}
	}
}

func (w *NotificationWorker) processBatch() {
	processed, err := w.notifications.ProcessPending(context.Background())
	if err != nil {
		log.Printf("Error processing notifications: %v", err)
		return
	}
	if processed > 0 {
		log.Printf("[NOTIFY] Processed %d queued notifications", processed)
	}
}
