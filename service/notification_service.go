package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/arenazl/munify-sub001/models"
	"github.com/arenazl/munify-sub001/notification"
	"github.com/arenazl/munify-sub001/repository"
)

// NotificationService queues alerts and dispatches them with retry logic.
// It is the engine's NotificationSink: the evaluator enqueues and returns;
// delivery, retries and backoff happen in the background worker.
type NotificationService struct {
	repo   *repository.NotificationRepository
	sender notification.Sender
	config *models.NotificationConfig
}

// NewNotificationService creates a notification service.
func NewNotificationService(
	repo *repository.NotificationRepository,
	sender notification.Sender,
	config *models.NotificationConfig,
) *NotificationService {
	if config == nil {
		config = models.DefaultNotificationConfig()
	}
	if sender == nil {
		sender = notification.NewEmailSender()
	}
	return &NotificationService{repo: repo, sender: sender, config: config}
}

// Notify queues one alert for a recipient. Non-blocking beyond the insert;
// implements the evaluator's NotificationSink.
func (s *NotificationService) Notify(ctx context.Context, tenantID, workItemID int64, recipient, subject, body string) error {
	if recipient == "" {
		return fmt.Errorf("notification recipient is required")
	}
	record := &models.Notification{
		WorkItemID: workItemID,
		TenantID:   tenantID,
		Recipient:  recipient,
		Subject:    subject,
		Body:       body,
		Status:     models.NotificationStatusPending,
		MaxRetries: s.config.DefaultMaxRetries,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return fmt.Errorf("failed to queue notification: %w", err)
	}
	return nil
}

// ProcessPending dispatches one batch of queued notifications. Called by the
// notification worker; returns how many were processed.
func (s *NotificationService) ProcessPending(ctx context.Context) (int, error) {
	pending, err := s.repo.GetPending(ctx, s.config.WorkerBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending notifications: %w", err)
	}

	for i := range pending {
		record := pending[i]
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := s.dispatch(ctx, &record); err != nil {
			log.Printf("[NOTIFY] Dispatch failed for notification %d: %v", record.NotificationID, err)
		}
	}
	return len(pending), nil
}

// dispatch sends one notification and updates its queue state.
func (s *NotificationService) dispatch(ctx context.Context, record *models.Notification) error {
	err := s.sender.Send(ctx, record)
	if err == nil {
		return s.repo.MarkSent(ctx, record.NotificationID)
	}

	if record.RetryCount >= record.MaxRetries {
		if markErr := s.repo.MarkFailed(ctx, record.NotificationID, err.Error()); markErr != nil {
			return markErr
		}
		return fmt.Errorf("max retries exceeded: %w", err)
	}

	nextRetryAt := time.Now().UTC().Add(s.retryDelay(record.RetryCount))
	if scheduleErr := s.repo.ScheduleRetry(ctx, record.NotificationID, nextRetryAt, err.Error()); scheduleErr != nil {
		return scheduleErr
	}
	return fmt.Errorf("delivery failed, retry scheduled: %w", err)
}

// retryDelay computes the exponential backoff delay for a retry attempt:
// min(initialDelay * multiplier^retryCount, maxDelay).
func (s *NotificationService) retryDelay(retryCount int) time.Duration {
	delaySeconds := s.config.InitialRetryDelay.Seconds() * math.Pow(s.config.BackoffMultiplier, float64(retryCount))
	delay := time.Duration(delaySeconds) * time.Second
	if delay > s.config.MaxRetryDelay {
		delay = s.config.MaxRetryDelay
	}
	return delay
}
