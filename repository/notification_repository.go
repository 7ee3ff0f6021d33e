package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arenazl/munify-sub001/models"
)

// NotificationRepository handles database operations for the notification queue
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a new notification record (the queue entry).
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	notification.CreatedAt = time.Now().UTC()
	query := `
		INSERT INTO notifications_log (
			work_item_id, tenant_id, recipient, subject, body,
			status, retry_count, max_retries, next_retry_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(
		ctx,
		query,
		notification.WorkItemID,
		notification.TenantID,
		notification.Recipient,
		notification.Subject,
		notification.Body,
		notification.Status,
		notification.RetryCount,
		notification.MaxRetries,
		notification.NextRetryAt,
		notification.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	notificationID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get notification ID: %w", err)
	}
	notification.NotificationID = notificationID
	return nil
}

// GetPending retrieves queued notifications ready to be sent, oldest first.
func (r *NotificationRepository) GetPending(ctx context.Context, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT notification_id, work_item_id, tenant_id, recipient, subject, body,
			status, retry_count, max_retries, next_retry_at, sent_at, error_message,
			created_at, updated_at
		FROM notifications_log
		WHERE status IN ('pending', 'retrying')
			AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at ASC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, time.Now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending notifications: %w", err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var notification models.Notification
		err := rows.Scan(
			&notification.NotificationID,
			&notification.WorkItemID,
			&notification.TenantID,
			&notification.Recipient,
			&notification.Subject,
			&notification.Body,
			&notification.Status,
			&notification.RetryCount,
			&notification.MaxRetries,
			&notification.NextRetryAt,
			&notification.SentAt,
			&notification.ErrorMessage,
			&notification.CreatedAt,
			&notification.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, notification)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return notifications, nil
}

// MarkSent marks a notification as delivered.
func (r *NotificationRepository) MarkSent(ctx context.Context, notificationID int64) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE notifications_log SET status = ?, sent_at = ?, updated_at = ? WHERE notification_id = ?`,
		models.NotificationStatusSent, now, now, notificationID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed marks a notification as permanently failed.
func (r *NotificationRepository) MarkFailed(ctx context.Context, notificationID int64, errorMessage string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE notifications_log SET status = ?, error_message = ?, updated_at = ? WHERE notification_id = ?`,
		models.NotificationStatusFailed, errorMessage, now, notificationID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return nil
}

// ScheduleRetry bumps the retry counter and schedules the next attempt.
func (r *NotificationRepository) ScheduleRetry(ctx context.Context, notificationID int64, nextRetryAt time.Time, errorMessage string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE notifications_log
		 SET status = ?, retry_count = retry_count + 1, next_retry_at = ?, error_message = ?, updated_at = ?
		 WHERE notification_id = ?`,
		models.NotificationStatusRetrying, nextRetryAt, errorMessage, now, notificationID,
	)
	if err != nil {
		return fmt.Errorf("failed to schedule notification retry: %w", err)
	}
	return nil
}
