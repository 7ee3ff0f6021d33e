package models

import (
	"database/sql"
	"time"
)

// NotificationStatus represents the status of a queued notification
type NotificationStatus string

const (
	NotificationStatusPending  NotificationStatus = "pending"
	NotificationStatusSent     NotificationStatus = "sent"
	NotificationStatusFailed   NotificationStatus = "failed"
	NotificationStatusRetrying NotificationStatus = "retrying"
)

// Notification represents one queued alert to a recipient. The escalation
// engine only enqueues; delivery and retries belong to the notification worker.
type Notification struct {
	NotificationID int64              `db:"notification_id" json:"notification_id"`
	WorkItemID     int64              `db:"work_item_id" json:"work_item_id"`
	TenantID       int64              `db:"tenant_id" json:"tenant_id"`
	Recipient      string             `db:"recipient" json:"recipient"`
	Subject        string             `db:"subject" json:"subject"`
	Body           string             `db:"body" json:"body"`
	Status         NotificationStatus `db:"status" json:"status"`
	RetryCount     int                `db:"retry_count" json:"retry_count"`
	MaxRetries     int                `db:"max_retries" json:"max_retries"`
	NextRetryAt    sql.NullTime       `db:"next_retry_at" json:"next_retry_at"`
	SentAt         sql.NullTime       `db:"sent_at" json:"sent_at"`
	ErrorMessage   sql.NullString     `db:"error_message" json:"error_message"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt      sql.NullTime       `db:"updated_at" json:"updated_at"`
}

// NotificationConfig holds configuration for the notification dispatcher.
type NotificationConfig struct {
	DefaultMaxRetries int
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration
	BackoffMultiplier float64
	WorkerBatchSize   int
	WorkerInterval    time.Duration
}

// DefaultNotificationConfig returns the default dispatcher configuration.
func DefaultNotificationConfig() *NotificationConfig {
	return &NotificationConfig{
		DefaultMaxRetries: 3,
		InitialRetryDelay: 1 * time.Minute,
		MaxRetryDelay:     30 * time.Minute,
		BackoffMultiplier: 2.0,
		WorkerBatchSize:   100,
		WorkerInterval:    30 * time.Second,
	}
}
