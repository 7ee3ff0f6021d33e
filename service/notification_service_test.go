package service

import (
	"context"
	"testing"
	"time"

	"github.com/arenazl/munify-sub001/models"
	"github.com/stretchr/testify/assert"
)

type noopSender struct{}

func (noopSender) Send(ctx context.Context, n *models.Notification) error { return nil }

func TestRetryDelayBacksOffExponentially(t *testing.T) {
	svc := NewNotificationService(nil, noopSender{}, &models.NotificationConfig{
		DefaultMaxRetries: 3,
		InitialRetryDelay: time.Minute,
		MaxRetryDelay:     30 * time.Minute,
		BackoffMultiplier: 2.0,
	})

	assert.Equal(t, time.Minute, svc.retryDelay(0))
	assert.Equal(t, 2*time.Minute, svc.retryDelay(1))
	assert.Equal(t, 8*time.Minute, svc.retryDelay(3))
	// Capped at the configured maximum.
	assert.Equal(t, 30*time.Minute, svc.retryDelay(10))
}
