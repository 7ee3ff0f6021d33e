package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/arenazl/munify-sub001/models"
)

// ErrInvalidRecipient is returned when a notification has no usable recipient.
var ErrInvalidRecipient = errors.New("invalid notification recipient")

// Sender delivers one notification. Retries are handled by the caller.
type Sender interface {
	Send(ctx context.Context, notification *models.Notification) error
}

// EmailSender sends email. If EMAIL_MODE=shadow, the recipient is forced to
// EMAIL_SHADOW_ADDRESS so pilot runs never reach real inboxes. If
// SENDGRID_API_KEY is unset, sending is a no-op (queue state still advances).
type EmailSender struct {
	apiKey     string
	fromAddr   string
	shadowAddr string
	client     *http.Client
}

// NewEmailSender creates an email sender from environment configuration.
func NewEmailSender() *EmailSender {
	shadowAddr := ""
	if os.Getenv("EMAIL_MODE") == "shadow" {
		shadowAddr = os.Getenv("EMAIL_SHADOW_ADDRESS")
		if shadowAddr == "" {
			shadowAddr = "escalations@munify.local"
		}
	}
	fromAddr := os.Getenv("EMAIL_FROM_ADDRESS")
	if fromAddr == "" {
		fromAddr = "no-reply@munify.local"
	}
	return &EmailSender{
		apiKey:     os.Getenv("SENDGRID_API_KEY"),
		fromAddr:   fromAddr,
		shadowAddr: shadowAddr,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Send sends an email. In shadow mode the recipient is replaced by the shadow
// address before delivery.
func (s *EmailSender) Send(ctx context.Context, n *models.Notification) error {
	recipient := n.Recipient
	if s.shadowAddr != "" {
		recipient = s.shadowAddr
	}
	if recipient == "" {
		return ErrInvalidRecipient
	}
	if s.apiKey == "" {
		return nil
	}
	return s.sendViaSendGrid(ctx, recipient, n.Subject, n.Body)
}

const sendGridURL = "https://api.sendgrid.com/v3/mail/send"

func (s *EmailSender) sendViaSendGrid(ctx context.Context, recipient, subject, body string) error {
	payload := map[string]interface{}{
		"personalizations": []map[string]interface{}{
			{"to": []map[string]string{{"email": recipient}}},
		},
		"from":    map[string]string{"email": s.fromAddr},
		"subject": subject,
		"content": []map[string]string{{"type": "text/plain", "value": body}},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendGridURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("email request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("email provider returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
