package notify

import (
	"context"
	"fmt"

	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/mailgun/mailgun-go/v4"
	"github.com/rs/zerolog"
)

// sendFunc delivers one plain-text email and returns the provider message ID.
type sendFunc func(ctx context.Context, subject, body string) (string, error)

// EmailNotifier mails anomaly alerts to a fixed address through Mailgun.
type EmailNotifier struct {
	send sendFunc
	to   string
	log  zerolog.Logger
}

// NewEmailNotifier creates a Mailgun-backed notifier.
func NewEmailNotifier(domainName, apiKey, from, to string, log zerolog.Logger) *EmailNotifier {
	mg := mailgun.NewMailgun(domainName, apiKey)
	return &EmailNotifier{
		send: func(ctx context.Context, subject, body string) (string, error) {
			message := mg.NewMessage(from, subject, body, to)
			resp, id, err := mg.Send(ctx, message)
			if err != nil {
				return "", fmt.Errorf("mailgun send failed: %w. Response: %s", err, resp)
			}
			return id, nil
		},
		to:  to,
		log: log,
	}
}

// NotifyAnomalies implements Notifier.
func (e *EmailNotifier) NotifyAnomalies(ctx context.Context, userID string, anomalies []domain.AnomalyFinding) error {
	if len(anomalies) == 0 {
		return nil
	}

	id, err := e.send(ctx, Subject(userID, anomalies), Body(userID, anomalies))
	if err != nil {
		e.log.Error().Err(err).Str("user_id", userID).Str("to", e.to).Msg("Failed to send anomaly email")
		return fmt.Errorf("email: %w", err)
	}

	e.log.Info().Str("user_id", userID).Str("to", e.to).Str("message_id", id).Msg("Sent anomaly email")
	return nil
}

var _ Notifier = (*EmailNotifier)(nil)
