package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Sender delivers notices to affected users
type Sender interface {
	Send(ctx context.Context, n *Notice) error
}

// WebhookSender posts notices to the user messaging service
type WebhookSender struct {
	url    string
	client *http.Client
}

// NewWebhookSender creates a webhook sender. client should retry on
// transient failures.
func NewWebhookSender(url string, client *http.Client) *WebhookSender {
	return &WebhookSender{url: url, client: client}
}

func (s *WebhookSender) Send(ctx context.Context, n *Notice) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", n.ID)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// LogSender logs notices. Used when no webhook is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, n *Notice) error {
	log.Info().
		Str("kind", string(n.Kind)).
		Str("user_id", n.UserID.String()).
		Str("action_id", n.ActionID.String()).
		Str("action_type", n.ActionType).
		Msg("User notice")
	return nil
}
