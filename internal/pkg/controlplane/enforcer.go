// Package controlplane delivers physical enforcement commands to the live
// video control plane and the account store.
package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Operation is what the control plane should do
type Operation string

const (
	OpApply  Operation = "apply"
	OpRevoke Operation = "revoke"
)

// Command is one idempotent enforcement request
type Command struct {
	IdempotencyKey string     `json:"idempotency_key"`
	Operation      Operation  `json:"operation"`
	ActionType     string     `json:"action_type"`
	TargetUserID   *uuid.UUID `json:"target_user_id,omitempty"`
	StreamID       *uuid.UUID `json:"stream_id,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Reason         string     `json:"reason,omitempty"`
}

// ErrRejected marks a command the control plane refused. Retrying it will
// not help.
var ErrRejected = errors.New("control plane rejected command")

// Enforcer applies commands to the outside world
type Enforcer interface {
	Enforce(ctx context.Context, cmd Command) error
}

// HTTPEnforcer posts commands to the control plane endpoints. Stream
// commands go to the video control plane; account commands go to the
// account store.
type HTTPEnforcer struct {
	videoURL   string
	accountURL string
	token      string
	client     *http.Client
}

// NewHTTPEnforcer creates an HTTP enforcer
func NewHTTPEnforcer(videoURL, accountURL, token string, client *http.Client) *HTTPEnforcer {
	return &HTTPEnforcer{
		videoURL:   strings.TrimRight(videoURL, "/"),
		accountURL: strings.TrimRight(accountURL, "/"),
		token:      token,
		client:     client,
	}
}

func (e *HTTPEnforcer) endpoint(cmd Command) (string, error) {
	base := e.accountURL
	if cmd.ActionType == "suspend_stream" {
		base = e.videoURL
	}
	if base == "" {
		return "", fmt.Errorf("%w: no endpoint configured for %s", ErrRejected, cmd.ActionType)
	}
	return base + "/v1/enforcements", nil
}

// Enforce sends the command. 4xx responses other than 408 and 429 are
// reported as ErrRejected.
func (e *HTTPEnforcer) Enforce(ctx context.Context, cmd Command) error {
	url, err := e.endpoint(cmd)
	if err != nil {
		return err
	}

	body, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", cmd.IdempotencyKey)
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("control plane request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 || resp.StatusCode == http.StatusConflict {
		// 409 means the key was already applied
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 &&
		resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests {
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return fmt.Errorf("control plane status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}

// LogEnforcer only logs commands. Used when no control plane is configured.
type LogEnforcer struct{}

func (LogEnforcer) Enforce(_ context.Context, cmd Command) error {
	evt := log.Info().
		Str("idempotency_key", cmd.IdempotencyKey).
		Str("operation", string(cmd.Operation)).
		Str("action_type", cmd.ActionType)
	if cmd.TargetUserID != nil {
		evt = evt.Str("target_user_id", cmd.TargetUserID.String())
	}
	if cmd.StreamID != nil {
		evt = evt.Str("stream_id", cmd.StreamID.String())
	}
	evt.Msg("Enforcement command (no control plane configured)")
	return nil
}
