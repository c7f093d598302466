package notification

import (
	"time"

	"github.com/google/uuid"
)

// FeedMessage is one frame on the staff feed
type FeedMessage struct {
	Type       string      `json:"type"`
	EventID    string      `json:"event_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

// Kind identifies a user notice
type Kind string

const (
	KindActionApplied    Kind = "action_applied"
	KindActionRolledBack Kind = "action_rolled_back"
)

// Notice tells an affected user about an action on their account
type Notice struct {
	// ID is the originating event id; receivers dedupe on it
	ID         string     `json:"id"`
	Kind       Kind       `json:"kind"`
	UserID     uuid.UUID  `json:"user_id"`
	ActionID   uuid.UUID  `json:"action_id"`
	ActionType string     `json:"action_type"`
	Reason     string     `json:"reason,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
