package escalation

import (
	"time"

	"github.com/google/uuid"
)

// Consequence is the outcome an escalation rule prescribes
type Consequence string

const (
	ConsequenceWarning      Consequence = "warning"
	ConsequenceTimeout      Consequence = "timeout"
	ConsequenceBan          Consequence = "ban"
	ConsequenceCourtSession Consequence = "court_session"
	ConsequencePermanentBan Consequence = "permanent_ban"
)

// Valid reports whether c is in the closed set
func (c Consequence) Valid() bool {
	switch c {
	case ConsequenceWarning, ConsequenceTimeout, ConsequenceBan, ConsequenceCourtSession, ConsequencePermanentBan:
		return true
	}
	return false
}

// Rule is one row of the escalation matrix
type Rule struct {
	ID              uuid.UUID   `db:"id" json:"id"`
	ViolationType   string      `db:"violation_type" json:"violation_type"`
	Severity        int         `db:"severity_level" json:"severity_level"`
	Threshold       int         `db:"violation_count_threshold" json:"violation_count_threshold"`
	TimeWindowDays  int         `db:"time_window_days" json:"time_window_days"`
	Consequence     Consequence `db:"consequence_type" json:"consequence_type"`
	DurationMinutes *int        `db:"consequence_duration_minutes" json:"consequence_duration_minutes,omitempty"`
	CourtRequired   bool        `db:"court_required" json:"court_required"`
	AutoEscalate    bool        `db:"auto_escalate" json:"auto_escalate"`
	Points          int         `db:"points_deducted" json:"points_deducted"`
	Active          bool        `db:"is_active" json:"is_active"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// Violation is a confirmed offence attributed to an actor. Voided
// violations (from rolled-back actions) never count.
type Violation struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	ActorID       uuid.UUID  `db:"actor_id" json:"actor_id"`
	ViolationType string     `db:"violation_type" json:"violation_type"`
	ActionID      *uuid.UUID `db:"action_id" json:"action_id,omitempty"`
	OccurredAt    time.Time  `db:"occurred_at" json:"occurred_at"`
	VoidedAt      *time.Time `db:"voided_at" json:"voided_at,omitempty"`
}

// Decision is the matrix output for one evaluation
type Decision struct {
	Consequence     Consequence `json:"consequence_type"`
	DurationMinutes *int        `json:"consequence_duration_minutes,omitempty"`
	CourtRequired   bool        `json:"court_required"`
	AutoEscalate    bool        `json:"auto_escalate"`
	Points          int         `json:"points_deducted"`
	MatchedRuleID   *uuid.UUID  `json:"matched_rule_id,omitempty"`
	ViolationCount  int         `json:"violation_count"`
}

// DefaultDecision is returned when no rule matches
func DefaultDecision(count int) Decision {
	return Decision{
		Consequence:    ConsequenceWarning,
		Points:         0,
		CourtRequired:  false,
		AutoEscalate:   true,
		ViolationCount: count,
	}
}
