package enforcement

import (
	"time"

	"github.com/google/uuid"
)

// ActionType is the kind of moderation action
type ActionType string

const (
	ActionWarn          ActionType = "warn"
	ActionSuspendStream ActionType = "suspend_stream"
	ActionBanUser       ActionType = "ban_user"
	ActionUnbanUser     ActionType = "unban_user"
	ActionMuteUser      ActionType = "mute_user"
)

// Valid reports whether t is a known action type
func (t ActionType) Valid() bool {
	switch t {
	case ActionWarn, ActionSuspendStream, ActionBanUser, ActionUnbanUser, ActionMuteUser:
		return true
	}
	return false
}

// Reversible reports whether actions of this type may be rolled back
func (t ActionType) Reversible() bool {
	return t == ActionBanUser || t == ActionMuteUser
}

// Punitive reports whether the action counts against the target
func (t ActionType) Punitive() bool {
	return t != ActionUnbanUser
}

// physical reports whether the action needs the control plane
func (t ActionType) physical() bool {
	return t != ActionWarn
}

// Action is an applied moderation action. Only RevokedAt and LiftedAt are
// ever updated.
type Action struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	ActionType      ActionType `db:"action_type" json:"action_type"`
	TargetUserID    *uuid.UUID `db:"target_user_id" json:"target_user_id,omitempty"`
	StreamID        *uuid.UUID `db:"stream_id" json:"stream_id,omitempty"`
	Reason          string     `db:"reason" json:"reason"`
	Details         *string    `db:"details" json:"details,omitempty"`
	CreatedBy       uuid.UUID  `db:"created_by" json:"created_by"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	DurationMinutes *int       `db:"duration_minutes" json:"duration_minutes,omitempty"`
	ExpiresAt       *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	ReportID        *uuid.UUID `db:"report_id" json:"report_id,omitempty"`
	Reversible      bool       `db:"reversible" json:"reversible"`
	PointsDeducted  int        `db:"points_deducted" json:"points_deducted"`
	ActorClass      string     `db:"actor_class" json:"actor_class"`
	ViolationType   *string    `db:"violation_type" json:"violation_type,omitempty"`
	MatchedRuleID   *uuid.UUID `db:"matched_rule_id" json:"matched_rule_id,omitempty"`
	AuditEntryID    string     `db:"audit_entry_id" json:"audit_entry_id"`
	RevokedAt       *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	LiftedAt        *time.Time `db:"lifted_at" json:"lifted_at,omitempty"`
}

// ActiveAt reports whether the action still binds at t: not rolled back,
// not lifted by an unban, and not expired.
func (a *Action) ActiveAt(t time.Time) bool {
	if a.RevokedAt != nil || a.LiftedAt != nil {
		return false
	}
	return a.ExpiresAt == nil || t.Before(*a.ExpiresAt)
}

// JobStatus is the state of an outbox job
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Outbox operations
const (
	OpApply  = "apply"
	OpRevoke = "revoke"
)

// Job is one physical enforcement command waiting in the outbox
type Job struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	ActionID      uuid.UUID  `db:"action_id" json:"action_id"`
	Operation     string     `db:"operation" json:"operation"`
	Status        JobStatus  `db:"status" json:"status"`
	Attempts      int        `db:"attempts" json:"attempts"`
	NextAttemptAt time.Time  `db:"next_attempt_at" json:"next_attempt_at"`
	LastError     *string    `db:"last_error" json:"last_error,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// IdempotencyKey identifies the command at the control plane
func (j *Job) IdempotencyKey() string {
	return j.ActionID.String() + ":" + j.Operation
}
