package court

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/citywatch/citywatch-api/internal/domain/enforcement"
	"github.com/citywatch/citywatch-api/internal/domain/escalation"
)

// Ruling is the court's verdict
type Ruling string

const (
	RulingGuilty        Ruling = "guilty"
	RulingNotGuilty     Ruling = "not_guilty"
	RulingDismissed     Ruling = "dismissed"
	RulingAppealGranted Ruling = "appeal_granted"
)

// Valid reports whether r is a known ruling
func (r Ruling) Valid() bool {
	switch r {
	case RulingGuilty, RulingNotGuilty, RulingDismissed, RulingAppealGranted:
		return true
	}
	return false
}

// Status is the lifecycle state of a referral
type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
	StatusExpired  Status = "expired"
)

// Timeout policies applied to referrals the court never answers
const (
	TimeoutNone          = "none"
	TimeoutDismiss       = "dismiss"
	TimeoutReturnToStaff = "return_to_staff"
)

// Plan is the parked escalation decision and the action it maps to
type Plan struct {
	Decision escalation.Decision     `json:"decision"`
	Draft    *enforcement.ApplyInput `json:"draft,omitempty"`
}

// Value stores the plan as jsonb
func (p Plan) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan reads the plan from jsonb
func (p *Plan) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	}
	return fmt.Errorf("court: cannot scan %T into plan", src)
}

// Referral is a case parked for the court
type Referral struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	ReportID   *uuid.UUID `db:"report_id" json:"report_id,omitempty"`
	ActorID    uuid.UUID  `db:"actor_id" json:"actor_id"`
	StreamID   *uuid.UUID `db:"stream_id" json:"stream_id,omitempty"`
	Plan       Plan       `db:"plan" json:"plan"`
	Status     Status     `db:"status" json:"status"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt  *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	Ruling     *Ruling    `db:"ruling" json:"ruling,omitempty"`
	ActionID   *uuid.UUID `db:"action_id" json:"action_id,omitempty"`
}

// Verdict is what the court sends back
type Verdict struct {
	Ruling          Ruling                 `json:"ruling"`
	Consequence     escalation.Consequence `json:"consequence_type,omitempty"`
	DurationMinutes *int                   `json:"duration_minutes,omitempty"`
	JudgeID         *uuid.UUID             `json:"judge_id,omitempty"`
	Notes           string                 `json:"notes,omitempty"`
}
