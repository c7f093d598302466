package enforcement

import (
	"github.com/google/uuid"

	"github.com/citywatch/citywatch-api/internal/domain/reputation"
)

// ApplyActionRequest is a staff request to apply an action
type ApplyActionRequest struct {
	ActionType      string     `json:"action_type" validate:"required,oneof=warn suspend_stream ban_user unban_user mute_user"`
	TargetUserID    *uuid.UUID `json:"target_user_id,omitempty"`
	StreamID        *uuid.UUID `json:"stream_id,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	Reason          string     `json:"reason" validate:"required,max=500"`
	Details         *string    `json:"details,omitempty" validate:"omitempty,max=2000"`
	ReportID        *uuid.UUID `json:"report_id,omitempty"`
	PointsDeducted  *int       `json:"points_deducted,omitempty"`
	ActorClass      string     `json:"actor_class,omitempty" validate:"omitempty,oneof=user officer seller"`
	ViolationType   string     `json:"violation_type,omitempty" validate:"omitempty,max=64"`
}

func (r *ApplyActionRequest) toInput() *ApplyInput {
	return &ApplyInput{
		ActionType:      ActionType(r.ActionType),
		TargetUserID:    r.TargetUserID,
		StreamID:        r.StreamID,
		DurationMinutes: r.DurationMinutes,
		Reason:          r.Reason,
		Details:         r.Details,
		ReportID:        r.ReportID,
		PointsDeducted:  r.PointsDeducted,
		ActorClass:      reputation.ActorClass(r.ActorClass),
		ViolationType:   r.ViolationType,
		Source:          SourceManual,
	}
}

// RollbackRequest names the audit entry to reverse
type RollbackRequest struct {
	LogID  string `json:"log_id" validate:"required"`
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// EscalateRequest optionally names the actor of a stream report
type EscalateRequest struct {
	ActorID *uuid.UUID `json:"actor_id,omitempty"`
}
