package court

import (
	"github.com/google/uuid"

	"github.com/citywatch/citywatch-api/internal/domain/escalation"
)

// VerdictRequest is the court's callback body
type VerdictRequest struct {
	Ruling          string     `json:"ruling" validate:"required,oneof=guilty not_guilty dismissed appeal_granted"`
	Consequence     string     `json:"consequence_type,omitempty" validate:"omitempty,oneof=warning timeout ban permanent_ban"`
	DurationMinutes *int       `json:"duration_minutes,omitempty" validate:"omitempty,min=1"`
	JudgeID         *uuid.UUID `json:"judge_id,omitempty"`
	Notes           string     `json:"notes,omitempty" validate:"max=2000"`
}

func (r *VerdictRequest) toVerdict() *Verdict {
	return &Verdict{
		Ruling:          Ruling(r.Ruling),
		Consequence:     escalation.Consequence(r.Consequence),
		DurationMinutes: r.DurationMinutes,
		JudgeID:         r.JudgeID,
		Notes:           r.Notes,
	}
}
