package escalation

import (
	"github.com/citywatch/citywatch-api/internal/config"
	"github.com/citywatch/citywatch-api/internal/pkg/apperror"
	"github.com/citywatch/citywatch-api/internal/pkg/validator"
)

// RuleRequest is the full editable state of a rule
type RuleRequest struct {
	ViolationType   string `json:"violation_type" validate:"required,max=64"`
	Severity        int    `json:"severity_level" validate:"required,min=1,max=5"`
	Threshold       int    `json:"violation_count_threshold" validate:"required,min=1"`
	TimeWindowDays  int    `json:"time_window_days" validate:"min=0"`
	Consequence     string `json:"consequence_type" validate:"required,oneof=warning timeout ban court_session permanent_ban"`
	DurationMinutes *int   `json:"consequence_duration_minutes,omitempty" validate:"omitempty,gt=0"`
	CourtRequired   bool   `json:"court_required"`
	AutoEscalate    *bool  `json:"auto_escalate,omitempty"`
	Points          int    `json:"points_deducted" validate:"min=0"`
	Active          *bool  `json:"is_active,omitempty"`
}

// check validates tags and the consequence/duration pairing
func (r *RuleRequest) check() error {
	if errs := validator.Validate(r); errs != nil {
		return apperror.Validation(errs)
	}
	switch Consequence(r.Consequence) {
	case ConsequenceTimeout:
		if r.DurationMinutes == nil {
			return apperror.Validation(map[string]string{"consequence_duration_minutes": "timeout requires a duration"})
		}
	case ConsequenceWarning, ConsequencePermanentBan:
		if r.DurationMinutes != nil {
			return apperror.Validation(map[string]string{"consequence_duration_minutes": r.Consequence + " must not have a duration"})
		}
	}
	return nil
}

func (r *RuleRequest) toRule() *Rule {
	autoEscalate := true
	if r.AutoEscalate != nil {
		autoEscalate = *r.AutoEscalate
	}
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return &Rule{
		ViolationType:   r.ViolationType,
		Severity:        r.Severity,
		Threshold:       r.Threshold,
		TimeWindowDays:  r.TimeWindowDays,
		Consequence:     Consequence(r.Consequence),
		DurationMinutes: copyInt(r.DurationMinutes),
		CourtRequired:   r.CourtRequired || Consequence(r.Consequence) == ConsequenceCourtSession,
		AutoEscalate:    autoEscalate,
		Points:          r.Points,
		Active:          active,
	}
}

func requestFromSeed(seed config.RuleSeed) *RuleRequest {
	return &RuleRequest{
		ViolationType:   seed.ViolationType,
		Severity:        seed.Severity,
		Threshold:       seed.Threshold,
		TimeWindowDays:  seed.TimeWindowDays,
		Consequence:     seed.Consequence,
		DurationMinutes: copyInt(seed.DurationMinutes),
		CourtRequired:   seed.CourtRequired,
		AutoEscalate:    seed.AutoEscalate,
		Points:          seed.Points,
	}
}
