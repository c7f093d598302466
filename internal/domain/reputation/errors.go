package reputation

import "github.com/citywatch/citywatch-api/internal/pkg/apperror"

var (
	ErrUnknownClass     = apperror.New(apperror.ErrValidation, "unknown actor class")
	ErrUnknownEventType = apperror.New(apperror.ErrValidation, "unknown reputation event type")
	ErrEventNotAllowed  = apperror.New(apperror.ErrValidation, "event type does not apply to actor class")
	ErrReasonRequired   = apperror.New(apperror.ErrValidation, "reason is required")
	ErrZeroAdjustment   = apperror.New(apperror.ErrValidation, "adjustment delta must not be zero")
	ErrReferenceNeeded  = apperror.New(apperror.ErrValidation, "reference_id is required")
)
