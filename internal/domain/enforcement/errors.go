package enforcement

import "github.com/citywatch/citywatch-api/internal/pkg/apperror"

var (
	ErrActionNotFound = apperror.New(apperror.ErrNotFound, "moderation action not found")
	ErrJobNotFound    = apperror.New(apperror.ErrNotFound, "enforcement job not found")

	ErrNotReversible    = apperror.New(apperror.ErrConflict, "action is not reversible")
	ErrActionInactive   = apperror.New(apperror.ErrConflict, "action is no longer active")
	ErrNoActiveBan      = apperror.New(apperror.ErrConflict, "user has no active ban")
	ErrJobNotFailed     = apperror.New(apperror.ErrConflict, "only failed jobs can be redriven")
	ErrCourtUnavailable = apperror.New(apperror.ErrConflict, "court referral bridge is not configured")

	ErrInvalidActionType  = apperror.Validation(map[string]string{"action_type": "unknown action type"})
	ErrReasonRequired     = apperror.Validation(map[string]string{"reason": "This field is required"})
	ErrUserTargetNeeded   = apperror.Validation(map[string]string{"target_user_id": "this action needs a target user"})
	ErrStreamTargetNeeded = apperror.Validation(map[string]string{"stream_id": "suspend_stream needs a stream"})
	ErrStreamNotAllowed   = apperror.Validation(map[string]string{"stream_id": "only suspend_stream targets a stream"})
	ErrDurationRequired   = apperror.Validation(map[string]string{"duration_minutes": "this action needs a positive duration"})
	ErrDurationForbidden  = apperror.Validation(map[string]string{"duration_minutes": "this action does not take a duration"})
	ErrDurationPositive   = apperror.Validation(map[string]string{"duration_minutes": "must be greater than 0"})
	ErrNegativePoints     = apperror.Validation(map[string]string{"points_deducted": "must not be negative"})
	ErrUnknownActorClass  = apperror.Validation(map[string]string{"actor_class": "unknown actor class"})
	ErrStreamActorNeeded  = apperror.Validation(map[string]string{"actor_id": "stream reports need the stream owner as actor_id"})
	ErrNoDirectAction     = apperror.Validation(map[string]string{"consequence_type": "consequence has no direct action"})
)
