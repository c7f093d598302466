package moderation

import "github.com/citywatch/citywatch-api/internal/pkg/apperror"

var (
	ErrReportNotFound = apperror.New(apperror.ErrNotFound, "report not found")
	ErrStatusConflict = apperror.New(apperror.ErrConflict, "report status changed")

	ErrCannotReportSelf  = apperror.Validation(map[string]string{"target_user_id": "cannot report yourself"})
	ErrInvalidReason     = apperror.Validation(map[string]string{"reason": "unknown report reason"})
	ErrInvalidStatus     = apperror.Validation(map[string]string{"status": "unknown report status"})
	ErrInvalidTarget     = apperror.Validation(map[string]string{"target_type": "must be user or stream"})
	ErrUserTargetShape   = apperror.Validation(map[string]string{"target_user_id": "user reports need target_user_id and no stream_id"})
	ErrStreamTargetShape = apperror.Validation(map[string]string{"stream_id": "stream reports need stream_id and no target_user_id"})
)
