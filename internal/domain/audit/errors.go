package audit

import "github.com/citywatch/citywatch-api/internal/pkg/apperror"

var (
	ErrEntryNotFound   = apperror.New(apperror.ErrNotFound, "audit entry not found")
	ErrAlreadyReversed = apperror.New(apperror.ErrConflict, "audit entry already reversed")
	ErrInvalidPayload  = apperror.New(apperror.ErrValidation, "audit payload does not match entry type")
	ErrInvalidCursor   = apperror.New(apperror.ErrValidation, "invalid change cursor")
	ErrArchiveDisabled = apperror.New(apperror.ErrValidation, "audit archive is not configured")
)
