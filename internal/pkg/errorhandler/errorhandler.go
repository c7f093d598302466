package errorhandler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/citywatch/citywatch-api/internal/pkg/apperror"
	"github.com/citywatch/citywatch-api/internal/pkg/logger"
	"github.com/citywatch/citywatch-api/internal/pkg/response"
)

// Respond maps a service error onto the response envelope. Domain error
// kinds get their own status; anything else is logged and hidden as 500.
func Respond(ctx context.Context, w http.ResponseWriter, err error) {
	switch apperror.Kind(err) {
	case apperror.ErrValidation:
		fields := apperror.FieldErrors(err)
		LogValidationError(ctx, fields)
		if fields == nil {
			fields = map[string]string{}
		}
		response.ErrorWithDetails(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), fields)
	case apperror.ErrNotFound:
		response.NotFound(w, err.Error())
	case apperror.ErrConflict:
		logger.FromContext(ctx).Info().Err(err).Msg("Request conflict")
		response.Conflict(w, err.Error())
	case apperror.ErrPermission:
		logger.FromContext(ctx).Warn().Err(err).Msg("Permission denied")
		response.Forbidden(w, err.Error())
	default:
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.FromContext(ctx).Error().Err(err).Msg("Request error")
		response.InternalError(w)
	}
}

// LogValidationError logs validation errors with details
func LogValidationError(ctx context.Context, fieldErrors map[string]string) {
	errJSON, _ := json.Marshal(fieldErrors)
	logger.FromContext(ctx).Warn().
		RawJSON("validation_errors", errJSON).
		Msg("Validation error")
}

// LogExternalServiceError logs errors from external service calls
func LogExternalServiceError(ctx context.Context, service string, endpoint string, statusCode int, err error, body string) {
	logger.FromContext(ctx).Error().
		Str("external_service", service).
		Str("endpoint", endpoint).
		Int("status_code", statusCode).
		Err(err).
		Str("response_body", truncateString(body, 1000)).
		Msg("External service error")
}

func truncateString(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "...<truncated>"
	}
	return s
}
