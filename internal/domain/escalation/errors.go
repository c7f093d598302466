package escalation

import "github.com/citywatch/citywatch-api/internal/pkg/apperror"

var (
	ErrRuleNotFound       = apperror.New(apperror.ErrNotFound, "escalation rule not found")
	ErrInvalidRule        = apperror.New(apperror.ErrValidation, "invalid escalation rule")
	ErrViolationTypeBlank = apperror.New(apperror.ErrValidation, "violation type is required")

	// errNoMatchingRule never leaves this package; Evaluate degrades to
	// DefaultDecision.
	errNoMatchingRule = apperror.New(apperror.ErrPolicy, "no escalation rule matches")
)
