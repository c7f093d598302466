package court

import "github.com/citywatch/citywatch-api/internal/pkg/apperror"

var (
	ErrReferralNotFound = apperror.New(apperror.ErrNotFound, "court referral not found")
	ErrReferralClosed   = apperror.New(apperror.ErrConflict, "court referral is no longer pending")
	ErrReportClosed     = apperror.New(apperror.ErrConflict, "report was closed before the verdict, referral retired")

	ErrInvalidRuling      = apperror.Validation(map[string]string{"ruling": "must be one of guilty not_guilty dismissed appeal_granted"})
	ErrConsequenceNeeded  = apperror.Validation(map[string]string{"consequence_type": "a guilty verdict on a court session needs a consequence"})
	ErrInvalidConsequence = apperror.Validation(map[string]string{"consequence_type": "unknown consequence"})
)
