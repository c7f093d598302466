// Package access holds the role and permission table checked by every
// moderation operation.
package access

import (
	"github.com/google/uuid"

	"github.com/citywatch/citywatch-api/internal/pkg/apperror"
)

// Role represents a platform role
type Role string

const (
	RoleUser        Role = "user"
	RoleOfficer     Role = "officer"
	RoleLeadOfficer Role = "lead_officer"
	RoleAdmin       Role = "admin"

	// RoleSystem is used by workers and the court bridge
	RoleSystem Role = "system"
)

// Permission represents an engine permission
type Permission string

const (
	PermSubmitReports    Permission = "reports.submit"
	PermViewReports      Permission = "reports.view"
	PermReviewReports    Permission = "reports.review"
	PermTakeAction       Permission = "actions.take"
	PermRollbackAction   Permission = "actions.rollback"
	PermEvaluate         Permission = "escalation.evaluate"
	PermManageRules      Permission = "escalation.manage"
	PermViewReputation   Permission = "reputation.view"
	PermAdjustReputation Permission = "reputation.adjust"
	PermViewAudit        Permission = "audit.view"
	PermExportAudit      Permission = "audit.export"
	PermViewReferrals    Permission = "referrals.view"
	PermRedriveJobs      Permission = "jobs.redrive"
)

var staffBase = []Permission{
	PermSubmitReports, PermViewReports, PermReviewReports,
	PermTakeAction, PermRollbackAction, PermEvaluate,
	PermViewReputation, PermViewAudit, PermViewReferrals,
}

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleUser:        {PermSubmitReports},
	RoleOfficer:     staffBase,
	RoleLeadOfficer: append(append([]Permission{}, staffBase...), PermAdjustReputation, PermManageRules, PermRedriveJobs),
	RoleAdmin: append(append([]Permission{}, staffBase...),
		PermAdjustReputation, PermManageRules, PermRedriveJobs, PermExportAudit),
	RoleSystem: append(append([]Permission{}, staffBase...), PermAdjustReputation, PermManageRules, PermRedriveJobs),
}

var ErrForbidden = apperror.New(apperror.ErrPermission, "insufficient permissions")

// Principal identifies the caller of an engine operation
type Principal struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

// System returns the principal used by background workers
func System() Principal {
	return Principal{ID: uuid.Nil, Role: RoleSystem}
}

// IsStaff reports whether the role may act on reports
func (p Principal) IsStaff() bool {
	return p.Can(PermReviewReports)
}

// Can checks if the principal holds a permission
func (p Principal) Can(perm Permission) bool {
	for _, granted := range RolePermissions[p.Role] {
		if granted == perm {
			return true
		}
	}
	return false
}

// Require returns a permission error when the principal lacks perm
func Require(p Principal, perm Permission) error {
	if !p.Can(perm) {
		return apperror.Wrapf(ErrForbidden, "role %q lacks %s", p.Role, perm)
	}
	return nil
}

// ParseRole maps a token role claim onto a known role. Unknown claims
// become RoleUser.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleOfficer, RoleLeadOfficer, RoleAdmin:
		return Role(s)
	default:
		return RoleUser
	}
}
