package entitlements

import "github.com/simmerworks/simmer-backend/pkg/enums"

// Access is the pair of capabilities the rest of the system consumes.
type Access struct {
	CanViewPublic     bool
	CanViewEnterprise bool
}

// Compute derives access from role, subscription status, and the
// owner-granted enterprise flag. It is pure and is re-evaluated on every
// access check; a webhook can change the inputs between two calls made
// seconds apart.
//
// Owners see everything. For subscribers, public access follows the
// subscription status while enterprise access follows only the grant flag,
// independent of billing state.
func Compute(role enums.AppRole, status *enums.SubscriptionStatus, enterpriseGranted bool) Access {
	if role == enums.AppRoleOwner {
		return Access{CanViewPublic: true, CanViewEnterprise: true}
	}
	return Access{
		CanViewPublic:     status != nil && status.Entitles(),
		CanViewEnterprise: enterpriseGranted,
	}
}
