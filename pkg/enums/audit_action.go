package enums

import "fmt"

// AuditAction names the state transitions recorded in the audit log.
type AuditAction string

const (
	AuditActionGrantEnterprise       AuditAction = "grant_enterprise"
	AuditActionRevokeEnterprise      AuditAction = "revoke_enterprise"
	AuditActionSetSubscriptionStatus AuditAction = "set_subscription_status"
)

var validAuditActions = []AuditAction{
	AuditActionGrantEnterprise,
	AuditActionRevokeEnterprise,
	AuditActionSetSubscriptionStatus,
}

// String implements fmt.Stringer.
func (a AuditAction) String() string {
	return string(a)
}

// IsValid reports whether the value is known.
func (a AuditAction) IsValid() bool {
	for _, candidate := range validAuditActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuditAction converts raw input into an AuditAction.
func ParseAuditAction(value string) (AuditAction, error) {
	for _, candidate := range validAuditActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit action %q", value)
}
