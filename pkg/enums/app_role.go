package enums

import "fmt"

// AppRole is the application-level role carried in access tokens.
type AppRole string

const (
	AppRoleOwner      AppRole = "owner"
	AppRoleSubscriber AppRole = "subscriber"
)

var validAppRoles = []AppRole{
	AppRoleOwner,
	AppRoleSubscriber,
}

// String implements fmt.Stringer.
func (r AppRole) String() string {
	return string(r)
}

// IsValid reports whether the value is known.
func (r AppRole) IsValid() bool {
	for _, candidate := range validAppRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseAppRole converts raw input into an AppRole.
func ParseAppRole(value string) (AppRole, error) {
	for _, candidate := range validAppRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid app role %q", value)
}
