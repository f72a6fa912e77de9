package enums

import "fmt"

// Role is the single workflow role a user holds.
type Role string

const (
	RoleSupport  Role = "support"
	RoleLicense  Role = "license"
	RoleAccounts Role = "accounts"
)

var validRoles = []Role{
	RoleSupport,
	RoleLicense,
	RoleAccounts,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}

// Roles returns every role in seed order.
func Roles() []Role {
	out := make([]Role, len(validRoles))
	copy(out, validRoles)
	return out
}
