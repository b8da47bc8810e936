package enums

import "slices"

// Role is the platform role carried in the bearer token.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

var validRoles = []Role{RoleStudent, RoleInstructor, RoleAdmin}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the role is recognized.
func (r Role) IsValid() bool {
	return slices.Contains(validRoles, r)
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	return parse(validRoles, "role", value)
}
