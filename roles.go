package account

import "strings"

// Role is a role tag held by an account
type Role string

const (
	// RoleUser is the default role every account starts with
	RoleUser Role = "user"
	// RoleAdmin can manage every account
	RoleAdmin Role = "admin"
	// RoleDev is a developer account
	RoleDev Role = "dev"
)

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleDev:
		return true
	default:
		return false
	}
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []Role {
	return []Role{
		RoleUser,
		RoleAdmin,
		RoleDev,
	}
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}

// Roles is the role set of an account. It is stored as a JSON array.
type Roles []Role

// DefaultRoles returns the roles a new account gets
func DefaultRoles() Roles {
	return Roles{RoleUser}
}

// Has reports whether role is part of the set
func (rs Roles) Has(role Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

// Normalize drops unknown roles and duplicates, keeping the first
// occurrence order. An empty result falls back to DefaultRoles.
func (rs Roles) Normalize() Roles {
	out := make(Roles, 0, len(rs))
	for _, r := range rs {
		role, ok := ParseRole(string(r))
		if !ok || out.Has(role) {
			continue
		}
		out = append(out, role)
	}
	if len(out) == 0 {
		return DefaultRoles()
	}
	return out
}

// Strings returns the roles as plain strings
func (rs Roles) Strings() []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}
