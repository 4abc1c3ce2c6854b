package authorization

import "strings"

// Role is a caller's access level. Levels are ordered lecture < user < admin.
type Role string

const (
	RoleLecture Role = "lecture"
	RoleUser    Role = "user"
	RoleAdmin   Role = "admin"
)

// Roles lists every role from lowest to highest.
var Roles = []Role{RoleLecture, RoleUser, RoleAdmin}

// ParseRole normalizes value and reports whether it names a role.
func ParseRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if role.Rank() == 0 {
		return "", false
	}
	return role, true
}

// Rank returns 1..3 for known roles and 0 otherwise.
func (r Role) Rank() int {
	switch r {
	case RoleLecture:
		return 1
	case RoleUser:
		return 2
	case RoleAdmin:
		return 3
	}
	return 0
}

// AtLeast reports whether r meets min. Unknown roles meet nothing.
func (r Role) AtLeast(min Role) bool {
	return r.Rank() > 0 && r.Rank() >= min.Rank()
}

// Max returns the higher of two roles.
func Max(a, b Role) Role {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

func (r Role) subject() string {
	return "role:" + string(r)
}
