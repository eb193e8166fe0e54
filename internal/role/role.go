// Package role defines the closed set of account roles and their dashboard roots.
package role

import "strings"

// Role is an account role. The zero value is not a valid role.
type Role string

const (
	Student Role = "STUDENT"
	Admin   Role = "ADMIN"
	Master  Role = "MASTER"
)

// Default is assigned when an account is provisioned.
const Default = Student

// All lists every valid role.
var All = []Role{Student, Admin, Master}

// Parse normalises s into a Role. ok is false for anything outside the enumeration.
func Parse(s string) (Role, bool) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case Student, Admin, Master:
		return r, true
	}
	return "", false
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case Student, Admin, Master:
		return true
	}
	return false
}

// Privileged reports whether r may operate attendance scanning and staff tools.
func (r Role) Privileged() bool {
	return r == Admin || r == Master
}

// DashboardRoot maps a role to its canonical dashboard path. Unknown or empty roles get the
// student dashboard.
func DashboardRoot(r Role) string {
	switch r {
	case Admin:
		return "/admin"
	case Master:
		return "/master"
	default:
		return "/student"
	}
}

// IsDashboardSegment reports whether seg is the top-level path segment of some dashboard.
func IsDashboardSegment(seg string) bool {
	switch "/" + seg {
	case DashboardRoot(Student), DashboardRoot(Admin), DashboardRoot(Master):
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }
