package domain

import "strconv"

// Role is the authorization level of an account.
type Role int

// Account roles.
const (
	RoleUser  Role = 0
	RoleAdmin Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	default:
		return "role(" + strconv.Itoa(int(r)) + ")"
	}
}

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Principal is the authenticated identity attached to a session at login.
// It is a value type; copies never alias each other.
type Principal struct {
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
	Role      Role   `json:"role"`
}

// IsZero reports whether p carries no identity.
func (p Principal) IsZero() bool {
	return p.AccountID == ""
}

// IsAdmin reports whether p has the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
