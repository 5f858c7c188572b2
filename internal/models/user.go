package models

import "time"

// Roles, most privileged first.
const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleUser     = "user"
	RoleAuditor  = "auditor"
	RoleReadonly = "readonly"
)

var Roles = []string{RoleAdmin, RoleManager, RoleUser, RoleAuditor, RoleReadonly}

func ValidRole(r string) bool {
	for _, x := range Roles {
		if x == r {
			return true
		}
	}
	return false
}

// User is the outbound identity. The password hash lives only in the
// credential store and is never part of this type.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Role          string     `json:"role"`
	IsActive      bool       `json:"isActive"`
	EmailVerified bool       `json:"emailVerified"`
	LastLogin     *time.Time `json:"lastLogin"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Summary is the minimal projection returned by register/login.
func (u *User) Summary() map[string]any {
	return map[string]any{
		"id":        u.ID,
		"email":     u.Email,
		"firstName": u.FirstName,
		"lastName":  u.LastName,
		"role":      u.Role,
	}
}

// NewUser is the input to the credential store's create path.
type NewUser struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         string
}
