package models

import "time"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// ParseRole maps a path segment or request field onto a known role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleDoctor, RolePatient:
		return Role(s), true
	}
	return "", false
}

type AdminRole string

const (
	AdminRoleAdmin      AdminRole = "admin"
	AdminRoleSuperAdmin AdminRole = "super_admin"
)

// Principal is the common projection of an admin, doctor or patient record.
// PasswordHash never leaves the process; handlers serialize PublicView instead.
type Principal struct {
	ID           int64
	Role         Role
	Username     string
	Email        string
	PasswordHash []byte
	Active       bool
	AdminRole    AdminRole // set for admins only
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type PrincipalView struct {
	ID       int64  `json:"id"`
	Role     string `json:"role"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Active   bool   `json:"active"`
}

func (p Principal) PublicView() PrincipalView {
	return PrincipalView{
		ID:       p.ID,
		Role:     string(p.Role),
		Username: p.Username,
		Email:    p.Email,
		Active:   p.Active,
	}
}
