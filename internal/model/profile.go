package model

import "time"

// Role is the access level of a profile.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// Profile is a signed-in account: an agency admin or a client contact.
type Profile struct {
	ID          string    `json:"id" db:"id"`
	Email       string    `json:"email" db:"email"`
	FullName    string    `json:"full_name" db:"full_name"`
	AvatarURL   *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	Role        Role      `json:"role" db:"role"`
	CompanyName *string   `json:"company_name,omitempty" db:"company_name"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the profile may perform admin-only mutations.
func (p Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// FirstName returns the first word of FullName.
func (p Profile) FirstName() string {
	for i, r := range p.FullName {
		if r == ' ' {
			return p.FullName[:i]
		}
	}
	return p.FullName
}
