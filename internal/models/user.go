package models

import "time"

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// User is the stored shape of an account. PasswordHash never leaves the
// service layer; handlers expose PublicUser instead.
type User struct {
	Username     string   `json:"username"`
	PasswordHash string   `json:"password_hash"`
	Role         UserRole `json:"role"`

	MaxImages int `json:"max_images"`

	Deleted   bool       `json:"deleted,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type PublicUser struct {
	Username  string    `json:"username"`
	Role      UserRole  `json:"role"`
	MaxImages int       `json:"max_images"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		Username:  u.Username,
		Role:      u.Role,
		MaxImages: u.MaxImages,
		CreatedAt: u.CreatedAt,
	}
}
