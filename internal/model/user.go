package model

import "time"

// Role is the coarse permission level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// User represents a row in the `users` table.
//
// PasswordHash is a bcrypt digest. It is never serialized and there is no way
// to read the plaintext back; use auth.Credentials to set or verify it.
type User struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Role         Role      `json:"role"`
	Points       int64     `json:"points"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin is shorthand for u.Role == RoleAdmin.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
