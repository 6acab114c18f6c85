package model

import "time"

// User represents an account: student, teacher, proctor or admin.
type User struct {
	ID           int       `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// RoleSet returns the user's role as a normalized set.
func (u *User) RoleSet() RoleSet {
	return NewRoleSet(string(u.Role))
}

// LoginRequest is the payload for all account logins.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}
