package models

import "time"

// User captures application-facing fields for an authenticated identity.
// A locally cached copy is provisional; the server's copy is authoritative.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	Phone        string    `json:"phone,omitempty"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
