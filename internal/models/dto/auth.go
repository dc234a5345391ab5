package dto

import "github.com/hongminglow/pawmart/internal/models"

type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Phone       string `json:"phone"`
	Password    string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token. User may be absent when the
// server only returns a token; clients then fetch /api/auth/me.
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user,omitempty"`
}

type OTPRequest struct {
	Email string `json:"email"`
}

type OTPVerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}
