package model

import "time"

// AuthResponse is returned by register and login.
type AuthResponse struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Tokens      TokenPair `json:"tokens"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type RevokeAllResponse struct {
	Message string `json:"message"`
	Revoked int64  `json:"revoked"`
}

// ClaimsResponse is the result of inspecting an access token.
type ClaimsResponse struct {
	UserID          string          `json:"user_id"`
	Username        string          `json:"username"`
	Email           string          `json:"email"`
	DisplayName     string          `json:"display_name"`
	ExperienceLevel ExperienceLevel `json:"experience_level"`
	TokenID         string          `json:"jti"`
	IssuedAt        time.Time       `json:"issued_at"`
	ExpiresAt       time.Time       `json:"expires_at"`
}
