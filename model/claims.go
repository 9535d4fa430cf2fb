package model

import "github.com/golang-jwt/jwt/v5"

// AppClaims are the claims carried by an access token. The user id lives in
// the registered "sub" claim.
type AppClaims struct {
	Username        string          `json:"unique_name"`
	Email           string          `json:"email"`
	DisplayName     string          `json:"display_name"`
	ExperienceLevel ExperienceLevel `json:"experience_level"`
	jwt.RegisteredClaims
}
