// file: model/request.go

package model

// RegisterRequest defines the payload for creating a new user.
type RegisterRequest struct {
	Username        string          `json:"username" validate:"required,min=3,max=50"`
	DisplayName     string          `json:"display_name" validate:"required,max=100"`
	Email           string          `json:"email" validate:"required,email"`
	Password        string          `json:"password" validate:"required,min=8"`
	ExperienceLevel ExperienceLevel `json:"experience_level" validate:"omitempty,oneof=Beginner Intermediate Advanced Professional"`
}

// LoginRequest defines the payload for user authentication.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type RevokeTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// InspectTokenRequest carries an access token whose claims should be read
// even if it has already expired.
type InspectTokenRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}

type DeleteAccountRequest struct {
	Password string `json:"password" validate:"required"`
}
