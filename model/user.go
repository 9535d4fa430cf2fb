package model

import "time"

type ExperienceLevel string

const (
	ExperienceBeginner     ExperienceLevel = "Beginner"
	ExperienceIntermediate ExperienceLevel = "Intermediate"
	ExperienceAdvanced     ExperienceLevel = "Advanced"
	ExperienceProfessional ExperienceLevel = "Professional"
)

// User is the account a refresh token is issued to. Only the fields
// embedded into access tokens are modelled here.
type User struct {
	ID              string          `json:"id"`
	Username        string          `json:"username"`
	Email           string          `json:"email"`
	DisplayName     string          `json:"display_name"`
	ExperienceLevel ExperienceLevel `json:"experience_level"`
	Password        string          `json:"-"`
	JoinedAt        time.Time       `json:"joined_at"`
}
