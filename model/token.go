// file: model/token.go

package model

import "time"

// RefreshToken is one persisted refresh credential. The revocation fields
// are nil until the token is revoked.
type RefreshToken struct {
	ID              int64      `json:"id"`
	Token           string     `json:"-"`
	UserID          string     `json:"user_id"`
	ExpiresAt       time.Time  `json:"expires_at"`
	CreatedAt       time.Time  `json:"created_at"`
	CreatedByIP     string     `json:"created_by_ip"`
	IsRevoked       bool       `json:"is_revoked"`
	RevokedAt       *time.Time `json:"revoked_at,omitempty"`
	RevokedBy       *string    `json:"revoked_by,omitempty"`
	RevokedByIP     *string    `json:"revoked_by_ip,omitempty"`
	ReplacedByToken *string    `json:"-"`
}

// IsExpired reports whether the token has reached its expiry. A token whose
// expiry equals now is already expired.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.IsRevoked && !t.IsExpired(now)
}

// Revocation is the audit trail written when a token is revoked.
type Revocation struct {
	At              time.Time
	By              string
	ByIP            string
	ReplacedByToken string
}

// TokenPair is what a successful login or rotation hands back to the client.
type TokenPair struct {
	AccessToken          string    `json:"access_token"`
	AccessTokenExpiresAt time.Time `json:"access_token_expires_at"`
	RefreshToken         string    `json:"refresh_token"`
	RefreshTokenExpires  time.Time `json:"refresh_token_expires_at"`
}
