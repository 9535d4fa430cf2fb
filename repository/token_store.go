package repository

import (
	"context"
	"go-draw-api/model"
	"time"
)

// ITokenRepository defines the contract for refresh token persistence.
// Every mutating method is atomic: a concurrent reader sees either the
// state before the call or the state after it.
type ITokenRepository interface {
	// Insert stores a new active token and assigns its ID.
	// A duplicate token value yields common.ErrTokenExists.
	Insert(ctx context.Context, token *model.RefreshToken) error
	// FindByToken returns common.ErrTokenNotFound when no record matches.
	FindByToken(ctx context.Context, token string) (*model.RefreshToken, error)
	FindActiveByUser(ctx context.Context, userID string, now time.Time) ([]*model.RefreshToken, error)
	FindExpired(ctx context.Context, now time.Time) ([]*model.RefreshToken, error)
	// UpdateIfActive revokes token only if it is still active at now.
	// It reports false when the token is missing or already inactive.
	UpdateIfActive(ctx context.Context, token string, now time.Time, rev model.Revocation) (bool, error)
	// Rotate revokes oldToken (linking it to next.Token) and inserts next as a
	// single step. If oldToken is no longer active nothing is written and
	// common.ErrTokenInactive is returned.
	Rotate(ctx context.Context, oldToken string, now time.Time, rev model.Revocation, next *model.RefreshToken) error
	RevokeAllForUser(ctx context.Context, userID string, now time.Time, rev model.Revocation) (int64, error)
	// DeleteExpired removes every record with expires_at <= now, revoked or not.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
