// file: repository/token_repository.go

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"go-draw-api/common"
	"go-draw-api/logger"
	"go-draw-api/model"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const uniqueViolation = "23505"

const tokenColumns = `id, token, user_id, expires_at, created_at, created_by_ip, is_revoked, revoked_at, revoked_by, revoked_by_ip, replaced_by_token`

// TokenRepository is the Postgres implementation of ITokenRepository.
type TokenRepository struct {
	DB *sql.DB
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{DB: db}
}

func storeError(err error) error {
	return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*model.RefreshToken, error) {
	t := &model.RefreshToken{}
	var (
		revokedAt                          sql.NullTime
		revokedBy, revokedByIP, replacedBy sql.NullString
	)
	err := row.Scan(&t.ID, &t.Token, &t.UserID, &t.ExpiresAt, &t.CreatedAt, &t.CreatedByIP,
		&t.IsRevoked, &revokedAt, &revokedBy, &revokedByIP, &replacedBy)
	if err != nil {
		return nil, err
	}

	t.ExpiresAt = t.ExpiresAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	if revokedAt.Valid {
		at := revokedAt.Time.UTC()
		t.RevokedAt = &at
	}
	if revokedBy.Valid {
		t.RevokedBy = &revokedBy.String
	}
	if revokedByIP.Valid {
		t.RevokedByIP = &revokedByIP.String
	}
	if replacedBy.Valid {
		t.ReplacedByToken = &replacedBy.String
	}
	return t, nil
}

func queryTokens(ctx context.Context, q DBTX, query string, args ...any) ([]*model.RefreshToken, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []*model.RefreshToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func insertToken(ctx context.Context, q DBTX, token *model.RefreshToken) error {
	query := `INSERT INTO refresh_tokens (token, user_id, expires_at, created_at, created_by_ip)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		token.Token, token.UserID, token.ExpiresAt, token.CreatedAt, token.CreatedByIP,
	).Scan(&token.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrTokenExists
		}
		return storeError(err)
	}
	return nil
}

// Insert stores a new active refresh token.
func (r *TokenRepository) Insert(ctx context.Context, token *model.RefreshToken) error {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id":    token.UserID,
		"expires_at": token.ExpiresAt,
	})
	log.Info("Executing query to create a new refresh token")

	if err := insertToken(ctx, r.DB, token); err != nil {
		log.WithError(err).Error("Failed to execute create refresh token query")
		return err
	}
	return nil
}

// FindByToken retrieves a refresh token by its value.
func (r *TokenRepository) FindByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens WHERE token = $1`
	t, err := scanToken(r.DB.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrTokenNotFound
		}
		logger.Log.WithError(err).Error("Failed to execute get refresh token query")
		return nil, storeError(err)
	}
	return t, nil
}

func (r *TokenRepository) FindActiveByUser(ctx context.Context, userID string, now time.Time) ([]*model.RefreshToken, error) {
	log := logger.Log.WithField("user_id", userID)
	log.Info("Executing query to list active refresh tokens for a user")

	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens
		WHERE user_id = $1 AND is_revoked = FALSE AND expires_at > $2
		ORDER BY id`
	tokens, err := queryTokens(ctx, r.DB, query, userID, now)
	if err != nil {
		log.WithError(err).Error("Failed to execute list active refresh tokens query")
		return nil, storeError(err)
	}
	return tokens, nil
}

func (r *TokenRepository) FindExpired(ctx context.Context, now time.Time) ([]*model.RefreshToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens WHERE expires_at <= $1 ORDER BY id`
	tokens, err := queryTokens(ctx, r.DB, query, now)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to execute list expired refresh tokens query")
		return nil, storeError(err)
	}
	return tokens, nil
}

const revokeIfActiveQuery = `UPDATE refresh_tokens
	SET is_revoked = TRUE, revoked_at = $2, revoked_by = $3, revoked_by_ip = $4, replaced_by_token = NULLIF($5, '')
	WHERE token = $1 AND is_revoked = FALSE AND expires_at > $6`

// UpdateIfActive revokes the token when it is still active at now.
func (r *TokenRepository) UpdateIfActive(ctx context.Context, token string, now time.Time, rev model.Revocation) (bool, error) {
	log := logger.Log.WithField("revoked_by", rev.By)
	log.Info("Executing query to revoke a refresh token")

	res, err := r.DB.ExecContext(ctx, revokeIfActiveQuery, token, rev.At, rev.By, rev.ByIP, rev.ReplacedByToken, now)
	if err != nil {
		log.WithError(err).Error("Failed to execute revoke refresh token query")
		return false, storeError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeError(err)
	}
	return n == 1, nil
}

const userLockQuery = `SELECT pg_advisory_xact_lock(hashtext($1::text))`

// lockUser serializes Rotate and RevokeAllForUser for one user until the
// transaction ends. Without it a revoke-all that waits on a row being rotated
// would skip the successor row, which is not in its snapshot.
func lockUser(ctx context.Context, tx DBTX, userID string) error {
	if _, err := tx.ExecContext(ctx, userLockQuery, "refresh_tokens:"+userID); err != nil {
		return storeError(err)
	}
	return nil
}

// Rotate revokes oldToken and inserts next in one transaction. The conditional
// UPDATE takes the row lock, so of two concurrent rotations only one matches.
func (r *TokenRepository) Rotate(ctx context.Context, oldToken string, now time.Time, rev model.Revocation, next *model.RefreshToken) error {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id":    next.UserID,
		"revoked_by": rev.By,
	})
	log.Info("Executing transaction to rotate a refresh token")

	rev.ReplacedByToken = next.Token
	err := WithTx(ctx, r.DB, func(ctx context.Context, tx DBTX) error {
		if err := lockUser(ctx, tx, next.UserID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, revokeIfActiveQuery, oldToken, rev.At, rev.By, rev.ByIP, rev.ReplacedByToken, now)
		if err != nil {
			return storeError(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storeError(err)
		}
		if n == 0 {
			return common.ErrTokenInactive
		}
		return insertToken(ctx, tx, next)
	})
	if err != nil {
		if !errors.Is(err, common.ErrTokenInactive) && !errors.Is(err, common.ErrTokenExists) && !errors.Is(err, common.ErrStoreUnavailable) {
			err = storeError(err)
		}
		log.WithError(err).Warn("Refresh token rotation did not commit")
		return err
	}
	return nil
}

// RevokeAllForUser revokes every active token of the user. It holds the
// user's lock, so a rotation either commits first and its successor is
// revoked here, or runs afterwards and finds its token already revoked.
func (r *TokenRepository) RevokeAllForUser(ctx context.Context, userID string, now time.Time, rev model.Revocation) (int64, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id":    userID,
		"revoked_by": rev.By,
	})
	log.Info("Executing query to revoke all refresh tokens for a user")

	query := `UPDATE refresh_tokens
		SET is_revoked = TRUE, revoked_at = $2, revoked_by = $3, revoked_by_ip = $4
		WHERE user_id = $1 AND is_revoked = FALSE AND expires_at > $5`

	var n int64
	err := WithTx(ctx, r.DB, func(ctx context.Context, tx DBTX) error {
		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, query, userID, rev.At, rev.By, rev.ByIP, now)
		if err != nil {
			return storeError(err)
		}
		n, err = res.RowsAffected()
		if err != nil {
			return storeError(err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, common.ErrStoreUnavailable) {
			err = storeError(err)
		}
		log.WithError(err).Error("Failed to execute revoke all refresh tokens query")
		return 0, err
	}
	return n, nil
}

// DeleteExpired removes expired tokens regardless of revocation state.
func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	logger.Log.WithField("cutoff", now).Info("Executing query to delete expired refresh tokens")

	res, err := r.DB.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to execute delete expired refresh tokens query")
		return 0, storeError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeError(err)
	}
	return n, nil
}
