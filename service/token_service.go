package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"go-draw-api/common"
	"go-draw-api/logger"
	"go-draw-api/metrics"
	"go-draw-api/model"
	"go-draw-api/repository"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	refreshTokenBytes = 64
	unknownIP         = "unknown"
	// Attempts at drawing a token value that does not collide with an existing one.
	maxTokenAttempts = 3
	// Coarsest timestamp precision of the stores (Redis keeps unix millis).
	storePrecision = time.Millisecond
)

// UserDirectory resolves the owners of refresh tokens.
type UserDirectory interface {
	FindUserByID(ctx context.Context, id string) (*model.User, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	VerifyPassword(user *model.User, password string) bool
}

// TokenService is the refresh token authority: it issues, rotates and
// revokes refresh tokens and pairs them with fresh access tokens.
type TokenService struct {
	store      repository.ITokenRepository
	users      UserDirectory
	codec      *AccessTokenCodec
	refreshTTL time.Duration
	metrics    *metrics.TokenMetrics
	now        func() time.Time
}

func NewTokenService(
	store repository.ITokenRepository,
	users UserDirectory,
	codec *AccessTokenCodec,
	keys *SigningKeyProvider,
	m *metrics.TokenMetrics,
) *TokenService {
	return &TokenService{
		store:      store,
		users:      users,
		codec:      codec,
		refreshTTL: keys.RefreshTokenLifetime(),
		metrics:    m,
		now:        time.Now,
	}
}

// WithClock replaces the wall clock, for tests.
func (s *TokenService) WithClock(clock func() time.Time) *TokenService {
	s.now = clock
	return s
}

func (s *TokenService) utcNow() time.Time {
	return s.now().UTC()
}

// GenerateRefreshToken returns 64 bytes from a CSPRNG, base64 encoded.
func GenerateRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// NormalizeIP returns ip in canonical form, or "unknown" when it does not parse.
func NormalizeIP(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return unknownIP
	}
	return parsed.String()
}

func ipActor(ip string) string {
	return "ip:" + ip
}

func (s *TokenService) newRefreshRecord(userID, ip string, now time.Time) (*model.RefreshToken, error) {
	value, err := GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	// Truncate so the expiry handed to the client is the one the store enforces.
	now = now.Truncate(storePrecision)
	return &model.RefreshToken{
		Token:       value,
		UserID:      userID,
		ExpiresAt:   now.Add(s.refreshTTL),
		CreatedAt:   now,
		CreatedByIP: ip,
	}, nil
}

// Issue creates a new access/refresh pair for user. The refresh record is
// stored before Issue returns.
func (s *TokenService) Issue(ctx context.Context, user *model.User, ip string) (*model.TokenPair, error) {
	ip = NormalizeIP(ip)
	log := logger.Log.WithFields(logrus.Fields{
		"user_id":   user.ID,
		"client_ip": ip,
	})

	access, accessExp, err := s.codec.Encode(user)
	if err != nil {
		return nil, err
	}

	var record *model.RefreshToken
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		record, err = s.newRefreshRecord(user.ID, ip, s.utcNow())
		if err != nil {
			return nil, err
		}
		err = s.store.Insert(ctx, record)
		if !errors.Is(err, common.ErrTokenExists) {
			break
		}
	}
	if err != nil {
		log.WithError(err).Error("Failed to persist refresh token")
		return nil, err
	}

	s.metrics.TokenIssued()
	log.WithField("token_id", record.ID).Info("Refresh token issued")

	return &model.TokenPair{
		AccessToken:          access,
		AccessTokenExpiresAt: accessExp,
		RefreshToken:         record.Token,
		RefreshTokenExpires:  record.ExpiresAt,
	}, nil
}

// Rotate exchanges an active refresh token for a new pair. The presented
// token is revoked and linked to its successor. Unknown and inactive tokens
// are treated as possibly stolen and logged.
func (s *TokenService) Rotate(ctx context.Context, presented, ip string) (*model.TokenPair, error) {
	ip = NormalizeIP(ip)
	log := logger.Log.WithField("client_ip", ip)
	now := s.utcNow()

	current, err := s.store.FindByToken(ctx, presented)
	if err != nil {
		if errors.Is(err, common.ErrTokenNotFound) {
			s.metrics.RefreshRejected(metrics.ReasonNotFound)
			log.Warn("Refresh attempted with unknown token; treating as potentially compromised")
		}
		return nil, err
	}

	log = log.WithFields(logrus.Fields{"user_id": current.UserID, "token_id": current.ID})
	if !current.IsActive(now) {
		s.metrics.RefreshRejected(metrics.ReasonInactive)
		entry := log.WithFields(logrus.Fields{"revoked": current.IsRevoked, "expired": current.IsExpired(now)})
		if current.ReplacedByToken != nil {
			entry = entry.WithField("successors", s.chainLength(ctx, *current.ReplacedByToken))
		}
		entry.Warn("Refresh attempted with inactive token; treating as potentially compromised")
		return nil, common.ErrTokenInactive
	}

	user, err := s.users.FindUserByID(ctx, current.UserID)
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			s.metrics.RefreshRejected(metrics.ReasonNotFound)
			log.Warn("Refresh token owner no longer exists")
			return nil, common.ErrTokenNotFound
		}
		return nil, err
	}

	access, accessExp, err := s.codec.Encode(user)
	if err != nil {
		return nil, err
	}

	rev := model.Revocation{At: now, By: ipActor(ip), ByIP: ip}
	var next *model.RefreshToken
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		next, err = s.newRefreshRecord(user.ID, ip, now)
		if err != nil {
			return nil, err
		}
		err = s.store.Rotate(ctx, presented, now, rev, next)
		if !errors.Is(err, common.ErrTokenExists) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, common.ErrTokenInactive) {
			s.metrics.RefreshRejected(metrics.ReasonInactive)
			log.Warn("Refresh token was consumed concurrently; treating as potentially compromised")
		} else {
			log.WithError(err).Error("Failed to rotate refresh token")
		}
		return nil, err
	}

	s.metrics.TokenRotated()
	log.WithField("new_token_id", next.ID).Info("Refresh token rotated")

	return &model.TokenPair{
		AccessToken:          access,
		AccessTokenExpiresAt: accessExp,
		RefreshToken:         next.Token,
		RefreshTokenExpires:  next.ExpiresAt,
	}, nil
}

// Revoke revokes a single active token. It reports false, without error,
// when the token is unknown or already inactive.
func (s *TokenService) Revoke(ctx context.Context, presented, ip string) (bool, error) {
	ip = NormalizeIP(ip)
	now := s.utcNow()

	ok, err := s.store.UpdateIfActive(ctx, presented, now, model.Revocation{At: now, By: ipActor(ip), ByIP: ip})
	if err != nil {
		return false, err
	}
	if ok {
		s.metrics.TokensRevoked("single", 1)
		logger.Log.WithField("client_ip", ip).Info("Refresh token revoked")
	}
	return ok, nil
}

// RevokeAllForUser revokes every active token of userID and returns how many
// were revoked.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID, actor, ip string) (int64, error) {
	ip = NormalizeIP(ip)
	now := s.utcNow()

	n, err := s.store.RevokeAllForUser(ctx, userID, now, model.Revocation{At: now, By: actor, ByIP: ip})
	if err != nil {
		return 0, err
	}
	s.metrics.TokensRevoked("all", n)
	logger.Log.WithFields(logrus.Fields{
		"user_id":    userID,
		"revoked_by": actor,
		"client_ip":  ip,
		"count":      n,
	}).Info("Revoked all refresh tokens for user")
	return n, nil
}

// ActiveSessions lists the user's active refresh tokens.
func (s *TokenService) ActiveSessions(ctx context.Context, userID string) ([]*model.RefreshToken, error) {
	return s.store.FindActiveByUser(ctx, userID, s.utcNow())
}

// CleanupExpired deletes every expired record, revoked or not.
func (s *TokenService) CleanupExpired(ctx context.Context) (int64, error) {
	now := s.utcNow()

	if logger.Log.IsLevelEnabled(logrus.DebugLevel) {
		if expired, err := s.store.FindExpired(ctx, now); err == nil {
			for _, t := range expired {
				logger.Log.WithFields(logrus.Fields{
					"token_id": t.ID,
					"user_id":  t.UserID,
					"revoked":  t.IsRevoked,
				}).Debug("Purging expired refresh token")
			}
		}
	}

	n, err := s.store.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	s.metrics.CleanupDeleted(n)
	return n, nil
}

// Lineage follows the rotation chain forward from token and returns every
// record in it, starting with token itself. Records already purged end the chain.
func (s *TokenService) Lineage(ctx context.Context, token string) ([]*model.RefreshToken, error) {
	var chain []*model.RefreshToken
	seen := make(map[string]bool)
	for next := token; next != "" && !seen[next]; {
		seen[next] = true
		t, err := s.store.FindByToken(ctx, next)
		if errors.Is(err, common.ErrTokenNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		chain = append(chain, t)
		next = ""
		if t.ReplacedByToken != nil {
			next = *t.ReplacedByToken
		}
	}
	if len(chain) == 0 {
		return nil, common.ErrTokenNotFound
	}
	return chain, nil
}

func (s *TokenService) chainLength(ctx context.Context, token string) int {
	chain, err := s.Lineage(ctx, token)
	if err != nil {
		return 0
	}
	return len(chain)
}

// ValidateAccessClaimsIgnoringExpiry reads the claims of a correctly signed
// access token even if it has expired.
func (s *TokenService) ValidateAccessClaimsIgnoringExpiry(token string) (*model.AppClaims, error) {
	return s.codec.ValidateIgnoringExpiry(token)
}
