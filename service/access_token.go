package service

import (
	"errors"
	"fmt"
	"go-draw-api/common"
	"go-draw-api/logger"
	"go-draw-api/model"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenCodec signs and verifies HS256 access tokens.
type AccessTokenCodec struct {
	keys *SigningKeyProvider
	now  func() time.Time
}

// NewAccessTokenCodec creates a codec. A nil clock means time.Now.
func NewAccessTokenCodec(keys *SigningKeyProvider, clock func() time.Time) *AccessTokenCodec {
	if clock == nil {
		clock = time.Now
	}
	return &AccessTokenCodec{keys: keys, now: clock}
}

// Encode issues an access token for user and returns it with its expiry.
func (c *AccessTokenCodec) Encode(user *model.User) (string, time.Time, error) {
	now := c.now().UTC()
	claims := &model.AppClaims{
		Username:        user.Username,
		Email:           user.Email,
		DisplayName:     user.DisplayName,
		ExperienceLevel: user.ExperienceLevel,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    c.keys.Issuer(),
			Audience:  jwt.ClaimStrings{c.keys.Audience()},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.keys.AccessTokenLifetime())),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.keys.Key())
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", user.ID).Error("Failed to sign access token")
		return "", time.Time{}, fmt.Errorf("failed to sign token string: %w", err)
	}
	return signed, claims.ExpiresAt.Time.UTC(), nil
}

func (c *AccessTokenCodec) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}
	return c.keys.Key(), nil
}

// Validate fully verifies tokenString, including its lifetime.
func (c *AccessTokenCodec) Validate(tokenString string) (*model.AppClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.keys.Issuer()),
		jwt.WithAudience(c.keys.Audience()),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	claims := &model.AppClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, c.keyFunc)
	// exp is inclusive: a token is already expired at its exp instant.
	if err == nil && token.Valid && !c.now().Before(claims.ExpiresAt.Time) {
		err = jwt.ErrTokenExpired
	}
	if err != nil || !token.Valid {
		logger.Log.WithError(err).Debug("Access token rejected")
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// ValidateIgnoringExpiry verifies signature, algorithm, issuer and audience
// but accepts a token whose lifetime has passed.
func (c *AccessTokenCodec) ValidateIgnoringExpiry(tokenString string) (*model.AppClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	claims := &model.AppClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, c.keyFunc)
	if err == nil && !token.Valid {
		err = errors.New("token not valid")
	}
	if err == nil && claims.Issuer != c.keys.Issuer() {
		err = jwt.ErrTokenInvalidIssuer
	}
	if err == nil && !slices.Contains(claims.Audience, c.keys.Audience()) {
		err = jwt.ErrTokenInvalidAudience
	}
	if err != nil {
		logger.Log.WithError(err).Debug("Expired-token inspection rejected")
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}
