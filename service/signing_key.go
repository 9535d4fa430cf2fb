package service

import (
	"fmt"
	"go-draw-api/common"
	"go-draw-api/config"
	"time"
	"unicode/utf8"
)

// MinSigningKeyLength is the shortest HMAC secret accepted, in characters.
const MinSigningKeyLength = 64

// SigningKeyProvider holds the immutable signing material and lifetimes
// resolved once at startup.
type SigningKeyProvider struct {
	key        []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewSigningKeyProvider validates cfg. Any error wraps common.ErrConfiguration
// and must stop the process before it serves traffic.
func NewSigningKeyProvider(cfg config.JWTConfig) (*SigningKeyProvider, error) {
	if cfg.TokenKey == "" {
		return nil, fmt.Errorf("%w: jwt.token_key is not set", common.ErrConfiguration)
	}
	if n := utf8.RuneCountInString(cfg.TokenKey); n < MinSigningKeyLength {
		return nil, fmt.Errorf("%w: jwt.token_key must be at least %d characters, got %d",
			common.ErrConfiguration, MinSigningKeyLength, n)
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, fmt.Errorf("%w: jwt.issuer and jwt.audience are required", common.ErrConfiguration)
	}
	if cfg.AccessTokenExpiryMinutes <= 0 {
		return nil, fmt.Errorf("%w: jwt.access_token_expiry_minutes must be positive", common.ErrConfiguration)
	}
	if cfg.RefreshTokenExpiryDays <= 0 {
		return nil, fmt.Errorf("%w: jwt.refresh_token_expiry_days must be positive", common.ErrConfiguration)
	}

	return &SigningKeyProvider{
		key:        []byte(cfg.TokenKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		accessTTL:  time.Duration(cfg.AccessTokenExpiryMinutes) * time.Minute,
		refreshTTL: time.Duration(cfg.RefreshTokenExpiryDays) * 24 * time.Hour,
	}, nil
}

// Key returns a copy of the HMAC secret.
func (p *SigningKeyProvider) Key() []byte {
	k := make([]byte, len(p.key))
	copy(k, p.key)
	return k
}

func (p *SigningKeyProvider) Issuer() string   { return p.issuer }
func (p *SigningKeyProvider) Audience() string { return p.audience }

func (p *SigningKeyProvider) AccessTokenLifetime() time.Duration  { return p.accessTTL }
func (p *SigningKeyProvider) RefreshTokenLifetime() time.Duration { return p.refreshTTL }
