package service

import (
	"go-draw-api/common"
	"go-draw-api/config"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T, clock *testClock) *AccessTokenCodec {
	t.Helper()
	return NewAccessTokenCodec(newTestKeys(t), clock.Now)
}

func TestAccessTokenCodec_RoundTrip(t *testing.T) {
	clock := newTestClock(t0)
	codec := newTestCodec(t, clock)
	user := testUser()

	token, expiresAt, err := codec.Encode(user)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(15*time.Minute), expiresAt)

	claims, err := codec.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, user.Username, claims.Username)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, user.DisplayName, claims.DisplayName)
	assert.Equal(t, user.ExperienceLevel, claims.ExperienceLevel)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, t0, claims.IssuedAt.Time.UTC())

	other, _, err := codec.Encode(user)
	require.NoError(t, err)
	otherClaims, err := codec.Validate(other)
	require.NoError(t, err)
	assert.NotEqual(t, claims.ID, otherClaims.ID, "every token gets its own jti")
}

func flipSignature(token string) string {
	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	i := len(sig) / 2
	if sig[i] == 'A' {
		sig[i] = 'B'
	} else {
		sig[i] = 'A'
	}
	parts[2] = string(sig)
	return strings.Join(parts, ".")
}

func TestAccessTokenCodec_RejectsTampering(t *testing.T) {
	clock := newTestClock(t0)
	codec := newTestCodec(t, clock)

	token, _, err := codec.Encode(testUser())
	require.NoError(t, err)

	_, err = codec.Validate(flipSignature(token))
	assert.ErrorIs(t, err, common.ErrInvalidToken)
	_, err = codec.ValidateIgnoringExpiry(flipSignature(token))
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	_, err = codec.Validate("not-a-jwt")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
	_, err = codec.ValidateIgnoringExpiry("")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestAccessTokenCodec_RejectsForeignKeyIssuerAudience(t *testing.T) {
	clock := newTestClock(t0)
	codec := newTestCodec(t, clock)

	mutations := map[string]func(c *config.JWTConfig){
		"other key":      func(c *config.JWTConfig) { c.TokenKey = strings.Repeat("z", MinSigningKeyLength) },
		"other issuer":   func(c *config.JWTConfig) { c.Issuer = "someone-else" },
		"other audience": func(c *config.JWTConfig) { c.Audience = "another-client" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			cfg := testJWTConfig()
			mutate(&cfg)
			keys, err := NewSigningKeyProvider(cfg)
			require.NoError(t, err)
			foreign := NewAccessTokenCodec(keys, clock.Now)

			token, _, err := foreign.Encode(testUser())
			require.NoError(t, err)

			_, err = codec.Validate(token)
			assert.ErrorIs(t, err, common.ErrInvalidToken)
			_, err = codec.ValidateIgnoringExpiry(token)
			assert.ErrorIs(t, err, common.ErrInvalidToken)
		})
	}
}

func TestAccessTokenCodec_RejectsOtherAlgorithms(t *testing.T) {
	clock := newTestClock(t0)
	codec := newTestCodec(t, clock)

	claims := jwt.MapClaims{
		"sub": "u-1",
		"iss": "go-draw-api",
		"aud": "go-draw-client",
		"exp": t0.Add(time.Hour).Unix(),
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{"HS512": hs512, "none": none} {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Validate(token)
			assert.ErrorIs(t, err, common.ErrInvalidToken)
			_, err = codec.ValidateIgnoringExpiry(token)
			assert.ErrorIs(t, err, common.ErrInvalidToken)
		})
	}
}

func TestAccessTokenCodec_Expiry(t *testing.T) {
	clock := newTestClock(t0)
	codec := newTestCodec(t, clock)

	token, expiresAt, err := codec.Encode(testUser())
	require.NoError(t, err)

	clock.Set(expiresAt.Add(-time.Second))
	_, err = codec.Validate(token)
	assert.NoError(t, err)

	clock.Set(expiresAt)
	_, err = codec.Validate(token)
	assert.ErrorIs(t, err, common.ErrInvalidToken, "a token is expired at its exp instant")

	clock.Advance(24 * time.Hour)
	claims, err := codec.ValidateIgnoringExpiry(token)
	require.NoError(t, err)
	assert.Equal(t, testUser().ID, claims.Subject)
}
