package common

import (
	"encoding/json"
	"errors"
	"go-draw-api/logger"
	"net/http"

	"github.com/sirupsen/logrus"
)

var (
	// Startup-only; the process must not serve requests after one of these.
	ErrConfiguration = errors.New("configuration error")

	// Access token failures. Signature, issuer, audience, algorithm and
	// format problems are all reported as this one error.
	ErrInvalidToken = errors.New("invalid token")

	// Refresh token lookup failures. Both map to the same unauthorized response.
	ErrTokenNotFound = errors.New("refresh token not found")
	ErrTokenInactive = errors.New("refresh token inactive")

	ErrTokenExists      = errors.New("refresh token already exists")
	ErrStoreUnavailable = errors.New("token store unavailable")

	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrRateLimited = errors.New("rate limited")
)

// SystemActor is recorded as revoked_by for bulk revocations.
const SystemActor = "system"

type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func (e *AppError) Send(w http.ResponseWriter) {
	if e.Err != nil {
		logger.Log.WithFields(logrus.Fields{
			"status_code":    e.Code,
			"internal_error": e.Err.Error(),
		}).Error(e.Message)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(e.Code)
	json.NewEncoder(w).Encode(e)
}
