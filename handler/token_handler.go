package handler

import (
	"context"
	"errors"
	"go-draw-api/common"
	"go-draw-api/logger"
	"go-draw-api/model"
	"net/http"

	"github.com/sirupsen/logrus"
)

const invalidRefreshTokenMessage = "Invalid refresh token"

// TokenAuthority is the refresh token lifecycle used by the token endpoints.
type TokenAuthority interface {
	Rotate(ctx context.Context, refreshToken, ip string) (*model.TokenPair, error)
	Revoke(ctx context.Context, refreshToken, ip string) (bool, error)
	ActiveSessions(ctx context.Context, userID string) ([]*model.RefreshToken, error)
	ValidateAccessClaimsIgnoringExpiry(token string) (*model.AppClaims, error)
}

// SessionTerminator ends every session of a user (logout everywhere).
type SessionTerminator interface {
	Logout(ctx context.Context, userID, ip string) (int64, error)
}

type TokenHandler struct {
	tokens   TokenAuthority
	sessions SessionTerminator
}

func NewTokenHandler(tokens TokenAuthority, sessions SessionTerminator) *TokenHandler {
	return &TokenHandler{tokens: tokens, sessions: sessions}
}

func unavailable(err error) *common.AppError {
	return common.NewAppError(http.StatusServiceUnavailable, "Service temporarily unavailable", err)
}

// Refresh godoc
// @Summary      Rotate a refresh token
// @Description  Exchanges an active refresh token for a new access/refresh pair. The presented token is revoked.
// @Tags         token
// @Accept       json
// @Produce      json
// @Param        request  body      model.RefreshTokenRequest  true  "Refresh token"
// @Success      200      {object}  model.TokenPair
// @Failure      401      {object}  common.AppError
// @Failure      429      {object}  common.AppError
// @Failure      503      {object}  common.AppError
// @Router       /api/token/refresh [post]
func (h *TokenHandler) Refresh(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RefreshTokenRequest
	if !common.ValidateAndDecode(w, r, &req) {
		return nil
	}

	pair, err := h.tokens.Rotate(r.Context(), req.RefreshToken, ClientIP(r))
	if err != nil {
		if errors.Is(err, common.ErrStoreUnavailable) {
			return unavailable(err)
		}
		// Unknown, revoked and expired tokens all get the same answer.
		return common.NewAppError(http.StatusUnauthorized, invalidRefreshTokenMessage, nil)
	}

	writeJSON(w, http.StatusOK, pair)
	return nil
}

// Revoke godoc
// @Summary      Revoke a refresh token
// @Tags         token
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      model.RevokeTokenRequest  true  "Refresh token"
// @Success      200      {object}  model.MessageResponse
// @Failure      400      {object}  common.AppError
// @Failure      401      {object}  common.AppError
// @Router       /api/token/revoke [post]
func (h *TokenHandler) Revoke(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RevokeTokenRequest
	if !common.ValidateAndDecode(w, r, &req) {
		return nil
	}

	ok, err := h.tokens.Revoke(r.Context(), req.RefreshToken, ClientIP(r))
	if err != nil {
		if errors.Is(err, common.ErrStoreUnavailable) {
			return unavailable(err)
		}
		return common.NewAppError(http.StatusInternalServerError, "Token revocation failed", err)
	}
	if !ok {
		return common.NewAppError(http.StatusBadRequest, "Token revocation failed", nil)
	}

	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "Token revoked"})
	return nil
}

// RevokeAll godoc
// @Summary      Revoke every refresh token of the caller
// @Tags         token
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  model.RevokeAllResponse
// @Failure      401  {object}  common.AppError
// @Router       /api/token/revoke-all [post]
func (h *TokenHandler) RevokeAll(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}

	n, err := h.sessions.Logout(r.Context(), userID, ClientIP(r))
	if err != nil {
		if errors.Is(err, common.ErrStoreUnavailable) {
			return unavailable(err)
		}
		return common.NewAppError(http.StatusInternalServerError, "Token revocation failed", err)
	}

	writeJSON(w, http.StatusOK, model.RevokeAllResponse{Message: "All tokens revoked", Revoked: n})
	return nil
}

// Sessions godoc
// @Summary      List the caller's active refresh tokens
// @Tags         token
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   model.RefreshToken
// @Failure      401  {object}  common.AppError
// @Router       /api/token/sessions [get]
func (h *TokenHandler) Sessions(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}

	sessions, err := h.tokens.ActiveSessions(r.Context(), userID)
	if err != nil {
		if errors.Is(err, common.ErrStoreUnavailable) {
			return unavailable(err)
		}
		return common.NewAppError(http.StatusInternalServerError, "Could not list sessions", err)
	}
	if sessions == nil {
		sessions = []*model.RefreshToken{}
	}

	writeJSON(w, http.StatusOK, sessions)
	return nil
}

// Inspect godoc
// @Summary      Read the claims of a possibly expired access token
// @Description  Signature, issuer, audience and algorithm are still verified.
// @Tags         token
// @Accept       json
// @Produce      json
// @Param        request  body      model.InspectTokenRequest  true  "Access token"
// @Success      200      {object}  model.ClaimsResponse
// @Failure      401      {object}  common.AppError
// @Router       /api/token/inspect [post]
func (h *TokenHandler) Inspect(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.InspectTokenRequest
	if !common.ValidateAndDecode(w, r, &req) {
		return nil
	}

	claims, err := h.tokens.ValidateAccessClaimsIgnoringExpiry(req.AccessToken)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"client_ip": ClientIP(r)}).Info("Access token inspection rejected")
		return common.NewAppError(http.StatusUnauthorized, "Invalid token", nil)
	}

	resp := model.ClaimsResponse{
		UserID:          claims.Subject,
		Username:        claims.Username,
		Email:           claims.Email,
		DisplayName:     claims.DisplayName,
		ExperienceLevel: claims.ExperienceLevel,
		TokenID:         claims.ID,
	}
	if claims.IssuedAt != nil {
		resp.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}

	writeJSON(w, http.StatusOK, resp)
	return nil
}
