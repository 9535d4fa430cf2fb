package handler

import (
	"context"
	"errors"
	"go-draw-api/common"
	"go-draw-api/logger"
	"go-draw-api/model"
	"net/http"
)

// AccountService is the account flow behind the user endpoints.
type AccountService interface {
	Register(ctx context.Context, req *model.RegisterRequest, ip string) (*model.AuthResponse, error)
	Login(ctx context.Context, req *model.LoginRequest, ip string) (*model.AuthResponse, error)
	DeleteAccount(ctx context.Context, userID, password, ip string) error
}

type UserHandler struct {
	accounts AccountService
}

func NewUserHandler(accounts AccountService) *UserHandler {
	return &UserHandler{accounts: accounts}
}

// Register godoc
// @Summary      Register a new user
// @Tags         account
// @Accept       json
// @Produce      json
// @Param        request  body      model.RegisterRequest  true  "New user"
// @Success      201      {object}  model.AuthResponse
// @Failure      400      {object}  common.AppError
// @Failure      409      {object}  common.AppError
// @Failure      429      {object}  common.AppError
// @Router       /api/account/register [post]
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RegisterRequest
	if !common.ValidateAndDecode(w, r, &req) {
		return nil
	}

	resp, err := h.accounts.Register(r.Context(), &req, ClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, common.ErrUserExists):
			return common.NewAppError(http.StatusConflict, "Username or email already in use", nil)
		case errors.Is(err, common.ErrStoreUnavailable):
			return unavailable(err)
		default:
			return common.NewAppError(http.StatusInternalServerError, "Could not register user", err)
		}
	}

	writeJSON(w, http.StatusCreated, resp)
	return nil
}

// Login godoc
// @Summary      Log in with email and password
// @Tags         account
// @Accept       json
// @Produce      json
// @Param        request  body      model.LoginRequest  true  "Credentials"
// @Success      200      {object}  model.AuthResponse
// @Failure      401      {object}  common.AppError
// @Failure      429      {object}  common.AppError
// @Router       /api/account/login [post]
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.LoginRequest
	if !common.ValidateAndDecode(w, r, &req) {
		return nil
	}

	resp, err := h.accounts.Login(r.Context(), &req, ClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidCredentials):
			return common.NewAppError(http.StatusUnauthorized, "Invalid email or password", nil)
		case errors.Is(err, common.ErrStoreUnavailable):
			return unavailable(err)
		default:
			return common.NewAppError(http.StatusInternalServerError, "Could not log in", err)
		}
	}

	writeJSON(w, http.StatusOK, resp)
	return nil
}

// DeleteAccount godoc
// @Summary      Delete the caller's account
// @Description  Revokes every refresh token of the user before removing the account.
// @Tags         account
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      model.DeleteAccountRequest  true  "Password confirmation"
// @Success      200      {object}  model.MessageResponse
// @Failure      401      {object}  common.AppError
// @Router       /api/account [delete]
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}

	var req model.DeleteAccountRequest
	if !common.ValidateAndDecode(w, r, &req) {
		return nil
	}

	if err := h.accounts.DeleteAccount(r.Context(), userID, req.Password, ClientIP(r)); err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidCredentials):
			return common.NewAppError(http.StatusUnauthorized, "Invalid password", nil)
		case errors.Is(err, common.ErrUserNotFound):
			return common.NewAppError(http.StatusNotFound, "User not found", nil)
		case errors.Is(err, common.ErrStoreUnavailable):
			return unavailable(err)
		default:
			return common.NewAppError(http.StatusInternalServerError, "Could not delete account", err)
		}
	}

	logger.Log.WithField("user_id", userID).Info("Account deletion completed")
	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "Account deleted"})
	return nil
}
