package service

import (
	"context"
	"errors"
	"go-draw-api/common"
	"go-draw-api/logger"
	"go-draw-api/model"
	"go-draw-api/repository"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to hash password")
		return "", err
	}
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// TokenIssuer is the part of the refresh token authority the account flows use.
type TokenIssuer interface {
	Issue(ctx context.Context, user *model.User, ip string) (*model.TokenPair, error)
	RevokeAllForUser(ctx context.Context, userID, actor, ip string) (int64, error)
}

// AuthService implements registration, login and account deletion on top of
// the user directory and the token authority.
type AuthService struct {
	userRepo repository.IUserRepository
	users    UserDirectory
	tokens   TokenIssuer
}

func NewAuthService(userRepo repository.IUserRepository, users UserDirectory, tokens TokenIssuer) *AuthService {
	return &AuthService{userRepo: userRepo, users: users, tokens: tokens}
}

func (s *AuthService) Register(ctx context.Context, req *model.RegisterRequest, ip string) (*model.AuthResponse, error) {
	hashed, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	level := req.ExperienceLevel
	if level == "" {
		level = model.ExperienceBeginner
	}
	user := &model.User{
		ID:              uuid.NewString(),
		Username:        req.Username,
		Email:           strings.ToLower(req.Email),
		DisplayName:     req.DisplayName,
		ExperienceLevel: level,
		Password:        hashed,
	}
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	logger.Log.WithField("user_id", user.ID).Info("User registered")

	return s.respond(ctx, user, ip)
}

func (s *AuthService) Login(ctx context.Context, req *model.LoginRequest, ip string) (*model.AuthResponse, error) {
	user, err := s.users.FindUserByEmail(ctx, strings.ToLower(req.Email))
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.users.VerifyPassword(user, req.Password) {
		logger.Log.WithField("user_id", user.ID).Warn("Login failed: wrong password")
		return nil, common.ErrInvalidCredentials
	}
	return s.respond(ctx, user, ip)
}

// Logout revokes every session of the user.
func (s *AuthService) Logout(ctx context.Context, userID, ip string) (int64, error) {
	return s.tokens.RevokeAllForUser(ctx, userID, common.SystemActor, ip)
}

// DeleteAccount verifies the password, revokes all of the user's refresh
// tokens and removes the user. Token records remain for audit until they expire.
func (s *AuthService) DeleteAccount(ctx context.Context, userID, password, ip string) error {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.users.VerifyPassword(user, password) {
		return common.ErrInvalidCredentials
	}
	if _, err := s.tokens.RevokeAllForUser(ctx, userID, common.SystemActor, ip); err != nil {
		return err
	}
	if err := s.userRepo.DeleteUser(ctx, userID); err != nil {
		return err
	}
	logger.Log.WithField("user_id", userID).Info("User account deleted")
	return nil
}

func (s *AuthService) respond(ctx context.Context, user *model.User, ip string) (*model.AuthResponse, error) {
	pair, err := s.tokens.Issue(ctx, user, ip)
	if err != nil {
		return nil, err
	}
	return &model.AuthResponse{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Tokens:      *pair,
	}, nil
}
