package service

import (
	"context"
	"go-draw-api/model"
	"go-draw-api/repository"
)

// UserService is the user directory backing token issuance.
type UserService struct {
	userRepo repository.IUserRepository
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.IUserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.userRepo.GetUserByID(ctx, id)
}

func (s *UserService) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.userRepo.GetUserByEmail(ctx, email)
}

// VerifyPassword checks password against the user's stored bcrypt hash.
func (s *UserService) VerifyPassword(user *model.User, password string) bool {
	return CheckPasswordHash(password, user.Password)
}
