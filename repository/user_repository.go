package repository

import (
	"context"
	"database/sql"
	"errors"
	"go-draw-api/common"
	"go-draw-api/logger"
	"go-draw-api/model"
)

// IUserRepository defines the contract for user persistence.
type IUserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error
}

type UserRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{DB: db}
}

const userColumns = `id, username, email, display_name, experience_level, password, joined_at`

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.DisplayName,
		&user.ExperienceLevel, &user.Password, &user.JoinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrUserNotFound
		}
		return nil, storeError(err)
	}
	user.JoinedAt = user.JoinedAt.UTC()
	return user, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, username, email, display_name, experience_level, password)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING joined_at`
	err := r.DB.QueryRowContext(ctx, query,
		user.ID, user.Username, user.Email, user.DisplayName, user.ExperienceLevel, user.Password,
	).Scan(&user.JoinedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrUserExists
		}
		logger.Log.WithError(err).WithField("username", user.Username).Error("Failed to execute create user query")
		return storeError(err)
	}
	return nil
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.DB.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.DB.QueryRowContext(ctx, query, id))
}

// DeleteUser removes the user row. Refresh tokens are kept for audit and
// must be revoked by the caller beforehand.
func (r *UserRepository) DeleteUser(ctx context.Context, id string) error {
	logger.Log.WithField("user_id", id).Info("Executing query to delete a user")

	res, err := r.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return storeError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeError(err)
	}
	if n == 0 {
		return common.ErrUserNotFound
	}
	return nil
}
