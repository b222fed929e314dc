package repository

import (
	"context"
	"errors"
	"fmt"

	"sitebuilder/internal/models"

	"gorm.io/gorm"
)

// UserRepositoryImpl handles dashboard user accounts.
type UserRepositoryImpl struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *gorm.DB) *UserRepositoryImpl {
	return &UserRepositoryImpl{db: db}
}

// CreateUser inserts a new user (KSUID via BeforeCreate hook).
func (r *UserRepositoryImpl) CreateUser(ctx context.Context, create *models.UserCreate) (*models.User, error) {
	user := &models.User{
		Email: create.Email,
		Name:  create.Name,
		Role:  create.Role,
	}
	if user.Role == "" {
		user.Role = "editor"
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUser returns one user by id. Soft-deleted users are excluded.
func (r *UserRepositoryImpl) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ListUsers returns users with pagination, newest first (KSUID ordering).
func (r *UserRepositoryImpl) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if limit <= 0 {
		limit = 50
	}
	var users []*models.User
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateUser modifies an existing user; nil fields stay unchanged.
func (r *UserRepositoryImpl) UpdateUser(ctx context.Context, id string, update *models.UserUpdate) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user not found: %s", id)
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	updates := make(map[string]interface{})
	if update.Email != nil {
		updates["email"] = *update.Email
	}
	if update.Name != nil {
		updates["name"] = *update.Name
	}
	if update.Role != nil {
		updates["role"] = *update.Role
	}

	if err := r.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &user, nil
}

// DeleteUser soft-deletes the user so audit references stay resolvable.
func (r *UserRepositoryImpl) DeleteUser(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}
