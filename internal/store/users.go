package store

import (
	"context"

	"paragon-backend/internal/models"
)

// CreateUser persists a new user.
func (d *DB) CreateUser(ctx context.Context, user *models.User) error {
	return d.gorm.WithContext(ctx).Create(user).Error
}

// GetUserByEmail loads a user for login.
func (d *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := d.gorm.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetUser loads a user by id.
func (d *DB) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := d.gorm.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}
