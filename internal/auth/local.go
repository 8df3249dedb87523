package auth

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/db/models"
)

// LocalProvider handles local database authentication.
type LocalProvider struct {
	db *gorm.DB
}

const (
	whereIDAndAuthSource = "id = ? AND auth_source = ?"

	whereID = "id = ?"
)

// NewLocalProvider creates a new local authentication provider.
func NewLocalProvider(db *gorm.DB) *LocalProvider {
	return &LocalProvider{
		db: db,
	}
}

// Authenticate authenticates a user against the local database.
func (p *LocalProvider) Authenticate(username, password string) (*models.User, error) {
	var user models.User

	// Find user by username
	err := p.db.Where("username = ? AND auth_source = ?", username, models.AuthSourceLocal).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	// Verify password first, account state is only reported on valid credentials
	if !user.VerifyPassword(password) {
		return nil, ErrInvalidPassword
	}

	// Only approved accounts may log in
	switch user.Status {
	case models.StatusPending:
		return nil, ErrUserPending
	case models.StatusRejected:
		return nil, ErrUserRejected
	case models.StatusDisabled:
		return nil, ErrUserAccountDisabled
	}

	// Record login time
	now := time.Now()
	user.LastLoginAt = &now
	p.db.Model(&models.User{}).Where(whereID, user.ID).Update("last_login_at", now)

	return &user, nil
}

// CreateUser creates a new local user. New accounts start in the pending
// state and stay there until an administrator reviews the registration.
func (p *LocalProvider) CreateUser(
	username, email, password, displayName string,
	roleID *uint,
) (*models.User, error) {
	// Check if user already exists
	var existingUser models.User

	query := p.db.Where("username = ?", username)
	if email != "" {
		query = query.Or("email = ?", email)
	}

	err := query.First(&existingUser).Error
	if err == nil {
		return nil, ErrUserNameOrEmailExists
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	// Hash password
	hashedPassword := models.HashPassword(password)

	// Create user
	user := models.User{
		Status:      models.StatusPending,
		Username:    username,
		Email:       email,
		Password:    hashedPassword,
		DisplayName: displayName,
		RoleID:      roleID,
		AuthSource:  models.AuthSourceLocal,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := p.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}

// UpdateUser updates profile fields of an existing local user.
func (p *LocalProvider) UpdateUser(userID uint64, email, displayName string, roleID *uint) error {
	updates := map[string]interface{}{
		"email":        email,
		"display_name": displayName,
		"role_id":      roleID,
		"updated_at":   time.Now(),
	}

	return p.db.Model(&models.User{}).
		Where(whereIDAndAuthSource, userID, models.AuthSourceLocal).
		Updates(updates).Error
}

// ChangePassword changes a user's password after verifying the old one.
func (p *LocalProvider) ChangePassword(userID uint64, oldPassword, newPassword string) error {
	var user models.User

	err := p.db.Where(whereID, userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}

	if err != nil {
		return fmt.Errorf("failed to query user: %w", err)
	}

	// Accounts backed by an identity provider have no local password to change
	if user.AuthSource != models.AuthSourceLocal {
		return ErrPasswordManagedExternally
	}

	// Verify old password
	if !user.VerifyPassword(oldPassword) {
		return ErrInvalidOldPassword
	}

	// Hash new password
	hashedPassword := models.HashPassword(newPassword)

	// Update password
	return p.db.Model(&models.User{}).
		Where(whereID, userID).
		Update("password", hashedPassword).Error
}

// ResetPassword resets a user's password (admin function).
func (p *LocalProvider) ResetPassword(userID uint64, newPassword string) error {
	hashedPassword := models.HashPassword(newPassword)

	return p.db.Model(&models.User{}).
		Where(whereIDAndAuthSource, userID, models.AuthSourceLocal).
		Update("password", hashedPassword).Error
}
