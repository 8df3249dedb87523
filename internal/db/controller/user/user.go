// Package user implements the administrative side of the account
// lifecycle: listing registrations and moving accounts between the
// pending, approved, rejected and disabled states.
package user

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/db/models"
)

const (
	whereStatus   = "status = ?"
	whereStatusIn = "status IN ?"

	// DefaultPerPage is the page size of the review listings.
	DefaultPerPage = 10
)

var (
	// ErrUserNotFound is returned when the user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrAlreadyReviewed is returned when approving or rejecting an
	// account that is not pending anymore.
	ErrAlreadyReviewed = errors.New("registration was already reviewed")
	// ErrCannotDisable is returned when disabling an account that is not approved.
	ErrCannotDisable = errors.New("only approved accounts can be disabled")
	// ErrCannotEnable is returned when enabling an account that is not disabled.
	ErrCannotEnable = errors.New("only disabled accounts can be enabled")
	// ErrSelfDisable is returned when an administrator tries to disable
	// their own account.
	ErrSelfDisable = errors.New("cannot disable your own account")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// ListParams filters the review listings.
type ListParams struct {
	// Status narrows the listing to one account state. Empty or "all"
	// disables the filter.
	Status string
	// Page is the 1-based page number.
	Page int
	// PerPage is the page size, defaulting to DefaultPerPage.
	PerPage int
}

func paginate(query *gorm.DB, p ListParams) *gorm.DB {
	perPage := p.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	page := p.Page
	if page < 1 {
		page = 1
	}

	return query.Order("created_at DESC, id DESC").
		Offset((page - 1) * perPage).
		Limit(perPage)
}

// ListRegistrations returns registrations for review, newest first, with
// the total count before pagination. An empty status filter shows the
// pending queue.
func ListRegistrations(db *gorm.DB, p ListParams) ([]models.User, int64, error) {
	if db == nil {
		return nil, 0, ErrDBNil
	}

	query := db.Model(&models.User{})

	status := p.Status
	if status == "" {
		status = string(models.StatusPending)
	}
	if status != "all" {
		query = query.Where(whereStatus, status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	if err := paginate(query.Preload("ApproveUser").Preload("Role"), p).Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// ListAccounts returns the active account base, the approved and disabled
// users, with their roles preloaded.
func ListAccounts(db *gorm.DB, p ListParams) ([]models.User, int64, error) {
	if db == nil {
		return nil, 0, ErrDBNil
	}

	query := db.Model(&models.User{}).
		Where(whereStatusIn, []string{string(models.StatusApproved), string(models.StatusDisabled)})

	if p.Status != "" && p.Status != "all" {
		query = query.Where(whereStatus, p.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	if err := paginate(query.Preload("Role"), p).Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// GetByID retrieves a user by ID.
func GetByID(db *gorm.DB, id uint64) (*models.User, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var user models.User
	result := db.Preload("Role").First(&user, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}

	return &user, nil
}

func review(db *gorm.DB, id, reviewerID uint64, to models.Status) error {
	if db == nil {
		return ErrDBNil
	}

	var user models.User
	result := db.First(&user, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return result.Error
	}

	if user.Status != models.StatusPending {
		return ErrAlreadyReviewed
	}

	now := time.Now()
	user.Status = to
	user.ApprovedAt = &now
	user.ApproveUserID = &reviewerID

	return db.Save(&user).Error
}

// Approve moves a pending registration to approved and records the
// reviewing administrator.
func Approve(db *gorm.DB, id, reviewerID uint64) error {
	return review(db, id, reviewerID, models.StatusApproved)
}

// Reject turns a pending registration down and records the reviewing
// administrator.
func Reject(db *gorm.DB, id, reviewerID uint64) error {
	return review(db, id, reviewerID, models.StatusRejected)
}

// Disable switches an approved account off. Administrators cannot disable
// themselves.
func Disable(db *gorm.DB, id, actorID uint64) error {
	if db == nil {
		return ErrDBNil
	}
	if id == actorID {
		return ErrSelfDisable
	}

	var user models.User
	result := db.First(&user, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return result.Error
	}

	if user.Status != models.StatusApproved {
		return ErrCannotDisable
	}

	return db.Model(&user).Update("status", models.StatusDisabled).Error
}

// Enable turns a disabled account back to approved.
func Enable(db *gorm.DB, id uint64) error {
	if db == nil {
		return ErrDBNil
	}

	var user models.User
	result := db.First(&user, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return result.Error
	}

	if user.Status != models.StatusDisabled {
		return ErrCannotEnable
	}

	return db.Model(&user).Update("status", models.StatusApproved).Error
}
