// Package uploadrecord tracks uploaded presentation files in the database.
// The disk side lives in internal/storage, records point at the stored
// files through their relative directory and stored filename.
package uploadrecord

import (
	"errors"

	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/db/models"
)

const (
	whereOwner     = "user_id = ?"
	whereOwnerID   = "user_id = ? AND id = ?"
	whereDirSuffix = "file_path LIKE ?"
	whereStatus    = "status = ?"
)

var (
	// ErrRecordNotFound is returned when an upload record is not found.
	ErrRecordNotFound = errors.New("upload record not found")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// ListParams filters ListByUser.
type ListParams struct {
	UserID uint64
	// FileType filters on the stored subdirectory (ppt, pdf, annotations, temp).
	FileType string
	// Status filters on the processing state.
	Status string
	// Page is the 1-based page number.
	Page int
	// PerPage is the page size, defaulting to 20.
	PerPage int
}

// Create stores a new upload record.
func Create(db *gorm.DB, record *models.UploadRecord) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Create(record).Error
}

// GetOwned retrieves one of the user's upload records by ID. Records of
// other users are invisible.
func GetOwned(db *gorm.DB, userID, id uint64) (*models.UploadRecord, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var record models.UploadRecord
	result := db.Where(whereOwnerID, userID, id).First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, result.Error
	}

	return &record, nil
}

// GetByID retrieves an upload record regardless of its owner.
func GetByID(db *gorm.DB, id uint64) (*models.UploadRecord, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var record models.UploadRecord
	result := db.First(&record, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, result.Error
	}

	return &record, nil
}

// ListByUser returns the user's upload records, newest first, with the
// total count before pagination.
func ListByUser(db *gorm.DB, p ListParams) ([]models.UploadRecord, int64, error) {
	if db == nil {
		return nil, 0, ErrDBNil
	}

	query := db.Model(&models.UploadRecord{}).Where(whereOwner, p.UserID)

	if p.FileType != "" {
		query = query.Where(whereDirSuffix, "%/"+p.FileType)
	}

	if p.Status != "" {
		query = query.Where(whereStatus, p.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	perPage := p.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := p.Page
	if page < 1 {
		page = 1
	}

	var records []models.UploadRecord
	err := query.Order("created_at DESC, id DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// ListAll returns every upload record with its owner preloaded, newest
// first. Used by the admin file overview.
func ListAll(db *gorm.DB) ([]models.UploadRecord, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var records []models.UploadRecord
	err := db.Preload("User").Order("created_at DESC, id DESC").Find(&records).Error
	if err != nil {
		return nil, err
	}

	return records, nil
}

// SetStatus updates the processing state of an upload record.
func SetStatus(db *gorm.DB, id uint64, status models.UploadStatus) error {
	if db == nil {
		return ErrDBNil
	}

	result := db.Model(&models.UploadRecord{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

// SetFailed marks an upload record failed and records the reason, truncated
// to the column size.
func SetFailed(db *gorm.DB, id uint64, message string) error {
	if db == nil {
		return ErrDBNil
	}

	if len(message) > 255 {
		message = message[:255]
	}

	result := db.Model(&models.UploadRecord{}).Where("id = ?", id).Updates(map[string]any{
		"status":        models.UploadStatusFailed,
		"error_message": message,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

// Delete removes an upload record by ID.
func Delete(db *gorm.DB, id uint64) error {
	if db == nil {
		return ErrDBNil
	}

	result := db.Delete(&models.UploadRecord{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}
