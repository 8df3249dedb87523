// Package stopword manages the per-user lists of terms excluded from
// machine translation.
package stopword

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/db/models"
)

const (
	whereOwner     = "user_id = ?"
	whereOwnerWord = "user_id = ? AND word = ?"
	whereOwnerID   = "user_id = ? AND id = ?"

	// MaxWordLength matches the column size of the word column.
	MaxWordLength = 100
)

var (
	// ErrWordEmpty is returned when the word is empty after trimming.
	ErrWordEmpty = errors.New("stop word cannot be empty")
	// ErrWordTooLong is returned when the word exceeds MaxWordLength.
	ErrWordTooLong = errors.New("stop word is too long")
	// ErrWordExists is returned when the user already has the word.
	ErrWordExists = errors.New("stop word already exists")
	// ErrWordNotFound is returned when the word is not in the user's list.
	ErrWordNotFound = errors.New("stop word not found")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// List returns the user's stop words, newest first.
func List(db *gorm.DB, userID uint64) ([]models.StopWord, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var words []models.StopWord
	err := db.Where(whereOwner, userID).Order("created_at DESC, id DESC").Find(&words).Error
	if err != nil {
		return nil, err
	}

	return words, nil
}

// Add stores a new stop word for the user. The word is trimmed, the same
// word may exist for different users but not twice for one user.
func Add(db *gorm.DB, userID uint64, word string) (*models.StopWord, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	word = strings.TrimSpace(word)
	if word == "" {
		return nil, ErrWordEmpty
	}
	if len(word) > MaxWordLength {
		return nil, ErrWordTooLong
	}

	var count int64
	if err := db.Model(&models.StopWord{}).Where(whereOwnerWord, userID, word).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrWordExists
	}

	stopWord := &models.StopWord{Word: word, UserID: userID}
	if err := db.Create(stopWord).Error; err != nil {
		return nil, err
	}

	return stopWord, nil
}

// Delete removes one of the user's stop words. Words of other users are
// invisible, deleting them reports ErrWordNotFound.
func Delete(db *gorm.DB, userID, id uint64) error {
	if db == nil {
		return ErrDBNil
	}

	result := db.Where(whereOwnerID, userID, id).Delete(&models.StopWord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWordNotFound
	}

	return nil
}

// Count returns the number of stop words the user maintains.
func Count(db *gorm.DB, userID uint64) (int64, error) {
	if db == nil {
		return 0, ErrDBNil
	}

	var count int64
	if err := db.Model(&models.StopWord{}).Where(whereOwner, userID).Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}
