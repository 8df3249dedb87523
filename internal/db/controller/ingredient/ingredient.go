// Package ingredient queries the health food ingredient reference data.
// Rows come from uploaded dataset files and are searched by product name
// or ingredient text.
package ingredient

import (
	"errors"

	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/db/models"
)

const (
	whereKeyword  = "(food_name LIKE ? OR ingredient LIKE ?)"
	wherePathLike = "path LIKE ?"
	whereFoodName = "food_name = ?"

	// DefaultPerPage is the page size the search endpoint uses.
	DefaultPerPage = 12
)

var (
	// ErrKeywordEmpty is returned when the search keyword is empty.
	ErrKeywordEmpty = errors.New("search keyword cannot be empty")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// SearchParams filters Search.
type SearchParams struct {
	// Keyword matches food names and ingredient texts with LIKE.
	Keyword string
	// DataSource narrows the result to entries whose path contains the
	// value. Empty or "all" disables the filter.
	DataSource string
	// Page is the 1-based page number.
	Page int
	// PerPage is the page size, defaulting to DefaultPerPage.
	PerPage int
}

// Search returns the matching reference entries and the total count
// before pagination.
func Search(db *gorm.DB, p SearchParams) ([]models.Ingredient, int64, error) {
	if db == nil {
		return nil, 0, ErrDBNil
	}
	if p.Keyword == "" {
		return nil, 0, ErrKeywordEmpty
	}

	pattern := "%" + p.Keyword + "%"
	query := db.Model(&models.Ingredient{}).Where(whereKeyword, pattern, pattern)

	if p.DataSource != "" && p.DataSource != "all" {
		query = query.Where(wherePathLike, "%"+p.DataSource+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	perPage := p.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	page := p.Page
	if page < 1 {
		page = 1
	}

	var entries []models.Ingredient
	err := query.Order("food_name").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// Upsert stores a reference entry, updating the existing row when the
// food name is already known.
func Upsert(db *gorm.DB, entry *models.Ingredient) (created bool, err error) {
	if db == nil {
		return false, ErrDBNil
	}

	var existing models.Ingredient
	result := db.Where(whereFoodName, entry.FoodName).First(&existing)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return true, db.Create(entry).Error
	}
	if result.Error != nil {
		return false, result.Error
	}

	existing.Ingredient = entry.Ingredient
	existing.Path = entry.Path
	if err := db.Save(&existing).Error; err != nil {
		return false, err
	}
	entry.ID = existing.ID

	return false, nil
}

// BatchUpsert imports a batch of reference entries inside one transaction.
// Returns how many rows were created and how many updated.
func BatchUpsert(db *gorm.DB, entries []models.Ingredient) (createdCount, updatedCount int, err error) {
	if db == nil {
		return 0, 0, ErrDBNil
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		for i := range entries {
			created, err := Upsert(tx, &entries[i])
			if err != nil {
				return err
			}
			if created {
				createdCount++
			} else {
				updatedCount++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	return createdCount, updatedCount, nil
}

// Count returns the total number of reference entries.
func Count(db *gorm.DB) (int64, error) {
	if db == nil {
		return 0, ErrDBNil
	}

	var count int64
	if err := db.Model(&models.Ingredient{}).Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}
