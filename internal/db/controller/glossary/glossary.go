// Package glossary provides the translation memory queries. Entries are
// private to their owner unless published, published entries are shared
// across all users.
package glossary

import (
	"errors"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/db/models"
)

const (
	whereOwnerPrivate  = "user_id = ? AND is_public = ?"
	wherePublic        = "is_public = ?"
	whereVisible       = "(user_id = ? AND is_public = ?) OR is_public = ?"
	whereSearch        = "(english LIKE ? OR chinese LIKE ? OR dutch LIKE ? OR category LIKE ?)"
	whereCategory      = "category LIKE ?"
	whereOwnerEnglish  = "user_id = ? AND english = ?"
	wherePublicEnglish = "is_public = ? AND english = ?"
	whereNotID         = "id <> ?"
	categorySeparator  = ";"
)

var (
	// ErrEntryNotFound is returned when a glossary entry is not found.
	ErrEntryNotFound = errors.New("glossary entry not found")
	// ErrEnglishEmpty is returned when the English side of an entry is empty.
	ErrEnglishEmpty = errors.New("glossary entry needs an english term")
	// ErrChineseEmpty is returned when the Chinese side of an entry is empty.
	ErrChineseEmpty = errors.New("glossary entry needs a chinese term")
	// ErrDuplicateEntry is returned when the English term already exists in
	// the set the entry would be stored in.
	ErrDuplicateEntry = errors.New("english term already exists in the glossary")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// ListParams filters List.
type ListParams struct {
	// UserID scopes private rows to this owner.
	UserID uint64
	// Visibility is one of private, public or all. Anything else counts as all.
	Visibility string
	// Search matches english, chinese, dutch and category with LIKE.
	Search string
	// Category filters on the category column with LIKE.
	Category string
	// Page is the 1-based page number.
	Page int
	// PerPage is the page size. Zero or negative disables pagination.
	PerPage int
}

// Stats summarizes a user's glossary.
type Stats struct {
	TotalTranslations int64            `json:"total_translations"`
	PublicCount       int64            `json:"public_count"`
	Categories        map[string]int64 `json:"categories"`
}

func visibilityScope(db *gorm.DB, userID uint64, visibility string) *gorm.DB {
	switch visibility {
	case "private":
		return db.Where(whereOwnerPrivate, userID, false)
	case "public":
		return db.Where(wherePublic, true)
	default:
		return db.Where(whereVisible, userID, false, true)
	}
}

// List returns the glossary entries visible to a user, newest first,
// together with the total row count before pagination.
func List(db *gorm.DB, p ListParams) ([]models.Translation, int64, error) {
	if db == nil {
		return nil, 0, ErrDBNil
	}

	query := visibilityScope(db.Model(&models.Translation{}), p.UserID, p.Visibility)

	if p.Search != "" {
		pattern := "%" + p.Search + "%"
		query = query.Where(whereSearch, pattern, pattern, pattern, pattern)
	}

	if p.Category != "" {
		query = query.Where(whereCategory, "%"+p.Category+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Preload("User").Order("id DESC")

	if p.PerPage > 0 {
		page := p.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * p.PerPage).Limit(p.PerPage)
	}

	var entries []models.Translation
	if err := query.Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// Get retrieves a glossary entry by ID.
func Get(db *gorm.DB, id uint64) (*models.Translation, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var entry models.Translation
	result := db.First(&entry, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, result.Error
	}

	return &entry, nil
}

// duplicateExists reports whether another entry uses the same English term
// in the set the entry belongs to. Public entries collide with the public
// set, private entries with the owner's own rows.
func duplicateExists(db *gorm.DB, entry *models.Translation, excludeID uint64) (bool, error) {
	query := db.Model(&models.Translation{})

	if entry.IsPublic {
		query = query.Where(wherePublicEnglish, true, entry.English)
	} else {
		ownerID := uint64(0)
		if entry.UserID != nil {
			ownerID = *entry.UserID
		}
		query = query.Where(whereOwnerEnglish, ownerID, entry.English)
	}

	if excludeID != 0 {
		query = query.Where(whereNotID, excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}

// Create stores a new glossary entry after checking for duplicates.
func Create(db *gorm.DB, entry *models.Translation) error {
	if db == nil {
		return ErrDBNil
	}
	if entry.English == "" {
		return ErrEnglishEmpty
	}
	if entry.Chinese == "" {
		return ErrChineseEmpty
	}

	exists, err := duplicateExists(db, entry, 0)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateEntry
	}

	return db.Create(entry).Error
}

// Update saves changed fields of an existing entry after re-checking for
// duplicates. Ownership and publish rights are the caller's business.
func Update(db *gorm.DB, entry *models.Translation) error {
	if db == nil {
		return ErrDBNil
	}
	if entry.English == "" {
		return ErrEnglishEmpty
	}
	if entry.Chinese == "" {
		return ErrChineseEmpty
	}

	exists, err := duplicateExists(db, entry, entry.ID)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateEntry
	}

	return db.Save(entry).Error
}

// Delete removes a glossary entry by ID.
func Delete(db *gorm.DB, id uint64) error {
	if db == nil {
		return ErrDBNil
	}

	result := db.Delete(&models.Translation{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEntryNotFound
	}

	return nil
}

// Categories returns the distinct category names of the entries visible to
// the user. Stored values hold multiple names joined by semicolons, the
// result is split, deduplicated and sorted case-insensitively.
func Categories(db *gorm.DB, userID uint64) ([]string, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var stored []string
	query := visibilityScope(db.Model(&models.Translation{}), userID, "all")
	if err := query.Where("category <> ''").Pluck("category", &stored).Error; err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var categories []string
	for _, value := range stored {
		for _, part := range strings.Split(value, categorySeparator) {
			name := strings.TrimSpace(part)
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			categories = append(categories, name)
		}
	}

	sort.Slice(categories, func(i, j int) bool {
		return strings.ToLower(categories[i]) < strings.ToLower(categories[j])
	})

	return categories, nil
}

// GetStats summarizes the user's own entries and the public set.
func GetStats(db *gorm.DB, userID uint64) (*Stats, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	stats := &Stats{Categories: make(map[string]int64)}

	err := db.Model(&models.Translation{}).
		Where("user_id = ?", userID).
		Count(&stats.TotalTranslations).Error
	if err != nil {
		return nil, err
	}

	err = db.Model(&models.Translation{}).
		Where(wherePublic, true).
		Count(&stats.PublicCount).Error
	if err != nil {
		return nil, err
	}

	categories, err := Categories(db, userID)
	if err != nil {
		return nil, err
	}

	for _, name := range categories {
		var count int64
		err = visibilityScope(db.Model(&models.Translation{}), userID, "all").
			Where(whereCategory, "%"+name+"%").
			Count(&count).Error
		if err != nil {
			return nil, err
		}
		stats.Categories[name] = count
	}

	return stats, nil
}
