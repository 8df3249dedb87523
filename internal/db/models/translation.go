package models

import "time"

// Translation is a glossary entry of the translation memory. Entries are
// personal to their owner unless marked public, public entries are visible
// to every user and maintained by glossary managers.
type Translation struct {
	// ID is the unique identifier for the glossary entry.
	ID uint64 `gorm:"primaryKey"`
	// English is the English side of the entry.
	English string `gorm:"size:500;not null"`
	// Chinese is the Chinese side of the entry.
	Chinese string `gorm:"size:500;not null"`
	// Dutch is an optional third language column.
	Dutch string `gorm:"size:500"`
	// Category is a free-form classification, multiple values joined by semicolons.
	Category string `gorm:"size:1000"`
	// UserID is the owner of the entry. Nil for system-wide entries.
	UserID *uint64 `gorm:"column:user_id"`
	// User is the owning user.
	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL"`
	// IsPublic marks the entry as visible to all users.
	IsPublic bool `gorm:"not null;default:false"`
	// CreatedAt is the timestamp when the entry was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the entry was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Translation model.
func (Translation) TableName() string {
	return "translations"
}
