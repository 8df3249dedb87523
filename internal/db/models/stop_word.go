package models

import "time"

// StopWord is a term a user excluded from machine translation. Stop words
// are kept verbatim in translated output. Each user maintains their own
// list, the same word may appear for different users.
type StopWord struct {
	// ID is the unique identifier for the stop word.
	ID uint64 `gorm:"primaryKey"`
	// Word is the term to keep untranslated.
	Word string `gorm:"size:100;not null;uniqueIndex:idx_word_user"`
	// UserID is the owner of the stop word.
	UserID uint64 `gorm:"column:user_id;not null;uniqueIndex:idx_word_user"`
	// User is the owning user. Stop words are removed with their owner (CASCADE).
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	// CreatedAt is the timestamp when the stop word was created (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the StopWord model.
func (StopWord) TableName() string {
	return "stop_words"
}
