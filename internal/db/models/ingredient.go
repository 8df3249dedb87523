package models

import "time"

// Ingredient is one entry of the health food ingredient reference data.
// Rows are imported from uploaded reference files and searched by food name.
type Ingredient struct {
	// ID is the unique identifier for the reference entry.
	ID uint64 `gorm:"primaryKey"`
	// FoodName is the product name the entry belongs to.
	FoodName string `gorm:"size:200;not null"`
	// Ingredient lists the raw ingredients of the product.
	Ingredient string `gorm:"type:text"`
	// Path points to the reference file the entry was imported from.
	Path string `gorm:"size:500"`
	// CreatedAt is the timestamp when the entry was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the entry was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName keeps the singular table name of the original data set.
func (Ingredient) TableName() string {
	return "ingredient"
}
