package models

import "time"

// UploadStatus tracks the processing state of an uploaded file.
type UploadStatus string

const (
	// UploadStatusPending indicates the file was stored but not processed yet.
	UploadStatusPending UploadStatus = "pending"
	// UploadStatusCompleted indicates processing finished successfully.
	UploadStatusCompleted UploadStatus = "completed"
	// UploadStatusFailed indicates processing failed.
	UploadStatusFailed UploadStatus = "failed"
)

// UploadRecord tracks a file a user uploaded for translation.
type UploadRecord struct {
	// ID is the unique identifier for the upload record.
	ID uint64 `gorm:"primaryKey"`
	// Filename is the original name of the uploaded file.
	Filename string `gorm:"size:255;not null"`
	// StoredFilename is the unique name the file is stored under on disk.
	StoredFilename string `gorm:"size:255;not null"`
	// FilePath is the path of the stored file relative to the upload root.
	FilePath string `gorm:"size:255;not null"`
	// FileSize is the size of the file in bytes.
	FileSize int64
	// Status is the processing state of the upload.
	Status UploadStatus `gorm:"type:varchar(20);not null;default:'pending'"`
	// ErrorMessage records why processing failed. Empty for pending and
	// completed uploads.
	ErrorMessage string `gorm:"size:255"`
	// UserID is the owner of the upload.
	UserID uint64 `gorm:"column:user_id;not null"`
	// User is the owning user. Upload records are removed with their owner (CASCADE).
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	// CreatedAt is the timestamp of the upload (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the UploadRecord model.
func (UploadRecord) TableName() string {
	return "upload_records"
}
