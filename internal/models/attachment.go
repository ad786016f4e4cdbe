package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FileType classifies an attachment.
type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypePDF   FileType = "pdf"
)

// ComplaintAttachment is a file uploaded with a complaint. Deleting the row
// must also delete the stored file; the complaint service does both.
type ComplaintAttachment struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	ComplaintID string    `gorm:"type:uuid;not null;index" json:"complaint_id"`
	FileName    string    `gorm:"type:text;not null" json:"file_name"`
	FilePath    string    `gorm:"type:text;not null" json:"file_path"`
	FileType    FileType  `gorm:"type:varchar(16);not null;index" json:"file_type"`
	MimeType    string    `gorm:"type:varchar(128)" json:"mime_type"`
	FileSize    int64     `json:"file_size"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BeforeCreate generates the attachment id.
func (a *ComplaintAttachment) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return
}
