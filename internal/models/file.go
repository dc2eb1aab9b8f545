package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// File is an already-uploaded attachment. Uploading lives in the storage
// service; reports only link to existing rows.
type File struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID   uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`
	Name      string    `gorm:"size:255" json:"name"`
	URL       string    `gorm:"not null;size:1000" json:"url"`
	MimeType  string    `gorm:"size:100" json:"mime_type"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

func (f *File) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

func (File) TableName() string {
	return "files"
}
