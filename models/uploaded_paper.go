package models

import (
	"time"
)

// UploadedPaper is a user-contributed paper stored via the upload flow.
type UploadedPaper struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UploaderID  string `json:"uploader_id" gorm:"index"`
	Title       string `json:"title"`
	Authors     string `json:"authors,omitempty"`
	Institution string `json:"institution,omitempty"`
	Language    string `json:"language,omitempty"`
	Category    string `json:"category,omitempty" gorm:"index"`
	Abstract    string `json:"abstract,omitempty" gorm:"type:text"`

	S3Link string `json:"s3_link,omitempty"`
}
