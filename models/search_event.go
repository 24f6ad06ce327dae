package models

import (
	"time"

	"gorm.io/datatypes"
)

// SearchEvent records one search operation for analytics. Writes are
// best-effort: a failed insert must never fail the search itself.
type SearchEvent struct {
	ID          string         `json:"id" gorm:"primaryKey"`
	UserID      string         `json:"user_id" gorm:"index"`
	Query       string         `json:"query" gorm:"type:text"`
	Type        string         `json:"type" gorm:"index"`
	ResultCount int            `json:"result_count"`
	Metadata    datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt   time.Time      `json:"created_at" gorm:"index"`
}

// TableName gives the table name explicitly.
func (SearchEvent) TableName() string {
	return "search_events"
}
