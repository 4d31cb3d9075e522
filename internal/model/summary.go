package model

import "time"

type Summary struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt    time.Time `gorm:"index:idx_summaries_user_created,priority:2" json:"created_at"`
	UserID       string    `gorm:"size:64;not null;index:idx_summaries_user_created,priority:1" json:"user_id"`
	OriginalText string    `gorm:"type:text;not null" json:"original_text"`
	Summary      string    `gorm:"type:text;not null" json:"summary"`
	URL          *string   `gorm:"column:url;type:text" json:"url"`
}

func (Summary) TableName() string {
	return "summaries"
}

// SummaryPreview is the list projection of a Summary.
type SummaryPreview struct {
	ID        string    `json:"id"`
	Summary   string    `json:"summary"`
	URL       *string   `gorm:"column:url" json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

type Page struct {
	Skip  int   `json:"skip"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// NewPage normalizes paging input: negative skip becomes 0 and limit is clamped to 1..MaxPageLimit.
func NewPage(skip, limit int) Page {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return Page{Skip: skip, Limit: limit}
}

// SummarySavedEvent is published after a summary is stored.
type SummarySavedEvent struct {
	ID      string    `json:"id"`
	UserID  string    `json:"user_id"`
	SavedAt time.Time `json:"saved_at"`
}
