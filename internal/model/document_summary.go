package model

import "time"

const (
	SummaryKindDocument   = "document"
	SummaryKindResearch   = "research"
	SummaryKindMultimodal = "multimodal"
	SummaryKindTrend      = "trend"
)

type DocumentSummary struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DocumentID string    `gorm:"size:64;not null;index" json:"document_id"`
	Kind       string    `gorm:"size:32;not null;index" json:"kind"`
	Content    string    `gorm:"type:longtext;not null" json:"content"`
	// Metadata is the JSON-encoded generation metadata.
	Metadata   string    `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
