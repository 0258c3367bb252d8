package model

import "time"

const (
	NoteSourceManual   = "manual"
	NoteSourceQA       = "qa_derived"
	NoteSourceSummary  = "summary_derived"
	NoteSourceResearch = "research_summary"
)

type ResearchNote struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	DocumentID  string     `gorm:"size:64;not null;index" json:"document_id"`
	UserID      uint       `gorm:"index" json:"user_id"`
	Question    string     `gorm:"type:text" json:"question,omitempty"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	SourceType  string     `gorm:"size:32;not null;index" json:"source_type"`
	Metadata    string     `gorm:"type:text" json:"metadata,omitempty"`
	Verified    bool       `gorm:"not null;default:false;index" json:"verified"`
	Validator   string     `gorm:"size:64" json:"validator,omitempty"`
	Feedback    string     `gorm:"type:text" json:"feedback,omitempty"`
	ValidatedAt *time.Time `gorm:"index" json:"validated_at,omitempty"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
