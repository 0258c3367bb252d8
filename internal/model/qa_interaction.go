package model

import "time"

type QAInteraction struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	DocumentID      string    `gorm:"size:64;not null;index" json:"document_id"`
	UserID          uint      `gorm:"not null;index" json:"user_id"`
	Question        string    `gorm:"type:text;not null" json:"question"`
	Answer          string    `gorm:"type:text;not null" json:"answer"`
	ConfidenceScore float64   `json:"confidence_score"`
	Sources         string    `gorm:"type:text" json:"-"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
}
