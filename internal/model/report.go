package model

import "time"

// Report stores a generated research report; Payload is the JSON body
// returned to clients.
type Report struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	DocumentID string    `gorm:"size:64;not null;index" json:"document_id"`
	UserID     uint      `gorm:"index" json:"user_id"`
	Question   string    `gorm:"type:text;not null" json:"question"`
	Payload    string    `gorm:"type:longtext;not null" json:"-"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}
