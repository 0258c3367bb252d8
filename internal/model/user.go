package model

import "time"

// User is an account allowed to query documents. Disabled accounts keep
// their notes and reports but can no longer obtain tokens.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Email        string     `gorm:"size:128;not null;uniqueIndex" json:"email"`
	FullName     string     `gorm:"size:128" json:"full_name,omitempty"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	Disabled     bool       `gorm:"not null;default:false" json:"disabled"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
