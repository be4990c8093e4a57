// Package models contains data structures for the PostStream domain.
package models

import "time"

// Account is the identity record behind a Profile. Credentials live here so
// that profile reads never carry a password hash.
type Account struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;size:30;not null" json:"username"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Account) TableName() string {
	return "accounts"
}

// Identity is what the session layer knows about the caller.
type Identity struct {
	AccountID uint   `json:"account_id"`
	ProfileID uint   `json:"profile_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
}
