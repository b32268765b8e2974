package models

import "time"

// Credential is the stored result of an OAuth handshake with a platform.
// At most one row is live; replacing it deletes the previous one.
type Credential struct {
	ID                uint      `gorm:"primaryKey" json:"-"`
	AccessToken       string    `json:"-"`
	RefreshToken      string    `json:"-"` // empty when the platform has no refresh flow
	ExpiresAt         time.Time `json:"expires_at"`
	ExternalAccountID string    `json:"member_id"` // LinkedIn member id ("sub")
	DisplayName       string    `json:"name"`
	CreatedAt         time.Time `json:"created_at"`
}
