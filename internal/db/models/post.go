package models

import "time"

// Post lifecycle states. A post leaves pending exactly once.
const (
	PostStatusPending = "pending"
	PostStatusPosted  = "posted"
	PostStatusFailed  = "failed"
)

// Platforms the UI knows about. Only LinkedIn has a real publish integration;
// the rest (and any unknown tag) are routed to the stub publisher.
const (
	PlatformLinkedIn  = "linkedin"
	PlatformInstagram = "instagram"
	PlatformFacebook  = "facebook"
	PlatformThreads   = "threads"
	PlatformX         = "x"
)

// Post is one piece of user-authored content bound to a platform and a publish time.
type Post struct {
	ID          string    `gorm:"primaryKey" json:"id"` // UUID
	Platform    string    `gorm:"index;not null;default:'linkedin'" json:"platform"`
	Prompt      string    `gorm:"type:text" json:"prompt"` // audit only, never sent to the platform
	Content     string    `gorm:"type:text;not null" json:"content"`
	Image       string    `gorm:"column:image_url;type:text" json:"image_url,omitempty"` // data URI, empty = text-only
	ScheduledAt time.Time `gorm:"index;not null" json:"scheduled_at"`
	Status      string    `gorm:"index;not null;default:'pending'" json:"status"`
	Error       string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// IsTerminal reports whether the post has left the pending state.
func (p Post) IsTerminal() bool {
	return p.Status == PostStatusPosted || p.Status == PostStatusFailed
}
