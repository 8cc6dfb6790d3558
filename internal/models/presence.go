package models

import (
	"time"
)

// UserPresence is the durable last-seen record of a chat identity.
// The live online set is kept in memory; this row trails it.
type UserPresence struct {
	UserID     string    `gorm:"primaryKey;size:191" json:"user_id"`
	Status     string    `gorm:"size:20;not null;index" json:"status"` // ONLINE, OFFLINE
	IsOnline   bool      `gorm:"default:false;index" json:"is_online"`
	LastSeenAt time.Time `gorm:"not null;index" json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (UserPresence) TableName() string {
	return "user_presence"
}
