package model

import "time"

// RSVP (event_id, user_id) 唯一，重复报名走 DoNothing
type RSVP struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	EventID   uint64    `gorm:"not null;index;uniqueIndex:uk_rsvp_event_user" json:"event_id"`
	UserID    uint64    `gorm:"not null;index;uniqueIndex:uk_rsvp_event_user" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (RSVP) TableName() string {
	return "rsvps"
}
