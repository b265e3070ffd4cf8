package model

import "time"

const NotificationMessageMax = 500

type Notification struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	UserID    uint64    `gorm:"not null;index:idx_notify_user_read,priority:1" json:"user_id"`
	Message   string    `gorm:"size:500;not null" json:"message"`
	EventID   *uint64   `gorm:"index" json:"event_id,omitempty"`
	Event     *Event    `gorm:"foreignKey:EventID;constraint:OnDelete:SET NULL" json:"event,omitempty"`
	IsRead    bool      `gorm:"not null;default:false;index:idx_notify_user_read,priority:2" json:"is_read"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
