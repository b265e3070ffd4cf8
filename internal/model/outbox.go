package model

import "time"

const (
	OutboxPending int8 = 0
	OutboxSent    int8 = 1
	OutboxFailed  int8 = 2
)

const OutboxRSVPCreated = "rsvp.created"

// NotificationOutbox 通知投递事件表，与通知在同一事务内写入
type NotificationOutbox struct {
	ID          uint64 `gorm:"primaryKey"`
	EventType   string `gorm:"size:32;not null"`
	AggregateID uint64 `gorm:"not null"` // notification id
	RecipientID uint64 `gorm:"not null;index"`
	Payload     string `gorm:"type:text;not null"`
	Status      int8   `gorm:"not null;default:0;index;comment:'0=pending,1=sent,2=failed'"`
	Retry       int    `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (NotificationOutbox) TableName() string { return "notification_outbox" }

// OutboxPayload outbox 中 Payload 字段的 JSON 结构
type OutboxPayload struct {
	NotificationID uint64 `json:"notification_id"`
	RecipientID    uint64 `json:"recipient_id"`
	RecipientEmail string `json:"recipient_email"`
	EventID        uint64 `json:"event_id"`
	EventTitle     string `json:"event_title"`
	ActorID        uint64 `json:"actor_id"`
	Message        string `json:"message"`
	EventTime      string `json:"event_time"`
}
