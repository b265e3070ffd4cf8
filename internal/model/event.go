package model

import "time"

// DateLayout 事件日期格式，TimeLayout 时间格式（定长，字典序即时间序）
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type Event struct {
	ID          uint64    `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"size:2000;not null" json:"description"`
	Date        time.Time `gorm:"type:date;not null;index:idx_event_date_time,priority:1" json:"date"`
	Time        string    `gorm:"size:5;not null;index:idx_event_date_time,priority:2" json:"time"`
	Location    string    `gorm:"size:300;not null" json:"location"`
	Category    string    `gorm:"size:100;not null;index" json:"category"`
	UserID      uint64    `gorm:"not null;index" json:"user_id"`
	User        *User     `gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT" json:"-"`
	Version     int64     `gorm:"not null;default:1" json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Event) TableName() string {
	return "events"
}

// DateString 按 DateLayout 输出日期
func (e *Event) DateString() string {
	return e.Date.Format(DateLayout)
}
