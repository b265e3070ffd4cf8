package mysql

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"TownSquare/internal/model"
)

type RSVPRepository struct {
	DB *gorm.DB
}

// Notice 报名成功后需要发给事件拥有者的通知
type Notice struct {
	Notification *model.Notification
	Payload      model.OutboxPayload
}

// Attend 幂等报名：(event_id, user_id) 冲突时 DoNothing，返回是否新插入。
// 只有新插入时才写通知和 outbox，三者同一事务。
func (r *RSVPRepository) Attend(ctx context.Context, eventID, userID uint64, notice *Notice) (bool, error) {
	var changed bool
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).Create(&model.RSVP{EventID: eventID, UserID: userID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		changed = true
		if notice == nil {
			return nil
		}

		if err := tx.Create(notice.Notification).Error; err != nil {
			return err
		}
		return insertOutbox(tx, notice)
	})
	return changed, err
}

// 插入outbox事件表
func insertOutbox(tx *gorm.DB, notice *Notice) error {
	p := notice.Payload
	p.NotificationID = notice.Notification.ID
	p.EventTime = time.Now().UTC().Format(time.RFC3339Nano)
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	ob := &model.NotificationOutbox{
		EventType:   model.OutboxRSVPCreated,
		AggregateID: notice.Notification.ID,
		RecipientID: notice.Notification.UserID,
		Payload:     string(payload),
		Status:      model.OutboxPending,
	}
	return tx.Create(ob).Error
}

// Cancel 取消报名，未报名时 changed=false
func (r *RSVPRepository) Cancel(ctx context.Context, eventID, userID uint64) (bool, error) {
	res := r.DB.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Delete(&model.RSVP{})
	return res.RowsAffected > 0, res.Error
}

func (r *RSVPRepository) IsAttending(ctx context.Context, eventID, userID uint64) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.RSVP{}).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Count(&n).Error
	return n > 0, err
}

func (r *RSVPRepository) CountByEvent(ctx context.Context, eventID uint64) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.RSVP{}).
		Where("event_id = ?", eventID).
		Count(&n).Error
	return n, err
}

type rsvpCount struct {
	EventID uint64
	Cnt     int64
}

// Counts 按事件分组统计报名数，没有报名的事件不在 map 中
func (r *RSVPRepository) Counts(ctx context.Context, eventIDs []uint64) (map[uint64]int64, error) {
	out := make(map[uint64]int64, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}
	var rows []rsvpCount
	if err := r.DB.WithContext(ctx).Model(&model.RSVP{}).
		Select("event_id, COUNT(*) AS cnt").
		Where("event_id IN ?", eventIDs).
		Group("event_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.EventID] = row.Cnt
	}
	return out, nil
}

// Attendees 报名用户，按报名先后
func (r *RSVPRepository) Attendees(ctx context.Context, eventID uint64) ([]model.User, error) {
	var users []model.User
	err := r.DB.WithContext(ctx).Model(&model.User{}).
		Joins("JOIN rsvps ON rsvps.user_id = users.id").
		Where("rsvps.event_id = ?", eventID).
		Order("rsvps.created_at ASC, rsvps.id ASC").
		Find(&users).Error
	return users, err
}
