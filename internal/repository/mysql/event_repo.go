package mysql

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"TownSquare/internal/model"
)

type EventRepository struct {
	DB *gorm.DB
}

// EventFilter 列表过滤条件，零值表示不过滤
type EventFilter struct {
	Keyword   string
	Category  string
	StartDate *time.Time
	EndDate   *time.Time
}

const likeEscape = "!"

// escapeLike 转义 LIKE 通配符，配合 ESCAPE '!' 使用
func escapeLike(s string) string {
	r := strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")
	return r.Replace(s)
}

func (r *EventRepository) Create(ctx context.Context, e *model.Event) error {
	return r.DB.WithContext(ctx).Create(e).Error
}

func (r *EventRepository) FindByID(ctx context.Context, id uint64) (*model.Event, error) {
	var e model.Event
	err := r.DB.WithContext(ctx).Preload("User").First(&e, id).Error
	return &e, err
}

func (r *EventRepository) Exists(ctx context.Context, id uint64) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Event{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// List 按条件过滤，日期、时间升序
func (r *EventRepository) List(ctx context.Context, f EventFilter) ([]model.Event, error) {
	q := r.DB.WithContext(ctx).Preload("User")
	if f.Keyword != "" {
		kw := "%" + escapeLike(f.Keyword) + "%"
		q = q.Where("(title LIKE ? ESCAPE '!' OR description LIKE ? ESCAPE '!' OR location LIKE ? ESCAPE '!')", kw, kw, kw)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.StartDate != nil {
		q = q.Where("date >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		q = q.Where("date <= ?", *f.EndDate)
	}
	var list []model.Event
	err := q.Order("date ASC, time ASC, id ASC").Find(&list).Error
	return list, err
}

// Categories 全部事件的去重分类（不受过滤影响）
func (r *EventRepository) Categories(ctx context.Context) ([]string, error) {
	var cats []string
	err := r.DB.WithContext(ctx).Model(&model.Event{}).
		Distinct("category").
		Order("category ASC").
		Pluck("category", &cats).Error
	return cats, err
}

// Upcoming from 当天及之后的前 limit 个事件
func (r *EventRepository) Upcoming(ctx context.Context, from time.Time, limit int) ([]model.Event, error) {
	var list []model.Event
	err := r.DB.WithContext(ctx).Preload("User").
		Where("date >= ?", from).
		Order("date ASC, time ASC, id ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

func (r *EventRepository) ListByOwner(ctx context.Context, userID uint64) ([]model.Event, error) {
	var list []model.Event
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date ASC, time ASC, id ASC").
		Find(&list).Error
	return list, err
}

// UpdateVersioned 乐观锁更新：version 不匹配或记录已删除时 affected=0
func (r *EventRepository) UpdateVersioned(ctx context.Context, e *model.Event) (int64, error) {
	tx := r.DB.WithContext(ctx).Model(&model.Event{}).
		Where("id = ? AND version = ?", e.ID, e.Version).
		Updates(map[string]any{
			"title":       e.Title,
			"description": e.Description,
			"date":        e.Date,
			"time":        e.Time,
			"location":    e.Location,
			"category":    e.Category,
			"version":     gorm.Expr("version + 1"),
			"updated_at":  time.Now(),
		})
	if tx.Error != nil {
		return 0, tx.Error
	}
	if tx.RowsAffected > 0 {
		e.Version++
	}
	return tx.RowsAffected, nil
}

// Delete 硬删除：先清掉报名、解除通知关联，再删事件
func (r *EventRepository) Delete(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", id).Delete(&model.RSVP{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Notification{}).
			Where("event_id = ?", id).
			Update("event_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Event{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
