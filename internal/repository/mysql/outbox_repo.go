package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"

	"TownSquare/internal/model"
)

type OutboxRepository struct {
	DB *gorm.DB
}

// List 待投递和失败未超重试次数的记录
func (r *OutboxRepository) List(ctx context.Context, batchSize, maxRetry int) ([]model.NotificationOutbox, error) {
	var list []model.NotificationOutbox
	if err := r.DB.WithContext(ctx).
		Where("(status = ? OR (status = ? AND retry < ?))", model.OutboxPending, model.OutboxFailed, maxRetry).
		Order("id ASC").
		Limit(batchSize).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// RetryUpdate outbox记录消息失败重试
func (r *OutboxRepository) RetryUpdate(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.NotificationOutbox{}).Where("id = ?", id).
		Updates(map[string]any{"status": model.OutboxFailed, "retry": gorm.Expr("retry + 1")}).Error
}

// SuccessUpdate outbox成功记录消息更新
func (r *OutboxRepository) SuccessUpdate(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.NotificationOutbox{}).Where("id = ?", id).
		Update("status", model.OutboxSent).Error
}

// PurgeSent 清理 before 之前已投递的记录
func (r *OutboxRepository) PurgeSent(ctx context.Context, before time.Time) (int64, error) {
	tx := r.DB.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.OutboxSent, before).
		Delete(&model.NotificationOutbox{})
	return tx.RowsAffected, tx.Error
}
