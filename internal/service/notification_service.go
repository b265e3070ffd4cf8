package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"TownSquare/internal/model"
	"TownSquare/internal/repository/mysql"
	"TownSquare/internal/repository/redis"
)

type NotificationService struct {
	repo        *mysql.NotificationRepository
	unreadCache *redis.UnreadCacheRepository
	logger      *zap.Logger
}

func NewNotificationService(db *gorm.DB, unreadCache *redis.UnreadCacheRepository, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		repo:        &mysql.NotificationRepository{DB: db},
		unreadCache: unreadCache,
		logger:      logger.Named("notification"),
	}
}

func (s *NotificationService) List(ctx context.Context, caller Caller) ([]model.Notification, error) {
	if !caller.Authenticated() {
		return nil, ErrUnauthenticated
	}
	list, err := s.repo.ListByUser(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	if list == nil {
		list = []model.Notification{}
	}
	return list, nil
}

// MarkAsRead 只能标记自己的通知；不存在或不属于自己时什么都不做
func (s *NotificationService) MarkAsRead(ctx context.Context, caller Caller, id uint64) error {
	if !caller.Authenticated() {
		return ErrUnauthenticated
	}
	affected, err := s.repo.MarkRead(ctx, id, caller.ID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if affected > 0 {
		s.invalidate(ctx, caller.ID)
	}
	return nil
}

// MarkAllAsRead 返回本次标记的条数
func (s *NotificationService) MarkAllAsRead(ctx context.Context, caller Caller) (int64, error) {
	if !caller.Authenticated() {
		return 0, ErrUnauthenticated
	}
	affected, err := s.repo.MarkAllRead(ctx, caller.ID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	if affected > 0 {
		s.invalidate(ctx, caller.ID)
	}
	return affected, nil
}

// UnreadCount 角标用，匿名用户为 0。先读缓存，miss 回源再回填
func (s *NotificationService) UnreadCount(ctx context.Context, caller Caller) (int64, error) {
	if !caller.Authenticated() {
		return 0, nil
	}
	if s.unreadCache != nil {
		if v, ok, err := s.unreadCache.Get(ctx, caller.ID); err == nil && ok {
			return v, nil
		} else if err != nil {
			s.logger.Warn("read unread cache failed", zap.Uint64("user_id", caller.ID), zap.Error(err))
		}
	}

	n, err := s.repo.CountUnread(ctx, caller.ID)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	if s.unreadCache != nil {
		if err := s.unreadCache.Set(ctx, caller.ID, n); err != nil {
			s.logger.Warn("write unread cache failed", zap.Uint64("user_id", caller.ID), zap.Error(err))
		}
	}
	return n, nil
}

func (s *NotificationService) invalidate(ctx context.Context, userID uint64) {
	if s.unreadCache == nil {
		return
	}
	if err := s.unreadCache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("invalidate unread cache failed", zap.Uint64("user_id", userID), zap.Error(err))
	}
}
