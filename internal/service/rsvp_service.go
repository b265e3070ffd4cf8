package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"TownSquare/internal/model"
	"TownSquare/internal/repository/mysql"
	"TownSquare/internal/repository/redis"
)

type RSVPService struct {
	repo        *mysql.RSVPRepository
	eventRepo   *mysql.EventRepository
	userRepo    *mysql.UserRepository
	unreadCache *redis.UnreadCacheRepository
	logger      *zap.Logger
}

func NewRSVPService(db *gorm.DB, unreadCache *redis.UnreadCacheRepository, logger *zap.Logger) *RSVPService {
	return &RSVPService{
		repo:        &mysql.RSVPRepository{DB: db},
		eventRepo:   &mysql.EventRepository{DB: db},
		userRepo:    &mysql.UserRepository{DB: db},
		unreadCache: unreadCache,
		logger:      logger.Named("rsvp"),
	}
}

// RSVPMessage 通知拥有者的文案，超长截断
func RSVPMessage(attendee, title string) string {
	msg := fmt.Sprintf("%s RSVP'd to your event \"%s\"", attendee, title)
	r := []rune(msg)
	if len(r) > model.NotificationMessageMax {
		msg = string(r[:model.NotificationMessageMax])
	}
	return msg
}

// RSVP 幂等报名，返回是否首次报名。首次报名且不是拥有者本人时给拥有者发一条通知。
func (s *RSVPService) RSVP(ctx context.Context, caller Caller, eventID uint64) (bool, error) {
	if !caller.Authenticated() {
		return false, ErrUnauthenticated
	}
	e, err := s.eventRepo.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("find event: %w", err)
	}

	var notice *mysql.Notice
	if caller.ID != e.UserID {
		notice, err = s.buildNotice(ctx, caller, e)
		if err != nil {
			return false, err
		}
	}

	changed, err := s.repo.Attend(ctx, eventID, caller.ID, notice)
	if err != nil {
		return false, fmt.Errorf("rsvp: %w", err)
	}
	if changed {
		s.logger.Info("rsvp created", zap.Uint64("event_id", eventID), zap.Uint64("user_id", caller.ID))
		if notice != nil {
			s.invalidateUnread(ctx, e.UserID)
		}
	}
	return changed, nil
}

// CancelRSVP 取消报名，未报名时直接成功
func (s *RSVPService) CancelRSVP(ctx context.Context, caller Caller, eventID uint64) (bool, error) {
	if !caller.Authenticated() {
		return false, ErrUnauthenticated
	}
	changed, err := s.repo.Cancel(ctx, eventID, caller.ID)
	if err != nil {
		return false, fmt.Errorf("cancel rsvp: %w", err)
	}
	if changed {
		s.logger.Info("rsvp cancelled", zap.Uint64("event_id", eventID), zap.Uint64("user_id", caller.ID))
	}
	return changed, nil
}

func (s *RSVPService) buildNotice(ctx context.Context, caller Caller, e *model.Event) (*mysql.Notice, error) {
	name := caller.Name
	if name == "" {
		u, err := s.userRepo.FindByID(ctx, caller.ID)
		if err != nil {
			return nil, fmt.Errorf("find caller: %w", err)
		}
		name = u.FullName
	}

	eventID := e.ID
	msg := RSVPMessage(name, e.Title)
	payload := model.OutboxPayload{
		RecipientID: e.UserID,
		EventID:     e.ID,
		EventTitle:  e.Title,
		ActorID:     caller.ID,
		Message:     msg,
	}
	if e.User != nil {
		payload.RecipientEmail = e.User.Email
	}
	return &mysql.Notice{
		Notification: &model.Notification{
			UserID:  e.UserID,
			Message: msg,
			EventID: &eventID,
		},
		Payload: payload,
	}, nil
}

func (s *RSVPService) invalidateUnread(ctx context.Context, userID uint64) {
	if s.unreadCache == nil {
		return
	}
	if err := s.unreadCache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("invalidate unread cache failed", zap.Uint64("user_id", userID), zap.Error(err))
	}
}
