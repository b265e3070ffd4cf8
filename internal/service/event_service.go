package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"TownSquare/internal/model"
	"TownSquare/internal/repository/mysql"
	"TownSquare/internal/weather"
)

const upcomingLimit = 10

// Forecaster 天气查询，拿不到时返回 false
type Forecaster interface {
	Forecast(ctx context.Context, date time.Time) (*weather.Forecast, bool)
}

type EventService struct {
	repo     *mysql.EventRepository
	rsvpRepo *mysql.RSVPRepository
	userRepo *mysql.UserRepository
	forecast Forecaster
	logger   *zap.Logger
}

func NewEventService(db *gorm.DB, forecast Forecaster, logger *zap.Logger) *EventService {
	return &EventService{
		repo:     &mysql.EventRepository{DB: db},
		rsvpRepo: &mysql.RSVPRepository{DB: db},
		userRepo: &mysql.UserRepository{DB: db},
		forecast: forecast,
		logger:   logger.Named("event"),
	}
}

// EventInput 创建/编辑表单
type EventInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=2000"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Time        string `json:"time" validate:"required,timeofday"`
	Location    string `json:"location" validate:"required,max=300"`
	Category    string `json:"category" validate:"required,max=100"`
	// Version 可选，编辑时带上则必须与库中一致
	Version int64 `json:"version,omitempty"`
}

func (in *EventInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Date = strings.TrimSpace(in.Date)
	in.Time = strings.TrimSpace(in.Time)
	in.Location = strings.TrimSpace(in.Location)
	in.Category = strings.TrimSpace(in.Category)
}

// apply 校验通过后写入 model
func (in *EventInput) apply(e *model.Event) error {
	date, err := time.Parse(model.DateLayout, in.Date)
	if err != nil {
		return err
	}
	tod, err := parseTimeOfDay(in.Time)
	if err != nil {
		return err
	}
	e.Title = in.Title
	e.Description = in.Description
	e.Date = date
	e.Time = tod
	e.Location = in.Location
	e.Category = in.Category
	return nil
}

type EventView struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Location    string    `json:"location"`
	Category    string    `json:"category"`
	OwnerID     uint64    `json:"owner_id"`
	OwnerName   string    `json:"owner_name"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
}

func newEventView(e *model.Event) EventView {
	v := EventView{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Date:        e.DateString(),
		Time:        e.Time,
		Location:    e.Location,
		Category:    e.Category,
		OwnerID:     e.UserID,
		Version:     e.Version,
		CreatedAt:   e.CreatedAt,
	}
	if e.User != nil {
		v.OwnerName = e.User.FullName
	}
	return v
}

type EventSummary struct {
	EventView
	RSVPCount int64 `json:"rsvp_count"`
}

type ListFilter struct {
	Keyword   string     `json:"keyword,omitempty"`
	Category  string     `json:"category,omitempty"`
	StartDate *time.Time `json:"-"`
	EndDate   *time.Time `json:"-"`
}

type ListResult struct {
	Events     []EventSummary `json:"events"`
	Categories []string       `json:"categories"`
	Keyword    string         `json:"keyword,omitempty"`
	Category   string         `json:"category,omitempty"`
	StartDate  string         `json:"start_date,omitempty"`
	EndDate    string         `json:"end_date,omitempty"`
}

type Attendee struct {
	ID       uint64 `json:"id"`
	FullName string `json:"full_name"`
}

type DetailResult struct {
	Event            EventView         `json:"event"`
	RSVPCount        int64             `json:"rsvp_count"`
	Attendees        []Attendee        `json:"attendees"`
	CurrentUserRSVPd bool              `json:"current_user_rsvpd"`
	IsAuthenticated  bool              `json:"is_authenticated"`
	CanManage        bool              `json:"can_manage"`
	Forecast         *weather.Forecast `json:"forecast"`
}

type ProfileResult struct {
	User          *model.User `json:"user"`
	CreatedEvents []EventView `json:"created_events"`
}

// List 过滤 + 排序 + 报名数 + 全部分类
func (s *EventService) List(ctx context.Context, f ListFilter) (*ListResult, error) {
	// 全空白的关键字视为未填写，否则按原样做子串匹配
	keyword := f.Keyword
	if strings.TrimSpace(keyword) == "" {
		keyword = ""
	}
	filter := mysql.EventFilter{
		Keyword:   keyword,
		Category:  strings.TrimSpace(f.Category),
		StartDate: f.StartDate,
		EndDate:   f.EndDate,
	}
	events, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	summaries, err := s.withCounts(ctx, events)
	if err != nil {
		return nil, err
	}
	cats, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if cats == nil {
		cats = []string{}
	}

	res := &ListResult{
		Events:     summaries,
		Categories: cats,
		Keyword:    filter.Keyword,
		Category:   filter.Category,
	}
	if f.StartDate != nil {
		res.StartDate = f.StartDate.Format(model.DateLayout)
	}
	if f.EndDate != nil {
		res.EndDate = f.EndDate.Format(model.DateLayout)
	}
	return res, nil
}

// Upcoming 首页：today 及之后最近的 10 个事件
func (s *EventService) Upcoming(ctx context.Context, today time.Time) ([]EventSummary, error) {
	from := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	events, err := s.repo.Upcoming(ctx, from, upcomingLimit)
	if err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	return s.withCounts(ctx, events)
}

func (s *EventService) withCounts(ctx context.Context, events []model.Event) ([]EventSummary, error) {
	ids := make([]uint64, 0, len(events))
	for i := range events {
		ids = append(ids, events[i].ID)
	}
	counts, err := s.rsvpRepo.Counts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("count rsvps: %w", err)
	}
	out := make([]EventSummary, 0, len(events))
	for i := range events {
		out = append(out, EventSummary{
			EventView: newEventView(&events[i]),
			RSVPCount: counts[events[i].ID],
		})
	}
	return out, nil
}

// Detail 事件详情，天气拿不到不算错误
func (s *EventService) Detail(ctx context.Context, caller Caller, id uint64) (*DetailResult, error) {
	e, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := s.rsvpRepo.CountByEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count rsvps: %w", err)
	}
	users, err := s.rsvpRepo.Attendees(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}

	res := &DetailResult{
		Event:           newEventView(e),
		RSVPCount:       count,
		Attendees:       make([]Attendee, 0, len(users)),
		IsAuthenticated: caller.Authenticated(),
		CanManage:       CanManage(caller, e.UserID),
	}
	for _, u := range users {
		res.Attendees = append(res.Attendees, Attendee{ID: u.ID, FullName: u.FullName})
		if u.ID == caller.ID && caller.Authenticated() {
			res.CurrentUserRSVPd = true
		}
	}

	if s.forecast != nil {
		if f, ok := s.forecast.Forecast(ctx, e.Date); ok {
			res.Forecast = f
		}
	}
	return res, nil
}

func (s *EventService) Create(ctx context.Context, caller Caller, in EventInput) (*model.Event, error) {
	if !caller.Authenticated() {
		return nil, ErrUnauthenticated
	}
	in.normalize()
	if err := validateStruct(&in); err != nil {
		return nil, err
	}

	e := &model.Event{UserID: caller.ID, Version: 1}
	if err := in.apply(e); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.logger.Info("event created", zap.Uint64("event_id", e.ID), zap.Uint64("owner_id", caller.ID))
	return e, nil
}

// EditForm 编辑前的权限检查并返回当前值
func (s *EventService) EditForm(ctx context.Context, caller Caller, id uint64) (*EventView, error) {
	e, err := s.authorize(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	v := newEventView(e)
	return &v, nil
}

// Update 乐观锁更新；更新时记录已被删除返回 ErrNotFound，其余冲突返回 ErrConcurrentUpdate
func (s *EventService) Update(ctx context.Context, caller Caller, id uint64, in EventInput) (*model.Event, error) {
	e, err := s.authorize(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	in.normalize()
	if err := validateStruct(&in); err != nil {
		return nil, err
	}
	if in.Version != 0 && in.Version != e.Version {
		return nil, ErrConcurrentUpdate
	}
	if err := in.apply(e); err != nil {
		return nil, err
	}

	affected, err := s.repo.UpdateVersioned(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	if affected == 0 {
		exists, err := s.repo.Exists(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("check event: %w", err)
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, ErrConcurrentUpdate
	}
	s.logger.Info("event updated", zap.Uint64("event_id", id), zap.Uint64("caller_id", caller.ID))
	return e, nil
}

func (s *EventService) Delete(ctx context.Context, caller Caller, id uint64) error {
	if _, err := s.authorize(ctx, caller, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete event: %w", err)
	}
	s.logger.Info("event deleted", zap.Uint64("event_id", id), zap.Uint64("caller_id", caller.ID))
	return nil
}

// Profile 当前用户信息及其创建的事件
func (s *EventService) Profile(ctx context.Context, caller Caller) (*ProfileResult, error) {
	if !caller.Authenticated() {
		return nil, ErrUnauthenticated
	}
	user, err := s.userRepo.FindByID(ctx, caller.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	events, err := s.repo.ListByOwner(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("list owned events: %w", err)
	}
	views := make([]EventView, 0, len(events))
	for i := range events {
		events[i].User = user
		views = append(views, newEventView(&events[i]))
	}
	return &ProfileResult{User: user, CreatedEvents: views}, nil
}

func (s *EventService) find(ctx context.Context, id uint64) (*model.Event, error) {
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find event: %w", err)
	}
	return e, nil
}

// authorize 先判断存在再判断权限：不存在一律 NotFound
func (s *EventService) authorize(ctx context.Context, caller Caller, id uint64) (*model.Event, error) {
	e, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanManage(caller, e.UserID) {
		return nil, ErrForbidden
	}
	return e, nil
}
