package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"TownSquare/internal/model"
	"TownSquare/internal/repository/mysql"
	"TownSquare/internal/repository/redis"
	"TownSquare/internal/weather"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := mysql.InitDB("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	if err := mysql.Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func newUser(t *testing.T, db *gorm.DB, name string, role model.Role) Caller {
	t.Helper()
	u := &model.User{Email: name + "@example.com", FullName: name, Password: "x", Role: role}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return Caller{ID: u.ID, Role: u.Role, Name: u.FullName}
}

func eventInput(title, date, tod, category string) EventInput {
	return EventInput{
		Title:       title,
		Description: "About " + title,
		Date:        date,
		Time:        tod,
		Location:    "Main Square",
		Category:    category,
	}
}

func mustCreate(t *testing.T, s *EventService, c Caller, in EventInput) *model.Event {
	t.Helper()
	e, err := s.Create(context.Background(), c, in)
	if err != nil {
		t.Fatalf("Create(%q) error = %v", in.Title, err)
	}
	return e
}

func mustDate(s string) *time.Time {
	d, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return &d
}

// stubForecaster 记录调用次数，ok=false 时模拟天气服务不可用
type stubForecaster struct {
	forecast *weather.Forecast
	ok       bool
	calls    int
}

func (f *stubForecaster) Forecast(ctx context.Context, date time.Time) (*weather.Forecast, bool) {
	f.calls++
	if !f.ok {
		return nil, false
	}
	return f.forecast, true
}

type fixture struct {
	db     *gorm.DB
	events *EventService
	rsvps  *RSVPService
	notify *NotificationService
	fc     *stubForecaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	_, client := newTestRedis(t)
	cache := redis.NewUnreadCacheRepository(client)
	logger := zap.NewNop()
	fc := &stubForecaster{}
	return &fixture{
		db:     db,
		events: NewEventService(db, fc, logger),
		rsvps:  NewRSVPService(db, cache, logger),
		notify: NewNotificationService(db, cache, logger),
		fc:     fc,
	}
}
