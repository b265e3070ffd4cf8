package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"TownSquare/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := InitDB("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func day(s string) time.Time {
	d, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func mustUser(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()
	u := &model.User{Email: email, FullName: email, Password: "x", Role: model.RoleUser}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func mustEvent(t *testing.T, db *gorm.DB, owner uint64, title, date, tod, category string) *model.Event {
	t.Helper()
	e := &model.Event{
		Title:       title,
		Description: title + " description",
		Date:        day(date),
		Time:        tod,
		Location:    "Town Hall",
		Category:    category,
		UserID:      owner,
		Version:     1,
	}
	if err := db.Create(e).Error; err != nil {
		t.Fatalf("create event: %v", err)
	}
	return e
}

func TestInitDBUnsupportedDriver(t *testing.T) {
	if _, err := InitDB("postgres", ""); err == nil {
		t.Fatal("InitDB(postgres) error = nil, want error")
	}
}

func TestEscapeLike(t *testing.T) {
	tests := map[string]string{
		"plain": "plain",
		"50%":   "50!%",
		"a_b":   "a!_b",
		"wow!":  "wow!!",
	}
	for in, want := range tests {
		if got := escapeLike(in); got != want {
			t.Errorf("escapeLike(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEventListFilterAndOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &EventRepository{DB: db}
	u := mustUser(t, db, "owner@example.com")

	late := mustEvent(t, db, u.ID, "Jazz night", "2025-12-01", "20:00", "Music")
	early := mustEvent(t, db, u.ID, "Choir", "2025-12-01", "09:30", "Music")
	mustEvent(t, db, u.ID, "Book swap", "2025-11-20", "12:00", "Books")
	mustEvent(t, db, u.ID, "100% fun", "2026-01-05", "18:00", "Party")

	start, end := day("2025-12-01"), day("2025-12-31")
	tests := []struct {
		name   string
		filter EventFilter
		want   []string
	}{
		{"all sorted by date and time", EventFilter{}, []string{"Book swap", "Choir", "Jazz night", "100% fun"}},
		{"category", EventFilter{Category: "Music"}, []string{"Choir", "Jazz night"}},
		{"keyword in title", EventFilter{Keyword: "jazz"}, []string{"Jazz night"}},
		{"keyword in location", EventFilter{Keyword: "Town Hall"}, []string{"Book swap", "Choir", "Jazz night", "100% fun"}},
		{"percent is literal", EventFilter{Keyword: "100%"}, []string{"100% fun"}},
		{"underscore is literal", EventFilter{Keyword: "_"}, nil},
		{"date range", EventFilter{StartDate: &start, EndDate: &end}, []string{"Choir", "Jazz night"}},
		{"intersection", EventFilter{Category: "Books", StartDate: &start}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("List() returned %d events, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Title != tt.want[i] {
					t.Errorf("List()[%d] = %q, want %q", i, got[i].Title, tt.want[i])
				}
			}
		})
	}

	list, _ := repo.List(ctx, EventFilter{Category: "Music"})
	if list[0].ID != early.ID || list[1].ID != late.ID {
		t.Errorf("same-day events not ordered by time")
	}
	if list[0].User == nil || list[0].User.Email != "owner@example.com" {
		t.Errorf("owner not preloaded")
	}

	cats, err := repo.Categories(ctx)
	if err != nil {
		t.Fatalf("Categories() error = %v", err)
	}
	want := []string{"Books", "Music", "Party"}
	if len(cats) != len(want) {
		t.Fatalf("Categories() = %v, want %v", cats, want)
	}
	for i := range want {
		if cats[i] != want[i] {
			t.Errorf("Categories() = %v, want %v", cats, want)
		}
	}
}

func TestEventUpcoming(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &EventRepository{DB: db}
	u := mustUser(t, db, "owner@example.com")

	mustEvent(t, db, u.ID, "past", "2025-01-01", "10:00", "Misc")
	for i := 1; i <= 12; i++ {
		mustEvent(t, db, u.ID, "future", day("2025-06-01").AddDate(0, 0, i).Format(model.DateLayout), "10:00", "Misc")
	}

	got, err := repo.Upcoming(ctx, day("2025-06-01"), 10)
	if err != nil {
		t.Fatalf("Upcoming() error = %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("Upcoming() returned %d, want 10", len(got))
	}
	if got[0].DateString() != "2025-06-02" {
		t.Errorf("Upcoming()[0] date = %s, want 2025-06-02", got[0].DateString())
	}
}

func TestEventUpdateVersioned(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &EventRepository{DB: db}
	u := mustUser(t, db, "owner@example.com")
	e := mustEvent(t, db, u.ID, "Old", "2025-12-01", "10:00", "Misc")

	stale := *e
	e.Title = "New"
	n, err := repo.UpdateVersioned(ctx, e)
	if err != nil || n != 1 {
		t.Fatalf("UpdateVersioned() = %d, %v; want 1, nil", n, err)
	}
	if e.Version != 2 {
		t.Errorf("Version = %d, want 2", e.Version)
	}

	stale.Title = "Lost update"
	n, err = repo.UpdateVersioned(ctx, &stale)
	if err != nil || n != 0 {
		t.Fatalf("stale UpdateVersioned() = %d, %v; want 0, nil", n, err)
	}

	got, _ := repo.FindByID(ctx, e.ID)
	if got.Title != "New" || got.Version != 2 {
		t.Errorf("stored event = %q v%d, want New v2", got.Title, got.Version)
	}
}

func TestEventDeleteCascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	events := &EventRepository{DB: db}
	rsvps := &RSVPRepository{DB: db}
	owner := mustUser(t, db, "owner@example.com")
	guest := mustUser(t, db, "guest@example.com")
	e := mustEvent(t, db, owner.ID, "Party", "2025-12-01", "10:00", "Party")

	eventID := e.ID
	notice := &Notice{Notification: &model.Notification{UserID: owner.ID, Message: "hi", EventID: &eventID}}
	if _, err := rsvps.Attend(ctx, e.ID, guest.ID, notice); err != nil {
		t.Fatalf("Attend() error = %v", err)
	}

	if err := events.Delete(ctx, e.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if ok, _ := events.Exists(ctx, e.ID); ok {
		t.Error("event still exists after delete")
	}
	if n, _ := rsvps.CountByEvent(ctx, e.ID); n != 0 {
		t.Errorf("rsvps left after delete = %d", n)
	}
	var notif model.Notification
	if err := db.First(&notif, notice.Notification.ID).Error; err != nil {
		t.Fatalf("notification removed with event: %v", err)
	}
	if notif.EventID != nil {
		t.Errorf("notification event_id = %v, want nil", *notif.EventID)
	}

	if err := events.Delete(ctx, e.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("second Delete() error = %v, want ErrRecordNotFound", err)
	}
}

func TestRSVPAttendIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &RSVPRepository{DB: db}
	owner := mustUser(t, db, "owner@example.com")
	guest := mustUser(t, db, "guest@example.com")
	e := mustEvent(t, db, owner.ID, "Party", "2025-12-01", "10:00", "Party")

	newNotice := func() *Notice {
		id := e.ID
		return &Notice{
			Notification: &model.Notification{UserID: owner.ID, Message: "guest RSVP'd", EventID: &id},
			Payload:      model.OutboxPayload{RecipientID: owner.ID, EventID: e.ID},
		}
	}

	for i, want := range []bool{true, false, false} {
		changed, err := repo.Attend(ctx, e.ID, guest.ID, newNotice())
		if err != nil {
			t.Fatalf("Attend() #%d error = %v", i, err)
		}
		if changed != want {
			t.Errorf("Attend() #%d changed = %v, want %v", i, changed, want)
		}
	}

	var rsvpCount, notifCount, outboxCount int64
	db.Model(&model.RSVP{}).Count(&rsvpCount)
	db.Model(&model.Notification{}).Count(&notifCount)
	db.Model(&model.NotificationOutbox{}).Count(&outboxCount)
	if rsvpCount != 1 || notifCount != 1 || outboxCount != 1 {
		t.Errorf("rows = rsvp %d, notification %d, outbox %d; want 1 each", rsvpCount, notifCount, outboxCount)
	}

	var ob model.NotificationOutbox
	db.First(&ob)
	if ob.EventType != model.OutboxRSVPCreated || ob.RecipientID != owner.ID || ob.Status != model.OutboxPending {
		t.Errorf("outbox row = %+v", ob)
	}

	counts, err := repo.Counts(ctx, []uint64{e.ID, e.ID + 100})
	if err != nil {
		t.Fatalf("Counts() error = %v", err)
	}
	if counts[e.ID] != 1 || counts[e.ID+100] != 0 {
		t.Errorf("Counts() = %v", counts)
	}

	changed, err := repo.Cancel(ctx, e.ID, guest.ID)
	if err != nil || !changed {
		t.Fatalf("Cancel() = %v, %v", changed, err)
	}
	changed, err = repo.Cancel(ctx, e.ID, guest.ID)
	if err != nil || changed {
		t.Errorf("second Cancel() = %v, %v; want false, nil", changed, err)
	}
}

func TestNotificationMarkRead(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &NotificationRepository{DB: db}
	a := mustUser(t, db, "a@example.com")
	b := mustUser(t, db, "b@example.com")

	mine := &model.Notification{UserID: a.ID, Message: "one"}
	theirs := &model.Notification{UserID: b.ID, Message: "two"}
	db.Create(mine)
	db.Create(&model.Notification{UserID: a.ID, Message: "three"})
	db.Create(theirs)

	if n, _ := repo.MarkRead(ctx, theirs.ID, a.ID); n != 0 {
		t.Errorf("MarkRead() on foreign notification affected %d rows", n)
	}
	if n, _ := repo.MarkRead(ctx, mine.ID, a.ID); n != 1 {
		t.Errorf("MarkRead() affected %d rows, want 1", n)
	}
	if n, _ := repo.CountUnread(ctx, a.ID); n != 1 {
		t.Errorf("CountUnread(a) = %d, want 1", n)
	}
	if n, _ := repo.MarkAllRead(ctx, a.ID); n != 1 {
		t.Errorf("MarkAllRead() affected %d, want 1", n)
	}
	if n, _ := repo.MarkAllRead(ctx, a.ID); n != 0 {
		t.Errorf("second MarkAllRead() affected %d, want 0", n)
	}
	if n, _ := repo.CountUnread(ctx, b.ID); n != 1 {
		t.Errorf("CountUnread(b) = %d, want 1", n)
	}

	list, err := repo.ListByUser(ctx, a.ID)
	if err != nil || len(list) != 2 {
		t.Fatalf("ListByUser() = %d, %v", len(list), err)
	}
	if list[0].Message != "three" {
		t.Errorf("ListByUser() not newest first: %q", list[0].Message)
	}
}

func TestOutboxListRetryPurge(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &OutboxRepository{DB: db}

	rows := []model.NotificationOutbox{
		{EventType: "t", Payload: "{}", Status: model.OutboxPending},
		{EventType: "t", Payload: "{}", Status: model.OutboxFailed, Retry: 2},
		{EventType: "t", Payload: "{}", Status: model.OutboxFailed, Retry: 5},
		{EventType: "t", Payload: "{}", Status: model.OutboxSent},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed outbox: %v", err)
	}

	list, err := repo.List(ctx, 10, 5)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != rows[0].ID || list[1].ID != rows[1].ID {
		t.Fatalf("List() = %+v, want pending and retryable rows", list)
	}

	if err := repo.RetryUpdate(ctx, rows[0].ID); err != nil {
		t.Fatalf("RetryUpdate() error = %v", err)
	}
	var got model.NotificationOutbox
	db.First(&got, rows[0].ID)
	if got.Status != model.OutboxFailed || got.Retry != 1 {
		t.Errorf("after RetryUpdate = status %d retry %d", got.Status, got.Retry)
	}

	if err := repo.SuccessUpdate(ctx, rows[1].ID); err != nil {
		t.Fatalf("SuccessUpdate() error = %v", err)
	}

	if n, _ := repo.PurgeSent(ctx, time.Now().Add(-time.Hour)); n != 0 {
		t.Errorf("PurgeSent(past) removed %d rows, want 0", n)
	}
	n, err := repo.PurgeSent(ctx, time.Now().Add(time.Hour))
	if err != nil || n != 2 {
		t.Errorf("PurgeSent(future) = %d, %v; want 2, nil", n, err)
	}
}

func TestUserEnsureByEmail(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &UserRepository{DB: db}

	u := &model.User{Email: "admin@example.com", FullName: "Admin", Password: "x", Role: model.RoleAdmin}
	created, err := repo.EnsureByEmail(ctx, u)
	if err != nil || !created {
		t.Fatalf("EnsureByEmail() = %v, %v; want true, nil", created, err)
	}
	again := &model.User{Email: "admin@example.com", FullName: "Other", Password: "y", Role: model.RoleUser}
	created, err = repo.EnsureByEmail(ctx, again)
	if err != nil || created {
		t.Fatalf("second EnsureByEmail() = %v, %v; want false, nil", created, err)
	}
	if again.ID != u.ID || again.Role != model.RoleAdmin {
		t.Errorf("EnsureByEmail() did not load existing user: %+v", again)
	}

	dup := &model.User{Email: "admin@example.com", FullName: "Dup", Password: "z", Role: model.RoleUser}
	if err := repo.Create(ctx, dup); !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Errorf("Create() duplicate error = %v, want ErrDuplicatedKey", err)
	}
}
