package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"TownSquare/internal/model"
	"TownSquare/internal/pkg"
)

type recordingProducer struct {
	keys    []string
	values  [][]byte
	headers [][]kafka.Header
	err     error
}

func (p *recordingProducer) Send(ctx context.Context, key string, value []byte, headers ...kafka.Header) error {
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, key)
	p.values = append(p.values, value)
	p.headers = append(p.headers, headers)
	return nil
}

func outboxRows(t *testing.T, f *fixture) []model.NotificationOutbox {
	t.Helper()
	var rows []model.NotificationOutbox
	if err := f.db.Order("id ASC").Find(&rows).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	return rows
}

func TestOutboxRelayerDrain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := newUser(t, f.db, "Owner", model.RoleUser)
	guest := newUser(t, f.db, "Guest", model.RoleUser)
	e := mustCreate(t, f.events, owner, eventInput("Gig", "2025-12-01", "20:00", "Music"))
	f.rsvps.RSVP(ctx, guest, e.ID)

	producer := &recordingProducer{err: errors.New("broker down")}
	relayer := NewOutboxRelayer(f.db, KafkaSender(producer), 10, 2, time.Millisecond, zap.NewNop())

	if sent := relayer.drainOnce(ctx); sent != 0 {
		t.Fatalf("drainOnce() sent %d with failing sender", sent)
	}
	rows := outboxRows(t, f)
	if rows[0].Status != model.OutboxFailed || rows[0].Retry != 1 {
		t.Fatalf("after failure status %d retry %d", rows[0].Status, rows[0].Retry)
	}

	producer.err = nil
	if sent := relayer.drainOnce(ctx); sent != 1 {
		t.Fatalf("drainOnce() sent %d, want 1", sent)
	}
	rows = outboxRows(t, f)
	if rows[0].Status != model.OutboxSent {
		t.Errorf("status = %d, want sent", rows[0].Status)
	}
	if len(producer.keys) != 1 || producer.keys[0] != pkg.MakeKeyFromID(owner.ID) {
		t.Errorf("kafka keys = %v", producer.keys)
	}
	if h := producer.headers[0]; len(h) != 1 || string(h[0].Value) != model.OutboxRSVPCreated {
		t.Errorf("kafka headers = %+v", h)
	}

	if sent := relayer.drainOnce(ctx); sent != 0 {
		t.Errorf("sent rows delivered again: %d", sent)
	}
}

func TestOutboxRelayerGivesUpAfterMaxRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.db.Create(&model.NotificationOutbox{EventType: model.OutboxRSVPCreated, Payload: "{}"})

	calls := 0
	failing := func(ctx context.Context, ob *model.NotificationOutbox) error {
		calls++
		return errors.New("nope")
	}
	relayer := NewOutboxRelayer(f.db, failing, 10, 3, time.Millisecond, zap.NewNop())
	for i := 0; i < 5; i++ {
		relayer.drainOnce(ctx)
	}
	if calls != 3 {
		t.Errorf("sender called %d times, want 3", calls)
	}
	if rows := outboxRows(t, f); rows[0].Retry != 3 {
		t.Errorf("retry = %d, want 3", rows[0].Retry)
	}
}

func TestOutboxRelayerRunStops(t *testing.T) {
	f := newFixture(t)
	f.db.Create(&model.NotificationOutbox{EventType: model.OutboxRSVPCreated, Payload: "{}"})

	delivered := make(chan struct{}, 1)
	sender := func(ctx context.Context, ob *model.NotificationOutbox) error {
		select {
		case delivered <- struct{}{}:
		default:
		}
		return nil
	}
	relayer := NewOutboxRelayer(f.db, sender, 10, 3, 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relayer.Run(ctx)
		close(done)
	}()

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("relayer did not deliver")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestOutboxPurge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := model.NotificationOutbox{EventType: "t", Payload: "{}", Status: model.OutboxSent}
	pending := model.NotificationOutbox{EventType: "t", Payload: "{}"}
	f.db.Create(&old)
	f.db.Create(&pending)
	f.db.Model(&old).UpdateColumn("updated_at", time.Now().Add(-10*24*time.Hour))

	relayer := NewOutboxRelayer(f.db, LogSender(zap.NewNop()), 10, 3, time.Second, zap.NewNop())
	if n := relayer.purge(ctx, time.Now().Add(-7*24*time.Hour)); n != 1 {
		t.Errorf("purge() removed %d rows, want 1", n)
	}
	if rows := outboxRows(t, f); len(rows) != 1 || rows[0].ID != pending.ID {
		t.Errorf("remaining rows = %+v", rows)
	}

	if _, err := relayer.StartPurge(ctx, "not a cron", time.Hour); err == nil {
		t.Error("StartPurge() with invalid expression error = nil")
	}
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c, err := relayer.StartPurge(cctx, "0 3 * * *", 7*24*time.Hour)
	if err != nil {
		t.Fatalf("StartPurge() error = %v", err)
	}
	if len(c.Entries()) != 1 {
		t.Errorf("cron entries = %d, want 1", len(c.Entries()))
	}
}

func TestEmailSender(t *testing.T) {
	type mail struct{ to, subject, body string }
	var sent []mail
	send := func(cfg pkg.SMTPConfig, to, subject, body string) error {
		sent = append(sent, mail{to, subject, body})
		return nil
	}
	sender := EmailSender(pkg.SMTPConfig{Host: "smtp.example.com"}, send)

	payload, _ := json.Marshal(model.OutboxPayload{
		RecipientEmail: "owner@example.com",
		EventTitle:     "Gig",
		Message:        `Bob RSVP'd to your event "Gig"`,
	})
	if err := sender(context.Background(), &model.NotificationOutbox{Payload: string(payload)}); err != nil {
		t.Fatalf("sender() error = %v", err)
	}
	if len(sent) != 1 || sent[0].to != "owner@example.com" || sent[0].subject != "New RSVP: Gig" {
		t.Fatalf("sent = %+v", sent)
	}

	noEmail, _ := json.Marshal(model.OutboxPayload{EventTitle: "Gig"})
	if err := sender(context.Background(), &model.NotificationOutbox{Payload: string(noEmail)}); err != nil {
		t.Errorf("sender() without email error = %v", err)
	}
	if len(sent) != 1 {
		t.Errorf("mail sent without recipient")
	}

	if err := sender(context.Background(), &model.NotificationOutbox{Payload: "not json"}); err == nil {
		t.Error("sender() with bad payload error = nil")
	}
}

func TestMultiSender(t *testing.T) {
	var order []string
	ok := func(name string) Sender {
		return func(ctx context.Context, ob *model.NotificationOutbox) error {
			order = append(order, name)
			return nil
		}
	}
	boom := func(ctx context.Context, ob *model.NotificationOutbox) error { return errors.New("boom") }

	if err := MultiSender(ok("a"), ok("b"))(context.Background(), &model.NotificationOutbox{}); err != nil {
		t.Fatalf("MultiSender() error = %v", err)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("order = %v", order)
	}
	if err := MultiSender(ok("c"), boom, ok("d"))(context.Background(), &model.NotificationOutbox{}); err == nil {
		t.Error("MultiSender() error = nil, want boom")
	}
	if order[len(order)-1] != "c" {
		t.Errorf("sender after failure was called: %v", order)
	}
}
