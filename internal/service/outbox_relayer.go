package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"TownSquare/internal/model"
	"TownSquare/internal/pkg"
	"TownSquare/internal/repository/mysql"
)

type Sender func(ctx context.Context, ob *model.NotificationOutbox) error

// OutboxRelayer 从 outbox 表读取通知事件，交给 sender 投递（至少一次）
type OutboxRelayer struct {
	repo      *mysql.OutboxRepository
	batchSize int
	maxRetry  int
	interval  time.Duration
	sender    Sender
	logger    *zap.Logger
}

func NewOutboxRelayer(db *gorm.DB, sender Sender, batchSize, maxRetry int, interval time.Duration, logger *zap.Logger) *OutboxRelayer {
	if batchSize <= 0 {
		batchSize = 200
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &OutboxRelayer{
		repo:      &mysql.OutboxRepository{DB: db},
		batchSize: batchSize,
		maxRetry:  maxRetry,
		interval:  interval,
		sender:    sender,
		logger:    logger.Named("outbox"),
	}
}

// Run outbox启动器
func (r *OutboxRelayer) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.drainOnce(ctx)
		}
	}
}

// drainOnce 投递一批，返回成功条数
func (r *OutboxRelayer) drainOnce(ctx context.Context) int {
	rows, err := r.repo.List(ctx, r.batchSize, r.maxRetry)
	if err != nil {
		r.logger.Error("outbox query failed", zap.Error(err))
		return 0
	}
	sent := 0
	for i := range rows {
		ob := rows[i]
		if err := r.sender(ctx, &ob); err != nil {
			r.logger.Warn("outbox send failed", zap.Uint64("outbox_id", ob.ID), zap.Int("retry", ob.Retry+1), zap.Error(err))
			if err := r.repo.RetryUpdate(ctx, ob.ID); err != nil {
				r.logger.Error("outbox retry update failed", zap.Uint64("outbox_id", ob.ID), zap.Error(err))
			}
			continue
		}
		if err := r.repo.SuccessUpdate(ctx, ob.ID); err != nil {
			r.logger.Error("outbox success update failed", zap.Uint64("outbox_id", ob.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

// StartPurge 按 cron 表达式清理已投递的旧记录，ctx 结束时停止
func (r *OutboxRelayer) StartPurge(ctx context.Context, cronExpr string, retention time.Duration) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(cronExpr, func() {
		r.purge(ctx, time.Now().Add(-retention))
	})
	if err != nil {
		return nil, fmt.Errorf("invalid purge cron %q: %w", cronExpr, err)
	}
	c.Start()
	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return c, nil
}

func (r *OutboxRelayer) purge(ctx context.Context, before time.Time) int64 {
	n, err := r.repo.PurgeSent(ctx, before)
	if err != nil {
		r.logger.Error("outbox purge failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		r.logger.Info("outbox purged", zap.Int64("rows", n))
	}
	return n
}

// LogSender 没有配置 Kafka / SMTP 时使用
func LogSender(logger *zap.Logger) Sender {
	return func(ctx context.Context, ob *model.NotificationOutbox) error {
		logger.Info("outbox send",
			zap.String("type", ob.EventType),
			zap.Uint64("recipient_id", ob.RecipientID),
			zap.String("payload", ob.Payload))
		return nil
	}
}

// MessageProducer 由 pkg.KafkaProducer 实现
type MessageProducer interface {
	Send(ctx context.Context, key string, value []byte, headers ...kafka.Header) error
}

// KafkaSender 以收件人 id 作为 key 投递到 kafka
func KafkaSender(p MessageProducer) Sender {
	return func(ctx context.Context, ob *model.NotificationOutbox) error {
		return p.Send(ctx, pkg.MakeKeyFromID(ob.RecipientID), []byte(ob.Payload),
			kafka.Header{Key: "event_type", Value: []byte(ob.EventType)})
	}
}

// MailFunc 签名同 pkg.SendEmail
type MailFunc func(cfg pkg.SMTPConfig, to, subject, htmlBody string) error

// EmailSender 给收件人发通知邮件，没有邮箱的直接跳过
func EmailSender(cfg pkg.SMTPConfig, send MailFunc) Sender {
	return func(ctx context.Context, ob *model.NotificationOutbox) error {
		var p model.OutboxPayload
		if err := json.Unmarshal([]byte(ob.Payload), &p); err != nil {
			return fmt.Errorf("decode outbox payload: %w", err)
		}
		if p.RecipientEmail == "" {
			return nil
		}
		return send(cfg, p.RecipientEmail, "New RSVP: "+p.EventTitle, pkg.NotificationHTML(p.EventTitle, p.Message))
	}
}

// MultiSender 依次调用，任一失败整体重试
func MultiSender(senders ...Sender) Sender {
	return func(ctx context.Context, ob *model.NotificationOutbox) error {
		for _, s := range senders {
			if err := s(ctx, ob); err != nil {
				return err
			}
		}
		return nil
	}
}
