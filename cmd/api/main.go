package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"TownSquare/internal/config"
	"TownSquare/internal/logger"
	"TownSquare/internal/pkg"
	"TownSquare/internal/repository/mysql"
	"TownSquare/internal/repository/redis"
	"TownSquare/internal/router"
	"TownSquare/internal/service"
	"TownSquare/internal/weather"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Sync()

	db, err := mysql.InitDB(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		zl.Fatal("connect database", zap.Error(err))
	}
	// 自动建表
	if err := mysql.Migrate(db); err != nil {
		zl.Fatal("migrate", zap.Error(err))
	}

	// 连接redis
	rdb, err := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		zl.Fatal("connect redis", zap.Error(err))
	}
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jwt := pkg.NewTokenManager(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	tokens := &redis.TokenRepository{Client: rdb, TTL: cfg.JWT.AccessTTL}
	unread := redis.NewUnreadCacheRepository(rdb)

	loc, err := time.LoadLocation(cfg.Weather.Timezone)
	if err != nil {
		zl.Warn("unknown timezone, using UTC", zap.String("timezone", cfg.Weather.Timezone), zap.Error(err))
		loc = time.UTC
	}

	forecaster := weather.NewClient(weather.Config{
		BaseURL:   cfg.Weather.BaseURL,
		Latitude:  cfg.Weather.Latitude,
		Longitude: cfg.Weather.Longitude,
		Timezone:  cfg.Weather.Timezone,
	}, nil, zl)

	users := service.NewUserService(db, tokens, jwt, zl)
	if cfg.Seed.Enabled {
		if err := users.Seed(ctx, cfg.Seed); err != nil {
			zl.Fatal("seed users", zap.Error(err))
		}
	}

	// outbox 投递
	var senders []service.Sender
	if cfg.KafkaEnabled() {
		producer := pkg.NewKafkaProducer(pkg.KafkaConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		defer producer.Close()
		senders = append(senders, service.KafkaSender(producer))
	}
	if cfg.SMTPEnabled() {
		senders = append(senders, service.EmailSender(pkg.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, pkg.SendEmail))
	}
	if len(senders) == 0 {
		senders = append(senders, service.LogSender(zl.Named("outbox")))
	}
	relayer := service.NewOutboxRelayer(db, service.MultiSender(senders...),
		cfg.Outbox.BatchSize, cfg.Outbox.MaxRetry, cfg.Outbox.Interval, zl)
	go relayer.Run(ctx)
	if _, err := relayer.StartPurge(ctx, cfg.Outbox.PurgeCron, cfg.Outbox.Retention); err != nil {
		zl.Fatal("start outbox purge", zap.Error(err))
	}

	r := router.InitRouter(router.Deps{
		Events:        service.NewEventService(db, forecaster, zl),
		RSVPs:         service.NewRSVPService(db, unread, zl),
		Notifications: service.NewNotificationService(db, unread, zl),
		Users:         users,
		JWT:           jwt,
		Tokens:        tokens,
		Location:      loc,
		Logger:        zl,
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Location"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      c.Handler(r),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zl.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("server shutdown", zap.Error(err))
	}
}
