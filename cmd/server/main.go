package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"meeting-scheduler/internal/app"
	"meeting-scheduler/internal/availability"
	"meeting-scheduler/internal/booking"
	"meeting-scheduler/internal/calendar"
	"meeting-scheduler/internal/config"
	"meeting-scheduler/internal/events"
	"meeting-scheduler/internal/notify"
	"meeting-scheduler/internal/server"
	"meeting-scheduler/internal/storage"
	"meeting-scheduler/internal/telemetry"
)

const serviceName = "meeting-scheduler"

func main() {
	logger := telemetry.NewLogger(serviceName)
	if err := run(logger); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		ServiceName:  serviceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		SampleRatio:  cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	pool, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to db: %w", err)
	}
	defer pool.Close()
	if cfg.Migrate {
		if err := pool.Migrate(ctx); err != nil {
			return err
		}
	}
	store := storage.NewStore(pool)
	checks := []app.ReadyCheck{{Name: "db", Check: storage.ReadyCheck(pool)}}

	// busy and creator stay nil interfaces when Google is not configured
	var (
		busy    availability.CalendarGateway
		creator booking.CalendarEvents
	)
	oauthCfg := calendar.NewOAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
	if oauthCfg != nil {
		var gateway calendar.Gateway = calendar.NewGoogleGateway(oauthCfg, store, calendar.Config{
			Timeout: cfg.Google.FetchTimeout,
		}, logger)

		if cfg.Redis.Addr != "" {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer rdb.Close()
			gateway = calendar.NewCachedGateway(gateway, rdb, cfg.Redis.BusyCacheTTL, "busy", logger)
			checks = append(checks, app.ReadyCheck{Name: "redis", Check: calendar.RedisReadyCheck(rdb)})
			logger.Info("busy-interval cache enabled (redis)", "redis_addr", cfg.Redis.Addr, "ttl", cfg.Redis.BusyCacheTTL)
		}
		busy, creator = gateway, gateway
	} else {
		logger.Warn("google calendar not configured; availability ignores external calendars")
	}

	availabilitySvc := availability.NewService(store, busy, logger, availability.Config{
		Buffer:          cfg.Availability.Buffer(),
		Step:            cfg.Availability.Step(),
		DefaultTimezone: cfg.Availability.DefaultTimezone,
	})

	var sender notify.Sender
	if cfg.SMTP.Host != "" {
		sender = notify.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.User, cfg.SMTP.Password)
	}
	notifier := notify.NewNotifier(sender, logger)

	publisher := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.BookingTopic, logger)
	defer publisher.Close()
	if cfg.Kafka.Brokers != "" {
		checks = append(checks, app.ReadyCheck{Name: "kafka", Check: events.ReadyCheck(cfg.Kafka.Brokers)})
	}

	bookingSvc := booking.NewService(store, availabilitySvc, creator, notifier, publisher, logger)

	auth, err := app.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.StaticTokens)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	application := &app.App{
		Store:           store,
		Availability:    availabilitySvc,
		Bookings:        bookingSvc,
		Auth:            auth,
		OAuth:           oauthCfg,
		DefaultTimezone: cfg.Availability.DefaultTimezone,
		ConsentRedirect: cfg.Google.ConsentRedirect,
		Logger:          logger,
	}

	return server.Run(ctx, application.Handler(checks...), server.Config{Addr: cfg.Addr}, logger)
}
