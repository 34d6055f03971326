package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/salon-events/salonbridge/internal/auth"
	"github.com/salon-events/salonbridge/internal/bookings"
	"github.com/salon-events/salonbridge/internal/dashboard"
	"github.com/salon-events/salonbridge/internal/installs"
	"github.com/salon-events/salonbridge/internal/notify"
	"github.com/salon-events/salonbridge/internal/platform/config"
	"github.com/salon-events/salonbridge/internal/platform/database"
	"github.com/salon-events/salonbridge/internal/platform/metrics"
	"github.com/salon-events/salonbridge/internal/platform/server"
	"github.com/salon-events/salonbridge/internal/reminders"
	"github.com/salon-events/salonbridge/internal/tasks"
	"github.com/salon-events/salonbridge/internal/webhook"
	"github.com/salon-events/salonbridge/internal/wixapi"
)

// app is the wired process: the HTTP server, the reminder scheduler and
// everything they share.
type app struct {
	server    *server.Server
	scheduler *reminders.Scheduler
	queue     *tasks.AsyncQueue
	pool      *database.Pool
	redis     *redis.Client
	logger    *slog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}
	m := metrics.New()
	readiness := map[string]server.Pinger{}

	// Verification key: resolved once, immutable afterwards. A key that is
	// present but unparseable is a deployment error.
	key := config.ResolveVerificationKey(cfg.Platform, logger)
	publicKey, err := key.RSAPublicKey()
	if err != nil {
		return nil, fmt.Errorf("loading verification key: %w", err)
	}
	degraded := cfg.Server.Environment.AllowsDegradedAuth()
	switch {
	case publicKey == nil && degraded:
		logger.Warn("no verification key configured, authentication runs degraded")
	case publicKey == nil:
		logger.Error("no verification key configured, authenticated routes and webhooks will fail")
	default:
		logger.Info("verification key loaded", "source", key.Source)
	}

	// Booking store (optional)
	var repo bookings.Repository
	if cfg.Database.URL != "" {
		logger.Info("connecting to database")
		pool, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			logger.Warn("database connection failed, starting without booking store", "error", err)
		} else {
			a.pool = pool
			migrationsURL := fmt.Sprintf("file://%s", cfg.Database.MigrationsPath)
			if err := database.RunMigrations(cfg.Database.URL, migrationsURL); err != nil {
				a.close()
				return nil, fmt.Errorf("running migrations: %w", err)
			}
			logger.Info("migrations complete")
			repo = bookings.NewStore(pool)
			readiness["database"] = pool
		}
	}

	// Install registry
	var registry installs.Registry = installs.NewMemoryRegistry()
	if cfg.Redis.Addr != "" {
		rdb, err := installs.NewRedisClient(ctx, installs.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn("redis connection failed, install registry is in-memory", "error", err)
		} else {
			a.redis = rdb
			redisRegistry := installs.NewRedisRegistry(rdb)
			registry = redisRegistry
			readiness["redis"] = redisRegistry
		}
	}

	// Platform API
	platform := wixapi.NewClient(wixapi.Config{
		BaseURL:   cfg.Platform.APIBaseURL,
		TokenURL:  cfg.Platform.TokenURL,
		AppID:     cfg.Platform.AppID,
		AppSecret: cfg.Platform.AppSecret,
	}, logger)
	if !platform.Configured() {
		logger.Warn("platform app credentials not configured, platform API calls will fail")
	}

	// Email
	emailCfg := cfg.Notifications.Email
	notifier, err := notify.NewNotifier(
		notify.NewSendGridMailer(notify.SendGridConfig{Endpoint: emailCfg.Endpoint, APIKey: emailCfg.APIKey}, logger),
		notify.Options{Enabled: emailCfg.Enabled && emailCfg.APIKey != "", From: emailCfg.From},
		logger,
	)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("loading email templates: %w", err)
	}
	if emailCfg.Enabled && emailCfg.APIKey == "" {
		logger.Warn("email notifications enabled without an API key, emails are disabled")
	}

	// Background work for webhooks
	a.queue = tasks.NewAsyncQueue(tasks.Config{
		BufferSize: cfg.Tasks.BufferSize,
		Workers:    cfg.Tasks.Workers,
		Timeout:    time.Duration(cfg.Tasks.TimeoutSeconds) * time.Second,
	}, logger, m)

	bookingService := bookings.NewService(platform, notifier, repo, logger)

	if cfg.Reminders.Enabled {
		a.scheduler = reminders.NewScheduler(reminders.Config{
			AppointmentSchedule: cfg.Reminders.AppointmentSchedule,
			EventSchedule:       cfg.Reminders.EventSchedule,
			AppointmentWindow:   time.Duration(cfg.Reminders.AppointmentWindowHours) * time.Hour,
			EventWindow:         time.Duration(cfg.Reminders.EventWindowDays) * 24 * time.Hour,
		}, registry, bookingService, platform, notifier, logger)
	}

	a.server = server.New(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), server.Dependencies{
		Authenticator: auth.NewAuthenticator(auth.Options{
			Key:      publicKey,
			Degraded: degraded,
			Logger:   logger,
			Recorder: m,
		}),
		Webhooks: webhook.NewHandler(
			webhook.NewVerifier(publicKey, logger, m),
			bookingService,
			registry,
			a.queue,
			logger,
		),
		Dashboard: dashboard.NewHandler(bookingService, platform, notifier, logger).
			WithInstalls(registry).
			WithPermissions(cfg.Dashboard.RequiredPermissions...),
		Metrics:            m.Handler(),
		Readiness:          readiness,
		Logger:             logger,
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	return a, nil
}

// close drains queued webhook work, then releases connections.
func (a *app) close() {
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			a.logger.Warn("closing task queue", "error", err)
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
