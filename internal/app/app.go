// Package app assembles the KindNest services from a loaded configuration.
// Both the long-running server and the serverless entry point build on it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/kindnest/kindnest-api/internal/donations"
	"github.com/kindnest/kindnest-api/internal/scheduling"
	"github.com/kindnest/kindnest-api/pkg/auth"
	"github.com/kindnest/kindnest-api/pkg/config"
	"github.com/kindnest/kindnest-api/pkg/database"
	"github.com/kindnest/kindnest-api/pkg/handlers"
	"github.com/kindnest/kindnest-api/pkg/metrics"
	"github.com/kindnest/kindnest-api/pkg/notify"
	"github.com/kindnest/kindnest-api/pkg/verification"
)

// Version is reported by the root endpoint and the version command.
const Version = "1.0.0"

type App struct {
	Config    *config.Config
	DB        *gorm.DB
	Store     *database.Store
	Auth      *auth.Authenticator
	Metrics   *metrics.Metrics
	Notifier  *notify.Dispatcher
	Schedules *scheduling.Service
	Donations *donations.Service
	Handler   *handlers.Handler

	log   *slog.Logger
	redis *redis.Client
}

// New opens the database, seeds the admin account and wires every service.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := database.InitDB(database.Options{URL: cfg.Database.URL, Path: cfg.Database.Path})
	if err != nil {
		return nil, err
	}
	a := &App{
		Config:  cfg,
		DB:      db,
		Store:   database.NewStore(db),
		Auth:    auth.New(cfg.Auth.JWTSecret, cfg.Auth.ServiceSecret, cfg.Auth.TokenTTL),
		Metrics: metrics.New(),
		log:     log,
	}

	if err := auth.EnsureAdminExists(ctx, a.Store, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		log.Warn("could not seed admin account", "error", err)
	}

	sinks, err := a.notifiers()
	if err != nil {
		return nil, err
	}
	a.Notifier = notify.NewDispatcher(log, a.Metrics, sinks...)

	a.Schedules = scheduling.NewService(a.Store, scheduling.Options{
		Limiter:  a.limiter(ctx),
		Notifier: a.Notifier,
		Metrics:  a.Metrics,
		Logger:   log,
	})
	a.Donations = donations.NewService(a.Store, a.Schedules, a.Notifier, a.Metrics, log)

	a.Handler = &handlers.Handler{
		Store:           a.Store,
		Auth:            a.Auth,
		Donations:       a.Donations,
		Schedules:       a.Schedules,
		Notifier:        a.Notifier,
		Metrics:         a.Metrics,
		Log:             log,
		AdminSecretCode: cfg.Auth.AdminSecretCode,
	}
	return a, nil
}

// notifiers picks email when SMTP is configured, falling back to the log, and
// adds Telegram for admin alerts when a bot token is present.
func (a *App) notifiers() ([]notify.Notifier, error) {
	cfg := a.Config
	r, err := notify.NewRenderer(cfg.FrontendURL)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	var sinks []notify.Notifier
	mail := notify.MailConfig{
		Host:         cfg.Email.Host,
		Port:         cfg.Email.Port,
		User:         cfg.Email.User,
		Password:     cfg.Email.Password,
		From:         cfg.Email.From,
		AdminAddress: cfg.Email.AdminAddress,
	}
	if mail.Enabled() {
		sinks = append(sinks, notify.NewMailer(mail, r))
	} else {
		a.log.Info("email not configured, notifications go to the log")
		sinks = append(sinks, notify.LogNotifier{Log: a.log})
	}

	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.AdminChat, r)
		if err != nil {
			a.log.Warn("telegram disabled", "error", err)
		} else {
			sinks = append(sinks, tg)
		}
	}
	return sinks, nil
}

// limiter uses Redis when reachable so attempt counts survive restarts and
// are shared between instances.
func (a *App) limiter(ctx context.Context) verification.AttemptLimiter {
	otp := a.Config.OTP
	if a.Config.Redis.Addr == "" {
		return verification.NewMemoryLimiter(otp.MaxAttempts, otp.AttemptWindow)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		a.log.Warn("redis unreachable, using in-memory attempt limiter", "addr", a.Config.Redis.Addr, "error", err)
		_ = rdb.Close()
		return verification.NewMemoryLimiter(otp.MaxAttempts, otp.AttemptWindow)
	}
	a.redis = rdb
	return verification.NewRedisLimiter(rdb, otp.MaxAttempts, otp.AttemptWindow)
}

// Router returns the HTTP engine for this app.
func (a *App) Router() *gin.Engine {
	return handlers.NewRouter(a.Handler, handlers.RouterOptions{
		CORSOrigins:      a.Config.CORSOrigins,
		StaleScheduleAge: a.Config.StaleScheduleAge,
		Version:          Version,
	})
}

// Close drains pending notifications and releases connections.
func (a *App) Close() {
	a.Notifier.Wait()
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
