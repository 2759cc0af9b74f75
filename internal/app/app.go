// Package app is the composition root shared by the api and worker binaries.
package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"outbound-dialer/internal/audit"
	"outbound-dialer/internal/auth"
	"outbound-dialer/internal/calls"
	"outbound-dialer/internal/campaigns"
	"outbound-dialer/internal/config"
	"outbound-dialer/internal/placement"
	"outbound-dialer/internal/queue"
	"outbound-dialer/internal/reporting"
	"outbound-dialer/internal/scheduler"
	"outbound-dialer/internal/telephony"
	"outbound-dialer/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const (
	runLockPrefix = "dialer:run:"
	webhookPrefix = "dialer:once:"
	webhookTTL    = 24 * time.Hour
)

// App holds every long-lived dependency. Build it once per process.
type App struct {
	Config config.Config
	Log    *slog.Logger

	DB    *sql.DB
	Redis *redis.Client
	Queue *queue.Connection

	Tokens     *auth.Manager
	Audit      *audit.Service
	Campaigns  *campaigns.Service
	Calls      calls.Store
	Gateway    telephony.Gateway
	Placement  *placement.Service
	Scheduler  *scheduler.Scheduler
	Reconciler *calls.Reconciler
	Reporting  *reporting.Service

	// Publisher is nil when no queue is configured.
	Publisher *queue.Publisher
}

// Build opens Postgres and, when configured, Redis and RabbitMQ, then wires
// the services. Redis and RabbitMQ are optional: without Redis there is no
// run lock or webhook dedupe, without RabbitMQ async dispatch runs inline.
func Build(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	tokens, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return nil, err
	}
	a.Tokens = tokens

	a.DB, err = utils.OpenPostgres(ctx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return nil, err
	}

	var (
		locker scheduler.Locker
		dedup  calls.Deduper
	)
	if cfg.RedisEnabled() {
		a.Redis, err = utils.OpenRedis(ctx, utils.RedisConfig{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		locker = utils.NewRunLock(a.Redis, runLockPrefix, log)
		dedup = utils.NewOnceGuard(a.Redis, webhookPrefix, webhookTTL, log)
	} else {
		log.Warn("redis not configured; dispatch runs are not locked across processes")
	}

	if cfg.QueueEnabled() {
		a.Queue, err = queue.Dial(cfg.Queue.URL, log)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Publisher, err = queue.NewPublisher(a.Queue, cfg.Queue.DispatchQueue)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	a.Gateway, err = telephony.NewGateway(telephony.TwilioConfig{
		AccountSID:  cfg.Telephony.AccountSID,
		AuthToken:   cfg.Telephony.AuthToken,
		PhoneNumber: cfg.Telephony.PhoneNumber,
		APIBaseURL:  cfg.Telephony.APIBaseURL,
		Timeout:     cfg.Telephony.Timeout,
	}, &http.Client{Timeout: cfg.Telephony.Timeout}, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Audit = audit.NewService(audit.NewPostgresRepo(a.DB))
	a.Campaigns = campaigns.NewService(campaigns.NewPostgresRepo(a.DB), a.Audit, log)
	a.Calls = calls.NewPostgresStore(a.DB)
	a.Placement = placement.NewService(a.Campaigns, a.Calls, a.Gateway, placement.Config{
		DefaultFromNumber: cfg.Telephony.PhoneNumber,
		BaseURL:           cfg.App.BaseURL,
	}, log)
	a.Scheduler = scheduler.New(a.Campaigns, a.Calls, a.Placement, locker, scheduler.Config{
		DispatchDelay: cfg.Scheduler.DispatchDelay,
		RetryDelay:    cfg.Scheduler.RetryDelay,
		Record:        cfg.Scheduler.RecordCalls,
	}, log)
	a.Reconciler = calls.NewReconciler(a.Calls, a.Campaigns, dedup, log)
	a.Reporting = reporting.NewService(a.Calls, a.Campaigns)

	log.Info("dependencies ready",
		"gateway", a.Gateway.Name(),
		"redis", a.Redis != nil,
		"queue", a.Queue != nil)
	return a, nil
}

// RetryConfig is the sweep default from the environment.
func (a *App) RetryConfig() scheduler.RetryConfig {
	cfg := scheduler.DefaultRetryConfig()
	cfg.MaxRetries = a.Config.Scheduler.MaxRetries
	cfg.RetryDelayMinutes = a.Config.Scheduler.RetryDelayMinutes
	return cfg
}

// Close releases every connection that was opened.
func (a *App) Close() error {
	var errList []error
	if a.Queue != nil {
		errList = append(errList, a.Queue.Close())
	}
	if a.Redis != nil {
		errList = append(errList, a.Redis.Close())
	}
	if a.DB != nil {
		errList = append(errList, a.DB.Close())
	}
	return errors.Join(errList...)
}
