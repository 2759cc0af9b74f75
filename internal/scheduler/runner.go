package scheduler

import (
	"context"
	"log/slog"
	"time"

	"outbound-dialer/internal/campaigns"
)

// ActiveCampaigns lists campaigns eligible for background runs.
type ActiveCampaigns interface {
	ListActive(ctx context.Context) ([]campaigns.Campaign, error)
}

type RunnerConfig struct {
	// Interval between sweeps. Defaults to one minute.
	Interval time.Duration
	// BatchSize caps placements per campaign per sweep; 0 means the daily
	// remaining capacity.
	BatchSize int
	// Retry is applied to each campaign before its fresh dispatch. A
	// campaign's own MaxAttempts replaces Retry.MaxRetries.
	Retry RetryConfig
	// DisableRetry skips the retry sweep.
	DisableRetry bool
}

// Runner periodically retries and dispatches every active campaign that is
// inside its call window.
type Runner struct {
	sched  *Scheduler
	active ActiveCampaigns
	cfg    RunnerConfig
	log    *slog.Logger
}

func NewRunner(sched *Scheduler, active ActiveCampaigns, cfg RunnerConfig, log *slog.Logger) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{sched: sched, active: active, cfg: cfg, log: log}
}

// Start launches the loop in a goroutine and returns a stop func that
// cancels it and waits for the current sweep to return.
func (r *Runner) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()

		r.RunOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.RunOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// RunOnce performs a single sweep over the active campaigns.
func (r *Runner) RunOnce(ctx context.Context) {
	list, err := r.active.ListActive(ctx)
	if err != nil {
		r.log.Error("list active campaigns failed", "err", err)
		return
	}
	for _, c := range list {
		if ctx.Err() != nil {
			return
		}
		if !WithinWindow(c, r.sched.now()) {
			r.log.Debug("campaign outside call window", "campaign_id", c.ID)
			continue
		}

		if !r.cfg.DisableRetry {
			cfg := r.cfg.Retry
			if c.MaxAttempts > 0 {
				cfg.MaxRetries = c.MaxAttempts
			}
			rr := r.sched.RetryFailedCalls(ctx, c.ID, cfg)
			if !rr.Success || rr.Failed > 0 {
				r.log.Warn("retry sweep had failures", "campaign_id", c.ID, "retried", rr.Retried, "failed", rr.Failed, "errors", rr.Errors)
			}
		}

		br := r.sched.ScheduleCampaignCalls(ctx, c.ID, r.cfg.BatchSize)
		if !br.Success || br.Failed > 0 {
			r.log.Warn("dispatch had failures", "campaign_id", c.ID, "scheduled", br.Scheduled, "failed", br.Failed, "errors", br.Errors)
		}
	}
}
