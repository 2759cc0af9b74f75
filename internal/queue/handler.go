package queue

import (
	"context"
	"log/slog"

	"outbound-dialer/internal/scheduler"
)

// Runner is the part of the scheduler a worker drives.
type Runner interface {
	ScheduleCampaignCalls(ctx context.Context, campaignID string, maxCalls int) scheduler.BatchResult
	RetryFailedCalls(ctx context.Context, campaignID string, cfg scheduler.RetryConfig) scheduler.RetryResult
}

// NewSchedulerHandler runs dispatch and retry jobs against r. Per-prospect
// failures are logged, not returned; only a run that failed as a whole is
// surfaced to the consumer.
func NewSchedulerHandler(r Runner, defaultBatch int, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(ctx context.Context, j Job) error {
		switch j.Kind {
		case KindDispatch:
			limit := j.MaxCalls
			if limit <= 0 {
				limit = defaultBatch
			}
			res := r.ScheduleCampaignCalls(ctx, j.CampaignID, limit)
			log.Info("dispatch job finished", "job_id", j.ID, "campaign_id", j.CampaignID,
				"scheduled", res.Scheduled, "failed", res.Failed)
			return res.Err
		case KindRetry:
			cfg := scheduler.DefaultRetryConfig()
			if j.Retry != nil {
				cfg = *j.Retry
			}
			res := r.RetryFailedCalls(ctx, j.CampaignID, cfg)
			log.Info("retry job finished", "job_id", j.ID, "campaign_id", j.CampaignID,
				"retried", res.Retried, "failed", res.Failed)
			return res.Err
		}
		return j.Validate()
	}
}
