package scheduler

import (
	"context"
	"fmt"
	"time"

	"outbound-dialer/internal/calls"
	"outbound-dialer/internal/errs"
	"outbound-dialer/internal/metrics"
)

// RetryConfig controls one retry sweep.
type RetryConfig struct {
	// MaxRetries caps the call rows for a (campaign, prospect) pair. Every
	// row counts, whatever its status.
	MaxRetries int `json:"maxRetries"`
	// RetryDelayMinutes is the cooldown before a failed call is retried.
	RetryDelayMinutes int `json:"retryDelayMinutes"`
	// RetryStatuses selects which terminal statuses are retried.
	RetryStatuses []calls.Status `json:"retryStatuses"`
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		RetryDelayMinutes: 30,
		RetryStatuses:     []calls.Status{calls.StatusFailed, calls.StatusBusy, calls.StatusNoAnswer},
	}
}

// RetryResult summarizes one retry sweep.
type RetryResult struct {
	Success bool     `json:"success"`
	Retried int      `json:"retried"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`

	// Err is set when the sweep failed before any candidate was tried.
	Err error `json:"-"`
}

// RetryFailedCalls re-places calls whose status is in cfg.RetryStatuses and
// that are at least cfg.RetryDelayMinutes old, oldest first.
//
// A candidate is skipped without error when its pair already has
// cfg.MaxRetries rows, when the pair has a call still in flight, or when the
// prospect was already retried in this sweep. Retries pass through
// ScheduleCall, so the window and daily limit apply.
func (s *Scheduler) RetryFailedCalls(ctx context.Context, campaignID string, cfg RetryConfig) RetryResult {
	started := time.Now()
	defer func() { metrics.RecordRunDuration("retry", time.Since(started)) }()

	def := DefaultRetryConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryDelayMinutes < 0 {
		cfg.RetryDelayMinutes = 0
	}
	if len(cfg.RetryStatuses) == 0 {
		cfg.RetryStatuses = def.RetryStatuses
	}

	c, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return failedRetry(err)
	}
	release, ok := s.acquire(ctx, c.ID)
	if !ok {
		return failedRetry(errs.ErrDispatchRunning)
	}
	defer release()

	cutoff := s.now().Add(-time.Duration(cfg.RetryDelayMinutes) * time.Minute)
	candidates, err := s.retryCandidates(ctx, calls.Filter{
		CampaignID:        c.ID,
		Statuses:          cfg.RetryStatuses,
		CreatedAtOrBefore: cutoff,
	})
	if err != nil {
		return failedRetry(err)
	}

	log := s.log.With("campaign_id", c.ID)
	res := RetryResult{Success: true, Errors: []string{}}
	seen := make(map[string]bool, len(candidates))
	attempted := 0

	for _, call := range candidates {
		if seen[call.ProspectID] {
			continue
		}
		seen[call.ProspectID] = true

		pair := calls.Filter{CampaignID: c.ID, ProspectID: call.ProspectID}
		attempts, err := s.store.CountCalls(ctx, pair)
		if err != nil {
			log.Warn("count attempts failed, skipping", "prospect_id", call.ProspectID, "err", err)
			continue
		}
		if attempts >= cfg.MaxRetries {
			continue
		}
		pair.Statuses = calls.NonTerminalStatuses()
		inflight, err := s.store.CountCalls(ctx, pair)
		if err != nil || inflight > 0 {
			continue
		}

		if attempted > 0 {
			if err := s.sleep(ctx, s.cfg.RetryDelay); err != nil {
				res.Errors = append(res.Errors, "Retry interrupted: "+err.Error())
				break
			}
		}
		attempted++

		if _, err := s.ScheduleCall(ctx, ScheduleRequest{CampaignID: c.ID, ProspectID: call.ProspectID}); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", s.prospectName(ctx, call.ProspectID), errs.Message(err, "")))
			continue
		}
		res.Retried++
	}

	log.Info("retry sweep finished", "candidates", len(candidates), "retried", res.Retried, "failed", res.Failed)
	return res
}

// prospectName labels a retry error the way batch errors are labelled,
// falling back to the prospect ID when the lookup fails.
func (s *Scheduler) prospectName(ctx context.Context, prospectID string) string {
	p, err := s.campaigns.GetProspect(ctx, prospectID)
	if err != nil || p.DisplayName() == "" {
		return prospectID
	}
	return p.DisplayName()
}

// retryCandidates loads every matching call up front so rows created by the
// sweep itself never shift the pages.
func (s *Scheduler) retryCandidates(ctx context.Context, f calls.Filter) ([]calls.Call, error) {
	var out []calls.Call
	page := calls.Page{Limit: calls.MaxPageLimit, Oldest: true}
	for {
		batch, err := s.store.ListCalls(ctx, f, page)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if len(batch) < page.Limit {
			return out, nil
		}
		page.Offset += len(batch)
	}
}

func failedRetry(err error) RetryResult {
	return RetryResult{Success: false, Errors: []string{errs.Message(err, "")}, Err: err}
}
