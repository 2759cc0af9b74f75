// Package scheduler decides when a campaign may place calls and paces
// batch dispatch and retries against the telephony provider.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"outbound-dialer/internal/calls"
	"outbound-dialer/internal/campaigns"
	"outbound-dialer/internal/errs"
	"outbound-dialer/internal/metrics"
	"outbound-dialer/internal/placement"
)

// Campaigns is the campaign lookup the scheduler needs.
type Campaigns interface {
	Get(ctx context.Context, id string) (campaigns.Campaign, error)
	PendingProspects(ctx context.Context, campaignID string) ([]campaigns.Prospect, error)
	GetProspect(ctx context.Context, id string) (campaigns.Prospect, error)
}

// Placer places one call. *placement.Service satisfies it.
type Placer interface {
	PlaceCall(ctx context.Context, req placement.Request) (placement.Result, error)
}

// Locker grants a per-campaign run lease. *utils.RunLock satisfies it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Sleeper pauses between placements. It must return early with ctx.Err()
// when ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Config struct {
	// DispatchDelay separates fresh placements in a batch.
	DispatchDelay time.Duration
	// RetryDelay separates retry attempts; larger than DispatchDelay.
	RetryDelay time.Duration
	// LockTTL bounds a run lease held by a crashed process.
	LockTTL time.Duration
	// Record asks the provider to record placed calls.
	Record bool

	// Clock and Sleep default to the wall clock and SleepContext.
	Clock func() time.Time
	Sleep Sleeper
}

const (
	DefaultDispatchDelay = time.Second
	DefaultRetryDelay    = 2 * time.Second
	DefaultLockTTL       = 15 * time.Minute
)

func (c Config) withDefaults() Config {
	out := c
	if out.DispatchDelay <= 0 {
		out.DispatchDelay = DefaultDispatchDelay
	}
	if out.RetryDelay <= 0 {
		out.RetryDelay = DefaultRetryDelay
	}
	if out.LockTTL <= 0 {
		out.LockTTL = DefaultLockTTL
	}
	if out.Clock == nil {
		out.Clock = time.Now
	}
	if out.Sleep == nil {
		out.Sleep = SleepContext
	}
	return out
}

// Scheduler gates and paces call placement for campaigns.
// Construct one per process and share it.
type Scheduler struct {
	campaigns Campaigns
	store     calls.Store
	placer    Placer
	locker    Locker
	cfg       Config
	log       *slog.Logger

	clock func() time.Time
	sleep Sleeper
}

// New wires a Scheduler. locker may be nil, in which case runs for the same
// campaign are assumed to come from a single writer.
func New(c Campaigns, store calls.Store, placer Placer, locker Locker, cfg Config, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Scheduler{
		campaigns: c,
		store:     store,
		placer:    placer,
		locker:    locker,
		cfg:       cfg,
		log:       log,
		clock:     cfg.Clock,
		sleep:     cfg.Sleep,
	}
}

func (s *Scheduler) now() time.Time { return s.clock() }

// ScheduleRequest asks for one call now.
type ScheduleRequest struct {
	CampaignID string
	ProspectID string
	// ScheduledFor is echoed back when set; placement always happens now.
	ScheduledFor *time.Time
	FromNumber   string
}

// ScheduledCall is the outcome of a successful ScheduleCall.
type ScheduledCall struct {
	ID           string     `json:"id"`
	ScheduledFor time.Time  `json:"scheduledFor"`
	Message      string     `json:"-"`
	Call         calls.Call `json:"-"`
}

// ScheduleCall checks the campaign's gates and places one call.
//
// Gates are evaluated on every call, never cached: the campaign must be
// active, under its daily limit and inside its window, in that order. The
// placement itself re-checks the limit atomically with the row insert.
func (s *Scheduler) ScheduleCall(ctx context.Context, req ScheduleRequest) (ScheduledCall, error) {
	c, err := s.campaigns.Get(ctx, req.CampaignID)
	if err != nil {
		return ScheduledCall{}, err
	}
	if c.Status != campaigns.StatusActive {
		metrics.RecordScheduleDecision("not_active")
		return ScheduledCall{}, errs.ErrCampaignNotActive
	}

	now := s.now()
	midnight := localMidnight(c, now)
	n, err := s.countSince(ctx, c.ID, midnight)
	if err != nil {
		s.log.Error("count calls today failed", "campaign_id", c.ID, "err", err)
		metrics.RecordScheduleDecision("daily_limit")
		return ScheduledCall{}, errs.ErrDailyLimitReached
	}
	if n >= c.DailyLimit {
		metrics.RecordScheduleDecision("daily_limit")
		return ScheduledCall{}, errs.ErrDailyLimitReached
	}
	if !WithinWindow(c, now) {
		metrics.RecordScheduleDecision("outside_window")
		return ScheduledCall{}, errs.OutsideCallWindow(c.CallWindowStart, c.CallWindowEnd)
	}

	res, err := s.placer.PlaceCall(ctx, placement.Request{
		CampaignID: c.ID,
		ProspectID: req.ProspectID,
		FromNumber: req.FromNumber,
		Record:     s.cfg.Record,
		Cap:        &placement.DailyCap{Since: midnight, Limit: c.DailyLimit},
	})
	if err != nil {
		if errors.Is(err, errs.ErrDailyLimitReached) {
			metrics.RecordScheduleDecision("daily_limit")
		} else {
			metrics.RecordScheduleDecision("placement_failed")
		}
		return ScheduledCall{}, err
	}
	metrics.RecordScheduleDecision("placed")

	out := ScheduledCall{ID: res.Call.ID, ScheduledFor: res.Call.CreatedAt, Message: res.Message, Call: res.Call}
	if req.ScheduledFor != nil {
		out.ScheduledFor = *req.ScheduledFor
	}
	return out, nil
}

func (s *Scheduler) countSince(ctx context.Context, campaignID string, since time.Time) (int, error) {
	return s.store.CountCalls(ctx, calls.Filter{CampaignID: campaignID, CreatedSince: since})
}

// CallsToday counts calls created since local midnight in the campaign timezone.
func (s *Scheduler) CallsToday(ctx context.Context, campaignID string) (int, error) {
	c, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	return s.countSince(ctx, c.ID, localMidnight(c, s.now()))
}

// HasReachedDailyLimit reports whether today's calls reached limit. Any
// error counts as reached.
func (s *Scheduler) HasReachedDailyLimit(ctx context.Context, campaignID string, limit int) bool {
	n, err := s.CallsToday(ctx, campaignID)
	if err != nil {
		s.log.Warn("daily limit check failed", "campaign_id", campaignID, "err", err)
		return true
	}
	return n >= limit
}

// RemainingCallsToday is max(0, limit - calls today); zero on error.
func (s *Scheduler) RemainingCallsToday(ctx context.Context, campaignID string) int {
	c, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		s.log.Warn("remaining calls check failed", "campaign_id", campaignID, "err", err)
		return 0
	}
	return s.remaining(ctx, c, s.now())
}

func (s *Scheduler) remaining(ctx context.Context, c campaigns.Campaign, now time.Time) int {
	n, err := s.countSince(ctx, c.ID, localMidnight(c, now))
	if err != nil {
		s.log.Warn("remaining calls check failed", "campaign_id", c.ID, "err", err)
		return 0
	}
	return max(0, c.DailyLimit-n)
}

// acquire takes the campaign run lease. A lock backend error lets the run
// proceed; the store-level cap still holds.
func (s *Scheduler) acquire(ctx context.Context, campaignID string) (func(), bool) {
	if s.locker == nil {
		return func() {}, true
	}
	release, ok, err := s.locker.TryLock(ctx, "campaign:"+campaignID, s.cfg.LockTTL)
	if err != nil {
		s.log.Warn("run lock unavailable, continuing without it", "campaign_id", campaignID, "err", err)
		return func() {}, true
	}
	if !ok {
		return nil, false
	}
	return release, true
}

// BatchResult summarizes one ScheduleCampaignCalls run.
type BatchResult struct {
	Success   bool     `json:"success"`
	Scheduled int      `json:"scheduled"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`

	// Err is set when the run failed before any prospect was tried.
	Err error `json:"-"`
}

// ScheduleCampaignCalls places calls for pending prospects in creation order,
// up to min(remaining today, maxCalls, pending). maxCalls <= 0 means no
// extra cap. One prospect's failure never stops the batch.
func (s *Scheduler) ScheduleCampaignCalls(ctx context.Context, campaignID string, maxCalls int) BatchResult {
	started := time.Now()
	defer func() { metrics.RecordRunDuration("dispatch", time.Since(started)) }()

	res := BatchResult{Success: true, Errors: []string{}}
	c, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return failedBatch(err)
	}

	release, ok := s.acquire(ctx, c.ID)
	if !ok {
		return failedBatch(errs.ErrDispatchRunning)
	}
	defer release()

	prospects, err := s.campaigns.PendingProspects(ctx, c.ID)
	if err != nil {
		return failedBatch(err)
	}

	n := min(s.remaining(ctx, c, s.now()), len(prospects))
	if maxCalls > 0 {
		n = min(n, maxCalls)
	}
	log := s.log.With("campaign_id", c.ID)
	log.Info("batch dispatch started", "pending", len(prospects), "to_place", n)

	for i := 0; i < n; i++ {
		if i > 0 {
			if err := s.sleep(ctx, s.cfg.DispatchDelay); err != nil {
				res.Errors = append(res.Errors, "Dispatch interrupted: "+err.Error())
				break
			}
		}
		p := prospects[i]
		if _, err := s.ScheduleCall(ctx, ScheduleRequest{CampaignID: c.ID, ProspectID: p.ID}); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", p.DisplayName(), errs.Message(err, "")))
			continue
		}
		res.Scheduled++
	}

	log.Info("batch dispatch finished", "scheduled", res.Scheduled, "failed", res.Failed)
	return res
}

func failedBatch(err error) BatchResult {
	return BatchResult{Success: false, Errors: []string{errs.Message(err, "")}, Err: err}
}
