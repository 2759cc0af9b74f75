package scheduler

import (
	"context"
	"fmt"
	"time"

	"outbound-dialer/internal/campaigns"
	"outbound-dialer/internal/errs"
)

// Summary is a read-only snapshot of a campaign's schedule state.
type Summary struct {
	CampaignID        string    `json:"campaignId"`
	CallWindow        string    `json:"callWindow"`
	DailyLimit        int       `json:"dailyLimit"`
	CallsToday        int       `json:"callsToday"`
	Remaining         int       `json:"remaining"`
	NextAvailableTime time.Time `json:"nextAvailableTime"`
	IsWithinWindow    bool      `json:"isWithinWindow"`
}

// ScheduleSummary derives the schedule snapshot. It has no side effects.
func (s *Scheduler) ScheduleSummary(ctx context.Context, campaignID string) (Summary, error) {
	c, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return Summary{}, err
	}
	now := s.now()
	n, err := s.countSince(ctx, c.ID, localMidnight(c, now))
	if err != nil {
		return Summary{}, err
	}

	within := WithinWindow(c, now)
	next, err := nextAvailable(c, now, within, n)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		CampaignID:        c.ID,
		CallWindow:        fmt.Sprintf("%s - %s %s", c.CallWindowStart, c.CallWindowEnd, c.Timezone),
		DailyLimit:        c.DailyLimit,
		CallsToday:        n,
		Remaining:         max(0, c.DailyLimit-n),
		NextAvailableTime: next,
		IsWithinWindow:    within,
	}, nil
}

// NextAvailableCallTime is now when the campaign could place a call right
// away, otherwise the window start on the next active day.
func (s *Scheduler) NextAvailableCallTime(ctx context.Context, campaignID string) (time.Time, error) {
	c, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return time.Time{}, err
	}
	now := s.now()
	n, err := s.countSince(ctx, c.ID, localMidnight(c, now))
	if err != nil {
		// treat as full so the caller waits for the next window
		n = c.DailyLimit
	}
	return nextAvailable(c, now, WithinWindow(c, now), n)
}

func nextAvailable(c campaigns.Campaign, now time.Time, within bool, callsToday int) (time.Time, error) {
	if within && callsToday < c.DailyLimit {
		return now, nil
	}
	next, ok := nextWindowStart(c, now)
	if !ok {
		return time.Time{}, errs.Invalid("Invalid call window start")
	}
	return next, nil
}
