package campaigns

import (
	"context"
	"sync"
	"time"

	"outbound-dialer/internal/errs"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory Repository for tests and local runs.
// It is not intended for production use.
type MemoryRepo struct {
	mu sync.Mutex

	campaigns map[string]Campaign
	prospects map[string]Prospect
	order     []string // prospect insertion order

	Now func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		campaigns: map[string]Campaign{},
		prospects: map[string]Prospect{},
		Now:       time.Now,
	}
}

func (r *MemoryRepo) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}

func (r *MemoryRepo) CreateCampaign(ctx context.Context, c Campaign) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now()
	}
	c.UpdatedAt = c.CreatedAt
	c.ActiveDays = append([]int(nil), c.ActiveDays...)
	r.campaigns[c.ID] = c
	return c, nil
}

func (r *MemoryRepo) GetCampaign(ctx context.Context, id string) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return Campaign{}, errs.ErrCampaignNotFound
	}
	return c, nil
}

func (r *MemoryRepo) ListCampaigns(ctx context.Context, f ListFilter) ([]Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Campaign, 0)
	for _, c := range r.campaigns {
		if f.UserID != "" && c.UserID != f.UserID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		out = append(out, c)
	}
	sortCampaigns(out)
	return out, nil
}

func (r *MemoryRepo) TransitionStatus(ctx context.Context, id string, from []Status, to Status, at time.Time) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return Campaign{}, errs.ErrCampaignNotFound
	}
	allowed := false
	for _, s := range from {
		if c.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return Campaign{}, errs.ErrInvalidTransition
	}
	c.Status = to
	switch to {
	case StatusActive:
		if c.LaunchedAt == nil {
			t := at
			c.LaunchedAt = &t
		}
	case StatusCompleted:
		t := at
		c.CompletedAt = &t
	case StatusDraft, StatusPaused:
	}
	c.UpdatedAt = at
	r.campaigns[id] = c
	return c, nil
}

func (r *MemoryRepo) IncrementCounters(ctx context.Context, id string, total, successful, failed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return errs.ErrCampaignNotFound
	}
	c.TotalCalls += total
	c.SuccessfulCalls += successful
	c.FailedCalls += failed
	c.UpdatedAt = r.now()
	r.campaigns[id] = c
	return nil
}

func (r *MemoryRepo) CreateProspect(ctx context.Context, p Prospect) (Prospect, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.campaigns[p.CampaignID]; !ok {
		return Prospect{}, errs.ErrCampaignNotFound
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = ProspectPending
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now()
	}
	p.UpdatedAt = p.CreatedAt
	r.prospects[p.ID] = p
	r.order = append(r.order, p.ID)
	return p, nil
}

func (r *MemoryRepo) GetProspect(ctx context.Context, id string) (Prospect, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prospects[id]
	if !ok {
		return Prospect{}, errs.ErrProspectNotFound
	}
	return p, nil
}

func (r *MemoryRepo) ListProspects(ctx context.Context, campaignID string, status ProspectStatus) ([]Prospect, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Prospect, 0)
	for _, id := range r.order {
		p := r.prospects[id]
		if p.CampaignID != campaignID {
			continue
		}
		if status != "" && p.Status != status {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *MemoryRepo) AdvanceProspect(ctx context.Context, id string, from, to ProspectStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prospects[id]
	if !ok {
		return false, errs.ErrProspectNotFound
	}
	if p.Status != from {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = r.now()
	r.prospects[id] = p
	return true, nil
}
