package calls

import (
	"context"
	"sort"
	"sync"
	"time"

	"outbound-dialer/internal/errs"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local runs.
// It is not intended for production use.
type MemoryStore struct {
	mu    sync.Mutex
	calls map[string]Call
	seq   []string

	// Now is injectable for deterministic tests.
	Now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{calls: map[string]Call{}, Now: time.Now}
}

func (s *MemoryStore) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *MemoryStore) CreateCall(ctx context.Context, c Call) (Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(c), nil
}

func (s *MemoryStore) CreateCallWithinLimit(ctx context.Context, c Call, since time.Time, limit int) (Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, existing := range s.calls {
		if existing.CampaignID == c.CampaignID && !existing.CreatedAt.Before(since) {
			n++
		}
	}
	if n >= limit {
		return Call{}, errs.ErrDailyLimitReached
	}
	return s.insertLocked(c), nil
}

func (s *MemoryStore) insertLocked(c Call) Call {
	now := s.now()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt
	s.calls[c.ID] = c
	s.seq = append(s.seq, c.ID)
	return c
}

func (s *MemoryStore) UpdateCall(ctx context.Context, id string, p Patch) (Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.calls[id]
	if !ok {
		return Update{}, errs.ErrCallNotFound
	}
	prev := c.Status
	p.apply(&c, s.now())
	s.calls[id] = c
	return Update{Call: c, Previous: prev}, nil
}

func (s *MemoryStore) FindCall(ctx context.Context, id string) (Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[id]
	if !ok {
		return Call{}, errs.ErrCallNotFound
	}
	return c, nil
}

func (s *MemoryStore) FindCallByProviderID(ctx context.Context, providerCallID string) (Call, error) {
	if providerCallID == "" {
		return Call{}, errs.ErrCallNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if c.ProviderCallID == providerCallID {
			return c, nil
		}
	}
	return Call{}, errs.ErrCallNotFound
}

func (s *MemoryStore) CountCalls(ctx context.Context, f Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if f.matches(c) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListCalls(ctx context.Context, f Filter, page Page) ([]Call, error) {
	page = page.normalized()

	s.mu.Lock()
	out := make([]Call, 0)
	// insertion order breaks CreatedAt ties deterministically
	for _, id := range s.seq {
		if c := s.calls[id]; f.matches(c) {
			out = append(out, c)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if page.Oldest {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if page.Offset >= len(out) {
		return []Call{}, nil
	}
	end := page.Offset + page.Limit
	if end > len(out) {
		end = len(out)
	}
	return out[page.Offset:end], nil
}

// Calls returns a snapshot of all stored calls in insertion order.
func (s *MemoryStore) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, 0, len(s.seq))
	for _, id := range s.seq {
		out = append(out, s.calls[id])
	}
	return out
}
