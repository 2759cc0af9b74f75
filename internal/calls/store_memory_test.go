package calls

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"outbound-dialer/internal/errs"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestMemoryStore_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()
	s := NewMemoryStore()
	s.Now = fixedClock(now)

	c, err := s.CreateCall(ctx, Call{CampaignID: "camp_1", ProspectID: "p_1", Status: StatusQueued})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID == "" || !c.CreatedAt.Equal(now) {
		t.Fatalf("expected id and created_at, got %+v", c)
	}

	got, err := s.FindCall(ctx, c.ID)
	if err != nil || got.ID != c.ID {
		t.Fatalf("find: %v %+v", err, got)
	}
	if _, err := s.FindCall(ctx, "missing"); !errors.Is(err, errs.ErrCallNotFound) {
		t.Fatalf("expected ErrCallNotFound, got %v", err)
	}
	if _, err := s.FindCallByProviderID(ctx, ""); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found for empty provider id, got %v", err)
	}
}

func TestMemoryStore_UpdateKeepsTerminalStatus(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()
	s := NewMemoryStore()
	s.Now = fixedClock(now)

	c, _ := s.CreateCall(ctx, Call{CampaignID: "camp_1", ProspectID: "p_1", Status: StatusQueued})

	upd, err := s.UpdateCall(ctx, c.ID, Patch{Status: Ptr(StatusCompleted), EndedAt: &now})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !upd.EnteredTerminal() || upd.Previous != StatusQueued {
		t.Fatalf("expected entry into terminal, got %+v", upd)
	}

	later := now.Add(time.Minute)
	upd, err = s.UpdateCall(ctx, c.ID, Patch{
		Status:          Ptr(StatusRinging),
		RecordingURL:    Ptr("https://rec/1"),
		EndedAt:         &later,
		SetEndedIfEmpty: true,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if upd.Call.Status != StatusCompleted {
		t.Fatalf("terminal status must stick, got %s", upd.Call.Status)
	}
	if upd.EnteredTerminal() {
		t.Fatalf("second update must not count as entering terminal")
	}
	if upd.Call.RecordingURL != "https://rec/1" {
		t.Fatalf("expected recording attached")
	}
	if !upd.Call.EndedAt.Equal(now) {
		t.Fatalf("ended_at must keep first value, got %v", upd.Call.EndedAt)
	}
}

func TestMemoryStore_CreateCallWithinLimitIsAtomic(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()
	s := NewMemoryStore()
	s.Now = fixedClock(now)

	const limit = 5
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		limited int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateCallWithinLimit(ctx, Call{CampaignID: "camp_1", Status: StatusQueued}, now.Add(-time.Hour), limit)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, errs.ErrDailyLimitReached):
				limited++
			default:
				t.Errorf("unexpected err: %v", err)
			}
		}()
	}
	wg.Wait()

	if created != limit || limited != 20-limit {
		t.Fatalf("created=%d limited=%d", created, limited)
	}

	// other campaigns are unaffected
	if _, err := s.CreateCallWithinLimit(ctx, Call{CampaignID: "camp_2"}, now.Add(-time.Hour), limit); err != nil {
		t.Fatalf("expected other campaign to pass: %v", err)
	}
	// rows before since are not counted
	if _, err := s.CreateCallWithinLimit(ctx, Call{CampaignID: "camp_1"}, now.Add(time.Second), limit); err != nil {
		t.Fatalf("expected fresh window to pass: %v", err)
	}
}

func TestMemoryStore_ListAndCount(t *testing.T) {
	ctx := context.Background()
	base := time.Unix(1700000000, 0).UTC()
	s := NewMemoryStore()

	for i := 0; i < 5; i++ {
		st := StatusFailed
		if i%2 == 0 {
			st = StatusCompleted
		}
		_, _ = s.CreateCall(ctx, Call{
			CampaignID: "camp_1",
			ProspectID: "p_1",
			Status:     st,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
	}
	_, _ = s.CreateCall(ctx, Call{CampaignID: "camp_2", Status: StatusFailed, CreatedAt: base})

	n, _ := s.CountCalls(ctx, Filter{CampaignID: "camp_1", Statuses: []Status{StatusFailed}})
	if n != 2 {
		t.Fatalf("expected 2 failed calls, got %d", n)
	}
	n, _ = s.CountCalls(ctx, Filter{CampaignID: "camp_1", CreatedSince: base.Add(2 * time.Minute)})
	if n != 3 {
		t.Fatalf("expected 3 calls since +2m, got %d", n)
	}

	newest, _ := s.ListCalls(ctx, Filter{CampaignID: "camp_1"}, Page{Limit: 2})
	if len(newest) != 2 || !newest[0].CreatedAt.Equal(base.Add(4*time.Minute)) {
		t.Fatalf("expected newest first, got %+v", newest)
	}
	oldest, _ := s.ListCalls(ctx, Filter{CampaignID: "camp_1", CreatedAtOrBefore: base.Add(time.Minute)}, Page{Oldest: true})
	if len(oldest) != 2 || !oldest[0].CreatedAt.Equal(base) {
		t.Fatalf("expected oldest first within cutoff, got %+v", oldest)
	}
	empty, _ := s.ListCalls(ctx, Filter{CampaignID: "camp_1"}, Page{Offset: 10})
	if len(empty) != 0 {
		t.Fatalf("expected empty page")
	}
}
