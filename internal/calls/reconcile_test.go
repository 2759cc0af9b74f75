package calls

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"outbound-dialer/internal/errs"
)

type fakeSink struct {
	mu        sync.Mutex
	success   int
	failure   int
	contacted []string
}

func (f *fakeSink) RecordCallOutcome(ctx context.Context, campaignID string, success bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if success {
		f.success++
	} else {
		f.failure++
	}
	return nil
}

func (f *fakeSink) MarkProspectContacted(ctx context.Context, prospectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contacted = append(f.contacted, prospectID)
	return nil
}

type setDeduper map[string]bool

func (d setDeduper) AcquireOnce(ctx context.Context, key string) bool {
	if d[key] {
		return false
	}
	d[key] = true
	return true
}

func (d setDeduper) Release(ctx context.Context, key string) { delete(d, key) }

type brokenUpdates struct {
	*MemoryStore
}

func (brokenUpdates) UpdateCall(ctx context.Context, id string, p Patch) (Update, error) {
	return Update{}, errors.New("connection reset")
}

func newReconcileFixture(t *testing.T) (*Reconciler, *MemoryStore, *fakeSink, Call) {
	t.Helper()
	now := time.Unix(1700000000, 0).UTC()
	store := NewMemoryStore()
	store.Now = fixedClock(now)
	c, err := store.CreateCall(context.Background(), Call{
		CampaignID:     "camp_1",
		ProspectID:     "p_1",
		ProviderCallID: "CA1",
		Status:         StatusQueued,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	sink := &fakeSink{}
	r := NewReconciler(store, sink, nil, nil)
	r.Now = fixedClock(now.Add(time.Minute))
	return r, store, sink, c
}

func TestReconciler_CompletedHumanCountsOnce(t *testing.T) {
	ctx := context.Background()
	r, _, sink, _ := newReconcileFixture(t)

	_, err := r.ApplyStatus(ctx, StatusUpdate{ProviderCallID: "CA1", Status: "in-progress"})
	if err != nil {
		t.Fatalf("in-progress: %v", err)
	}

	dur := 45
	res, err := r.ApplyStatus(ctx, StatusUpdate{
		ProviderCallID:  "CA1",
		Status:          "completed",
		DurationSeconds: &dur,
		AnsweredBy:      "human",
		Price:           "-0.0200",
		PriceUnit:       "usd",
	})
	if err != nil {
		t.Fatalf("completed: %v", err)
	}
	if res.Call.Status != StatusCompleted || res.Call.DurationSeconds != 45 || res.Call.CostCurrency != "USD" {
		t.Fatalf("unexpected call %+v", res.Call)
	}
	if res.Call.StartedAt == nil || res.Call.EndedAt == nil {
		t.Fatalf("expected started_at and ended_at")
	}

	// redelivery of the same terminal status
	if _, err := r.ApplyStatus(ctx, StatusUpdate{ProviderCallID: "CA1", Status: "completed", AnsweredBy: "human"}); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	if sink.success != 1 || sink.failure != 0 {
		t.Fatalf("expected exactly one success, got success=%d failure=%d", sink.success, sink.failure)
	}
	if len(sink.contacted) == 0 || sink.contacted[0] != "p_1" {
		t.Fatalf("expected prospect marked contacted")
	}
}

func TestReconciler_FailureStatusesCountAsFailed(t *testing.T) {
	for _, status := range []string{"busy", "no-answer", "failed"} {
		t.Run(status, func(t *testing.T) {
			r, _, sink, _ := newReconcileFixture(t)
			if _, err := r.ApplyStatus(context.Background(), StatusUpdate{ProviderCallID: "CA1", Status: status}); err != nil {
				t.Fatalf("apply: %v", err)
			}
			if sink.failure != 1 || sink.success != 0 {
				t.Fatalf("expected one failure, got %+v", sink)
			}
			if len(sink.contacted) != 0 {
				t.Fatalf("prospect must not be contacted")
			}
		})
	}
}

func TestReconciler_LateNonTerminalDoesNotReopen(t *testing.T) {
	ctx := context.Background()
	r, store, sink, c := newReconcileFixture(t)

	if _, err := r.ApplyStatus(ctx, StatusUpdate{ProviderCallID: "CA1", Status: "busy"}); err != nil {
		t.Fatalf("busy: %v", err)
	}
	if _, err := r.ApplyStatus(ctx, StatusUpdate{ProviderCallID: "CA1", Status: "ringing"}); err != nil {
		t.Fatalf("ringing: %v", err)
	}
	got, _ := store.FindCall(ctx, c.ID)
	if got.Status != StatusBusy {
		t.Fatalf("expected busy to stick, got %s", got.Status)
	}
	if sink.failure != 1 {
		t.Fatalf("expected single failure count, got %d", sink.failure)
	}
}

func TestReconciler_OutOfOrderStatusesNeverMoveBack(t *testing.T) {
	ctx := context.Background()
	r, store, _, c := newReconcileFixture(t)

	steps := []struct {
		reported string
		want     Status
	}{
		{"ringing", StatusRinging},
		{"in-progress", StatusInProgress},
		{"ringing", StatusInProgress},
		{"initiated", StatusInProgress},
		{"completed", StatusCompleted},
	}
	for _, st := range steps {
		res, err := r.ApplyStatus(ctx, StatusUpdate{ProviderCallID: "CA1", Status: st.reported})
		if err != nil {
			t.Fatalf("%s: %v", st.reported, err)
		}
		if res.Call.Status != st.want {
			t.Fatalf("after %s: expected %s, got %s", st.reported, st.want, res.Call.Status)
		}
	}
	got, _ := store.FindCall(ctx, c.ID)
	if got.StartedAt == nil || got.EndedAt == nil {
		t.Fatalf("expected start and end times, got %+v", got)
	}
}

func TestReconciler_CanceledDoesNotCount(t *testing.T) {
	r, _, sink, _ := newReconcileFixture(t)
	if _, err := r.ApplyStatus(context.Background(), StatusUpdate{ProviderCallID: "CA1", Status: "canceled"}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if sink.success+sink.failure != 0 {
		t.Fatalf("canceled must not move counters")
	}
}

func TestReconciler_Errors(t *testing.T) {
	ctx := context.Background()
	r, _, _, _ := newReconcileFixture(t)

	if _, err := r.ApplyStatus(ctx, StatusUpdate{ProviderCallID: "CA404", Status: "completed"}); !errors.Is(err, errs.ErrCallNotFound) {
		t.Fatalf("expected ErrCallNotFound, got %v", err)
	}
	if _, err := r.ApplyStatus(ctx, StatusUpdate{ProviderCallID: "CA1", Status: "exploded"}); !errors.Is(err, errs.ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
	if _, err := r.ApplyStatus(ctx, StatusUpdate{Status: "completed"}); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestReconciler_DeduperDropsRepeats(t *testing.T) {
	ctx := context.Background()
	r, _, sink, _ := newReconcileFixture(t)
	r.dedup = setDeduper{}

	first, err := r.ApplyStatus(ctx, StatusUpdate{ProviderCallID: "CA1", Status: "failed"})
	if err != nil || first.Duplicate {
		t.Fatalf("first delivery: %v %+v", err, first)
	}
	second, err := r.ApplyStatus(ctx, StatusUpdate{ProviderCallID: "CA1", Status: "failed"})
	if err != nil || !second.Duplicate {
		t.Fatalf("expected duplicate, got %v %+v", err, second)
	}
	if sink.failure != 1 {
		t.Fatalf("expected one failure, got %d", sink.failure)
	}
}

func TestReconciler_DeduperReleasedOnStoreError(t *testing.T) {
	ctx := context.Background()
	r, store, sink, _ := newReconcileFixture(t)
	d := setDeduper{}
	r.dedup = d
	r.store = brokenUpdates{store}

	if _, err := r.ApplyStatus(ctx, StatusUpdate{ProviderCallID: "CA1", Status: "completed"}); err == nil {
		t.Fatalf("expected store error")
	}
	if len(d) != 0 {
		t.Fatalf("expected key released, got %v", d)
	}

	r.store = store
	res, err := r.ApplyStatus(ctx, StatusUpdate{ProviderCallID: "CA1", Status: "completed"})
	if err != nil || res.Duplicate {
		t.Fatalf("redelivery: %v %+v", err, res)
	}
	if sink.success != 1 {
		t.Fatalf("expected one success, got %d", sink.success)
	}
}

func TestReconciler_AttachRecording(t *testing.T) {
	ctx := context.Background()
	r, _, _, _ := newReconcileFixture(t)

	c, err := r.AttachRecording(ctx, "CA1", "https://api.twilio.com/rec/RE1", "RE1")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if c.RecordingURL == "" || c.RecordingSID != "RE1" || c.Status != StatusQueued {
		t.Fatalf("unexpected call %+v", c)
	}
}
