package calls

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"outbound-dialer/internal/errs"
)

// StatusUpdate is a provider status callback, already decoded from the wire.
type StatusUpdate struct {
	ProviderCallID string
	Status         string

	DurationSeconds *int
	Price           string
	PriceUnit       string
	AnsweredBy      string
	ErrorCode       string
	ErrorMessage    string
	RecordingURL    string
	RecordingSID    string
}

// OutcomeSink receives the campaign side effects of a call reaching a
// terminal status. Implemented by the campaigns service.
type OutcomeSink interface {
	RecordCallOutcome(ctx context.Context, campaignID string, success bool) error
	MarkProspectContacted(ctx context.Context, prospectID string) error
}

// Deduper drops repeated deliveries of the same webhook.
// AcquireOnce returns true the first time key is seen; Release undoes it
// when the delivery could not be applied.
type Deduper interface {
	AcquireOnce(ctx context.Context, key string) bool
	Release(ctx context.Context, key string)
}

// ReconcileResult describes what a status update did.
type ReconcileResult struct {
	Call      Call
	Previous  Status
	Duplicate bool
}

// Reconciler applies provider status callbacks to stored calls.
type Reconciler struct {
	store Store
	sink  OutcomeSink
	dedup Deduper
	log   *slog.Logger

	// Now is injectable for deterministic tests.
	Now func() time.Time
}

func NewReconciler(store Store, sink OutcomeSink, dedup Deduper, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{store: store, sink: sink, dedup: dedup, log: log, Now: time.Now}
}

func (r *Reconciler) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}

// ApplyStatus reconciles one status callback.
//
// Unknown call IDs return errs.ErrCallNotFound and unknown statuses
// errs.ErrUnknownStatus; callers ack both. Counters move only when this
// update is the one that took the call into a terminal status.
func (r *Reconciler) ApplyStatus(ctx context.Context, u StatusUpdate) (res ReconcileResult, err error) {
	sid := strings.TrimSpace(u.ProviderCallID)
	if sid == "" {
		return ReconcileResult{}, errs.Invalid("CallSid is required")
	}
	status, err := ParseStatus(u.Status)
	if err != nil {
		return ReconcileResult{}, err
	}

	if r.dedup != nil {
		key := "webhook:" + sid + ":" + string(status)
		if !r.dedup.AcquireOnce(ctx, key) {
			return ReconcileResult{Duplicate: true}, nil
		}
		defer func() {
			if err != nil && !errors.Is(err, errs.ErrNotFound) {
				r.dedup.Release(ctx, key)
			}
		}()
	}

	existing, err := r.store.FindCallByProviderID(ctx, sid)
	if err != nil {
		return ReconcileResult{}, err
	}

	now := r.now()
	p := Patch{Status: &status}
	if u.DurationSeconds != nil {
		p.DurationSeconds = u.DurationSeconds
	}
	if u.Price != "" {
		p.Cost = Ptr(u.Price)
		if u.PriceUnit != "" {
			p.CostCurrency = Ptr(strings.ToUpper(u.PriceUnit))
		}
	}
	answeredBy := ParseAnsweredBy(u.AnsweredBy)
	if answeredBy != "" {
		p.AnsweredBy = &answeredBy
	}
	if u.ErrorCode != "" {
		p.ErrorCode = Ptr(u.ErrorCode)
	}
	if u.ErrorMessage != "" {
		p.ErrorMessage = Ptr(u.ErrorMessage)
	}
	if u.RecordingURL != "" {
		p.RecordingURL = Ptr(u.RecordingURL)
	}
	if u.RecordingSID != "" {
		p.RecordingSID = Ptr(u.RecordingSID)
	}
	switch status {
	case StatusInProgress:
		p.StartedAt, p.SetStartedIfEmpty = &now, true
	case StatusCompleted, StatusFailed, StatusBusy, StatusNoAnswer, StatusCanceled:
		p.EndedAt, p.SetEndedIfEmpty = &now, true
	case StatusQueued, StatusRinging:
	}

	upd, err := r.store.UpdateCall(ctx, existing.ID, p)
	if err != nil {
		return ReconcileResult{}, err
	}

	if upd.Call.Status != status {
		r.log.Warn("ignored out of order status",
			"call_id", upd.Call.ID, "status", upd.Call.Status, "reported", status)
	}

	if upd.EnteredTerminal() {
		r.applyOutcome(ctx, upd.Call)
	}
	if status == StatusCompleted && upd.Call.Status == StatusCompleted && answeredBy.IsHuman() && r.sink != nil {
		if err := r.sink.MarkProspectContacted(ctx, upd.Call.ProspectID); err != nil && !errors.Is(err, errs.ErrNotFound) {
			r.log.Error("mark prospect contacted failed", "prospect_id", upd.Call.ProspectID, "err", err)
		}
	}

	return ReconcileResult{Call: upd.Call, Previous: upd.Previous}, nil
}

func (r *Reconciler) applyOutcome(ctx context.Context, c Call) {
	if err := RecordOutcome(ctx, r.sink, c); err != nil {
		r.log.Error("record call outcome failed", "campaign_id", c.CampaignID, "call_id", c.ID, "err", err)
	}
}

// RecordOutcome forwards the counter effect of a call that just became
// terminal. Canceled calls and a nil sink are no-ops.
func RecordOutcome(ctx context.Context, sink OutcomeSink, c Call) error {
	if sink == nil {
		return nil
	}
	switch c.Status.Outcome() {
	case OutcomeSuccess:
		return sink.RecordCallOutcome(ctx, c.CampaignID, true)
	case OutcomeFailure:
		return sink.RecordCallOutcome(ctx, c.CampaignID, false)
	case OutcomeNone:
	}
	return nil
}

// AttachRecording stores a recording reported after the call ended.
func (r *Reconciler) AttachRecording(ctx context.Context, providerCallID, url, recordingSID string) (Call, error) {
	if strings.TrimSpace(providerCallID) == "" {
		return Call{}, errs.Invalid("CallSid is required")
	}
	existing, err := r.store.FindCallByProviderID(ctx, providerCallID)
	if err != nil {
		return Call{}, err
	}
	p := Patch{}
	if url != "" {
		p.RecordingURL = Ptr(url)
	}
	if recordingSID != "" {
		p.RecordingSID = Ptr(recordingSID)
	}
	upd, err := r.store.UpdateCall(ctx, existing.ID, p)
	if err != nil {
		return Call{}, err
	}
	return upd.Call, nil
}
