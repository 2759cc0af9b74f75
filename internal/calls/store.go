package calls

import (
	"context"
	"encoding/json"
	"time"
)

// Store is the persistence contract for call records.
//
// Every operation is atomic at the single-record level. Writers must go
// through UpdateCall; no read-modify-write across calls.
type Store interface {
	CreateCall(ctx context.Context, c Call) (Call, error)

	// CreateCallWithinLimit inserts c only if fewer than limit calls exist for
	// c.CampaignID created at or after since. The count and the insert happen
	// atomically; when the cap is hit it returns errs.ErrDailyLimitReached.
	CreateCallWithinLimit(ctx context.Context, c Call, since time.Time, limit int) (Call, error)

	UpdateCall(ctx context.Context, id string, p Patch) (Update, error)
	FindCall(ctx context.Context, id string) (Call, error)
	FindCallByProviderID(ctx context.Context, providerCallID string) (Call, error)
	CountCalls(ctx context.Context, f Filter) (int, error)
	ListCalls(ctx context.Context, f Filter, page Page) ([]Call, error)
}

// Filter narrows CountCalls and ListCalls. Zero fields do not filter.
type Filter struct {
	CampaignID string
	ProspectID string
	Statuses   []Status

	// CreatedSince is inclusive, CreatedBefore exclusive.
	CreatedSince  time.Time
	CreatedBefore time.Time

	// CreatedAtOrBefore is inclusive; used by the retry cooldown.
	CreatedAtOrBefore time.Time
}

func (f Filter) matches(c Call) bool {
	if f.CampaignID != "" && c.CampaignID != f.CampaignID {
		return false
	}
	if f.ProspectID != "" && c.ProspectID != f.ProspectID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if c.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.CreatedSince.IsZero() && c.CreatedAt.Before(f.CreatedSince) {
		return false
	}
	if !f.CreatedBefore.IsZero() && !c.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	if !f.CreatedAtOrBefore.IsZero() && c.CreatedAt.After(f.CreatedAtOrBefore) {
		return false
	}
	return true
}

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

// Page controls ListCalls pagination. Newest first unless Oldest is set.
type Page struct {
	Limit  int
	Offset int
	Oldest bool
}

func (p Page) normalized() Page {
	out := p
	if out.Limit <= 0 {
		out.Limit = DefaultPageLimit
	}
	if out.Limit > MaxPageLimit {
		out.Limit = MaxPageLimit
	}
	if out.Offset < 0 {
		out.Offset = 0
	}
	return out
}

// Patch is a partial update. Nil fields are left untouched.
//
// Status only moves forward and a terminal status is sticky: a Status that
// the stored row cannot move to is ignored while the remaining fields still
// apply, so late webhooks can attach recordings or cost.
type Patch struct {
	Status          *Status
	ProviderCallID  *string
	DurationSeconds *int
	Cost            *string
	CostCurrency    *string
	ErrorCode       *string
	ErrorMessage    *string
	AnsweredBy      *AnsweredBy
	RecordingURL    *string
	RecordingSID    *string
	StartedAt       *time.Time
	EndedAt         *time.Time
	Metadata        json.RawMessage

	// SetStartedIfEmpty only fills StartedAt when the row has none.
	SetStartedIfEmpty bool
	// SetEndedIfEmpty only fills EndedAt when the row has none.
	SetEndedIfEmpty bool
}

// Update is the outcome of UpdateCall.
type Update struct {
	Call     Call
	Previous Status
}

// EnteredTerminal reports whether this update moved the call into a terminal status.
func (u Update) EnteredTerminal() bool {
	return !u.Previous.IsTerminal() && u.Call.Status.IsTerminal()
}

// apply mutates c according to p. Shared by MemoryStore and tests; the
// Postgres store expresses the same rules in SQL.
func (p Patch) apply(c *Call, now time.Time) {
	if p.Status != nil && c.Status.CanMoveTo(*p.Status) {
		c.Status = *p.Status
	}
	if p.ProviderCallID != nil {
		c.ProviderCallID = *p.ProviderCallID
	}
	if p.DurationSeconds != nil {
		c.DurationSeconds = *p.DurationSeconds
	}
	if p.Cost != nil {
		c.Cost = *p.Cost
	}
	if p.CostCurrency != nil {
		c.CostCurrency = *p.CostCurrency
	}
	if p.ErrorCode != nil {
		c.ErrorCode = *p.ErrorCode
	}
	if p.ErrorMessage != nil {
		c.ErrorMessage = *p.ErrorMessage
	}
	if p.AnsweredBy != nil {
		c.AnsweredBy = *p.AnsweredBy
	}
	if p.RecordingURL != nil {
		c.RecordingURL = *p.RecordingURL
	}
	if p.RecordingSID != nil {
		c.RecordingSID = *p.RecordingSID
	}
	if p.StartedAt != nil && (!p.SetStartedIfEmpty || c.StartedAt == nil) {
		t := *p.StartedAt
		c.StartedAt = &t
	}
	if p.EndedAt != nil && (!p.SetEndedIfEmpty || c.EndedAt == nil) {
		t := *p.EndedAt
		c.EndedAt = &t
	}
	if len(p.Metadata) > 0 {
		c.Metadata = append(json.RawMessage(nil), p.Metadata...)
	}
	c.UpdatedAt = now
}

// Ptr is a small helper for building patches.
func Ptr[T any](v T) *T { return &v }
