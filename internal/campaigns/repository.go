package campaigns

import (
	"context"
	"time"
)

// Repository is the persistence contract for campaigns and prospects.
//
// TransitionStatus and the counter/prospect updates are conditional single
// statements so concurrent callers never read-modify-write.
type Repository interface {
	CreateCampaign(ctx context.Context, c Campaign) (Campaign, error)
	GetCampaign(ctx context.Context, id string) (Campaign, error)
	ListCampaigns(ctx context.Context, f ListFilter) ([]Campaign, error)

	// TransitionStatus moves the campaign to `to` only when its current status
	// is one of from. It returns errs.ErrInvalidTransition otherwise.
	TransitionStatus(ctx context.Context, id string, from []Status, to Status, at time.Time) (Campaign, error)

	IncrementCounters(ctx context.Context, id string, total, successful, failed int) error

	CreateProspect(ctx context.Context, p Prospect) (Prospect, error)
	GetProspect(ctx context.Context, id string) (Prospect, error)
	// ListProspects returns prospects in creation order. An empty status lists all.
	ListProspects(ctx context.Context, campaignID string, status ProspectStatus) ([]Prospect, error)

	// AdvanceProspect sets `to` only when the prospect is currently `from`.
	// It reports whether a row changed.
	AdvanceProspect(ctx context.Context, id string, from, to ProspectStatus) (bool, error)
}
