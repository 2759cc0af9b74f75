package reporting

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"outbound-dialer/internal/calls"
	"outbound-dialer/internal/campaigns"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// CallSource pages through stored calls. calls.Store satisfies it.
type CallSource interface {
	ListCalls(ctx context.Context, f calls.Filter, page calls.Page) ([]calls.Call, error)
}

// ProspectSource lists a campaign's prospects. campaigns.Repository satisfies it.
type ProspectSource interface {
	ListProspects(ctx context.Context, campaignID string, status campaigns.ProspectStatus) ([]campaigns.Prospect, error)
}

// Service computes read-only aggregates; it never writes.
type Service struct {
	calls     CallSource
	prospects ProspectSource
}

func NewService(cs CallSource, ps ProspectSource) *Service {
	return &Service{calls: cs, prospects: ps}
}

func (r TimeRange) valid() bool {
	if r.From.IsZero() || r.To.IsZero() {
		return true
	}
	return r.To.After(r.From)
}

func (s *Service) loadCalls(ctx context.Context, req StatsRequest) ([]calls.Call, error) {
	if req.CampaignID == "" || !req.Range.valid() {
		return nil, ErrInvalidRequest
	}
	if s.calls == nil {
		return nil, errors.New("reporting: call source not configured")
	}
	f := calls.Filter{CampaignID: req.CampaignID, CreatedSince: req.Range.From, CreatedBefore: req.Range.To}
	page := calls.Page{Limit: calls.MaxPageLimit, Oldest: true}

	var out []calls.Call
	for {
		batch, err := s.calls.ListCalls(ctx, f, page)
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

func (s *Service) CallStats(ctx context.Context, req StatsRequest) (CallStats, error) {
	rows, err := s.loadCalls(ctx, req)
	if err != nil {
		return CallStats{}, err
	}

	out := CallStats{CampaignID: req.CampaignID}
	withDuration := 0
	for _, c := range rows {
		out.TotalCalls++
		switch c.Status {
		case calls.StatusQueued:
			out.QueuedCalls++
		case calls.StatusRinging:
			out.RingingCalls++
		case calls.StatusInProgress:
			out.InProgressCalls++
		case calls.StatusCompleted:
			out.CompletedCalls++
		case calls.StatusFailed:
			out.FailedCalls++
		case calls.StatusBusy:
			out.BusyCalls++
		case calls.StatusNoAnswer:
			out.NoAnswerCalls++
		case calls.StatusCanceled:
			out.CanceledCalls++
		}

		switch {
		case c.AnsweredBy.IsHuman():
			out.AnsweredByHuman++
		case c.AnsweredBy.IsMachine():
			out.AnsweredByMachine++
		}

		if c.DurationSeconds > 0 {
			withDuration++
			out.TotalDurationSeconds += c.DurationSeconds
		}
		if c.Cost != "" {
			if v, err := strconv.ParseFloat(strings.TrimSpace(c.Cost), 64); err == nil {
				out.TotalCost += math.Abs(v)
				if out.CostCurrency == "" {
					out.CostCurrency = c.CostCurrency
				}
			}
		}
		if c.RecordingURL != "" {
			out.RecordedCalls++
		}
	}

	if withDuration > 0 {
		out.AverageDurationSeconds = round(float64(out.TotalDurationSeconds)/float64(withDuration), 2)
	}
	out.TotalCost = round(out.TotalCost, 4)
	return out, nil
}

func (s *Service) ConversionMetrics(ctx context.Context, req StatsRequest) (ConversionMetrics, error) {
	rows, err := s.loadCalls(ctx, req)
	if err != nil {
		return ConversionMetrics{}, err
	}
	if s.prospects == nil {
		return ConversionMetrics{}, errors.New("reporting: prospect source not configured")
	}
	prospects, err := s.prospects.ListProspects(ctx, req.CampaignID, "")
	if err != nil {
		return ConversionMetrics{}, err
	}

	out := ConversionMetrics{CampaignID: req.CampaignID, CallsAttempted: len(rows)}
	for _, c := range rows {
		if c.Status == calls.StatusCompleted && !c.AnsweredBy.IsMachine() {
			out.CallsConnected++
		}
	}
	for _, p := range prospects {
		switch p.Status {
		case campaigns.ProspectInterested:
			out.Interested++
		case campaigns.ProspectConverted:
			out.Conversions++
		case campaigns.ProspectPending, campaigns.ProspectContacted, campaigns.ProspectNotInterested:
		}
	}

	if out.CallsAttempted > 0 {
		out.ConnectionRate = round(float64(out.CallsConnected)/float64(out.CallsAttempted), 4)
		out.ConversionRate = round(float64(out.Conversions)/float64(out.CallsAttempted), 4)
	}
	return out, nil
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
