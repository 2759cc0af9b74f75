package placement

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"outbound-dialer/internal/calls"
	"outbound-dialer/internal/campaigns"
	"outbound-dialer/internal/errs"
	"outbound-dialer/internal/metrics"
	"outbound-dialer/internal/telephony"
)

// Campaigns is the slice of the campaigns service placement needs.
type Campaigns interface {
	Get(ctx context.Context, id string) (campaigns.Campaign, error)
	GetProspect(ctx context.Context, id string) (campaigns.Prospect, error)
	calls.OutcomeSink
}

// Config holds the placement knobs that come from the environment.
type Config struct {
	// DefaultFromNumber is used when a request carries no override.
	DefaultFromNumber string
	// BaseURL is the public origin providers call back to.
	BaseURL string
}

// DailyCap makes the call row creation conditional on the campaign having
// placed fewer than Limit calls since Since.
type DailyCap struct {
	Since time.Time
	Limit int
}

type Request struct {
	CampaignID string
	ProspectID string
	FromNumber string
	AudioURL   string
	Record     bool
	Cap        *DailyCap
}

type Result struct {
	Call    calls.Call
	Message string
}

const (
	MessageSimulated = "Call simulated successfully (Twilio not configured)"
	MessagePlaced    = "Call placed successfully"

	statusCallbackPath    = "/api/webhooks/twilio"
	recordingCallbackPath = "/api/webhooks/twilio/recording"
)

// Service places, cancels and refreshes individual calls. It never retries
// on its own; pacing and retries belong to the scheduler.
type Service struct {
	campaigns Campaigns
	store     calls.Store
	gateway   telephony.Gateway
	cfg       Config
	log       *slog.Logger
	clock     func() time.Time
}

func NewService(c Campaigns, store calls.Store, gw telephony.Gateway, cfg Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Service{campaigns: c, store: store, gateway: gw, cfg: cfg, log: log, clock: time.Now}
}

func (s *Service) now() time.Time { return s.clock().UTC() }

// Simulated reports whether the configured gateway fabricates calls.
func (s *Service) Simulated() bool { return s.gateway.Simulated() }

// PlaceCall creates exactly one call row and makes at most one provider call.
// A provider failure leaves the row failed, never queued.
func (s *Service) PlaceCall(ctx context.Context, req Request) (Result, error) {
	campaign, err := s.campaigns.Get(ctx, req.CampaignID)
	if err != nil {
		return Result{}, err
	}
	prospect, err := s.campaigns.GetProspect(ctx, req.ProspectID)
	if err != nil {
		return Result{}, err
	}
	if prospect.CampaignID != campaign.ID {
		return Result{}, errs.ErrProspectNotFound
	}

	from := req.FromNumber
	if from == "" {
		from = s.cfg.DefaultFromNumber
	}
	if from == "" {
		return Result{}, errs.ErrMissingFromNumber
	}
	audio := req.AudioURL
	if audio == "" {
		audio = campaign.AudioURL
	}
	if audio == "" {
		return Result{}, errs.ErrMissingAudio
	}
	twiml, err := telephony.RenderPlayTwiML(audio)
	if err != nil {
		return Result{}, errs.Invalid(err.Error())
	}

	row := calls.Call{
		CampaignID: campaign.ID,
		ProspectID: prospect.ID,
		FromNumber: from,
		ToNumber:   prospect.PhoneNumber,
		Direction:  calls.DirectionOutboundAPI,
		Status:     calls.StatusQueued,
	}
	var call calls.Call
	if req.Cap != nil {
		call, err = s.store.CreateCallWithinLimit(ctx, row, req.Cap.Since, req.Cap.Limit)
	} else {
		call, err = s.store.CreateCall(ctx, row)
	}
	if err != nil {
		if errors.Is(err, errs.ErrDailyLimitReached) {
			metrics.RecordCallPlaced(s.gateway.Name(), "rejected")
		}
		return Result{}, err
	}

	gwReq := telephony.PlaceCallRequest{
		To:                      call.ToNumber,
		From:                    call.FromNumber,
		TwiML:                   twiml,
		StatusCallback:          s.cfg.BaseURL + statusCallbackPath,
		StatusCallbackEvents:    telephony.StatusCallbackEvents,
		MachineDetection:        telephony.MachineDetectionDetectMessageEnd,
		MachineDetectionTimeout: telephony.DefaultMachineDetectionTimeout,
		Record:                  req.Record,
		Timeout:                 telephony.DefaultRingTimeout,
	}
	if req.Record {
		gwReq.RecordingStatusCallback = s.cfg.BaseURL + recordingCallbackPath
	}

	placed, gwErr := s.gateway.PlaceCall(ctx, gwReq)

	// The row exists now; finish it even if the caller went away.
	writeCtx := context.WithoutCancel(ctx)

	if gwErr != nil {
		if !errors.Is(gwErr, errs.ErrProvider) {
			gwErr = errs.Provider("Failed to place call", gwErr)
		}
		msg := errs.Message(gwErr, "Failed to place call")
		now := s.now()
		if _, err := s.store.UpdateCall(writeCtx, call.ID, calls.Patch{
			Status:       calls.Ptr(calls.StatusFailed),
			ErrorMessage: &msg,
			EndedAt:      &now,
		}); err != nil {
			s.log.Error("mark call failed", "call_id", call.ID, "err", err)
		}
		metrics.RecordCallPlaced(s.gateway.Name(), "provider_error")
		s.log.Warn("call placement failed", "call_id", call.ID, "campaign_id", call.CampaignID, "err", gwErr)
		return Result{}, gwErr
	}

	status, err := calls.ParseStatus(placed.Status)
	if err != nil {
		s.log.Warn("provider returned unknown initial status", "status", placed.Status, "call_sid", placed.ProviderCallID)
		status = calls.StatusQueued
	}
	started := s.now()
	upd, err := s.store.UpdateCall(writeCtx, call.ID, calls.Patch{
		ProviderCallID:    calls.Ptr(placed.ProviderCallID),
		Status:            &status,
		StartedAt:         &started,
		SetStartedIfEmpty: true,
	})
	if err != nil {
		return Result{}, err
	}

	if err := s.campaigns.MarkProspectContacted(writeCtx, prospect.ID); err != nil {
		s.log.Warn("advance prospect failed", "prospect_id", prospect.ID, "err", err)
	}

	metrics.RecordCallPlaced(s.gateway.Name(), "placed")
	msg := MessagePlaced
	if s.gateway.Simulated() {
		msg = MessageSimulated
	}
	s.log.Info("call placed",
		"call_id", upd.Call.ID, "call_sid", upd.Call.ProviderCallID,
		"campaign_id", upd.Call.CampaignID, "simulated", s.gateway.Simulated())
	return Result{Call: upd.Call, Message: msg}, nil
}

// CancelCall stops an in-flight call. Terminal calls are returned unchanged.
func (s *Service) CancelCall(ctx context.Context, id string) (calls.Call, error) {
	call, err := s.store.FindCall(ctx, id)
	if err != nil {
		return calls.Call{}, err
	}
	if call.Status.IsTerminal() {
		return call, nil
	}

	if call.ProviderCallID != "" && !s.gateway.Simulated() {
		if err := s.gateway.CancelCall(ctx, call.ProviderCallID); err != nil {
			return calls.Call{}, err
		}
	}

	now := s.now()
	upd, err := s.store.UpdateCall(context.WithoutCancel(ctx), id, calls.Patch{
		Status:          calls.Ptr(calls.StatusCanceled),
		EndedAt:         &now,
		SetEndedIfEmpty: true,
	})
	if err != nil {
		return calls.Call{}, err
	}
	return upd.Call, nil
}

// RefreshStatus pulls the provider's view of a call into the store. In
// simulation mode, or before the provider accepted the call, the stored row
// is returned as is.
func (s *Service) RefreshStatus(ctx context.Context, id string) (calls.Call, error) {
	call, err := s.store.FindCall(ctx, id)
	if err != nil {
		return calls.Call{}, err
	}
	if call.ProviderCallID == "" || s.gateway.Simulated() {
		return call, nil
	}

	st, err := s.gateway.GetCallStatus(ctx, call.ProviderCallID)
	if err != nil {
		return calls.Call{}, err
	}
	status, err := calls.ParseStatus(st.Status)
	if err != nil {
		s.log.Warn("provider returned unknown status", "status", st.Status, "call_id", id)
		return call, nil
	}

	p := calls.Patch{Status: &status, DurationSeconds: st.DurationSeconds}
	if st.Price != "" {
		p.Cost = calls.Ptr(st.Price)
		p.CostCurrency = calls.Ptr(strings.ToUpper(st.PriceUnit))
	}
	if status.IsTerminal() {
		now := s.now()
		p.EndedAt, p.SetEndedIfEmpty = &now, true
	}
	upd, err := s.store.UpdateCall(ctx, id, p)
	if err != nil {
		return calls.Call{}, err
	}
	if upd.EnteredTerminal() {
		if err := calls.RecordOutcome(ctx, s.campaigns, upd.Call); err != nil {
			s.log.Error("record call outcome failed", "call_id", id, "err", err)
		}
	}
	return upd.Call, nil
}

// ListResult is one page of calls plus the unpaged total.
type ListResult struct {
	Calls  []calls.Call `json:"calls"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

func (s *Service) ListCalls(ctx context.Context, f calls.Filter, page calls.Page) (ListResult, error) {
	total, err := s.store.CountCalls(ctx, f)
	if err != nil {
		return ListResult{}, err
	}
	list, err := s.store.ListCalls(ctx, f, page)
	if err != nil {
		return ListResult{}, err
	}
	limit := page.Limit
	if limit <= 0 {
		limit = calls.DefaultPageLimit
	}
	if limit > calls.MaxPageLimit {
		limit = calls.MaxPageLimit
	}
	return ListResult{Calls: list, Total: total, Limit: limit, Offset: page.Offset}, nil
}

// GetCall loads a stored call without contacting the provider.
func (s *Service) GetCall(ctx context.Context, id string) (calls.Call, error) {
	return s.store.FindCall(ctx, id)
}
