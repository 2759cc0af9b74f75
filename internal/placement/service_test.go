package placement

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"outbound-dialer/internal/calls"
	"outbound-dialer/internal/campaigns"
	"outbound-dialer/internal/errs"
	"outbound-dialer/internal/telephony"
)

type fakeGateway struct {
	simulated bool
	placeErr  error
	status    string
	refresh   telephony.CallStatusResult

	placed   []telephony.PlaceCallRequest
	canceled []string
}

func (g *fakeGateway) Name() string    { return "fake" }
func (g *fakeGateway) Simulated() bool { return g.simulated }

func (g *fakeGateway) PlaceCall(ctx context.Context, req telephony.PlaceCallRequest) (telephony.PlaceCallResult, error) {
	g.placed = append(g.placed, req)
	if g.placeErr != nil {
		return telephony.PlaceCallResult{}, g.placeErr
	}
	st := g.status
	if st == "" {
		st = "queued"
	}
	return telephony.PlaceCallResult{ProviderCallID: "CA0001", Status: st, To: req.To, From: req.From}, nil
}

func (g *fakeGateway) GetCallStatus(ctx context.Context, sid string) (telephony.CallStatusResult, error) {
	return g.refresh, nil
}

func (g *fakeGateway) CancelCall(ctx context.Context, sid string) error {
	g.canceled = append(g.canceled, sid)
	return nil
}

type fixture struct {
	svc      *Service
	store    *calls.MemoryStore
	repo     *campaigns.MemoryRepo
	gw       *fakeGateway
	campaign campaigns.Campaign
	prospect campaigns.Prospect
	cs       *campaigns.Service
}

func newFixture(t *testing.T, gw *fakeGateway) *fixture {
	t.Helper()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	repo := campaigns.NewMemoryRepo()
	repo.Now = func() time.Time { return now }
	store := calls.NewMemoryStore()
	store.Now = func() time.Time { return now }

	c, err := repo.CreateCampaign(ctx, campaigns.Campaign{
		UserID:          "u1",
		Name:            "Q4",
		AudioURL:        "https://cdn.example.com/intro.mp3",
		DailyLimit:      10,
		CallWindowStart: "09:00",
		CallWindowEnd:   "17:00",
		Timezone:        "UTC",
		Status:          campaigns.StatusActive,
	})
	if err != nil {
		t.Fatalf("campaign: %v", err)
	}
	p, err := repo.CreateProspect(ctx, campaigns.Prospect{CampaignID: c.ID, FirstName: "Ada", LastName: "Lovelace", PhoneNumber: "+15550001111"})
	if err != nil {
		t.Fatalf("prospect: %v", err)
	}

	cs := campaigns.NewService(repo, nil, nil)
	svc := NewService(cs, store, gw, Config{DefaultFromNumber: "+15559990000", BaseURL: "https://dialer.example.com/"}, nil)
	svc.clock = func() time.Time { return now }
	return &fixture{svc: svc, store: store, repo: repo, gw: gw, campaign: c, prospect: p, cs: cs}
}

func TestPlaceCall_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeGateway{status: "ringing"})

	res, err := f.svc.PlaceCall(ctx, Request{CampaignID: f.campaign.ID, ProspectID: f.prospect.ID, Record: true})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if res.Message != MessagePlaced {
		t.Fatalf("unexpected message %q", res.Message)
	}
	if res.Call.ProviderCallID != "CA0001" || res.Call.Status != calls.StatusRinging || res.Call.StartedAt == nil {
		t.Fatalf("unexpected call %+v", res.Call)
	}
	if res.Call.FromNumber != "+15559990000" || res.Call.ToNumber != "+15550001111" {
		t.Fatalf("unexpected numbers %+v", res.Call)
	}

	if len(f.gw.placed) != 1 {
		t.Fatalf("expected one provider call, got %d", len(f.gw.placed))
	}
	req := f.gw.placed[0]
	if req.StatusCallback != "https://dialer.example.com/api/webhooks/twilio" {
		t.Fatalf("unexpected status callback %q", req.StatusCallback)
	}
	if req.RecordingStatusCallback != "https://dialer.example.com/api/webhooks/twilio/recording" {
		t.Fatalf("unexpected recording callback %q", req.RecordingStatusCallback)
	}
	if req.MachineDetection != telephony.MachineDetectionDetectMessageEnd || req.Timeout != 60 {
		t.Fatalf("unexpected request %+v", req)
	}
	if !strings.Contains(req.TwiML, "<Play>https://cdn.example.com/intro.mp3</Play>") {
		t.Fatalf("unexpected twiml %q", req.TwiML)
	}

	p, _ := f.repo.GetProspect(ctx, f.prospect.ID)
	if p.Status != campaigns.ProspectContacted {
		t.Fatalf("expected prospect contacted, got %s", p.Status)
	}
}

func TestPlaceCall_SimulatedMessage(t *testing.T) {
	f := newFixture(t, &fakeGateway{simulated: true})
	res, err := f.svc.PlaceCall(context.Background(), Request{CampaignID: f.campaign.ID, ProspectID: f.prospect.ID})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if res.Message != MessageSimulated {
		t.Fatalf("unexpected message %q", res.Message)
	}
}

func TestPlaceCall_SimulatedGateway(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.svc.gateway = telephony.NewSimulatedGateway(nil, nil)

	res, err := f.svc.PlaceCall(ctx, Request{CampaignID: f.campaign.ID, ProspectID: f.prospect.ID})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if !strings.HasPrefix(res.Call.ProviderCallID, "CA") || len(res.Call.ProviderCallID) != 34 {
		t.Fatalf("unexpected sid %q", res.Call.ProviderCallID)
	}
}

func TestPlaceCall_ProviderFailureMarksRowFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeGateway{placeErr: errs.Provider("Twilio API error: 401 - Authenticate (code 20003)", nil)})

	_, err := f.svc.PlaceCall(ctx, Request{CampaignID: f.campaign.ID, ProspectID: f.prospect.ID})
	if !errors.Is(err, errs.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}

	rows := f.store.Calls()
	if len(rows) != 1 {
		t.Fatalf("expected exactly one call row, got %d", len(rows))
	}
	if rows[0].Status != calls.StatusFailed || rows[0].EndedAt == nil {
		t.Fatalf("expected failed row, got %+v", rows[0])
	}
	if !strings.Contains(rows[0].ErrorMessage, "401") {
		t.Fatalf("expected error detail captured, got %q", rows[0].ErrorMessage)
	}

	p, _ := f.repo.GetProspect(ctx, f.prospect.ID)
	if p.Status != campaigns.ProspectPending {
		t.Fatalf("failed placement must not advance prospect, got %s", p.Status)
	}
}

func TestPlaceCall_PlainErrorIsWrapped(t *testing.T) {
	f := newFixture(t, &fakeGateway{placeErr: errors.New("dial tcp: timeout")})
	_, err := f.svc.PlaceCall(context.Background(), Request{CampaignID: f.campaign.ID, ProspectID: f.prospect.ID})
	if !errors.Is(err, errs.ErrProvider) {
		t.Fatalf("expected provider kind, got %v", err)
	}
	if rows := f.store.Calls(); rows[0].ErrorMessage != "Failed to place call" {
		t.Fatalf("unexpected error message %q", rows[0].ErrorMessage)
	}
}

func TestPlaceCall_ValidationFailuresCreateNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeGateway{})

	if _, err := f.svc.PlaceCall(ctx, Request{CampaignID: "missing", ProspectID: f.prospect.ID}); !errors.Is(err, errs.ErrCampaignNotFound) {
		t.Fatalf("expected campaign not found, got %v", err)
	}
	if _, err := f.svc.PlaceCall(ctx, Request{CampaignID: f.campaign.ID, ProspectID: "missing"}); !errors.Is(err, errs.ErrProspectNotFound) {
		t.Fatalf("expected prospect not found, got %v", err)
	}

	f.svc.cfg.DefaultFromNumber = ""
	if _, err := f.svc.PlaceCall(ctx, Request{CampaignID: f.campaign.ID, ProspectID: f.prospect.ID}); !errors.Is(err, errs.ErrMissingFromNumber) {
		t.Fatalf("expected missing from number, got %v", err)
	}

	noAudio, _ := f.repo.CreateCampaign(ctx, campaigns.Campaign{UserID: "u1", Name: "silent", Status: campaigns.StatusActive})
	p, _ := f.repo.CreateProspect(ctx, campaigns.Prospect{CampaignID: noAudio.ID, PhoneNumber: "+15550002222"})
	_, err := f.svc.PlaceCall(ctx, Request{CampaignID: noAudio.ID, ProspectID: p.ID, FromNumber: "+15550003333"})
	if !errors.Is(err, errs.ErrMissingAudio) || errs.Message(err, "") != "No audio URL available for this campaign" {
		t.Fatalf("expected missing audio, got %v", err)
	}

	if n := len(f.store.Calls()); n != 0 {
		t.Fatalf("expected no call rows, got %d", n)
	}
	if n := len(f.gw.placed); n != 0 {
		t.Fatalf("expected no provider calls, got %d", n)
	}
}

func TestPlaceCall_DailyCap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeGateway{})
	since := time.Unix(1700000000, 0).Add(-time.Hour)

	req := Request{CampaignID: f.campaign.ID, ProspectID: f.prospect.ID, Cap: &DailyCap{Since: since, Limit: 1}}
	if _, err := f.svc.PlaceCall(ctx, req); err != nil {
		t.Fatalf("first place: %v", err)
	}
	if _, err := f.svc.PlaceCall(ctx, req); !errors.Is(err, errs.ErrDailyLimitReached) {
		t.Fatalf("expected daily limit, got %v", err)
	}
	if n := len(f.gw.placed); n != 1 {
		t.Fatalf("expected one provider call, got %d", n)
	}
}

func TestCancelCall(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeGateway{})
	res, _ := f.svc.PlaceCall(ctx, Request{CampaignID: f.campaign.ID, ProspectID: f.prospect.ID})

	got, err := f.svc.CancelCall(ctx, res.Call.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != calls.StatusCanceled || got.EndedAt == nil {
		t.Fatalf("unexpected call %+v", got)
	}
	if len(f.gw.canceled) != 1 || f.gw.canceled[0] != "CA0001" {
		t.Fatalf("expected provider cancel, got %v", f.gw.canceled)
	}

	// terminal calls are returned untouched
	again, err := f.svc.CancelCall(ctx, res.Call.ID)
	if err != nil || again.Status != calls.StatusCanceled || len(f.gw.canceled) != 1 {
		t.Fatalf("second cancel: %v %+v", err, again)
	}

	if _, err := f.svc.CancelCall(ctx, "missing"); !errors.Is(err, errs.ErrCallNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCancelCall_SimulatedSkipsProvider(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeGateway{simulated: true})
	res, _ := f.svc.PlaceCall(ctx, Request{CampaignID: f.campaign.ID, ProspectID: f.prospect.ID})

	got, err := f.svc.CancelCall(ctx, res.Call.ID)
	if err != nil || got.Status != calls.StatusCanceled {
		t.Fatalf("cancel: %v %+v", err, got)
	}
	if len(f.gw.canceled) != 0 {
		t.Fatalf("simulated cancel must not reach the provider")
	}
}

func TestRefreshStatus_CountsOutcomeOnce(t *testing.T) {
	ctx := context.Background()
	d := 30
	gw := &fakeGateway{refresh: telephony.CallStatusResult{Status: "completed", DurationSeconds: &d, Price: "-0.0130", PriceUnit: "usd"}}
	f := newFixture(t, gw)
	res, _ := f.svc.PlaceCall(ctx, Request{CampaignID: f.campaign.ID, ProspectID: f.prospect.ID})

	for i := 0; i < 2; i++ {
		got, err := f.svc.RefreshStatus(ctx, res.Call.ID)
		if err != nil {
			t.Fatalf("refresh: %v", err)
		}
		if got.Status != calls.StatusCompleted || got.DurationSeconds != 30 || got.CostCurrency != "USD" {
			t.Fatalf("unexpected call %+v", got)
		}
	}

	c, _ := f.repo.GetCampaign(ctx, f.campaign.ID)
	if c.TotalCalls != 1 || c.SuccessfulCalls != 1 || c.FailedCalls != 0 {
		t.Fatalf("expected counters bumped once, got %+v", c)
	}
}

func TestRefreshStatus_SimulatedReturnsStored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeGateway{simulated: true, refresh: telephony.CallStatusResult{Status: "failed"}})
	res, _ := f.svc.PlaceCall(ctx, Request{CampaignID: f.campaign.ID, ProspectID: f.prospect.ID})

	got, err := f.svc.RefreshStatus(ctx, res.Call.ID)
	if err != nil || got.Status != calls.StatusQueued {
		t.Fatalf("expected stored row, got %v %+v", err, got)
	}
}

func TestListCalls(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeGateway{})
	for i := 0; i < 3; i++ {
		if _, err := f.svc.PlaceCall(ctx, Request{CampaignID: f.campaign.ID, ProspectID: f.prospect.ID}); err != nil {
			t.Fatalf("place: %v", err)
		}
	}

	res, err := f.svc.ListCalls(ctx, calls.Filter{CampaignID: f.campaign.ID}, calls.Page{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Total != 3 || len(res.Calls) != 2 || res.Limit != 2 {
		t.Fatalf("unexpected page %+v", res)
	}
}
