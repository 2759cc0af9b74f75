package campaigns

import (
	"context"
	"errors"
	"testing"
	"time"

	"outbound-dialer/internal/audit"
	"outbound-dialer/internal/errs"
)

func validInput() CreateInput {
	return CreateInput{
		Name:            "Q4 outreach",
		AudioURL:        "https://cdn.example.com/intro.mp3",
		DailyLimit:      50,
		CallWindowStart: "09:00",
		CallWindowEnd:   "17:00",
		Timezone:        "America/New_York",
		ActiveDays:      []int{5, 1, 2, 1},
		MaxAttempts:     3,
	}
}

func newTestService(t *testing.T) (*Service, *MemoryRepo, *audit.MemoryRepo) {
	t.Helper()
	now := time.Unix(1700000000, 0).UTC()
	repo := NewMemoryRepo()
	repo.Now = func() time.Time { return now }
	auditRepo := audit.NewMemoryRepo()
	svc := NewService(repo, audit.NewService(auditRepo), nil)
	svc.clock = func() time.Time { return now }
	return svc, repo, auditRepo
}

var owner = Actor{UserID: "u1", Role: "owner"}

func TestService_CreateNormalizesAndAudits(t *testing.T) {
	svc, _, auditRepo := newTestService(t)

	c, err := svc.Create(context.Background(), owner, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Status != StatusDraft || c.UserID != "u1" {
		t.Fatalf("unexpected campaign %+v", c)
	}
	if len(c.ActiveDays) != 3 || c.ActiveDays[0] != 1 || c.ActiveDays[2] != 5 {
		t.Fatalf("expected sorted unique days, got %v", c.ActiveDays)
	}
	if evs := auditRepo.Events(c.ID); len(evs) != 1 || evs[0].Type != audit.EventCampaignCreated {
		t.Fatalf("expected created event, got %+v", evs)
	}
}

func TestService_LaunchPauseComplete(t *testing.T) {
	ctx := context.Background()
	svc, _, auditRepo := newTestService(t)
	c, _ := svc.Create(ctx, owner, validInput())

	if _, err := svc.Pause(ctx, owner, c.ID); err == nil || err.Error() != "Only active campaigns can be paused" {
		t.Fatalf("expected pause rejection, got %v", err)
	}

	launched, err := svc.Launch(ctx, owner, c.ID)
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if launched.Status != StatusActive || launched.LaunchedAt == nil {
		t.Fatalf("expected active with launched_at, got %+v", launched)
	}
	if _, err := svc.Launch(ctx, owner, c.ID); err == nil || err.Error() != "Campaign is already active" {
		t.Fatalf("expected already active, got %v", err)
	}

	paused, err := svc.Pause(ctx, owner, c.ID)
	if err != nil || paused.Status != StatusPaused {
		t.Fatalf("pause: %v %+v", err, paused)
	}

	// resume keeps the first launch time
	resumed, err := svc.Launch(ctx, owner, c.ID)
	if err != nil || !resumed.LaunchedAt.Equal(*launched.LaunchedAt) {
		t.Fatalf("resume: %v %+v", err, resumed)
	}

	done, err := svc.Complete(ctx, owner, c.ID)
	if err != nil || done.Status != StatusCompleted || done.CompletedAt == nil {
		t.Fatalf("complete: %v %+v", err, done)
	}
	_, err = svc.Launch(ctx, owner, c.ID)
	if !errors.Is(err, errs.ErrInvalidTransition) || err.Error() != "Cannot launch a completed campaign" {
		t.Fatalf("expected completed launch rejection, got %v", err)
	}

	// create, launch, pause, resume, complete; rejected transitions are not audited
	if n := len(auditRepo.Events(c.ID)); n != 5 {
		t.Fatalf("expected 5 audit events, got %d", n)
	}
}

func TestService_OwnershipHidesOtherUsersCampaigns(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	c, _ := svc.Create(ctx, owner, validInput())

	stranger := Actor{UserID: "u2", Role: "owner"}
	if _, err := svc.Launch(ctx, stranger, c.ID); !errors.Is(err, errs.ErrCampaignNotFound) {
		t.Fatalf("expected not found for stranger, got %v", err)
	}
	admin := Actor{UserID: "root", Role: "super_admin", Admin: true}
	if _, err := svc.GetOwned(ctx, admin, c.ID); err != nil {
		t.Fatalf("admin should see campaign: %v", err)
	}
	list, _ := svc.List(ctx, stranger, "")
	if len(list) != 0 {
		t.Fatalf("stranger must not list campaigns")
	}
}

func TestService_ProspectsAndOutcomes(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(t)
	c, _ := svc.Create(ctx, owner, validInput())

	p1, err := svc.AddProspect(ctx, owner, c.ID, ProspectInput{FirstName: "Ada", LastName: "Lovelace", PhoneNumber: "+15550000001"})
	if err != nil {
		t.Fatalf("add prospect: %v", err)
	}
	_, _ = svc.AddProspect(ctx, owner, c.ID, ProspectInput{FirstName: "Alan", LastName: "Turing", PhoneNumber: "+15550000002"})
	if _, err := svc.AddProspect(ctx, owner, c.ID, ProspectInput{FirstName: "Bad", PhoneNumber: "555"}); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("expected invalid phone, got %v", err)
	}

	if err := svc.MarkProspectContacted(ctx, p1.ID); err != nil {
		t.Fatalf("mark contacted: %v", err)
	}
	pending, _ := svc.PendingProspects(ctx, c.ID)
	if len(pending) != 1 || pending[0].FirstName != "Alan" {
		t.Fatalf("expected only Alan pending, got %+v", pending)
	}

	// contacted prospects are not moved again
	if ok, _ := repo.AdvanceProspect(ctx, p1.ID, ProspectPending, ProspectContacted); ok {
		t.Fatalf("expected no change for already contacted prospect")
	}

	_ = svc.RecordCallOutcome(ctx, c.ID, true)
	_ = svc.RecordCallOutcome(ctx, c.ID, false)
	_ = svc.RecordCallOutcome(ctx, c.ID, false)
	got, _ := svc.Get(ctx, c.ID)
	if got.TotalCalls != 3 || got.SuccessfulCalls != 1 || got.FailedCalls != 2 {
		t.Fatalf("unexpected counters %+v", got)
	}
	if err := svc.RecordCallOutcome(ctx, "missing", true); !errors.Is(err, errs.ErrCampaignNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestActiveOn(t *testing.T) {
	c := Campaign{}
	if !c.ActiveOn(time.Sunday) {
		t.Fatalf("empty active days means every day")
	}
	c.ActiveDays = []int{1, 2, 3, 4, 5}
	if c.ActiveOn(time.Saturday) || !c.ActiveOn(time.Wednesday) {
		t.Fatalf("unexpected weekday gating")
	}
}
