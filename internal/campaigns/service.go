package campaigns

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"outbound-dialer/internal/audit"
	"outbound-dialer/internal/errs"

	"github.com/go-playground/validator/v10"
)

// Auditor receives lifecycle events. *audit.Service satisfies it.
type Auditor interface {
	LogCampaign(ctx context.Context, typ audit.EventType, actor audit.Actor, campaignID, message string) error
}

// Actor is the caller on whose behalf the service acts.
// Admin bypasses the ownership check.
type Actor struct {
	UserID string
	Role   string
	IP     string
	Admin  bool
}

func (a Actor) audit() audit.Actor {
	return audit.Actor{UserID: a.UserID, Role: a.Role, IP: a.IP}
}

// Service owns campaign lifecycle and prospect bookkeeping.
type Service struct {
	repo     Repository
	auditor  Auditor
	validate *validator.Validate
	log      *slog.Logger
	clock    func() time.Time
}

func NewService(repo Repository, auditor Auditor, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:     repo,
		auditor:  auditor,
		validate: NewValidator(),
		log:      log,
		clock:    time.Now,
	}
}

// Repo exposes the underlying repository to read-only collaborators.
func (s *Service) Repo() Repository { return s.repo }

func (s *Service) now() time.Time { return s.clock().UTC() }

func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (Campaign, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return Campaign{}, errs.Invalid(validationMessages(err))
	}

	c, err := s.repo.CreateCampaign(ctx, Campaign{
		UserID:          actor.UserID,
		Name:            in.Name,
		AudioURL:        in.AudioURL,
		DailyLimit:      in.DailyLimit,
		CallWindowStart: in.CallWindowStart,
		CallWindowEnd:   in.CallWindowEnd,
		Timezone:        in.Timezone,
		ActiveDays:      dedupeDays(in.ActiveDays),
		MaxAttempts:     in.MaxAttempts,
		Status:          StatusDraft,
		CreatedAt:       s.now(),
	})
	if err != nil {
		return Campaign{}, err
	}
	s.record(ctx, audit.EventCampaignCreated, actor, c.ID, "campaign created")
	return c, nil
}

// Get loads a campaign without an ownership check. Used by internal callers.
func (s *Service) Get(ctx context.Context, id string) (Campaign, error) {
	return s.repo.GetCampaign(ctx, id)
}

// GetOwned loads a campaign the actor may see. Campaigns of other users are
// reported as not found.
func (s *Service) GetOwned(ctx context.Context, actor Actor, id string) (Campaign, error) {
	c, err := s.repo.GetCampaign(ctx, id)
	if err != nil {
		return Campaign{}, err
	}
	if !actor.Admin && c.UserID != actor.UserID {
		return Campaign{}, errs.ErrCampaignNotFound
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, actor Actor, status Status) ([]Campaign, error) {
	f := ListFilter{Status: status}
	if !actor.Admin {
		f.UserID = actor.UserID
	}
	return s.repo.ListCampaigns(ctx, f)
}

// ListActive returns every active campaign. Used by the worker sweep.
func (s *Service) ListActive(ctx context.Context) ([]Campaign, error) {
	return s.repo.ListCampaigns(ctx, ListFilter{Status: StatusActive})
}

// Launch starts a draft campaign or resumes a paused one.
func (s *Service) Launch(ctx context.Context, actor Actor, id string) (Campaign, error) {
	c, err := s.GetOwned(ctx, actor, id)
	if err != nil {
		return Campaign{}, err
	}
	switch c.Status {
	case StatusActive:
		return Campaign{}, errs.Transition("Campaign is already active")
	case StatusCompleted:
		return Campaign{}, errs.Transition("Cannot launch a completed campaign")
	case StatusDraft, StatusPaused:
	}
	out, err := s.repo.TransitionStatus(ctx, id, []Status{StatusDraft, StatusPaused}, StatusActive, s.now())
	if err != nil {
		return Campaign{}, err
	}
	s.record(ctx, audit.EventCampaignLaunched, actor, id, "Campaign launched successfully")
	return out, nil
}

func (s *Service) Pause(ctx context.Context, actor Actor, id string) (Campaign, error) {
	c, err := s.GetOwned(ctx, actor, id)
	if err != nil {
		return Campaign{}, err
	}
	if c.Status != StatusActive {
		return Campaign{}, errs.Transition("Only active campaigns can be paused")
	}
	out, err := s.repo.TransitionStatus(ctx, id, []Status{StatusActive}, StatusPaused, s.now())
	if err != nil {
		return Campaign{}, err
	}
	s.record(ctx, audit.EventCampaignPaused, actor, id, "Campaign paused successfully")
	return out, nil
}

func (s *Service) Complete(ctx context.Context, actor Actor, id string) (Campaign, error) {
	c, err := s.GetOwned(ctx, actor, id)
	if err != nil {
		return Campaign{}, err
	}
	if c.Status == StatusCompleted {
		return Campaign{}, errs.Transition("Campaign is already completed")
	}
	out, err := s.repo.TransitionStatus(ctx, id, []Status{StatusDraft, StatusActive, StatusPaused}, StatusCompleted, s.now())
	if err != nil {
		return Campaign{}, err
	}
	s.record(ctx, audit.EventCampaignCompleted, actor, id, "Campaign completed")
	return out, nil
}

func (s *Service) AddProspect(ctx context.Context, actor Actor, campaignID string, in ProspectInput) (Prospect, error) {
	if _, err := s.GetOwned(ctx, actor, campaignID); err != nil {
		return Prospect{}, err
	}
	if err := s.validate.Struct(in); err != nil {
		return Prospect{}, errs.Invalid(validationMessages(err))
	}
	return s.repo.CreateProspect(ctx, Prospect{
		CampaignID:  campaignID,
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		CompanyName: in.CompanyName,
		ContactRole: in.ContactRole,
		Email:       in.Email,
		PhoneNumber: in.PhoneNumber,
		Notes:       in.Notes,
		Status:      ProspectPending,
		CreatedAt:   s.now(),
	})
}

func (s *Service) GetProspect(ctx context.Context, id string) (Prospect, error) {
	return s.repo.GetProspect(ctx, id)
}

func (s *Service) ListProspects(ctx context.Context, campaignID string, status ProspectStatus) ([]Prospect, error) {
	return s.repo.ListProspects(ctx, campaignID, status)
}

// PendingProspects returns the prospects eligible for fresh dispatch, oldest first.
func (s *Service) PendingProspects(ctx context.Context, campaignID string) ([]Prospect, error) {
	return s.repo.ListProspects(ctx, campaignID, ProspectPending)
}

// RecordCallOutcome bumps campaign counters for a call that just ended.
func (s *Service) RecordCallOutcome(ctx context.Context, campaignID string, success bool) error {
	if success {
		return s.repo.IncrementCounters(ctx, campaignID, 1, 1, 0)
	}
	return s.repo.IncrementCounters(ctx, campaignID, 1, 0, 1)
}

// MarkProspectContacted moves a pending prospect to contacted. Prospects
// already further along are left alone.
func (s *Service) MarkProspectContacted(ctx context.Context, prospectID string) error {
	_, err := s.repo.AdvanceProspect(ctx, prospectID, ProspectPending, ProspectContacted)
	return err
}

func (s *Service) record(ctx context.Context, typ audit.EventType, actor Actor, campaignID, msg string) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.LogCampaign(ctx, typ, actor.audit(), campaignID, msg); err != nil {
		s.log.Warn("audit append failed", "type", typ, "campaign_id", campaignID, "err", err)
	}
}

// IsNotFound reports whether err is a campaign or prospect lookup miss.
func IsNotFound(err error) bool { return errors.Is(err, errs.ErrNotFound) }

func dedupeDays(days []int) []int {
	if len(days) == 0 {
		return nil
	}
	seen := map[int]bool{}
	out := make([]int, 0, len(days))
	for _, d := range days {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Ints(out)
	return out
}

func sortCampaigns(cs []Campaign) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].ID < cs[j].ID
		}
		return cs[i].CreatedAt.After(cs[j].CreatedAt)
	})
}
