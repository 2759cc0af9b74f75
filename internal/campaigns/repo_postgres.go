package campaigns

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"outbound-dialer/internal/errs"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// NOTE: This repository assumes the campaigns and prospects tables from
// migrations/0001_init.sql. active_days is an INT[] column.

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const campaignColumns = `id, user_id, name, audio_url, daily_limit, call_window_start, call_window_end,
  timezone, active_days, max_attempts, status, total_calls, successful_calls, failed_calls,
  launched_at, completed_at, created_at, updated_at`

const prospectColumns = `id, campaign_id, first_name, last_name, company_name, contact_role, email,
  phone_number, status, notes, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row scanner) (Campaign, error) {
	var (
		c         Campaign
		status    string
		days      pq.Int64Array
		launched  sql.NullTime
		completed sql.NullTime
	)
	if err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Name,
		&c.AudioURL,
		&c.DailyLimit,
		&c.CallWindowStart,
		&c.CallWindowEnd,
		&c.Timezone,
		&days,
		&c.MaxAttempts,
		&status,
		&c.TotalCalls,
		&c.SuccessfulCalls,
		&c.FailedCalls,
		&launched,
		&completed,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, errs.ErrCampaignNotFound
		}
		return Campaign{}, err
	}
	c.Status = Status(status)
	for _, d := range days {
		c.ActiveDays = append(c.ActiveDays, int(d))
	}
	if launched.Valid {
		t := launched.Time
		c.LaunchedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		c.CompletedAt = &t
	}
	return c, nil
}

func scanProspect(row scanner) (Prospect, error) {
	var (
		p      Prospect
		status string
	)
	if err := row.Scan(
		&p.ID,
		&p.CampaignID,
		&p.FirstName,
		&p.LastName,
		&p.CompanyName,
		&p.ContactRole,
		&p.Email,
		&p.PhoneNumber,
		&status,
		&p.Notes,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Prospect{}, errs.ErrProspectNotFound
		}
		return Prospect{}, err
	}
	p.Status = ProspectStatus(status)
	return p, nil
}

func activeDaysArray(days []int) pq.Int64Array {
	out := make(pq.Int64Array, 0, len(days))
	for _, d := range days {
		out = append(out, int64(d))
	}
	return out
}

func (r *PostgresRepo) CreateCampaign(ctx context.Context, c Campaign) (Campaign, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	const q = `
INSERT INTO campaigns (
  id, user_id, name, audio_url, daily_limit, call_window_start, call_window_end,
  timezone, active_days, max_attempts, status, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12
)
RETURNING ` + campaignColumns

	return scanCampaign(r.db.QueryRowContext(ctx, q,
		c.ID,
		c.UserID,
		c.Name,
		c.AudioURL,
		c.DailyLimit,
		c.CallWindowStart,
		c.CallWindowEnd,
		c.Timezone,
		activeDaysArray(c.ActiveDays),
		c.MaxAttempts,
		string(c.Status),
		c.CreatedAt,
	))
}

func (r *PostgresRepo) GetCampaign(ctx context.Context, id string) (Campaign, error) {
	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	return scanCampaign(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) ListCampaigns(ctx context.Context, f ListFilter) ([]Campaign, error) {
	q := `SELECT ` + campaignColumns + ` FROM campaigns
WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR status = $2)
ORDER BY created_at DESC, id`
	rows, err := r.db.QueryContext(ctx, q, f.UserID, string(f.Status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) TransitionStatus(ctx context.Context, id string, from []Status, to Status, at time.Time) (Campaign, error) {
	const q = `
UPDATE campaigns SET
  status = $3,
  launched_at = CASE WHEN $3 = 'active' THEN COALESCE(launched_at, $4) ELSE launched_at END,
  completed_at = CASE WHEN $3 = 'completed' THEN $4 ELSE completed_at END,
  updated_at = $4
WHERE id = $1 AND status = ANY($2)
RETURNING ` + campaignColumns

	fromStrs := make([]string, 0, len(from))
	for _, s := range from {
		fromStrs = append(fromStrs, string(s))
	}
	c, err := scanCampaign(r.db.QueryRowContext(ctx, q, id, pq.Array(fromStrs), string(to), at))
	if errors.Is(err, errs.ErrCampaignNotFound) {
		// either missing or in a status outside from
		if _, getErr := r.GetCampaign(ctx, id); getErr != nil {
			return Campaign{}, getErr
		}
		return Campaign{}, errs.ErrInvalidTransition
	}
	return c, err
}

func (r *PostgresRepo) IncrementCounters(ctx context.Context, id string, total, successful, failed int) error {
	const q = `
UPDATE campaigns SET
  total_calls = total_calls + $2,
  successful_calls = successful_calls + $3,
  failed_calls = failed_calls + $4,
  updated_at = NOW()
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, id, total, successful, failed)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrCampaignNotFound
	}
	return nil
}

func (r *PostgresRepo) CreateProspect(ctx context.Context, p Prospect) (Prospect, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = ProspectPending
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	const q = `
INSERT INTO prospects (
  id, campaign_id, first_name, last_name, company_name, contact_role, email,
  phone_number, status, notes, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11
)
RETURNING ` + prospectColumns

	return scanProspect(r.db.QueryRowContext(ctx, q,
		p.ID,
		p.CampaignID,
		p.FirstName,
		p.LastName,
		p.CompanyName,
		p.ContactRole,
		p.Email,
		p.PhoneNumber,
		string(p.Status),
		p.Notes,
		p.CreatedAt,
	))
}

func (r *PostgresRepo) GetProspect(ctx context.Context, id string) (Prospect, error) {
	q := `SELECT ` + prospectColumns + ` FROM prospects WHERE id = $1`
	return scanProspect(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) ListProspects(ctx context.Context, campaignID string, status ProspectStatus) ([]Prospect, error) {
	q := `SELECT ` + prospectColumns + ` FROM prospects
WHERE campaign_id = $1 AND ($2 = '' OR status = $2)
ORDER BY created_at ASC, id`
	rows, err := r.db.QueryContext(ctx, q, campaignID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Prospect, 0)
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) AdvanceProspect(ctx context.Context, id string, from, to ProspectStatus) (bool, error) {
	const q = `UPDATE prospects SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, q, id, string(from), string(to))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
