package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"outbound-dialer/internal/errs"
	"outbound-dialer/pkg/utils"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// NOTE: This store assumes the calls table from migrations/0001_init.sql.
// Rows are append-only apart from UpdateCall; nothing deletes them.

// PostgresStore implements Store over database/sql (pgx stdlib driver).
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

const callColumns = `id, campaign_id, prospect_id, provider_call_id, from_number, to_number, direction,
  status, duration, cost, cost_currency, error_code, error_message, answered_by,
  recording_url, recording_sid, started_at, ended_at, metadata, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner, extra ...any) (Call, error) {
	var (
		c        Call
		status   string
		answered string
		started  sql.NullTime
		ended    sql.NullTime
		metadata []byte
	)
	dest := append(extra,
		&c.ID,
		&c.CampaignID,
		&c.ProspectID,
		&c.ProviderCallID,
		&c.FromNumber,
		&c.ToNumber,
		&c.Direction,
		&status,
		&c.DurationSeconds,
		&c.Cost,
		&c.CostCurrency,
		&c.ErrorCode,
		&c.ErrorMessage,
		&answered,
		&c.RecordingURL,
		&c.RecordingSID,
		&started,
		&ended,
		&metadata,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, errs.ErrCallNotFound
		}
		return Call{}, err
	}
	c.Status = Status(status)
	c.AnsweredBy = AnsweredBy(answered)
	if started.Valid {
		t := started.Time
		c.StartedAt = &t
	}
	if ended.Valid {
		t := ended.Time
		c.EndedAt = &t
	}
	if len(metadata) > 0 {
		c.Metadata = metadata
	}
	return c, nil
}

func (s *PostgresStore) prepare(c Call) Call {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	c.UpdatedAt = c.CreatedAt
	if c.Direction == "" {
		c.Direction = DirectionOutboundAPI
	}
	return c
}

type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertCall(ctx context.Context, q execer, c Call) (Call, error) {
	const stmt = `
INSERT INTO calls (
  id, campaign_id, prospect_id, provider_call_id, from_number, to_number, direction,
  status, duration, cost, cost_currency, error_code, error_message, answered_by,
  recording_url, recording_sid, started_at, ended_at, metadata, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21
)
RETURNING ` + callColumns

	return scanCall(q.QueryRowContext(ctx, stmt,
		c.ID,
		c.CampaignID,
		c.ProspectID,
		c.ProviderCallID,
		c.FromNumber,
		c.ToNumber,
		c.Direction,
		string(c.Status),
		c.DurationSeconds,
		c.Cost,
		c.CostCurrency,
		c.ErrorCode,
		c.ErrorMessage,
		string(c.AnsweredBy),
		c.RecordingURL,
		c.RecordingSID,
		nullTime(c.StartedAt),
		nullTime(c.EndedAt),
		nullJSON(c.Metadata),
		c.CreatedAt,
		c.UpdatedAt,
	))
}

func (s *PostgresStore) CreateCall(ctx context.Context, c Call) (Call, error) {
	return insertCall(ctx, s.db, s.prepare(c))
}

// CreateCallWithinLimit serializes writers per campaign with a transaction
// scoped advisory lock, then counts and inserts under that lock.
func (s *PostgresStore) CreateCallWithinLimit(ctx context.Context, c Call, since time.Time, limit int) (Call, error) {
	c = s.prepare(c)
	var out Call
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, c.CampaignID); err != nil {
			return fmt.Errorf("lock campaign: %w", err)
		}

		var n int
		const count = `SELECT COUNT(*) FROM calls WHERE campaign_id = $1 AND created_at >= $2`
		if err := tx.QueryRowContext(ctx, count, c.CampaignID, since).Scan(&n); err != nil {
			return err
		}
		if n >= limit {
			return errs.ErrDailyLimitReached
		}

		created, err := insertCall(ctx, tx, c)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return Call{}, err
	}
	return out, nil
}

var updateCallStmt = `
WITH prev AS (
  SELECT id, status FROM calls WHERE id = $1 FOR UPDATE
)
UPDATE calls c SET
  status = CASE
    WHEN $2::text IS NULL OR prev.status = ANY($17::text[]) THEN c.status
    ELSE $2::text END,
  provider_call_id = COALESCE($3::text, c.provider_call_id),
  duration = COALESCE($4::int, c.duration),
  cost = COALESCE($5::text, c.cost),
  cost_currency = COALESCE($6::text, c.cost_currency),
  error_code = COALESCE($7::text, c.error_code),
  error_message = COALESCE($8::text, c.error_message),
  answered_by = COALESCE($9::text, c.answered_by),
  recording_url = COALESCE($10::text, c.recording_url),
  recording_sid = COALESCE($11::text, c.recording_sid),
  started_at = CASE
    WHEN $12::timestamptz IS NULL THEN c.started_at
    WHEN $14::bool AND c.started_at IS NOT NULL THEN c.started_at
    ELSE $12::timestamptz END,
  ended_at = CASE
    WHEN $13::timestamptz IS NULL THEN c.ended_at
    WHEN $15::bool AND c.ended_at IS NOT NULL THEN c.ended_at
    ELSE $13::timestamptz END,
  metadata = COALESCE($16::jsonb, c.metadata),
  updated_at = $18
FROM prev
WHERE c.id = prev.id
RETURNING prev.status, ` + prefixed("c.", callColumns)

// UpdateCall applies p in one statement. The prev CTE locks the row and
// captures the status before the update; $17 lists the stored statuses that
// may not move to p.Status.
func (s *PostgresStore) UpdateCall(ctx context.Context, id string, p Patch) (Update, error) {
	var previous string
	row := s.db.QueryRowContext(ctx, updateCallStmt,
		id,
		nullStatus(p.Status),
		nullString(p.ProviderCallID),
		nullInt(p.DurationSeconds),
		nullString(p.Cost),
		nullString(p.CostCurrency),
		nullString(p.ErrorCode),
		nullString(p.ErrorMessage),
		nullAnsweredBy(p.AnsweredBy),
		nullString(p.RecordingURL),
		nullString(p.RecordingSID),
		nullTime(p.StartedAt),
		nullTime(p.EndedAt),
		p.SetStartedIfEmpty,
		p.SetEndedIfEmpty,
		nullJSON(p.Metadata),
		pq.Array(keptStatuses(p.Status)),
		s.now().UTC(),
	)
	c, err := scanCall(row, &previous)
	if err != nil {
		return Update{}, err
	}
	return Update{Call: c, Previous: Status(previous)}, nil
}

func (s *PostgresStore) FindCall(ctx context.Context, id string) (Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE id = $1`
	return scanCall(s.db.QueryRowContext(ctx, q, id))
}

func (s *PostgresStore) FindCallByProviderID(ctx context.Context, providerCallID string) (Call, error) {
	if providerCallID == "" {
		return Call{}, errs.ErrCallNotFound
	}
	q := `SELECT ` + callColumns + ` FROM calls WHERE provider_call_id = $1 ORDER BY created_at DESC LIMIT 1`
	return scanCall(s.db.QueryRowContext(ctx, q, providerCallID))
}

func (s *PostgresStore) CountCalls(ctx context.Context, f Filter) (int, error) {
	where, args := f.sql()
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM calls`+where, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *PostgresStore) ListCalls(ctx context.Context, f Filter, page Page) ([]Call, error) {
	page = page.normalized()
	where, args := f.sql()

	order := "DESC"
	if page.Oldest {
		order = "ASC"
	}
	args = append(args, page.Limit, page.Offset)
	q := fmt.Sprintf(`SELECT %s FROM calls%s ORDER BY created_at %s, id %s LIMIT $%d OFFSET $%d`,
		callColumns, where, order, order, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// sql renders f as a WHERE clause with positional args starting at $1.
func (f Filter) sql() (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.CampaignID != "" {
		add("campaign_id = $%d", f.CampaignID)
	}
	if f.ProspectID != "" {
		add("prospect_id = $%d", f.ProspectID)
	}
	if len(f.Statuses) > 0 {
		ss := make([]string, 0, len(f.Statuses))
		for _, st := range f.Statuses {
			ss = append(ss, string(st))
		}
		add("status = ANY($%d)", pq.Array(ss))
	}
	if !f.CreatedSince.IsZero() {
		add("created_at >= $%d", f.CreatedSince)
	}
	if !f.CreatedBefore.IsZero() {
		add("created_at < $%d", f.CreatedBefore)
	}
	if !f.CreatedAtOrBefore.IsZero() {
		add("created_at <= $%d", f.CreatedAtOrBefore)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func prefixed(prefix, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// keptStatuses lists the stored statuses that next cannot replace.
func keptStatuses(next *Status) []string {
	out := make([]string, 0, len(AllStatuses))
	if next == nil {
		return out
	}
	for _, s := range AllStatuses {
		if !s.CanMoveTo(*next) {
			out = append(out, string(s))
		}
	}
	return out
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullStatus(p *Status) any {
	if p == nil {
		return nil
	}
	return string(*p)
}

func nullAnsweredBy(p *AnsweredBy) any {
	if p == nil {
		return nil
	}
	return string(*p)
}

func nullTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
