package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NOTE: This repository assumes the following table exists:
// - calls, with indexes on (organization_id, to_number, created_at)
//   and a unique index on provider_call_id.

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const callColumns = `
id, organization_id, COALESCE(campaign_id, ''), COALESCE(target_id, ''),
direction, from_number, to_number, status,
COALESCE(provider_call_id, ''), COALESCE(provider_session_id, ''),
COALESCE(answered_by, ''), COALESCE(agent_id, ''),
duration_seconds, created_at, updated_at, ended_at
`

func scanCall(row *sql.Row) (Call, error) {
	var c Call
	err := row.Scan(
		&c.ID,
		&c.OrganizationID,
		&c.CampaignID,
		&c.TargetID,
		&c.Direction,
		&c.FromNumber,
		&c.ToNumber,
		&c.Status,
		&c.ProviderCallID,
		&c.ProviderSessionID,
		&c.AnsweredBy,
		&c.AgentID,
		&c.DurationSeconds,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.EndedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

func (r *PostgresRepo) Insert(ctx context.Context, c Call) error {
	const q = `
INSERT INTO calls (
  id, organization_id, campaign_id, target_id, direction, from_number, to_number,
  status, provider_call_id, provider_session_id, answered_by, agent_id,
  duration_seconds, created_at, updated_at
) VALUES (
  $1,$2,NULLIF($3,''),NULLIF($4,''),$5,$6,$7,$8,NULLIF($9,''),NULLIF($10,''),NULLIF($11,''),NULLIF($12,''),$13,$14,$15
)
`
	_, err := r.db.ExecContext(ctx, q,
		c.ID,
		c.OrganizationID,
		c.CampaignID,
		c.TargetID,
		c.Direction,
		c.FromNumber,
		c.ToNumber,
		c.Status,
		c.ProviderCallID,
		c.ProviderSessionID,
		c.AnsweredBy,
		c.AgentID,
		c.DurationSeconds,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) GetByID(ctx context.Context, organizationID, id string) (Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE organization_id = $1 AND id = $2`
	return scanCall(r.db.QueryRowContext(ctx, q, organizationID, id))
}

func (r *PostgresRepo) GetByProviderCallID(ctx context.Context, providerCallID string) (Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE provider_call_id = $1`
	return scanCall(r.db.QueryRowContext(ctx, q, providerCallID))
}

func (r *PostgresRepo) SetProviderIDs(ctx context.Context, id, providerCallID, providerSessionID string, now time.Time) error {
	const q = `
UPDATE calls
SET provider_call_id = $2, provider_session_id = NULLIF($3,''), updated_at = $4
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, id, providerCallID, providerSessionID, now)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresRepo) Transition(ctx context.Context, id string, expected []Status, next Status, now time.Time) error {
	// The status guard is what makes webhook redelivery idempotent: a second
	// delivery finds the call already out of the expected states.
	q := `
UPDATE calls
SET status = $2, updated_at = $3
WHERE id = $1 AND status IN (` + statusPlaceholders(4, len(expected)) + `)
`
	args := []any{id, next, now}
	for _, s := range expected {
		args = append(args, s)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleTransition
	}
	return nil
}

func (r *PostgresRepo) MarkAnswered(ctx context.Context, id, answeredBy string, now time.Time) error {
	const q = `UPDATE calls SET answered_by = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, answeredBy, now)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresRepo) SetAgent(ctx context.Context, id, agentID string, now time.Time) error {
	const q = `UPDATE calls SET agent_id = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, agentID, now)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresRepo) Finalize(ctx context.Context, id string, status Status, durationSeconds int, endedAt time.Time) error {
	// Terminal rows are immutable history: the guard refuses to finalize twice.
	const q = `
UPDATE calls
SET status = $2, duration_seconds = $3, ended_at = $4, updated_at = $4
WHERE id = $1 AND status NOT IN ('completed', 'failed')
`
	res, err := r.db.ExecContext(ctx, q, id, status, durationSeconds, endedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleTransition
	}
	return nil
}

func (r *PostgresRepo) CountOutboundAttemptsSince(ctx context.Context, organizationID, phone string, since time.Time) (int, error) {
	const q = `
SELECT COUNT(*)
FROM calls
WHERE organization_id = $1 AND to_number = $2 AND direction = 'outbound' AND created_at >= $3
`
	var n int
	if err := r.db.QueryRowContext(ctx, q, organizationID, phone, since).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PostgresRepo) HasConnectedOutboundSince(ctx context.Context, organizationID, phone string, since time.Time) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM calls
  WHERE organization_id = $1 AND to_number = $2 AND direction = 'outbound'
    AND status = 'completed' AND duration_seconds > 0
    AND ended_at >= $3
)
`
	var connected bool
	if err := r.db.QueryRowContext(ctx, q, organizationID, phone, since).Scan(&connected); err != nil {
		return false, err
	}
	return connected, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// statusPlaceholders builds $start..$start+count-1 for IN clauses.
func statusPlaceholders(start, count int) string {
	parts := make([]string, 0, count)
	for i := 0; i < count; i++ {
		parts = append(parts, fmt.Sprintf("$%d", start+i))
	}
	return strings.Join(parts, ",")
}
