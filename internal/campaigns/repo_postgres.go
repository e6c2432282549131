package campaigns

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"callmonitor/pkg/utils"
)

// NOTE: This repository assumes the following tables exist:
// - campaigns
// - campaign_targets, with an index on (campaign_id, status, created_at)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) GetCampaign(ctx context.Context, organizationID, campaignID string) (Campaign, error) {
	const q = `
SELECT id, organization_id, name, status, created_at, updated_at
FROM campaigns
WHERE organization_id = $1 AND id = $2
`
	var c Campaign
	if err := r.db.QueryRowContext(ctx, q, organizationID, campaignID).Scan(
		&c.ID,
		&c.OrganizationID,
		&c.Name,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		return Campaign{}, err
	}
	return c, nil
}

func (r *PostgresRepo) ListActive(ctx context.Context) ([]Campaign, error) {
	const q = `
SELECT id, organization_id, name, status, created_at, updated_at
FROM campaigns
WHERE status = 'active'
ORDER BY created_at ASC
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Campaign
	for rows.Next() {
		var c Campaign
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Activate(ctx context.Context, organizationID, campaignID string, now time.Time) (Campaign, error) {
	const q = `
UPDATE campaigns
SET status = 'active', updated_at = $3
WHERE organization_id = $1 AND id = $2 AND status IN ('draft', 'paused', 'active')
RETURNING id, organization_id, name, status, created_at, updated_at
`
	var c Campaign
	err := r.db.QueryRowContext(ctx, q, organizationID, campaignID, now).Scan(
		&c.ID, &c.OrganizationID, &c.Name, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Campaign{}, err
	}
	// Distinguish missing from completed for a useful caller error.
	existing, lookupErr := r.GetCampaign(ctx, organizationID, campaignID)
	if lookupErr != nil {
		return Campaign{}, lookupErr
	}
	if existing.Status == StatusCompleted {
		return Campaign{}, ErrCompleted
	}
	return Campaign{}, ErrNotFound
}

func (r *PostgresRepo) Pause(ctx context.Context, organizationID, campaignID string, now time.Time) (Campaign, error) {
	const q = `
UPDATE campaigns
SET status = 'paused', updated_at = $3
WHERE organization_id = $1 AND id = $2 AND status = 'active'
RETURNING id, organization_id, name, status, created_at, updated_at
`
	var c Campaign
	err := r.db.QueryRowContext(ctx, q, organizationID, campaignID, now).Scan(
		&c.ID, &c.OrganizationID, &c.Name, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Campaign{}, err
	}
	// Pausing a non-active campaign is a no-op; return current state.
	return r.GetCampaign(ctx, organizationID, campaignID)
}

func (r *PostgresRepo) CompleteIfDrained(ctx context.Context, organizationID, campaignID string, now time.Time) (bool, error) {
	// The campaign row lock serializes the drain check against a concurrent
	// Activate or Pause; count and flip commit together or not at all.
	done := false
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		var status Status
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM campaigns WHERE organization_id = $1 AND id = $2 FOR UPDATE`,
			organizationID, campaignID,
		).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if status != StatusActive {
			return nil
		}

		var total, open int
		if err := tx.QueryRowContext(ctx, `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE status IN ('pending', 'calling'))
FROM campaign_targets
WHERE campaign_id = $1
`, campaignID).Scan(&total, &open); err != nil {
			return err
		}
		if total == 0 || open > 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE campaigns SET status = 'completed', updated_at = $3 WHERE organization_id = $1 AND id = $2`,
			organizationID, campaignID, now,
		); err != nil {
			return err
		}
		done = true
		return nil
	})
	return done, err
}

func (r *PostgresRepo) DequeuePending(ctx context.Context, organizationID, campaignID string, limit int, now time.Time) ([]Target, error) {
	// SKIP LOCKED keeps concurrent ticks from claiming the same target; the
	// single UPDATE makes the pending -> calling transition happen exactly
	// once per target.
	const q = `
UPDATE campaign_targets AS t
SET status = 'calling', updated_at = $4
WHERE t.id IN (
  SELECT id FROM campaign_targets
  WHERE organization_id = $1 AND campaign_id = $2 AND status = 'pending'
  ORDER BY created_at ASC
  FOR UPDATE SKIP LOCKED
  LIMIT $3
)
RETURNING t.id, t.campaign_id, t.organization_id, t.phone, COALESCE(t.account_id, ''),
          t.status, COALESCE(t.outcome, ''), COALESCE(t.reason, ''), COALESCE(t.call_id, ''),
          t.created_at, t.updated_at
`
	rows, err := r.db.QueryContext(ctx, q, organizationID, campaignID, limit, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Target
	for rows.Next() {
		var t Target
		if err := rows.Scan(
			&t.ID,
			&t.CampaignID,
			&t.OrganizationID,
			&t.Phone,
			&t.AccountID,
			&t.Status,
			&t.Outcome,
			&t.Reason,
			&t.CallID,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) LinkCall(ctx context.Context, targetID, callID string, now time.Time) error {
	const q = `UPDATE campaign_targets SET call_id = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, targetID, callID, now)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) MarkFailed(ctx context.Context, targetID string, outcome TargetOutcome, reason string, now time.Time) error {
	const q = `
UPDATE campaign_targets
SET status = 'failed', outcome = $2, reason = $3, updated_at = $4
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, targetID, outcome, reason, now)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) SetOutcome(ctx context.Context, targetID string, status TargetStatus, outcome TargetOutcome, now time.Time) (bool, error) {
	// outcome IS NULL guard: the first webhook delivery wins, redeliveries
	// are no-ops.
	const q = `
UPDATE campaign_targets
SET status = $2, outcome = $3, updated_at = $4
WHERE id = $1 AND outcome IS NULL
`
	res, err := r.db.ExecContext(ctx, q, targetID, status, outcome, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresRepo) TargetCounts(ctx context.Context, organizationID, campaignID string) (TargetCounts, error) {
	const q = `
SELECT status, COALESCE(outcome, ''), COUNT(*)
FROM campaign_targets
WHERE organization_id = $1 AND campaign_id = $2
GROUP BY status, outcome
`
	rows, err := r.db.QueryContext(ctx, q, organizationID, campaignID)
	if err != nil {
		return TargetCounts{}, err
	}
	defer rows.Close()

	out := TargetCounts{
		ByStatus:  make(map[TargetStatus]int),
		ByOutcome: make(map[TargetOutcome]int),
	}
	for rows.Next() {
		var status TargetStatus
		var outcome TargetOutcome
		var n int
		if err := rows.Scan(&status, &outcome, &n); err != nil {
			return TargetCounts{}, err
		}
		out.ByStatus[status] += n
		if outcome != "" {
			out.ByOutcome[outcome] += n
		}
		out.Total += n
	}
	return out, rows.Err()
}
