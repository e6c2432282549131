package agents

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// NOTE: This repository assumes the following table exists:
// - agent_status, with an index on (organization_id, status, last_call_ended_at)

type PostgresPool struct {
	db *sql.DB
}

func NewPostgresPool(db *sql.DB) *PostgresPool {
	return &PostgresPool{db: db}
}

func (p *PostgresPool) Claim(ctx context.Context, organizationID, campaignID, callID string, now time.Time) (AgentStatus, error) {
	// Single-statement claim: the inner SELECT locks one candidate row
	// (SKIP LOCKED keeps concurrent claimers off it) and the UPDATE moves it
	// to on_call in the same operation. NULLS FIRST favors agents who have
	// never taken a call.
	const q = `
UPDATE agent_status AS a
SET status = 'on_call', current_call_id = $3, updated_at = $4
WHERE a.id = (
  SELECT id FROM agent_status
  WHERE organization_id = $1
    AND status = 'available'
    AND (campaign_id IS NULL OR campaign_id = NULLIF($2, ''))
  ORDER BY last_call_ended_at ASC NULLS FIRST
  FOR UPDATE SKIP LOCKED
  LIMIT 1
)
RETURNING a.id, a.organization_id, a.user_id, a.status, COALESCE(a.campaign_id, ''),
          COALESCE(a.current_call_id, ''), a.last_call_ended_at, a.updated_at
`
	var agent AgentStatus
	err := p.db.QueryRowContext(ctx, q, organizationID, campaignID, callID, now).Scan(
		&agent.ID,
		&agent.OrganizationID,
		&agent.UserID,
		&agent.Status,
		&agent.CampaignID,
		&agent.CurrentCallID,
		&agent.LastCallEndedAt,
		&agent.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AgentStatus{}, ErrNoAgentAvailable
		}
		return AgentStatus{}, err
	}
	return agent, nil
}

func (p *PostgresPool) Release(ctx context.Context, organizationID, agentID string, endedAt time.Time) error {
	const q = `
UPDATE agent_status
SET status = 'wrap_up', current_call_id = NULL, last_call_ended_at = $3, updated_at = $3
WHERE organization_id = $1 AND id = $2 AND status = 'on_call'
`
	res, err := p.db.ExecContext(ctx, q, organizationID, agentID, endedAt)
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

func (p *PostgresPool) SetStatus(ctx context.Context, organizationID, agentID string, status Status, now time.Time) error {
	const q = `
UPDATE agent_status
SET status = $3, updated_at = $4
WHERE organization_id = $1 AND id = $2
`
	res, err := p.db.ExecContext(ctx, q, organizationID, agentID, status, now)
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

func (p *PostgresPool) CountAvailable(ctx context.Context, organizationID, campaignID string) (int, error) {
	const q = `
SELECT COUNT(*)
FROM agent_status
WHERE organization_id = $1
  AND status = 'available'
  AND (campaign_id IS NULL OR campaign_id = NULLIF($2, ''))
`
	var n int
	if err := p.db.QueryRowContext(ctx, q, organizationID, campaignID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (p *PostgresPool) CountByStatus(ctx context.Context, organizationID string) (map[Status]int, error) {
	const q = `
SELECT status, COUNT(*)
FROM agent_status
WHERE organization_id = $1
GROUP BY status
`
	rows, err := p.db.QueryContext(ctx, q, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[Status]int)
	for rows.Next() {
		var s Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[s] = n
	}
	return out, rows.Err()
}
