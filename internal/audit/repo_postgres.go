package audit

import (
	"context"
	"database/sql"
)

// NOTE: This repository assumes the following table exists:
// - compliance_events (INSERT-only; no UPDATE/DELETE issued from here)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO compliance_events (
  id, organization_id, type, actor_id, account_id, campaign_id, target_id,
  call_id, phone_masked, passed, blocked_by, checks, message, metadata, created_at
) VALUES (
  $1,$2,$3,NULLIF($4,''),NULLIF($5,''),NULLIF($6,''),NULLIF($7,''),
  NULLIF($8,''),NULLIF($9,''),$10,NULLIF($11,''),NULLIF($12,''),NULLIF($13,''),NULLIF($14,''),$15
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.OrganizationID,
		e.Type,
		e.ActorID,
		e.AccountID,
		e.CampaignID,
		e.TargetID,
		e.CallID,
		e.PhoneMasked,
		e.Passed,
		e.BlockedBy,
		e.Checks,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}
