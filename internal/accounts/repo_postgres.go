package accounts

import (
	"context"
	"database/sql"
	"errors"
)

// NOTE: This repository assumes the following tables exist (owned by
// case-management, read-only from here):
// - accounts
// - legal_holds
// - dnc_entries

type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (r *PostgresDirectory) GetAccount(ctx context.Context, organizationID, accountID string) (Account, error) {
	const q = `
SELECT id, organization_id, primary_phone, COALESCE(secondary_phone, ''),
       COALESCE(timezone, ''), COALESCE(jurisdiction, ''), consent_status,
       do_not_call, cease_and_desist, bankruptcy, attorney_represented,
       employer_prohibits_contact, statute_expires_at, created_at, updated_at
FROM accounts
WHERE organization_id = $1 AND id = $2 AND deleted_at IS NULL
`
	var a Account
	if err := r.db.QueryRowContext(ctx, q, organizationID, accountID).Scan(
		&a.ID,
		&a.OrganizationID,
		&a.PrimaryPhone,
		&a.SecondaryPhone,
		&a.Timezone,
		&a.Jurisdiction,
		&a.ConsentStatus,
		&a.DoNotCall,
		&a.CeaseAndDesist,
		&a.Bankruptcy,
		&a.AttorneyRepresented,
		&a.EmployerProhibitsContact,
		&a.StatuteExpiresAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *PostgresDirectory) HasActiveLegalHold(ctx context.Context, organizationID, accountID string) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM legal_holds
  WHERE organization_id = $1
    AND active
    AND (applies_to_all OR ($2 <> '' AND account_id = $2))
)
`
	var held bool
	if err := r.db.QueryRowContext(ctx, q, organizationID, accountID).Scan(&held); err != nil {
		return false, err
	}
	return held, nil
}

func (r *PostgresDirectory) IsOnDNCList(ctx context.Context, organizationID, phone string) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM dnc_entries
  WHERE organization_id = $1 AND phone = $2
)
`
	var listed bool
	if err := r.db.QueryRowContext(ctx, q, organizationID, phone).Scan(&listed); err != nil {
		return false, err
	}
	return listed, nil
}
