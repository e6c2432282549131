package accounts

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("accounts: not found")

// Directory is the read-only view of case-management data the compliance
// gate depends on. Implementations must enforce organization filtering.
type Directory interface {
	// GetAccount returns a non-deleted account by id.
	GetAccount(ctx context.Context, organizationID, accountID string) (Account, error)

	// HasActiveLegalHold reports whether an active hold matches the account
	// or a blanket hold exists for the organization. accountID may be empty;
	// blanket holds still apply.
	HasActiveLegalHold(ctx context.Context, organizationID, accountID string) (bool, error)

	// IsOnDNCList reports organization-wide DNC membership for the phone.
	IsOnDNCList(ctx context.Context, organizationID, phone string) (bool, error)
}
