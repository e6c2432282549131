package accounts

import (
	"context"
	"sync"
)

// MemoryDirectory is an in-memory Directory useful for tests.
// It is not intended for production use.

type MemoryDirectory struct {
	mu       sync.Mutex
	accounts map[string]Account // keyed by id
	holds    []LegalHold
	dnc      map[string]map[string]struct{} // org -> phone set
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		accounts: make(map[string]Account),
		dnc:      make(map[string]map[string]struct{}),
	}
}

func (r *MemoryDirectory) PutAccount(a Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.ID] = a
}

func (r *MemoryDirectory) PutHold(h LegalHold) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.holds = append(r.holds, h)
}

func (r *MemoryDirectory) PutDNC(organizationID, phone string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dnc[organizationID] == nil {
		r.dnc[organizationID] = make(map[string]struct{})
	}
	r.dnc[organizationID][phone] = struct{}{}
}

func (r *MemoryDirectory) GetAccount(ctx context.Context, organizationID, accountID string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok || a.OrganizationID != organizationID || a.DeletedAt != nil {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryDirectory) HasActiveLegalHold(ctx context.Context, organizationID, accountID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.holds {
		if h.OrganizationID != organizationID || !h.Active {
			continue
		}
		if h.AppliesToAll {
			return true, nil
		}
		if accountID != "" && h.AccountID == accountID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryDirectory) IsOnDNCList(ctx context.Context, organizationID, phone string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.dnc[organizationID]
	if set == nil {
		return false, nil
	}
	_, ok := set[phone]
	return ok, nil
}
