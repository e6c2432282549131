package calls

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository useful for tests.
// It is not intended for production use.

type MemoryRepo struct {
	mu    sync.Mutex
	rows  map[string]*Call
	order []string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[string]*Call)}
}

func (r *MemoryRepo) Insert(ctx context.Context, c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := c
	r.rows[c.ID] = &cp
	r.order = append(r.order, c.ID)
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, organizationID, id string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok || c.OrganizationID != organizationID {
		return Call{}, ErrNotFound
	}
	return *c, nil
}

func (r *MemoryRepo) GetByProviderCallID(ctx context.Context, providerCallID string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		if c := r.rows[id]; c.ProviderCallID == providerCallID {
			return *c, nil
		}
	}
	return Call{}, ErrNotFound
}

func (r *MemoryRepo) SetProviderIDs(ctx context.Context, id, providerCallID, providerSessionID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return ErrNotFound
	}
	c.ProviderCallID = providerCallID
	c.ProviderSessionID = providerSessionID
	c.UpdatedAt = now
	return nil
}

func (r *MemoryRepo) Transition(ctx context.Context, id string, expected []Status, next Status, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return ErrNotFound
	}
	for _, s := range expected {
		if c.Status == s {
			c.Status = next
			c.UpdatedAt = now
			return nil
		}
	}
	return ErrStaleTransition
}

func (r *MemoryRepo) MarkAnswered(ctx context.Context, id, answeredBy string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return ErrNotFound
	}
	c.AnsweredBy = answeredBy
	c.UpdatedAt = now
	return nil
}

func (r *MemoryRepo) SetAgent(ctx context.Context, id, agentID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return ErrNotFound
	}
	c.AgentID = agentID
	c.UpdatedAt = now
	return nil
}

func (r *MemoryRepo) Finalize(ctx context.Context, id string, status Status, durationSeconds int, endedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return ErrNotFound
	}
	if c.Status.IsTerminal() {
		return ErrStaleTransition
	}
	c.Status = status
	c.DurationSeconds = durationSeconds
	ended := endedAt
	c.EndedAt = &ended
	c.UpdatedAt = endedAt
	return nil
}

func (r *MemoryRepo) CountOutboundAttemptsSince(ctx context.Context, organizationID, phone string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range r.order {
		c := r.rows[id]
		if c.OrganizationID == organizationID && c.ToNumber == phone &&
			c.Direction == DirectionOutbound && !c.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) HasConnectedOutboundSince(ctx context.Context, organizationID, phone string, since time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		c := r.rows[id]
		if c.OrganizationID == organizationID && c.ToNumber == phone &&
			c.Direction == DirectionOutbound && c.Status == StatusCompleted &&
			c.DurationSeconds > 0 && c.EndedAt != nil && !c.EndedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}
