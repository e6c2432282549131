package campaigns

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository useful for tests.
// It is not intended for production use.

type MemoryRepo struct {
	mu        sync.Mutex
	campaigns map[string]*Campaign
	targets   map[string]*Target
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		campaigns: make(map[string]*Campaign),
		targets:   make(map[string]*Target),
	}
}

func (r *MemoryRepo) PutCampaign(c Campaign) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := c
	r.campaigns[c.ID] = &cp
}

func (r *MemoryRepo) PutTarget(t Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := t
	r.targets[t.ID] = &cp
}

func (r *MemoryRepo) Target(id string) (Target, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.targets[id]
	if !ok {
		return Target{}, false
	}
	return *t, true
}

func (r *MemoryRepo) GetCampaign(ctx context.Context, organizationID, campaignID string) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[campaignID]
	if !ok || c.OrganizationID != organizationID {
		return Campaign{}, ErrNotFound
	}
	return *c, nil
}

func (r *MemoryRepo) ListActive(ctx context.Context) ([]Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Campaign
	for _, c := range r.campaigns {
		if c.Status == StatusActive {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) Activate(ctx context.Context, organizationID, campaignID string, now time.Time) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[campaignID]
	if !ok || c.OrganizationID != organizationID {
		return Campaign{}, ErrNotFound
	}
	if c.Status == StatusCompleted {
		return Campaign{}, ErrCompleted
	}
	c.Status = StatusActive
	c.UpdatedAt = now
	return *c, nil
}

func (r *MemoryRepo) Pause(ctx context.Context, organizationID, campaignID string, now time.Time) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[campaignID]
	if !ok || c.OrganizationID != organizationID {
		return Campaign{}, ErrNotFound
	}
	if c.Status == StatusActive {
		c.Status = StatusPaused
		c.UpdatedAt = now
	}
	return *c, nil
}

func (r *MemoryRepo) CompleteIfDrained(ctx context.Context, organizationID, campaignID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[campaignID]
	if !ok || c.OrganizationID != organizationID {
		return false, ErrNotFound
	}
	if c.Status != StatusActive {
		return false, nil
	}
	total := 0
	for _, t := range r.targets {
		if t.CampaignID != campaignID {
			continue
		}
		if t.Status == TargetPending || t.Status == TargetCalling {
			return false, nil
		}
		total++
	}
	if total == 0 {
		return false, nil
	}
	c.Status = StatusCompleted
	c.UpdatedAt = now
	return true, nil
}

func (r *MemoryRepo) DequeuePending(ctx context.Context, organizationID, campaignID string, limit int, now time.Time) ([]Target, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []*Target
	for _, t := range r.targets {
		if t.OrganizationID == organizationID && t.CampaignID == campaignID && t.Status == TargetPending {
			pending = append(pending, t)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if len(pending) > limit {
		pending = pending[:limit]
	}

	out := make([]Target, 0, len(pending))
	for _, t := range pending {
		t.Status = TargetCalling
		t.UpdatedAt = now
		out = append(out, *t)
	}
	return out, nil
}

func (r *MemoryRepo) LinkCall(ctx context.Context, targetID, callID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.targets[targetID]
	if !ok {
		return ErrNotFound
	}
	t.CallID = callID
	t.UpdatedAt = now
	return nil
}

func (r *MemoryRepo) MarkFailed(ctx context.Context, targetID string, outcome TargetOutcome, reason string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.targets[targetID]
	if !ok {
		return ErrNotFound
	}
	t.Status = TargetFailed
	t.Outcome = outcome
	t.Reason = reason
	t.UpdatedAt = now
	return nil
}

func (r *MemoryRepo) SetOutcome(ctx context.Context, targetID string, status TargetStatus, outcome TargetOutcome, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.targets[targetID]
	if !ok {
		return false, ErrNotFound
	}
	if t.Outcome != "" {
		return false, nil
	}
	t.Status = status
	t.Outcome = outcome
	t.UpdatedAt = now
	return true, nil
}

func (r *MemoryRepo) TargetCounts(ctx context.Context, organizationID, campaignID string) (TargetCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := TargetCounts{
		ByStatus:  make(map[TargetStatus]int),
		ByOutcome: make(map[TargetOutcome]int),
	}
	for _, t := range r.targets {
		if t.OrganizationID != organizationID || t.CampaignID != campaignID {
			continue
		}
		out.ByStatus[t.Status]++
		if t.Outcome != "" {
			out.ByOutcome[t.Outcome]++
		}
		out.Total++
	}
	return out, nil
}
