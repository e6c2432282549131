package agents

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryPool is an in-memory Pool useful for tests. The mutex gives it the
// same claim atomicity the Postgres row lock provides.
// It is not intended for production use.

type MemoryPool struct {
	mu     sync.Mutex
	agents map[string]*AgentStatus
}

func NewMemoryPool() *MemoryPool {
	return &MemoryPool{agents: make(map[string]*AgentStatus)}
}

func (p *MemoryPool) Put(a AgentStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := a
	p.agents[a.ID] = &cp
}

func (p *MemoryPool) Get(id string) (AgentStatus, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.agents[id]
	if !ok {
		return AgentStatus{}, false
	}
	return *a, true
}

func (p *MemoryPool) Claim(ctx context.Context, organizationID, campaignID, callID string, now time.Time) (AgentStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var candidates []*AgentStatus
	for _, a := range p.agents {
		if a.OrganizationID != organizationID || a.Status != StatusAvailable {
			continue
		}
		if a.CampaignID != "" && (campaignID == "" || a.CampaignID != campaignID) {
			continue
		}
		candidates = append(candidates, a)
	}
	if len(candidates) == 0 {
		return AgentStatus{}, ErrNoAgentAvailable
	}

	// Longest idle first; never-called agents first.
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i].LastCallEndedAt, candidates[j].LastCallEndedAt
		switch {
		case a == nil && b == nil:
			return candidates[i].ID < candidates[j].ID
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})

	chosen := candidates[0]
	chosen.Status = StatusOnCall
	chosen.CurrentCallID = callID
	chosen.UpdatedAt = now
	return *chosen, nil
}

func (p *MemoryPool) Release(ctx context.Context, organizationID, agentID string, endedAt time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.agents[agentID]
	if !ok || a.OrganizationID != organizationID || a.Status != StatusOnCall {
		return ErrNotFound
	}
	a.Status = StatusWrapUp
	a.CurrentCallID = ""
	ended := endedAt
	a.LastCallEndedAt = &ended
	a.UpdatedAt = endedAt
	return nil
}

func (p *MemoryPool) SetStatus(ctx context.Context, organizationID, agentID string, status Status, now time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.agents[agentID]
	if !ok || a.OrganizationID != organizationID {
		return ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = now
	return nil
}

func (p *MemoryPool) CountAvailable(ctx context.Context, organizationID, campaignID string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, a := range p.agents {
		if a.OrganizationID != organizationID || a.Status != StatusAvailable {
			continue
		}
		if a.CampaignID != "" && (campaignID == "" || a.CampaignID != campaignID) {
			continue
		}
		n++
	}
	return n, nil
}

func (p *MemoryPool) CountByStatus(ctx context.Context, organizationID string) (map[Status]int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[Status]int)
	for _, a := range p.agents {
		if a.OrganizationID == organizationID {
			out[a.Status]++
		}
	}
	return out, nil
}
