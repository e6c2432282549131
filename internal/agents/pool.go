package agents

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("agents: not found")
	// ErrNoAgentAvailable is not a failure: the answer router plays a hold
	// message and records the call unresolved.
	ErrNoAgentAvailable = errors.New("agents: no agent available")
)

// Pool is the agent-availability registry.
type Pool interface {
	// Claim atomically selects one available agent for the organization,
	// preferring campaign affinity matches-or-null, longest idle first, and
	// transitions it to on_call holding callID. Two concurrent claims can
	// never receive the same agent.
	Claim(ctx context.Context, organizationID, campaignID, callID string, now time.Time) (AgentStatus, error)

	// Release returns a claimed agent to wrap_up and stamps
	// last_call_ended_at for fair rotation.
	Release(ctx context.Context, organizationID, agentID string, endedAt time.Time) error

	// SetStatus is the agent-presence surface (available, break, offline).
	SetStatus(ctx context.Context, organizationID, agentID string, status Status, now time.Time) error

	// CountAvailable bounds the dial batch: the orchestrator never dials
	// more than it has agents to answer.
	CountAvailable(ctx context.Context, organizationID, campaignID string) (int, error)

	// CountByStatus feeds campaign dashboards.
	CountByStatus(ctx context.Context, organizationID string) (map[Status]int, error)
}
