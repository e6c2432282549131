package agents

import "time"

// AgentStatus is one row per human agent per organization.
//
// Invariants:
//   - At most one current call per agent.
//   - The transition into `on_call` is atomic with respect to concurrent
//     claim attempts; the claim is the only operation in the subsystem that
//     needs row-level pessimistic locking.
type AgentStatus struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`
	UserID         string `json:"user_id" db:"user_id"`

	Status Status `json:"status" db:"status"`

	// CampaignID is an optional affinity; an agent with no affinity answers
	// for any campaign.
	CampaignID string `json:"campaign_id,omitempty" db:"campaign_id"`

	CurrentCallID string `json:"current_call_id,omitempty" db:"current_call_id"`

	// LastCallEndedAt drives fair rotation: the longest-idle agent is
	// claimed first.
	LastCallEndedAt *time.Time `json:"last_call_ended_at,omitempty" db:"last_call_ended_at"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusOffline   Status = "offline"
	StatusAvailable Status = "available"
	StatusOnCall    Status = "on_call"
	StatusWrapUp    Status = "wrap_up"
	StatusBreak     Status = "break"
)
