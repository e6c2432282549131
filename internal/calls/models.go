package calls

import "time"

// Call is one carrier call attempt. Created at dial time, updated by carrier
// webhooks, immutable history once terminal.
//
// Multi-tenant invariant: OrganizationID is required on every row.
//
// Provider identifiers are stored as separate columns rather than mixed into
// the provider-agnostic core fields.
type Call struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`
	CampaignID     string `json:"campaign_id,omitempty" db:"campaign_id"`
	TargetID       string `json:"target_id,omitempty" db:"target_id"`

	Direction Direction `json:"direction" db:"direction"`

	FromNumber string `json:"from_number" db:"from_number"`
	ToNumber   string `json:"to_number" db:"to_number"`

	Status Status `json:"status" db:"status"`

	ProviderCallID    string `json:"provider_call_id,omitempty" db:"provider_call_id"`
	ProviderSessionID string `json:"provider_session_id,omitempty" db:"provider_session_id"`

	// AnsweredBy records the carrier AMD classification once delivered.
	AnsweredBy string `json:"answered_by,omitempty" db:"answered_by"`

	// AgentID is set when the call is bridged to a human agent.
	AgentID string `json:"agent_id,omitempty" db:"agent_id"`

	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`
}

type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

type Status string

const (
	StatusDialing    Status = "dialing"
	StatusRinging    Status = "ringing"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether the call has reached an immutable end state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
