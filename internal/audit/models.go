package audit

import "time"

// Event is an immutable, append-only compliance/audit record.
//
// Invariants:
// - Events are never updated or deleted.
// - organization_id is required for tenancy isolation.
// - Phone numbers are masked before they reach this package's callers; only
//   the last 4 digits are ever persisted.
//
// Storage recommendation (Postgres):
// - Table compliance_events with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.

type Event struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorID is the user on whose behalf the action ran (if applicable).
	ActorID string `json:"actor_id,omitempty" db:"actor_id"`

	// Target identifiers (optional, depending on the event type).
	AccountID  string `json:"account_id,omitempty" db:"account_id"`
	CampaignID string `json:"campaign_id,omitempty" db:"campaign_id"`
	TargetID   string `json:"target_id,omitempty" db:"target_id"`
	CallID     string `json:"call_id,omitempty" db:"call_id"`

	// PhoneMasked holds only the last 4 digits of the dialed number.
	PhoneMasked string `json:"phone_masked,omitempty" db:"phone_masked"`

	// Passed and BlockedBy describe a gate evaluation outcome.
	Passed    *bool  `json:"passed,omitempty" db:"passed"`
	BlockedBy string `json:"blocked_by,omitempty" db:"blocked_by"`

	// Checks is the full check vector as JSON for compliance_check events.
	Checks string `json:"checks,omitempty" db:"checks"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeComplianceCheck    EventType = "compliance_check"
	EventTypeComplianceAdvisory EventType = "compliance_advisory"
	EventTypeDialerTransition   EventType = "dialer_transition"
	EventTypeDialerControl      EventType = "dialer_control"
)
