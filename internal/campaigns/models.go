package campaigns

import "time"

// Campaign is a named outbound effort owning a queue of targets.
type Campaign struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`

	Name   string `json:"name" db:"name"`
	Status Status `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// Target is one queue entry.
//
// Invariants:
// - A target transitions to `calling` at most once per dequeue cycle.
// - This subsystem never re-enqueues a target automatically.
// - Outcome is written at most once.
type Target struct {
	ID             string `json:"id" db:"id"`
	CampaignID     string `json:"campaign_id" db:"campaign_id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`

	Phone string `json:"phone" db:"phone"`

	// AccountID links the target to a case-management account when one is
	// known. Empty for cold-list numbers.
	AccountID string `json:"account_id,omitempty" db:"account_id"`

	Status  TargetStatus  `json:"status" db:"status"`
	Outcome TargetOutcome `json:"outcome,omitempty" db:"outcome"`

	// Reason carries the compliance or carrier failure detail for dashboards.
	Reason string `json:"reason,omitempty" db:"reason"`

	CallID string `json:"call_id,omitempty" db:"call_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type TargetStatus string

const (
	TargetPending   TargetStatus = "pending"
	TargetCalling   TargetStatus = "calling"
	TargetCompleted TargetStatus = "completed"
	TargetFailed    TargetStatus = "failed"
)

type TargetOutcome string

const (
	OutcomeConnected  TargetOutcome = "connected"
	OutcomeVoicemail  TargetOutcome = "voicemail"
	OutcomeFax        TargetOutcome = "fax"
	OutcomeSkipped    TargetOutcome = "skipped"
	OutcomeFailed     TargetOutcome = "failed"
	OutcomeUnresolved TargetOutcome = "unresolved"
)
