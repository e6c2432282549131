package accounts

import "time"

// Account is a contactable party. Rows are owned by case-management; this
// subsystem reads them for compliance evaluation and never mutates them.
//
// Multi-tenant invariant: OrganizationID is required on every row.
// Accounts are never hard-deleted; DeletedAt marks soft deletion.
type Account struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`

	PrimaryPhone   string `json:"primary_phone" db:"primary_phone"`
	SecondaryPhone string `json:"secondary_phone,omitempty" db:"secondary_phone"`

	Timezone     string `json:"timezone,omitempty" db:"timezone"`
	Jurisdiction string `json:"jurisdiction,omitempty" db:"jurisdiction"`

	ConsentStatus ConsentStatus `json:"consent_status" db:"consent_status"`

	DoNotCall                bool `json:"do_not_call" db:"do_not_call"`
	CeaseAndDesist           bool `json:"cease_and_desist" db:"cease_and_desist"`
	Bankruptcy               bool `json:"bankruptcy" db:"bankruptcy"`
	AttorneyRepresented      bool `json:"attorney_represented" db:"attorney_represented"`
	EmployerProhibitsContact bool `json:"employer_prohibits_contact" db:"employer_prohibits_contact"`

	// StatuteExpiresAt marks when the statute of limitations on the
	// underlying obligation runs out; past dates trigger an advisory that
	// legal-action threats are barred.
	StatuteExpiresAt *time.Time `json:"statute_expires_at,omitempty" db:"statute_expires_at"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

type ConsentStatus string

const (
	ConsentGranted ConsentStatus = "granted"
	ConsentRevoked ConsentStatus = "revoked"
	ConsentUnknown ConsentStatus = "unknown"
)

// LegalHold blocks contact with one account, or with every account in the
// organization when AppliesToAll is set. Deactivated when litigation resolves.
type LegalHold struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`

	// AccountID is empty for blanket holds.
	AccountID    string `json:"account_id,omitempty" db:"account_id"`
	AppliesToAll bool   `json:"applies_to_all" db:"applies_to_all"`

	Active bool   `json:"active" db:"active"`
	Reason string `json:"reason,omitempty" db:"reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DncEntry is an organization-wide phone-number block. A number present here
// always fails the gate regardless of account state.
type DncEntry struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`

	Phone  string `json:"phone" db:"phone"`
	Reason string `json:"reason,omitempty" db:"reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
