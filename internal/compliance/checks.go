package compliance

// CheckName identifies one gate check. These strings are part of the audit
// contract and surface in dashboard reason fields; keep them stable.
type CheckName string

const (
	CheckDoNotCall            CheckName = "do_not_call"
	CheckCeaseAndDesist       CheckName = "cease_and_desist"
	CheckAttorneyRepresented  CheckName = "attorney_represented"
	CheckBankruptcy           CheckName = "bankruptcy"
	CheckConsentRevoked       CheckName = "consent_revoked"
	CheckLegalHold            CheckName = "legal_hold"
	CheckDNCList              CheckName = "dnc_list"
	CheckTimeOfDay            CheckName = "time_of_day"
	CheckFrequency            CheckName = "frequency_7in7"
	CheckConversationCooldown CheckName = "conversation_cooldown"

	// CheckSystemError is not an evaluated check: it is the fail-closed
	// outcome when evaluation itself breaks.
	CheckSystemError CheckName = "system_error"
)

// hardCheckOrder is the evaluation order. BlockedBy reports the first
// failure in this order, but every check is evaluated and recorded for
// audit completeness.
var hardCheckOrder = []CheckName{
	CheckDoNotCall,
	CheckCeaseAndDesist,
	CheckAttorneyRepresented,
	CheckBankruptcy,
	CheckConsentRevoked,
	CheckLegalHold,
	CheckDNCList,
	CheckTimeOfDay,
	CheckFrequency,
	CheckConversationCooldown,
}

// Advisory warning codes. Advisories never deny; they are surfaced to the
// caller and logged as distinct audit entries.
const (
	WarnTwoPartyConsent = "two_party_consent"
	WarnExpiredSOL      = "expired_sol"
)

// reasons maps a blocking check to the operator-facing reason string.
var reasons = map[CheckName]string{
	CheckDoNotCall:            "account flagged do-not-call",
	CheckCeaseAndDesist:       "account has an active cease-and-desist",
	CheckAttorneyRepresented:  "account is attorney-represented; direct contact barred",
	CheckBankruptcy:           "account is in bankruptcy",
	CheckConsentRevoked:       "contact consent has been revoked",
	CheckLegalHold:            "an active legal hold blocks contact",
	CheckDNCList:              "number is on the organization do-not-call list",
	CheckTimeOfDay:            "outside permitted calling hours for the local time zone",
	CheckFrequency:            "contact frequency cap reached for the trailing seven days",
	CheckConversationCooldown: "a recent conversation puts this number in cooldown",
	CheckSystemError:          "compliance evaluation failed; denying by policy",
}

// Result is the gate decision. Allowed is the AND of all hard checks.
type Result struct {
	Allowed   bool               `json:"allowed"`
	Checks    map[CheckName]bool `json:"checks"`
	BlockedBy *CheckName         `json:"blocked_by,omitempty"`
	Reason    string             `json:"reason,omitempty"`
	Warnings  []string           `json:"warnings,omitempty"`
}

// twoPartyConsentJurisdictions require all parties to consent to recording;
// calls into them need the enhanced disclosure script.
var twoPartyConsentJurisdictions = map[string]struct{}{
	"CA": {}, "CT": {}, "DE": {}, "FL": {}, "IL": {}, "MD": {},
	"MA": {}, "MT": {}, "NV": {}, "NH": {}, "PA": {}, "WA": {},
}
