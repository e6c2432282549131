package telephony

import "context"

// CarrierProvider is the provider-agnostic carrier interface used by the
// dialer. No provider SDK or REST details leak above this boundary.
//
// Rules:
//   - All calls are placed with answering machine detection enabled; the
//     classification arrives asynchronously on the AMD webhook.
//   - Commands address calls by the provider's call id, never by ours.
type CarrierProvider interface {
	Name() string

	// Dial places one outbound call and returns the provider identifiers.
	// The call is not answered yet when Dial returns.
	Dial(ctx context.Context, req DialRequest) (DialResult, error)

	// Speak plays a text-to-speech script into a live call. The carrier
	// reports completion on the playback webhook.
	Speak(ctx context.Context, req SpeakRequest) error

	// PlaybackStart plays a pre-recorded audio file into a live call.
	// Completion arrives on the same playback webhook as Speak.
	PlaybackStart(ctx context.Context, providerCallID, audioURL string) error

	// Hangup tears the call down. Safe to call on already-ended calls.
	Hangup(ctx context.Context, providerCallID string) error
}

type DialRequest struct {
	OrganizationID string `json:"organization_id"`

	// From and To are E.164.
	From string `json:"from"`
	To   string `json:"to"`

	// CallID is our internal call id, echoed back on webhooks so events can
	// be correlated even before the provider id is persisted.
	CallID string `json:"call_id"`
}

type DialResult struct {
	ProviderCallID    string `json:"provider_call_id"`
	ProviderSessionID string `json:"provider_session_id,omitempty"`
}

type SpeakRequest struct {
	ProviderCallID string `json:"provider_call_id"`
	Script         string `json:"script"`

	// Loop plays the script repeatedly until the call ends; used for hold
	// messaging while no agent is available.
	Loop bool `json:"loop,omitempty"`
}

// AMDResult is the normalized answering machine detection classification.
type AMDResult string

const (
	AMDHuman   AMDResult = "human"
	AMDMachine AMDResult = "machine"
	AMDFax     AMDResult = "fax_detected"
	AMDNotSure AMDResult = "not_sure"
)

// NormalizeAMD maps a provider AnsweredBy value onto AMDResult. Both the
// short provider labels and the normalized names themselves are accepted,
// so a normalized value round-trips. Unknown values degrade to not_sure so
// a new provider label is treated like an ambiguous answer rather than
// dropped.
func NormalizeAMD(answeredBy string) AMDResult {
	switch answeredBy {
	case "human":
		return AMDHuman
	case "machine", "machine_start", "machine_end_beep", "machine_end_silence", "machine_end_other":
		return AMDMachine
	case "fax", "fax_detected":
		return AMDFax
	case "not_sure":
		return AMDNotSure
	default:
		return AMDNotSure
	}
}
