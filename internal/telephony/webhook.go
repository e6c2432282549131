package telephony

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Webhook forms capture the subset of SignalWire callback fields the answer
// router consumes. SignalWire posts application/x-www-form-urlencoded.
//
// Parsing only; routing decisions are not made here.

type AMDEvent struct {
	CallSid    string
	AnsweredBy string

	// CallID is our identifier, echoed back via the callback query string.
	CallID string
}

// Result returns the normalized classification.
func (e AMDEvent) Result() AMDResult { return NormalizeAMD(e.AnsweredBy) }

type StatusEvent struct {
	CallSid      string
	CallStatus   string
	CallDuration int

	CallID string
}

type PlaybackEvent struct {
	CallSid        string
	PlaybackStatus string
}

// Ended reports whether the playback reached a terminal state.
func (e PlaybackEvent) Ended() bool {
	return e.PlaybackStatus == "completed" || e.PlaybackStatus == "failed"
}

func ParseAMDEvent(r *http.Request) (AMDEvent, error) {
	if err := r.ParseForm(); err != nil {
		return AMDEvent{}, err
	}
	e := AMDEvent{
		CallSid:    strings.TrimSpace(r.PostFormValue("CallSid")),
		AnsweredBy: strings.TrimSpace(r.PostFormValue("AnsweredBy")),
		CallID:     strings.TrimSpace(r.URL.Query().Get("call_id")),
	}
	if e.CallSid == "" {
		return AMDEvent{}, fmt.Errorf("telephony: amd webhook missing CallSid")
	}
	return e, nil
}

func ParseStatusEvent(r *http.Request) (StatusEvent, error) {
	if err := r.ParseForm(); err != nil {
		return StatusEvent{}, err
	}
	e := StatusEvent{
		CallSid:    strings.TrimSpace(r.PostFormValue("CallSid")),
		CallStatus: strings.TrimSpace(r.PostFormValue("CallStatus")),
		CallID:     strings.TrimSpace(r.URL.Query().Get("call_id")),
	}
	if e.CallSid == "" {
		return StatusEvent{}, fmt.Errorf("telephony: status webhook missing CallSid")
	}
	if d := r.PostFormValue("CallDuration"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil {
			return StatusEvent{}, fmt.Errorf("telephony: bad CallDuration %q", d)
		}
		e.CallDuration = n
	}
	return e, nil
}

func ParsePlaybackEvent(r *http.Request) (PlaybackEvent, error) {
	if err := r.ParseForm(); err != nil {
		return PlaybackEvent{}, err
	}
	e := PlaybackEvent{
		CallSid:        strings.TrimSpace(r.PostFormValue("CallSid")),
		PlaybackStatus: strings.TrimSpace(r.PostFormValue("PlaybackStatus")),
	}
	if e.CallSid == "" {
		return PlaybackEvent{}, fmt.Errorf("telephony: playback webhook missing CallSid")
	}
	return e, nil
}
