package dialer

import (
	"context"
	"encoding/json"

	"callmonitor/internal/audit"
	"callmonitor/internal/calls"
)

// Transcriber records answer-router transitions through the non-blocking
// audit writer. Webhook handling must never stall on audit storage.
type Transcriber struct {
	writer *audit.Writer
}

func NewTranscriber(writer *audit.Writer) *Transcriber {
	return &Transcriber{writer: writer}
}

func (t *Transcriber) Transition(ctx context.Context, call calls.Call, message string, meta map[string]string) {
	if t == nil || t.writer == nil {
		return
	}
	var metadata string
	if len(meta) > 0 {
		b, _ := json.Marshal(meta)
		metadata = string(b)
	}
	t.writer.Enqueue(audit.Event{
		OrganizationID: call.OrganizationID,
		Type:           audit.EventTypeDialerTransition,
		CampaignID:     call.CampaignID,
		TargetID:       call.TargetID,
		CallID:         call.ID,
		Message:        message,
		Metadata:       metadata,
	})
}
