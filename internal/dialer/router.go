package dialer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"callmonitor/internal/agents"
	"callmonitor/internal/calls"
	"callmonitor/internal/campaigns"
	"callmonitor/internal/config"
	"callmonitor/internal/telephony"
)

// Router is the answer router: it consumes carrier webhooks and advances
// each call's state machine exactly once per event.
//
// Idempotency: carriers redeliver webhooks. Every state change goes through
// a guarded transition (calls.Transition, calls.Finalize, or
// campaigns.SetOutcome) that matches only the expected prior state, so a
// redelivered event finds the guard already moved and becomes a no-op.
type Router struct {
	calls     calls.Repository
	campaigns campaigns.Repository
	agents    agents.Pool
	carrier   telephony.CarrierProvider
	slots     SlotLimiter
	audits    *Transcriber
	cfg       config.DialerConfig
	log       *slog.Logger

	clock func() time.Time

	// afterFunc schedules the voicemail safety hangup; swapped in tests.
	afterFunc func(d time.Duration, f func()) *time.Timer
}

func NewRouter(
	callRepo calls.Repository,
	campaignRepo campaigns.Repository,
	pool agents.Pool,
	carrier telephony.CarrierProvider,
	slots SlotLimiter,
	audits *Transcriber,
	cfg config.DialerConfig,
	log *slog.Logger,
) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		calls:     callRepo,
		campaigns: campaignRepo,
		agents:    pool,
		carrier:   carrier,
		slots:     slots,
		audits:    audits,
		cfg:       cfg,
		log:       log,
		clock:     time.Now,
		afterFunc: time.AfterFunc,
	}
}

// HandleAMD routes the answering machine detection result.
func (r *Router) HandleAMD(ctx context.Context, providerCallID string, result telephony.AMDResult) error {
	call, err := r.calls.GetByProviderCallID(ctx, providerCallID)
	if errors.Is(err, calls.ErrNotFound) {
		// Carrier events can outrun SetProviderIDs or reference calls we
		// never placed; both are logged and dropped.
		r.log.Warn("amd event for unknown call", "provider_call_id", providerCallID)
		return nil
	}
	if err != nil {
		return err
	}

	now := r.clock()
	if err := r.calls.Transition(ctx, call.ID,
		[]calls.Status{calls.StatusDialing, calls.StatusRinging}, calls.StatusInProgress, now); err != nil {
		if errors.Is(err, calls.ErrStaleTransition) {
			// Redelivered AMD webhook; the first delivery already routed.
			return nil
		}
		return err
	}
	if err := r.calls.MarkAnswered(ctx, call.ID, string(result), now); err != nil {
		r.log.Error("mark answered failed", "call_id", call.ID, "err", err)
	}

	r.audits.Transition(ctx, call, "answered: "+string(result), nil)

	switch result {
	case telephony.AMDMachine:
		return r.routeMachine(ctx, call)
	case telephony.AMDFax:
		return r.routeFax(ctx, call)
	default:
		// Humans are bridged; ambiguous answers are treated as human so a
		// live person is never met with silence.
		return r.routeHuman(ctx, call)
	}
}

// routeMachine leaves the voicemail script and hangs up when playback ends.
// A safety timer bounds the wait in case the playback webhook never lands.
func (r *Router) routeMachine(ctx context.Context, call calls.Call) error {
	r.setTargetOutcome(ctx, call, campaigns.TargetCompleted, campaigns.OutcomeVoicemail, "")

	var err error
	if r.cfg.VoicemailAudioURL != "" {
		err = r.carrier.PlaybackStart(ctx, call.ProviderCallID, r.cfg.VoicemailAudioURL)
	} else {
		err = r.carrier.Speak(ctx, telephony.SpeakRequest{
			ProviderCallID: call.ProviderCallID,
			Script:         r.cfg.VoicemailScript,
		})
	}
	if err != nil {
		r.log.Error("voicemail drop failed", "call_id", call.ID, "err", err)
		return r.hangup(ctx, call)
	}

	callID, providerCallID := call.ID, call.ProviderCallID
	r.afterFunc(r.cfg.VoicemailHangupTimeout, func() {
		hctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c, err := r.calls.GetByID(hctx, call.OrganizationID, callID)
		if err != nil || c.Status.IsTerminal() {
			return
		}
		r.log.Info("voicemail playback overran, hanging up", "call_id", callID)
		if err := r.carrier.Hangup(hctx, providerCallID); err != nil {
			r.log.Error("safety hangup failed", "call_id", callID, "err", err)
		}
	})
	return nil
}

func (r *Router) routeFax(ctx context.Context, call calls.Call) error {
	r.setTargetOutcome(ctx, call, campaigns.TargetFailed, campaigns.OutcomeFax, "fax machine detected")
	return r.hangup(ctx, call)
}

// routeHuman claims an agent and bridges, or plays the hold script and
// records the target unresolved when nobody is free.
func (r *Router) routeHuman(ctx context.Context, call calls.Call) error {
	now := r.clock()
	agent, err := r.agents.Claim(ctx, call.OrganizationID, call.CampaignID, call.ID, now)
	if errors.Is(err, agents.ErrNoAgentAvailable) {
		r.audits.Transition(ctx, call, "no agent available", nil)
		r.setTargetOutcome(ctx, call, campaigns.TargetFailed, campaigns.OutcomeUnresolved, "no agent available")

		if serr := r.carrier.Speak(ctx, telephony.SpeakRequest{
			ProviderCallID: call.ProviderCallID,
			Script:         r.cfg.HoldScript,
			Loop:           true,
		}); serr != nil {
			r.log.Error("hold speak failed", "call_id", call.ID, "err", serr)
			return r.hangup(ctx, call)
		}
		return nil
	}
	if err != nil {
		return err
	}

	if err := r.calls.SetAgent(ctx, call.ID, agent.ID, now); err != nil {
		r.log.Error("set agent failed", "call_id", call.ID, "agent_id", agent.ID, "err", err)
	}
	r.setTargetOutcome(ctx, call, campaigns.TargetCompleted, campaigns.OutcomeConnected, "")
	r.audits.Transition(ctx, call, "bridged to agent", map[string]string{"agent_id": agent.ID})
	return nil
}

// HandleStatus applies carrier call-status events.
func (r *Router) HandleStatus(ctx context.Context, providerCallID, callStatus string, durationSeconds int) error {
	call, err := r.calls.GetByProviderCallID(ctx, providerCallID)
	if errors.Is(err, calls.ErrNotFound) {
		r.log.Warn("status event for unknown call", "provider_call_id", providerCallID, "status", callStatus)
		return nil
	}
	if err != nil {
		return err
	}

	now := r.clock()
	switch callStatus {
	case "ringing":
		err := r.calls.Transition(ctx, call.ID, []calls.Status{calls.StatusDialing}, calls.StatusRinging, now)
		if errors.Is(err, calls.ErrStaleTransition) {
			return nil
		}
		return err
	case "in-progress", "answered":
		// AMD routing owns the answer transition; this event only matters
		// when it arrives first, so stale is fine.
		err := r.calls.Transition(ctx, call.ID,
			[]calls.Status{calls.StatusDialing, calls.StatusRinging}, calls.StatusInProgress, now)
		if errors.Is(err, calls.ErrStaleTransition) {
			return nil
		}
		return err
	case "completed":
		return r.finalize(ctx, call, calls.StatusCompleted, durationSeconds, "")
	case "busy", "no-answer", "failed", "canceled":
		return r.finalize(ctx, call, calls.StatusFailed, durationSeconds, callStatus)
	default:
		r.log.Warn("unhandled call status", "call_id", call.ID, "status", callStatus)
		return nil
	}
}

// finalize records the terminal state once, then releases the agent and the
// dial slot. The Finalize guard makes redelivered terminal events no-ops,
// which also keeps the slot from being double-released.
func (r *Router) finalize(ctx context.Context, call calls.Call, status calls.Status, durationSeconds int, reason string) error {
	now := r.clock()
	if err := r.calls.Finalize(ctx, call.ID, status, durationSeconds, now); err != nil {
		if errors.Is(err, calls.ErrStaleTransition) {
			return nil
		}
		return err
	}

	if status == calls.StatusFailed && call.TargetID != "" {
		outcomeReason := reason
		if outcomeReason == "" {
			outcomeReason = "call failed"
		}
		r.setTargetOutcome(ctx, call, campaigns.TargetFailed, campaigns.OutcomeFailed, outcomeReason)
	}

	if call.AgentID != "" {
		if err := r.agents.Release(ctx, call.OrganizationID, call.AgentID, now); err != nil {
			r.log.Error("agent release failed", "call_id", call.ID, "agent_id", call.AgentID, "err", err)
		}
	}
	if err := r.slots.Release(ctx, call.OrganizationID); err != nil {
		r.log.Error("slot release failed", "call_id", call.ID, "err", err)
	}

	meta := map[string]string{"status": string(status)}
	if reason != "" {
		meta["reason"] = reason
	}
	r.audits.Transition(ctx, call, "call ended", meta)
	return nil
}

// HandlePlaybackEnded hangs up machine-answered calls once the voicemail
// script finishes.
func (r *Router) HandlePlaybackEnded(ctx context.Context, providerCallID string) error {
	call, err := r.calls.GetByProviderCallID(ctx, providerCallID)
	if errors.Is(err, calls.ErrNotFound) {
		r.log.Warn("playback event for unknown call", "provider_call_id", providerCallID)
		return nil
	}
	if err != nil {
		return err
	}
	if call.AnsweredBy != string(telephony.AMDMachine) || call.Status.IsTerminal() {
		return nil
	}
	return r.hangup(ctx, call)
}

func (r *Router) hangup(ctx context.Context, call calls.Call) error {
	if err := r.carrier.Hangup(ctx, call.ProviderCallID); err != nil {
		r.log.Error("hangup failed", "call_id", call.ID, "err", err)
		return err
	}
	return nil
}

// setTargetOutcome records the routing outcome once; later writes for the
// same target are dropped by the repository guard.
func (r *Router) setTargetOutcome(ctx context.Context, call calls.Call, status campaigns.TargetStatus, outcome campaigns.TargetOutcome, reason string) {
	if call.TargetID == "" {
		return
	}
	wrote, err := r.campaigns.SetOutcome(ctx, call.TargetID, status, outcome, r.clock())
	if err != nil {
		r.log.Error("set target outcome failed", "target_id", call.TargetID, "outcome", outcome, "err", err)
		return
	}
	if wrote && reason != "" {
		// Reason rides on MarkFailed for compliance denials; for routing
		// outcomes it is audit metadata only.
		r.audits.Transition(ctx, call, "outcome "+string(outcome), map[string]string{"reason": reason})
	}
}
