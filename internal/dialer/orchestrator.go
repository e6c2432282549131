package dialer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"callmonitor/internal/agents"
	"callmonitor/internal/calls"
	"callmonitor/internal/campaigns"
	"callmonitor/internal/compliance"
	"callmonitor/internal/config"
	"callmonitor/internal/telephony"
)

// Auditor is the slice of the audit service the dialer needs.
type Auditor interface {
	LogControl(ctx context.Context, organizationID, actorID, campaignID, message, metadata string) error
	LogTransition(ctx context.Context, organizationID, callID, targetID, message, metadata string) error
}

// Orchestrator drives campaign dialing. Each batch dequeues at most
// min(batch size, available agents) targets, gates every one individually,
// and places carrier dials for the survivors.
//
// Pacing invariant: a target is never dialed without an agent countable to
// answer it at batch time, and never without a dial slot under the
// per-organization concurrency cap.
type Orchestrator struct {
	campaigns campaigns.Repository
	calls     calls.Repository
	agents    agents.Pool
	gate      *compliance.Gate
	carrier   telephony.CarrierProvider
	slots     SlotLimiter
	auditor   Auditor
	cfg       config.DialerConfig

	// fromNumber is the caller id used on every outbound dial.
	fromNumber string

	log *slog.Logger

	clock func() time.Time
}

func NewOrchestrator(
	campaignRepo campaigns.Repository,
	callRepo calls.Repository,
	pool agents.Pool,
	gate *compliance.Gate,
	carrier telephony.CarrierProvider,
	slots SlotLimiter,
	auditor Auditor,
	cfg config.DialerConfig,
	fromNumber string,
	log *slog.Logger,
) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		campaigns:  campaignRepo,
		calls:      callRepo,
		agents:     pool,
		gate:       gate,
		carrier:    carrier,
		slots:      slots,
		auditor:    auditor,
		cfg:        cfg,
		fromNumber: fromNumber,
		log:        log,
		clock:      time.Now,
	}
}

// Start activates the campaign, runs one dial batch immediately, and
// returns the campaign with the batch's dial count. Draft and paused
// campaigns activate; completed campaigns are rejected with
// campaigns.ErrCompleted; already-active campaigns just get a batch.
func (o *Orchestrator) Start(ctx context.Context, organizationID, campaignID, actorID string) (campaigns.Campaign, int, error) {
	c, err := o.campaigns.Activate(ctx, organizationID, campaignID, o.clock())
	if err != nil {
		return campaigns.Campaign{}, 0, err
	}

	if err := o.auditor.LogControl(ctx, organizationID, actorID, campaignID, "campaign started", ""); err != nil {
		o.log.Error("audit append failed", "campaign_id", campaignID, "err", err)
	}

	queued, err := o.DialBatch(ctx, organizationID, campaignID)
	if err != nil {
		// The campaign is active; batch errors surface in logs and the next
		// tick retries.
		o.log.Error("initial dial batch failed", "campaign_id", campaignID, "err", err)
	}
	return c, queued, nil
}

// Pause stops future dequeues. Calls already in flight run to completion.
func (o *Orchestrator) Pause(ctx context.Context, organizationID, campaignID, actorID string) (campaigns.Campaign, error) {
	c, err := o.campaigns.Pause(ctx, organizationID, campaignID, o.clock())
	if err != nil {
		return campaigns.Campaign{}, err
	}
	if err := o.auditor.LogControl(ctx, organizationID, actorID, campaignID, "campaign paused", ""); err != nil {
		o.log.Error("audit append failed", "campaign_id", campaignID, "err", err)
	}
	return c, nil
}

// Run drives continuous dialing: every interval it walks the active
// campaigns and fires one batch for each. Returns when ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		active, err := o.campaigns.ListActive(ctx)
		if err != nil {
			o.log.Error("list active campaigns failed", "err", err)
			continue
		}
		for _, c := range active {
			if _, err := o.DialBatch(ctx, c.OrganizationID, c.ID); err != nil {
				o.log.Error("dial batch failed", "campaign_id", c.ID, "err", err)
			}
		}
	}
}

// DialBatch runs one dial cycle and returns how many calls were placed.
// A campaign whose queue has fully drained is flipped to completed instead
// of dialing, so finished campaigns drop out of the tick loop on their own.
func (o *Orchestrator) DialBatch(ctx context.Context, organizationID, campaignID string) (int, error) {
	c, err := o.campaigns.GetCampaign(ctx, organizationID, campaignID)
	if err != nil {
		return 0, err
	}
	if c.Status != campaigns.StatusActive {
		return 0, nil
	}

	done, err := o.campaigns.CompleteIfDrained(ctx, organizationID, campaignID, o.clock())
	if err != nil {
		return 0, fmt.Errorf("dialer: complete drained campaign: %w", err)
	}
	if done {
		o.log.Info("campaign completed", "campaign_id", campaignID)
		if err := o.auditor.LogControl(ctx, organizationID, "system", campaignID, "campaign completed", ""); err != nil {
			o.log.Error("audit append failed", "campaign_id", campaignID, "err", err)
		}
		return 0, nil
	}

	avail, err := o.agents.CountAvailable(ctx, organizationID, campaignID)
	if err != nil {
		return 0, fmt.Errorf("dialer: count available agents: %w", err)
	}
	limit := o.cfg.BatchSize
	if avail < limit {
		limit = avail
	}
	if limit <= 0 {
		return 0, nil
	}

	// Reserve dial slots before touching the queue so a full cap never
	// strands dequeued targets.
	slots := 0
	for slots < limit {
		ok, err := o.slots.Acquire(ctx, organizationID)
		if err != nil {
			o.releaseSlots(ctx, organizationID, slots)
			return 0, fmt.Errorf("dialer: acquire dial slot: %w", err)
		}
		if !ok {
			break
		}
		slots++
	}
	if slots == 0 {
		return 0, nil
	}

	targets, err := o.campaigns.DequeuePending(ctx, organizationID, campaignID, slots, o.clock())
	if err != nil {
		o.releaseSlots(ctx, organizationID, slots)
		return 0, fmt.Errorf("dialer: dequeue targets: %w", err)
	}
	o.releaseSlots(ctx, organizationID, slots-len(targets))

	dialed := 0
	for _, t := range targets {
		if o.dialTarget(ctx, t) {
			dialed++
		} else {
			if err := o.slots.Release(ctx, organizationID); err != nil {
				o.log.Error("slot release failed", "organization_id", organizationID, "err", err)
			}
		}
	}
	return dialed, nil
}

// dialTarget gates and dials one target. Reports whether a carrier call is
// now in flight holding the target's dial slot.
func (o *Orchestrator) dialTarget(ctx context.Context, t campaigns.Target) bool {
	now := o.clock()

	res := o.gate.Evaluate(ctx, compliance.Request{
		OrganizationID: t.OrganizationID,
		AccountID:      t.AccountID,
		PhoneNumber:    t.Phone,
		CampaignID:     t.CampaignID,
		TargetID:       t.ID,
	})
	if !res.Allowed {
		reason := res.Reason
		if res.BlockedBy != nil {
			reason = string(*res.BlockedBy) + ": " + reason
		}
		if err := o.campaigns.MarkFailed(ctx, t.ID, campaigns.OutcomeSkipped, reason, now); err != nil {
			o.log.Error("mark target skipped failed", "target_id", t.ID, "err", err)
		}
		return false
	}

	call := calls.Call{
		ID:             uuid.NewString(),
		OrganizationID: t.OrganizationID,
		CampaignID:     t.CampaignID,
		TargetID:       t.ID,
		Direction:      calls.DirectionOutbound,
		FromNumber:     o.fromNumber,
		ToNumber:       t.Phone,
		Status:         calls.StatusDialing,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := o.calls.Insert(ctx, call); err != nil {
		o.log.Error("call insert failed", "target_id", t.ID, "err", err)
		if err := o.campaigns.MarkFailed(ctx, t.ID, campaigns.OutcomeFailed, "call record creation failed", now); err != nil {
			o.log.Error("mark target failed", "target_id", t.ID, "err", err)
		}
		return false
	}
	if err := o.campaigns.LinkCall(ctx, t.ID, call.ID, now); err != nil {
		o.log.Error("link call failed", "target_id", t.ID, "call_id", call.ID, "err", err)
	}

	dr, err := o.carrier.Dial(ctx, telephony.DialRequest{
		OrganizationID: t.OrganizationID,
		From:           call.FromNumber,
		To:             call.ToNumber,
		CallID:         call.ID,
	})
	if err != nil {
		o.log.Error("carrier dial failed", "call_id", call.ID, "err", err)
		if ferr := o.calls.Finalize(ctx, call.ID, calls.StatusFailed, 0, o.clock()); ferr != nil {
			o.log.Error("finalize failed call", "call_id", call.ID, "err", ferr)
		}
		if merr := o.campaigns.MarkFailed(ctx, t.ID, campaigns.OutcomeFailed, "carrier dial failed", o.clock()); merr != nil {
			o.log.Error("mark target failed", "target_id", t.ID, "err", merr)
		}
		return false
	}

	if err := o.calls.SetProviderIDs(ctx, call.ID, dr.ProviderCallID, dr.ProviderSessionID, o.clock()); err != nil {
		o.log.Error("persist provider ids failed", "call_id", call.ID, "err", err)
	}

	if err := o.auditor.LogTransition(ctx, t.OrganizationID, call.ID, t.ID, "dial placed",
		transitionMeta(map[string]string{"provider_call_id": dr.ProviderCallID})); err != nil {
		o.log.Error("audit append failed", "call_id", call.ID, "err", err)
	}
	return true
}

func (o *Orchestrator) releaseSlots(ctx context.Context, organizationID string, n int) {
	for i := 0; i < n; i++ {
		if err := o.slots.Release(ctx, organizationID); err != nil {
			o.log.Error("slot release failed", "organization_id", organizationID, "err", err)
		}
	}
}

// Stats is the campaign dashboard payload.
type Stats struct {
	Campaign campaigns.Campaign     `json:"campaign"`
	Targets  campaigns.TargetCounts `json:"targets"`
	Agents   map[agents.Status]int  `json:"agents"`
}

func (o *Orchestrator) Stats(ctx context.Context, organizationID, campaignID string) (Stats, error) {
	c, err := o.campaigns.GetCampaign(ctx, organizationID, campaignID)
	if err != nil {
		return Stats{}, err
	}
	counts, err := o.campaigns.TargetCounts(ctx, organizationID, campaignID)
	if err != nil {
		return Stats{}, err
	}
	byStatus, err := o.agents.CountByStatus(ctx, organizationID)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Campaign: c, Targets: counts, Agents: byStatus}, nil
}

func transitionMeta(kv map[string]string) string {
	b, _ := json.Marshal(kv)
	return string(b)
}
