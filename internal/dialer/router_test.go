package dialer

import (
	"context"
	"testing"
	"time"

	"callmonitor/internal/agents"
	"callmonitor/internal/calls"
	"callmonitor/internal/campaigns"
	"callmonitor/internal/config"
	"callmonitor/internal/telephony"
)

type routerFixture struct {
	router    *Router
	calls     *calls.MemoryRepo
	campaigns *campaigns.MemoryRepo
	agents    *agents.MemoryPool
	carrier   *fakeCarrier
	slots     *MemorySlotLimiter
	now       time.Time

	// timers collects safety-hangup callbacks instead of scheduling them.
	timers []func()
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	f := &routerFixture{
		calls:     calls.NewMemoryRepo(),
		campaigns: campaigns.NewMemoryRepo(),
		agents:    agents.NewMemoryPool(),
		carrier:   &fakeCarrier{},
		slots:     NewMemorySlotLimiter(25),
		now:       time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC),
	}

	cfg := config.DialerConfig{
		VoicemailScript:        "Please call us back.",
		HoldScript:             "Please hold.",
		VoicemailHangupTimeout: 15 * time.Second,
	}
	f.router = NewRouter(f.calls, f.campaigns, f.agents, f.carrier, f.slots, nil, cfg, nil)
	f.router.clock = func() time.Time { return f.now }
	f.router.afterFunc = func(d time.Duration, fn func()) *time.Timer {
		f.timers = append(f.timers, fn)
		return nil
	}
	return f
}

// seedInFlightCall mirrors the state the orchestrator leaves behind: a
// dialing call linked to a calling target, holding one dial slot.
func (f *routerFixture) seedInFlightCall(t *testing.T, providerCallID string) calls.Call {
	t.Helper()

	c := calls.Call{
		ID:             "call-" + providerCallID,
		OrganizationID: "org-1",
		CampaignID:     "camp-1",
		TargetID:       "target-" + providerCallID,
		Direction:      calls.DirectionOutbound,
		FromNumber:     "+15550001111",
		ToNumber:       "+15552223333",
		Status:         calls.StatusDialing,
		ProviderCallID: providerCallID,
		CreatedAt:      f.now,
	}
	if err := f.calls.Insert(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	f.campaigns.PutTarget(campaigns.Target{
		ID:             c.TargetID,
		CampaignID:     c.CampaignID,
		OrganizationID: c.OrganizationID,
		Phone:          c.ToNumber,
		Status:         campaigns.TargetCalling,
		CallID:         c.ID,
		CreatedAt:      f.now,
	})
	if ok, err := f.slots.Acquire(context.Background(), c.OrganizationID); err != nil || !ok {
		t.Fatal("slot acquire failed in seed")
	}
	return c
}

func (f *routerFixture) seedAvailableAgent(id string) {
	f.agents.Put(agents.AgentStatus{
		ID:             id,
		OrganizationID: "org-1",
		UserID:         "user-" + id,
		Status:         agents.StatusAvailable,
	})
}

func TestHandleAMDHumanBridgesToAgent(t *testing.T) {
	f := newRouterFixture(t)
	c := f.seedInFlightCall(t, "SW_1")
	f.seedAvailableAgent("a-1")

	if err := f.router.HandleAMD(context.Background(), "SW_1", telephony.AMDHuman); err != nil {
		t.Fatal(err)
	}

	got, err := f.calls.GetByID(context.Background(), "org-1", c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != calls.StatusInProgress || got.AgentID != "a-1" || got.AnsweredBy != "human" {
		t.Fatalf("call = %+v", got)
	}
	agent, _ := f.agents.Get("a-1")
	if agent.Status != agents.StatusOnCall || agent.CurrentCallID != c.ID {
		t.Fatalf("agent = %+v", agent)
	}
	target, _ := f.campaigns.Target(c.TargetID)
	if target.Status != campaigns.TargetCompleted || target.Outcome != campaigns.OutcomeConnected {
		t.Fatalf("target = %s/%s, want completed/connected", target.Status, target.Outcome)
	}
}

func TestHandleAMDNotSureTreatedAsHuman(t *testing.T) {
	f := newRouterFixture(t)
	c := f.seedInFlightCall(t, "SW_1")
	f.seedAvailableAgent("a-1")

	if err := f.router.HandleAMD(context.Background(), "SW_1", telephony.AMDNotSure); err != nil {
		t.Fatal(err)
	}
	got, _ := f.calls.GetByID(context.Background(), "org-1", c.ID)
	if got.AgentID != "a-1" {
		t.Fatal("ambiguous answer must still reach an agent")
	}
}

func TestHandleAMDRedeliveryIsNoOp(t *testing.T) {
	f := newRouterFixture(t)
	c := f.seedInFlightCall(t, "SW_1")
	f.seedAvailableAgent("a-1")
	f.seedAvailableAgent("a-2")

	if err := f.router.HandleAMD(context.Background(), "SW_1", telephony.AMDHuman); err != nil {
		t.Fatal(err)
	}
	if err := f.router.HandleAMD(context.Background(), "SW_1", telephony.AMDHuman); err != nil {
		t.Fatal(err)
	}

	counts, _ := f.agents.CountByStatus(context.Background(), "org-1")
	if counts[agents.StatusOnCall] != 1 {
		t.Fatalf("on_call agents = %d, redelivery must not claim a second agent", counts[agents.StatusOnCall])
	}
	got, _ := f.calls.GetByID(context.Background(), "org-1", c.ID)
	if got.AgentID != "a-1" {
		t.Fatalf("agent = %q, want a-1", got.AgentID)
	}
}

func TestHandleAMDNoAgentPlaysHoldAndMarksUnresolved(t *testing.T) {
	f := newRouterFixture(t)
	c := f.seedInFlightCall(t, "SW_1")

	if err := f.router.HandleAMD(context.Background(), "SW_1", telephony.AMDHuman); err != nil {
		t.Fatal(err)
	}

	if len(f.carrier.speaks) != 1 || f.carrier.speaks[0].Script != "Please hold." || !f.carrier.speaks[0].Loop {
		t.Fatalf("speaks = %+v, want looping hold script", f.carrier.speaks)
	}
	target, _ := f.campaigns.Target(c.TargetID)
	if target.Outcome != campaigns.OutcomeUnresolved {
		t.Fatalf("outcome = %s, want unresolved", target.Outcome)
	}
	if len(f.carrier.hangups) != 0 {
		t.Fatal("caller on hold must not be hung up")
	}
}

func TestHandleAMDMachineSpeaksVoicemailThenHangsUpOnPlaybackEnd(t *testing.T) {
	f := newRouterFixture(t)
	c := f.seedInFlightCall(t, "SW_1")

	if err := f.router.HandleAMD(context.Background(), "SW_1", telephony.AMDMachine); err != nil {
		t.Fatal(err)
	}
	if len(f.carrier.speaks) != 1 || f.carrier.speaks[0].Script != "Please call us back." {
		t.Fatalf("speaks = %+v, want voicemail script", f.carrier.speaks)
	}
	target, _ := f.campaigns.Target(c.TargetID)
	if target.Status != campaigns.TargetCompleted || target.Outcome != campaigns.OutcomeVoicemail {
		t.Fatalf("target = %s/%s, want completed/voicemail", target.Status, target.Outcome)
	}
	if len(f.carrier.hangups) != 0 {
		t.Fatal("hangup must wait for playback to finish")
	}

	if err := f.router.HandlePlaybackEnded(context.Background(), "SW_1"); err != nil {
		t.Fatal(err)
	}
	if len(f.carrier.hangups) != 1 {
		t.Fatalf("hangups = %d, want 1 after playback ended", len(f.carrier.hangups))
	}
}

func TestMachinePrefersRecordedDropWhenConfigured(t *testing.T) {
	f := newRouterFixture(t)
	f.seedInFlightCall(t, "SW_1")
	f.router.cfg.VoicemailAudioURL = "https://cdn.example.com/voicemail.mp3"

	if err := f.router.HandleAMD(context.Background(), "SW_1", telephony.AMDMachine); err != nil {
		t.Fatal(err)
	}
	if len(f.carrier.playbacks) != 1 || f.carrier.playbacks[0] != "https://cdn.example.com/voicemail.mp3" {
		t.Fatalf("playbacks = %v, want the configured recording", f.carrier.playbacks)
	}
	if len(f.carrier.speaks) != 0 {
		t.Fatal("recorded drop must replace the spoken script")
	}
}

func TestMachineSafetyTimerHangsUpWithoutPlaybackEvent(t *testing.T) {
	f := newRouterFixture(t)
	f.seedInFlightCall(t, "SW_1")

	if err := f.router.HandleAMD(context.Background(), "SW_1", telephony.AMDMachine); err != nil {
		t.Fatal(err)
	}
	if len(f.timers) != 1 {
		t.Fatalf("timers = %d, want 1 safety timer", len(f.timers))
	}

	// The playback webhook never arrives; the timer fires.
	f.timers[0]()
	if len(f.carrier.hangups) != 1 {
		t.Fatalf("hangups = %d, want 1 from safety timer", len(f.carrier.hangups))
	}
}

func TestMachineSafetyTimerSkipsEndedCall(t *testing.T) {
	f := newRouterFixture(t)
	f.seedInFlightCall(t, "SW_1")

	if err := f.router.HandleAMD(context.Background(), "SW_1", telephony.AMDMachine); err != nil {
		t.Fatal(err)
	}
	if err := f.router.HandleStatus(context.Background(), "SW_1", "completed", 9); err != nil {
		t.Fatal(err)
	}

	f.timers[0]()
	if len(f.carrier.hangups) != 0 {
		t.Fatal("safety timer must not hang up a call that already ended")
	}
}

func TestHandleAMDFaxHangsUp(t *testing.T) {
	f := newRouterFixture(t)
	c := f.seedInFlightCall(t, "SW_1")

	if err := f.router.HandleAMD(context.Background(), "SW_1", telephony.AMDFax); err != nil {
		t.Fatal(err)
	}
	if len(f.carrier.hangups) != 1 {
		t.Fatalf("hangups = %d, want 1", len(f.carrier.hangups))
	}
	target, _ := f.campaigns.Target(c.TargetID)
	if target.Status != campaigns.TargetFailed || target.Outcome != campaigns.OutcomeFax {
		t.Fatalf("target = %s/%s, want failed/fax", target.Status, target.Outcome)
	}
}

func TestHandleStatusCompletedReleasesAgentAndSlot(t *testing.T) {
	f := newRouterFixture(t)
	c := f.seedInFlightCall(t, "SW_1")
	f.seedAvailableAgent("a-1")

	if err := f.router.HandleAMD(context.Background(), "SW_1", telephony.AMDHuman); err != nil {
		t.Fatal(err)
	}
	if err := f.router.HandleStatus(context.Background(), "SW_1", "completed", 240); err != nil {
		t.Fatal(err)
	}

	got, _ := f.calls.GetByID(context.Background(), "org-1", c.ID)
	if got.Status != calls.StatusCompleted || got.DurationSeconds != 240 || got.EndedAt == nil {
		t.Fatalf("call = %+v", got)
	}
	agent, _ := f.agents.Get("a-1")
	if agent.Status != agents.StatusWrapUp {
		t.Fatalf("agent status = %s, want wrap_up", agent.Status)
	}
	if agent.LastCallEndedAt == nil {
		t.Fatal("release must stamp last_call_ended_at for rotation")
	}
	if f.slots.Held("org-1") != 0 {
		t.Fatalf("held slots = %d, want 0 after terminal status", f.slots.Held("org-1"))
	}
}

func TestHandleStatusRedeliveryReleasesSlotOnce(t *testing.T) {
	f := newRouterFixture(t)
	f.seedInFlightCall(t, "SW_1")
	// A second in-flight call keeps the counter observable.
	f.seedInFlightCall(t, "SW_2")

	if err := f.router.HandleStatus(context.Background(), "SW_1", "completed", 10); err != nil {
		t.Fatal(err)
	}
	if err := f.router.HandleStatus(context.Background(), "SW_1", "completed", 10); err != nil {
		t.Fatal(err)
	}
	if f.slots.Held("org-1") != 1 {
		t.Fatalf("held slots = %d, want 1 (redelivery must not double-release)", f.slots.Held("org-1"))
	}
}

func TestHandleStatusBusyFailsTarget(t *testing.T) {
	f := newRouterFixture(t)
	c := f.seedInFlightCall(t, "SW_1")

	if err := f.router.HandleStatus(context.Background(), "SW_1", "busy", 0); err != nil {
		t.Fatal(err)
	}

	got, _ := f.calls.GetByID(context.Background(), "org-1", c.ID)
	if got.Status != calls.StatusFailed {
		t.Fatalf("call status = %s, want failed", got.Status)
	}
	target, _ := f.campaigns.Target(c.TargetID)
	if target.Status != campaigns.TargetFailed || target.Outcome != campaigns.OutcomeFailed {
		t.Fatalf("target = %s/%s, want failed/failed", target.Status, target.Outcome)
	}
}

func TestHandleStatusRingingTransition(t *testing.T) {
	f := newRouterFixture(t)
	c := f.seedInFlightCall(t, "SW_1")

	if err := f.router.HandleStatus(context.Background(), "SW_1", "ringing", 0); err != nil {
		t.Fatal(err)
	}
	got, _ := f.calls.GetByID(context.Background(), "org-1", c.ID)
	if got.Status != calls.StatusRinging {
		t.Fatalf("status = %s, want ringing", got.Status)
	}
	// Out-of-order ringing after answer is dropped.
	if err := f.router.HandleAMD(context.Background(), "SW_1", telephony.AMDMachine); err != nil {
		t.Fatal(err)
	}
	if err := f.router.HandleStatus(context.Background(), "SW_1", "ringing", 0); err != nil {
		t.Fatal(err)
	}
	got, _ = f.calls.GetByID(context.Background(), "org-1", c.ID)
	if got.Status != calls.StatusInProgress {
		t.Fatalf("status = %s, stale ringing must not regress the call", got.Status)
	}
}

func TestUnknownProviderCallIDIsIgnored(t *testing.T) {
	f := newRouterFixture(t)

	if err := f.router.HandleAMD(context.Background(), "SW_missing", telephony.AMDHuman); err != nil {
		t.Fatal(err)
	}
	if err := f.router.HandleStatus(context.Background(), "SW_missing", "completed", 5); err != nil {
		t.Fatal(err)
	}
	if err := f.router.HandlePlaybackEnded(context.Background(), "SW_missing"); err != nil {
		t.Fatal(err)
	}
}

func TestPlaybackEndedIgnoresHumanCalls(t *testing.T) {
	f := newRouterFixture(t)
	f.seedInFlightCall(t, "SW_1")
	f.seedAvailableAgent("a-1")

	if err := f.router.HandleAMD(context.Background(), "SW_1", telephony.AMDHuman); err != nil {
		t.Fatal(err)
	}
	if err := f.router.HandlePlaybackEnded(context.Background(), "SW_1"); err != nil {
		t.Fatal(err)
	}
	if len(f.carrier.hangups) != 0 {
		t.Fatal("playback end on a bridged call must not hang up")
	}
}
