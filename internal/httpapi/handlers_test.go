package httpapi

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"callmonitor/internal/accounts"
	"callmonitor/internal/agents"
	"callmonitor/internal/audit"
	"callmonitor/internal/auth"
	"callmonitor/internal/calls"
	"callmonitor/internal/campaigns"
	"callmonitor/internal/compliance"
	"callmonitor/internal/config"
	"callmonitor/internal/dialer"
	"callmonitor/internal/telephony"

	"github.com/gin-gonic/gin"
)

func init() { gin.SetMode(gin.TestMode) }

// withIdentity injects an authenticated identity the way the auth
// middleware would.
func withIdentity(organizationID, actorID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), actorID, organizationID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func testGate(t *testing.T) (*compliance.Gate, *accounts.MemoryDirectory) {
	t.Helper()
	dir := accounts.NewMemoryDirectory()
	history := calls.NewMemoryRepo()
	writer := audit.NewWriter(audit.NewService(audit.NewMemoryRepo()), nil, 16)
	t.Cleanup(func() { _ = writer.Close(context.Background()) })
	oracle := compliance.NewOracle(history, compliance.ZoneConfig{
		DefaultZone: "America/New_York", StartHour: 8, EndHour: 21,
	}, func() time.Time {
		ny, _ := time.LoadLocation("America/New_York")
		return time.Date(2026, 3, 2, 14, 0, 0, 0, ny)
	})
	return compliance.NewGate(dir, oracle, writer, nil), dir
}

type stubCarrier struct{}

func (stubCarrier) Name() string { return "stub" }
func (stubCarrier) Dial(ctx context.Context, req telephony.DialRequest) (telephony.DialResult, error) {
	return telephony.DialResult{ProviderCallID: "SW_" + req.CallID}, nil
}
func (stubCarrier) Speak(context.Context, telephony.SpeakRequest) error { return nil }
func (stubCarrier) PlaybackStart(context.Context, string, string) error { return nil }
func (stubCarrier) Hangup(context.Context, string) error                { return nil }

func TestStartCampaignReturnsQueuedCount(t *testing.T) {
	gate, _ := testGate(t)
	campaignRepo := campaigns.NewMemoryRepo()
	callRepo := calls.NewMemoryRepo()
	pool := agents.NewMemoryPool()
	svc := audit.NewService(audit.NewMemoryRepo())
	orch := dialer.NewOrchestrator(campaignRepo, callRepo, pool, gate, stubCarrier{},
		dialer.NewMemorySlotLimiter(5), svc, config.DialerConfig{BatchSize: 10}, "+15550001111", nil)

	campaignRepo.PutCampaign(campaigns.Campaign{
		ID: "camp-1", OrganizationID: "org-1", Name: "March outreach", Status: campaigns.StatusDraft,
	})
	campaignRepo.PutTarget(campaigns.Target{
		ID: "t-1", CampaignID: "camp-1", OrganizationID: "org-1",
		Phone: "+15552220001", Status: campaigns.TargetPending,
	})
	pool.Put(agents.AgentStatus{
		ID: "a-1", OrganizationID: "org-1", UserID: "u-1", Status: agents.StatusAvailable,
	})

	r := gin.New()
	h := Handlers{Orchestrator: orch}
	r.POST("/v1/dialer/campaigns/:campaign_id/start", withIdentity("org-1", "user-1", "owner"), h.StartCampaign)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/dialer/campaigns/camp-1/start", nil)
	r.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var res struct {
		Campaign campaigns.Campaign `json:"campaign"`
		Queued   int                `json:"queued"`
		Started  bool               `json:"started"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.Started {
		t.Fatal("started must be true after activation")
	}
	if res.Queued != 1 {
		t.Fatalf("queued = %d, want 1", res.Queued)
	}
	if res.Campaign.Status != campaigns.StatusActive {
		t.Fatalf("campaign status = %s, want active", res.Campaign.Status)
	}
}

func TestEvaluateCompliance(t *testing.T) {
	gate, dir := testGate(t)
	dir.PutDNC("org-1", "+15551234567")

	r := gin.New()
	h := Handlers{Gate: gate}
	r.POST("/v1/compliance/evaluate", withIdentity("org-1", "user-1", "compliance"), h.EvaluateCompliance)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/compliance/evaluate",
		strings.NewReader(`{"phone_number":"+15551234567"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var res compliance.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Allowed {
		t.Fatal("DNC number must be denied")
	}
	if res.BlockedBy == nil || *res.BlockedBy != compliance.CheckDNCList {
		t.Fatalf("blocked_by = %v", res.BlockedBy)
	}
}

func TestEvaluateComplianceRequiresPhone(t *testing.T) {
	gate, _ := testGate(t)

	r := gin.New()
	h := Handlers{Gate: gate}
	r.POST("/v1/compliance/evaluate", withIdentity("org-1", "user-1", "compliance"), h.EvaluateCompliance)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/compliance/evaluate", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != 400 {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestEvaluateComplianceRequiresIdentity(t *testing.T) {
	gate, _ := testGate(t)

	r := gin.New()
	h := Handlers{Gate: gate}
	r.POST("/v1/compliance/evaluate", h.EvaluateCompliance)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/compliance/evaluate",
		strings.NewReader(`{"phone_number":"+15551234567"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != 401 {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
