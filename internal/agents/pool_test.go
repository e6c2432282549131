package agents

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestClaim_FairRotationPrefersLongestIdle(t *testing.T) {
	pool := NewMemoryPool()
	old := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	recent := old.Add(time.Hour)
	pool.Put(AgentStatus{ID: "a-recent", OrganizationID: "org", UserID: "u1", Status: StatusAvailable, LastCallEndedAt: &recent})
	pool.Put(AgentStatus{ID: "a-old", OrganizationID: "org", UserID: "u2", Status: StatusAvailable, LastCallEndedAt: &old})
	pool.Put(AgentStatus{ID: "a-never", OrganizationID: "org", UserID: "u3", Status: StatusAvailable})

	got, err := pool.Claim(context.Background(), "org", "", "call-1", time.Now())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got.ID != "a-never" {
		t.Fatalf("expected never-called agent first, got %q", got.ID)
	}
	if got.Status != StatusOnCall || got.CurrentCallID != "call-1" {
		t.Fatalf("expected on_call with call link, got %+v", got)
	}
}

func TestClaim_CampaignAffinityMatchesOrNull(t *testing.T) {
	pool := NewMemoryPool()
	pool.Put(AgentStatus{ID: "a-other", OrganizationID: "org", UserID: "u1", Status: StatusAvailable, CampaignID: "camp-other"})

	if _, err := pool.Claim(context.Background(), "org", "camp-1", "call-1", time.Now()); !errors.Is(err, ErrNoAgentAvailable) {
		t.Fatalf("expected no agent for mismatched affinity, got %v", err)
	}

	pool.Put(AgentStatus{ID: "a-null", OrganizationID: "org", UserID: "u2", Status: StatusAvailable})
	got, err := pool.Claim(context.Background(), "org", "camp-1", "call-1", time.Now())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got.ID != "a-null" {
		t.Fatalf("expected null-affinity agent, got %q", got.ID)
	}
}

func TestClaim_ConcurrentClaimersNeverDoubleBook(t *testing.T) {
	pool := NewMemoryPool()
	pool.Put(AgentStatus{ID: "only", OrganizationID: "org", UserID: "u1", Status: StatusAvailable})

	const claimers = 32
	var wg sync.WaitGroup
	results := make(chan error, claimers)
	winners := make(chan string, claimers)

	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := pool.Claim(context.Background(), "org", "", "call-x", time.Now())
			if err != nil {
				results <- err
				return
			}
			winners <- a.ID
		}()
	}
	wg.Wait()
	close(results)
	close(winners)

	if got := len(winners); got != 1 {
		t.Fatalf("expected exactly one successful claim, got %d", got)
	}
	for err := range results {
		if !errors.Is(err, ErrNoAgentAvailable) {
			t.Fatalf("losers must see ErrNoAgentAvailable, got %v", err)
		}
	}
}

func TestRelease_StampsRotationTimestamp(t *testing.T) {
	pool := NewMemoryPool()
	pool.Put(AgentStatus{ID: "a1", OrganizationID: "org", UserID: "u1", Status: StatusAvailable})

	if _, err := pool.Claim(context.Background(), "org", "", "call-1", time.Now()); err != nil {
		t.Fatalf("claim: %v", err)
	}
	ended := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	if err := pool.Release(context.Background(), "org", "a1", ended); err != nil {
		t.Fatalf("release: %v", err)
	}

	a, _ := pool.Get("a1")
	if a.Status != StatusWrapUp || a.CurrentCallID != "" {
		t.Fatalf("expected wrap_up with no call, got %+v", a)
	}
	if a.LastCallEndedAt == nil || !a.LastCallEndedAt.Equal(ended) {
		t.Fatalf("expected last_call_ended_at %v, got %v", ended, a.LastCallEndedAt)
	}
}

func TestRelease_RequiresOnCall(t *testing.T) {
	pool := NewMemoryPool()
	pool.Put(AgentStatus{ID: "a1", OrganizationID: "org", UserID: "u1", Status: StatusAvailable})
	if err := pool.Release(context.Background(), "org", "a1", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for idle agent, got %v", err)
	}
}
