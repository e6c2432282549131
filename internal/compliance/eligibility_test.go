package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"callmonitor/internal/calls"
)

func testOracle(t *testing.T, history CallHistory, at time.Time) *Oracle {
	t.Helper()
	return NewOracle(history, ZoneConfig{
		DefaultZone: "America/New_York",
		StartHour:   8,
		EndHour:     21,
	}, func() time.Time { return at })
}

func TestWithinCallWindowBoundaries(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"one minute before open", time.Date(2026, 3, 2, 7, 59, 0, 0, ny), false},
		{"exactly at open", time.Date(2026, 3, 2, 8, 0, 0, 0, ny), true},
		{"last permitted minute", time.Date(2026, 3, 2, 20, 59, 0, 0, ny), true},
		{"exactly at close", time.Date(2026, 3, 2, 21, 0, 0, 0, ny), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := testOracle(t, calls.NewMemoryRepo(), tc.at)
			got, err := o.WithinCallWindow("America/New_York")
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Fatalf("WithinCallWindow at %v = %v, want %v", tc.at, got, tc.want)
			}
		})
	}
}

func TestWithinCallWindowZoneFallback(t *testing.T) {
	// 01:00 UTC is 20:00 the previous evening in New York. The instant is
	// outside the window in UTC but inside it in the fallback zone, so a
	// pass proves the fallback zone is actually applied.
	at := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)
	o := testOracle(t, calls.NewMemoryRepo(), at)

	for _, zone := range []string{"Not/AZone", ""} {
		got, err := o.WithinCallWindow(zone)
		if err != nil {
			t.Fatal(err)
		}
		if !got {
			t.Fatalf("zone %q should fall back to the default zone, which permits 20:00", zone)
		}
	}
}

func TestWithinCallWindowBrokenDefaultZone(t *testing.T) {
	at := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	o := NewOracle(calls.NewMemoryRepo(), ZoneConfig{
		DefaultZone: "Not/AZone",
		StartHour:   8,
		EndHour:     21,
	}, func() time.Time { return at })

	// A loadable account zone never touches the default.
	got, err := o.WithinCallWindow("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	if !got {
		t.Fatal("09:00 New York should be inside the window")
	}

	// When the account zone is unloadable too, there is nothing safe left
	// to evaluate against.
	if _, err := o.WithinCallWindow("Also/Bogus"); err == nil {
		t.Fatal("expected an error when the default zone cannot be loaded")
	}
	if _, err := o.WithinCallWindow(""); err == nil {
		t.Fatal("expected an error when only the broken default zone applies")
	}
}

func TestUnderFrequencyCap(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	repo := calls.NewMemoryRepo()
	o := testOracle(t, repo, now)

	seed := func(n int, createdAt time.Time) {
		for i := 0; i < n; i++ {
			_ = repo.Insert(ctx, calls.Call{
				ID:             uuid.NewString(),
				OrganizationID: "org-1",
				Direction:      calls.DirectionOutbound,
				ToNumber:       "+15551230001",
				Status:         calls.StatusFailed,
				CreatedAt:      createdAt,
			})
		}
	}

	// Six attempts inside the window: a seventh is still permitted.
	seed(6, now.Add(-24*time.Hour))
	ok, err := o.UnderFrequencyCap(ctx, "org-1", "+15551230001")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("six attempts in window should leave room for one more")
	}

	// Attempts older than seven days never count.
	seed(5, now.Add(-8*24*time.Hour))
	ok, err = o.UnderFrequencyCap(ctx, "org-1", "+15551230001")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("attempts outside the trailing window must not count")
	}

	// The seventh in-window attempt hits the cap.
	seed(1, now.Add(-2*time.Hour))
	ok, err = o.UnderFrequencyCap(ctx, "org-1", "+15551230001")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("seven attempts in window must hit the cap")
	}
}

func TestOutsideConversationCooldown(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	repo := calls.NewMemoryRepo()
	o := testOracle(t, repo, now)

	insert := func(id string, status calls.Status, duration int, endedAt time.Time) {
		c := calls.Call{
			ID:             id,
			OrganizationID: "org-1",
			Direction:      calls.DirectionOutbound,
			ToNumber:       "+15551230002",
			Status:         calls.StatusDialing,
			CreatedAt:      endedAt.Add(-time.Minute),
		}
		if err := repo.Insert(ctx, c); err != nil {
			t.Fatal(err)
		}
		if err := repo.Finalize(ctx, id, status, duration, endedAt); err != nil {
			t.Fatal(err)
		}
	}

	// A completed call with zero talk time is not a conversation.
	insert("c1", calls.StatusCompleted, 0, now.Add(-time.Hour))
	// A failed call with duration is not a conversation either.
	insert("c2", calls.StatusFailed, 30, now.Add(-time.Hour))

	ok, err := o.OutsideConversationCooldown(ctx, "org-1", "+15551230002")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("zero-duration and failed calls must not trigger cooldown")
	}

	// A real conversation eight days ago has aged out.
	insert("c3", calls.StatusCompleted, 120, now.Add(-8*24*time.Hour))
	ok, err = o.OutsideConversationCooldown(ctx, "org-1", "+15551230002")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("conversations older than the window must not trigger cooldown")
	}

	// A real conversation inside the window does.
	insert("c4", calls.StatusCompleted, 45, now.Add(-2*24*time.Hour))
	ok, err = o.OutsideConversationCooldown(ctx, "org-1", "+15551230002")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("a recent conversation must trigger cooldown")
	}
}
