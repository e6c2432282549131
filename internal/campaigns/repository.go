package campaigns

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("campaigns: not found")
	// ErrCompleted is returned when starting a campaign that already finished.
	ErrCompleted = errors.New("campaigns: campaign completed")
)

// TargetCounts aggregates queue state for dashboards.
type TargetCounts struct {
	ByStatus  map[TargetStatus]int  `json:"by_status"`
	ByOutcome map[TargetOutcome]int `json:"by_outcome"`
	Total     int                   `json:"total"`
}

// Repository owns campaigns and campaign_targets rows.
type Repository interface {
	GetCampaign(ctx context.Context, organizationID, campaignID string) (Campaign, error)

	// ListActive returns active campaigns across all organizations; the
	// dial loop walks it every tick.
	ListActive(ctx context.Context) ([]Campaign, error)

	// Activate flips draft/paused to active. ErrCompleted for finished
	// campaigns; active campaigns are a no-op.
	Activate(ctx context.Context, organizationID, campaignID string, now time.Time) (Campaign, error)

	// Pause halts future dequeues. In-flight calls are unaffected.
	Pause(ctx context.Context, organizationID, campaignID string, now time.Time) (Campaign, error)

	// CompleteIfDrained flips an active campaign to completed once every
	// target reached a terminal state, reporting whether it did. Campaigns
	// with no targets at all stay active; their queue may still be loading.
	CompleteIfDrained(ctx context.Context, organizationID, campaignID string, now time.Time) (bool, error)

	// DequeuePending atomically claims up to limit pending targets, oldest
	// first, marking them `calling`. Concurrent orchestrator ticks never
	// claim the same target twice.
	DequeuePending(ctx context.Context, organizationID, campaignID string, limit int, now time.Time) ([]Target, error)

	// LinkCall attaches the call row created at dial time.
	LinkCall(ctx context.Context, targetID, callID string, now time.Time) error

	// MarkFailed is used for compliance denials and carrier dial failures.
	MarkFailed(ctx context.Context, targetID string, outcome TargetOutcome, reason string, now time.Time) error

	// SetOutcome records the answer-routing result exactly once; a second
	// write for the same target is a no-op returning false.
	SetOutcome(ctx context.Context, targetID string, status TargetStatus, outcome TargetOutcome, now time.Time) (bool, error)

	TargetCounts(ctx context.Context, organizationID, campaignID string) (TargetCounts, error)
}
