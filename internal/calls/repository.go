package calls

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("calls: not found")
	// ErrStaleTransition is returned when a guarded update matched no row,
	// i.e. the call already moved past the expected states. Callers treat
	// this as "someone else already handled it" (webhook redelivery).
	ErrStaleTransition = errors.New("calls: stale transition")
)

// Repository persists call attempts and answers the history queries the
// eligibility checks depend on.
type Repository interface {
	Insert(ctx context.Context, c Call) error
	GetByID(ctx context.Context, organizationID, id string) (Call, error)
	GetByProviderCallID(ctx context.Context, providerCallID string) (Call, error)

	// SetProviderIDs links the carrier identifiers after a successful dial.
	SetProviderIDs(ctx context.Context, id, providerCallID, providerSessionID string, now time.Time) error

	// Transition moves a call from one of the expected states into next.
	// Returns ErrStaleTransition when the call is not in an expected state,
	// which makes webhook redelivery a no-op for the caller.
	Transition(ctx context.Context, id string, expected []Status, next Status, now time.Time) error

	// MarkAnswered records the AMD classification (idempotent overwrite).
	MarkAnswered(ctx context.Context, id, answeredBy string, now time.Time) error

	// SetAgent links the claimed agent on bridge.
	SetAgent(ctx context.Context, id, agentID string, now time.Time) error

	// Finalize stamps the terminal status, duration and end time.
	Finalize(ctx context.Context, id string, status Status, durationSeconds int, endedAt time.Time) error

	// CountOutboundAttemptsSince counts outbound attempts to the phone number
	// scoped to the organization, created at or after since. Attempts are
	// counted by destination number, not account, because a number may be
	// dialed before an account match exists.
	CountOutboundAttemptsSince(ctx context.Context, organizationID, phone string, since time.Time) (int, error)

	// HasConnectedOutboundSince reports whether a completed outbound call
	// with non-zero duration to the phone number ended at or after since.
	HasConnectedOutboundSince(ctx context.Context, organizationID, phone string, since time.Time) (bool, error)
}
