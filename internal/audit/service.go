package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service validates and stamps audit events before appending them.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to tenant users by default.
// - Callers on hot paths (the compliance gate, the answer router) go through
//   the Writer for non-blocking appends; control-plane callers append through
//   Service directly.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.OrganizationID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogControl records a dialer control action (start, pause).
func (s *Service) LogControl(ctx context.Context, organizationID, actorID, campaignID, message, metadata string) error {
	return s.Append(ctx, Event{
		OrganizationID: organizationID,
		Type:           EventTypeDialerControl,
		ActorID:        actorID,
		CampaignID:     campaignID,
		Message:        message,
		Metadata:       metadata,
	})
}

// LogTransition records one answer-router state transition.
func (s *Service) LogTransition(ctx context.Context, organizationID, callID, targetID, message, metadata string) error {
	return s.Append(ctx, Event{
		OrganizationID: organizationID,
		Type:           EventTypeDialerTransition,
		CallID:         callID,
		TargetID:       targetID,
		Message:        message,
		Metadata:       metadata,
	})
}
