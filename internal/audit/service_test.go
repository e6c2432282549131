package audit

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestService_AppendRequiresOrganizationAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypeDialerControl}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{OrganizationID: "org"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogControl(context.Background(), "org", "user-1", "camp-1", "dialer started", "{}"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].Type != EventTypeDialerControl {
		t.Fatalf("expected dialer_control")
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp stamped")
	}
}

func TestWriter_PersistsEnqueuedEvents(t *testing.T) {
	repo := NewMemoryRepo()
	w := NewWriter(NewService(repo), slog.Default(), 8)

	w.Enqueue(Event{OrganizationID: "org", Type: EventTypeDialerTransition, CallID: "c1", Message: "bridged"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 || evs[0].CallID != "c1" {
		t.Fatalf("expected persisted event, got %+v", evs)
	}
}

func TestWriter_DeadLettersOnStoreFailure(t *testing.T) {
	repo := NewMemoryRepo()
	repo.FailWith(errors.New("db down"))
	w := NewWriter(NewService(repo), slog.Default(), 8)

	w.Enqueue(Event{OrganizationID: "org", Type: EventTypeDialerTransition, Message: "x"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(repo.Events()) != 0 {
		t.Fatalf("expected no persisted events")
	}
}
