package audit

import (
	"context"
	"log/slog"
	"time"
)

// Writer gives hot paths non-blocking audit semantics: events go onto a
// bounded channel consumed by a single worker goroutine. An event that
// cannot be buffered or persisted is emitted as a structured dead-letter
// log record; it is never silently discarded and never blocks the caller.
type Writer struct {
	svc *Service
	log *slog.Logger

	ch   chan Event
	done chan struct{}

	// writeTimeout bounds each store write so a stuck database cannot wedge
	// the worker.
	writeTimeout time.Duration
}

func NewWriter(svc *Service, log *slog.Logger, buffer int) *Writer {
	if buffer <= 0 {
		buffer = 256
	}
	w := &Writer{
		svc:          svc,
		log:          log,
		ch:           make(chan Event, buffer),
		done:         make(chan struct{}),
		writeTimeout: 5 * time.Second,
	}
	go w.run()
	return w
}

// Enqueue hands off an event without blocking. When the buffer is full the
// event is dead-lettered immediately.
func (w *Writer) Enqueue(e Event) {
	select {
	case w.ch <- e:
	default:
		w.deadLetter(e, "audit buffer full")
	}
}

func (w *Writer) run() {
	defer close(w.done)
	for e := range w.ch {
		ctx, cancel := context.WithTimeout(context.Background(), w.writeTimeout)
		err := w.svc.Append(ctx, e)
		cancel()
		if err != nil {
			w.deadLetter(e, err.Error())
		}
	}
}

// Close drains buffered events and waits for the worker to finish.
func (w *Writer) Close(ctx context.Context) error {
	close(w.ch)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) deadLetter(e Event, reason string) {
	log := w.log
	if log == nil {
		log = slog.Default()
	}
	log.Error("audit dead-letter",
		"reason", reason,
		"event_type", e.Type,
		"organization_id", e.OrganizationID,
		"call_id", e.CallID,
		"target_id", e.TargetID,
		"message", e.Message,
	)
}
