package events

import (
	"context"
	"log/slog"
	"sync"
)

// Sink receives events for delivery to an external collaborator.
type Sink interface {
	Deliver(ctx context.Context, e Event) error
}

// Dispatcher decouples the synchronous vote path from event delivery through
// a buffered inbox. Emit never blocks a vote submission: when the inbox is
// full the event is dropped and counted, which loses a notification but
// never an accepted vote.
type Dispatcher struct {
	inbox   chan Event
	logger  *slog.Logger
	dropped func() // optional metrics hook
}

// DispatcherOption configures the Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDropHook registers a callback fired when an event is dropped.
func WithDropHook(fn func()) DispatcherOption {
	return func(d *Dispatcher) { d.dropped = fn }
}

func NewDispatcher(buffer int, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		inbox:  make(chan Event, buffer),
		logger: logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Emit enqueues an event for background delivery.
func (d *Dispatcher) Emit(ctx context.Context, e Event) {
	select {
	case d.inbox <- e:
	default:
		if d.dropped != nil {
			d.dropped()
		}
		d.logger.WarnContext(ctx, "event inbox full, dropping event",
			"type", string(e.Type),
			"competition_id", e.CompetitionID.String(),
		)
	}
}

// Inbox exposes the receive side for the Worker.
func (d *Dispatcher) Inbox() <-chan Event { return d.inbox }

// Worker consumes dispatched events and fans them out to sinks. A sink
// failure is logged and delivery continues; the events surface is
// notification/audit, not a second source of truth.
type Worker struct {
	inbox  <-chan Event
	sinks  []Sink
	logger *slog.Logger
}

func NewWorker(inbox <-chan Event, logger *slog.Logger, sinks ...Sink) *Worker {
	return &Worker{inbox: inbox, sinks: sinks, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-w.inbox:
			for _, sink := range w.sinks {
				if err := sink.Deliver(ctx, e); err != nil {
					w.logger.ErrorContext(ctx, "event delivery failed",
						"type", string(e.Type),
						"event_id", e.ID.String(),
						"error", err,
					)
				}
			}
		}
	}
}

// MemorySink records delivered events. Test double and local-dev default.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Deliver(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// Events returns a snapshot of everything delivered so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event{}, s.events...)
}

// ByType filters the delivered events.
func (s *MemorySink) ByType(t Type) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
