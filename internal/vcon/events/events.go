// Package events publishes vCon lifecycle events.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Type names a lifecycle event.
type Type string

const (
	TypeCreated Type = "vcon.created"
	TypeTagged  Type = "vcon.tagged"
	TypeSigned  Type = "vcon.signed"
)

// Event is the JSON payload published for each lifecycle change.
type Event struct {
	Type       Type      `json:"type"`
	UUID       string    `json:"uuid"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New builds an event stamped with at in UTC.
func New(typ Type, uuid string, at time.Time) Event {
	return Event{Type: typ, UUID: uuid, OccurredAt: at.UTC()}
}

// LogPublisher writes events to a logger. Used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher constructs a LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	p.logger.InfoContext(ctx, "vcon event",
		"type", e.Type,
		"uuid", e.UUID,
		"occurred_at", e.OccurredAt,
	)
	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
