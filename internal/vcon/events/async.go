package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"vcon/pkg/platform/circuit"
)

// ErrBufferFull is returned when the async buffer cannot take another event.
var ErrBufferFull = errors.New("event buffer full")

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("publisher closed")

// ErrDegraded is reported by Health while downstream delivery keeps failing.
var ErrDegraded = errors.New("event delivery degraded")

type publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Async decouples request latency from the downstream publisher. Events are
// buffered and handed to next by a single worker; Close drains the buffer.
type Async struct {
	next    publisher
	logger  *slog.Logger
	timeout time.Duration
	breaker *circuit.Breaker

	mu     sync.RWMutex
	closed bool
	inbox  chan Event
	done   chan struct{}
}

// AsyncOption configures an Async publisher.
type AsyncOption func(*Async)

// WithLogger reports delivery failures.
func WithLogger(logger *slog.Logger) AsyncOption {
	return func(a *Async) {
		a.logger = logger
	}
}

// WithPublishTimeout bounds each downstream publish.
func WithPublishTimeout(d time.Duration) AsyncOption {
	return func(a *Async) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithBreaker replaces the breaker tracking downstream health.
func WithBreaker(b *circuit.Breaker) AsyncOption {
	return func(a *Async) {
		if b != nil {
			a.breaker = b
		}
	}
}

// NewAsync starts the worker. buffer is the number of events held in memory.
func NewAsync(next publisher, buffer int, opts ...AsyncOption) *Async {
	if buffer < 1 {
		buffer = 1
	}
	a := &Async{
		next:    next,
		logger:  slog.New(slog.DiscardHandler),
		timeout: 10 * time.Second,
		breaker: circuit.New("events"),
		inbox:   make(chan Event, buffer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	go a.run()
	return a
}

// Publish enqueues e without blocking.
func (a *Async) Publish(_ context.Context, e Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.inbox <- e:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close stops accepting events and waits until the buffer is drained.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return
	}
	a.closed = true
	close(a.inbox)
	a.mu.Unlock()
	<-a.done
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.inbox {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		err := a.next.Publish(ctx, e)
		cancel()
		if err == nil {
			if _, change := a.breaker.RecordSuccess(); change.Closed {
				a.logger.Info("event delivery recovered", "breaker", a.breaker.Name())
			}
			continue
		}
		a.logger.Warn("failed to publish vcon event",
			"type", e.Type,
			"uuid", e.UUID,
			"error", err,
		)
		if _, change := a.breaker.RecordFailure(); change.Opened {
			a.logger.Error("event delivery degraded", "breaker", a.breaker.Name())
		}
	}
}

// Health fails while the breaker is open. Delivery is still attempted so the
// breaker can observe recovery.
func (a *Async) Health(context.Context) error {
	if a.breaker.IsOpen() {
		return ErrDegraded
	}
	return nil
}
