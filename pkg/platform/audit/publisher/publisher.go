// Package publisher delivers audit events to a sink, optionally through an
// in-memory buffer drained by a background goroutine.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	dErrors "shopcore/pkg/domain-errors"
	audit "shopcore/pkg/platform/audit"
)

// Sink persists or forwards a single event.
type Sink interface {
	Write(ctx context.Context, event audit.Event) error
}

type Publisher struct {
	sink   Sink
	events chan audit.Event
	wg     sync.WaitGroup
	logger *slog.Logger
	async  bool

	mu     sync.RWMutex
	closed bool
}

type Option func(*Publisher)

// WithAsyncBuffer queues events and writes them in the background. When the
// queue is full Emit drops the event and returns an error.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan audit.Event, size)
			p.async = true
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func New(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{sink: sink}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.async {
		p.wg.Add(1)
		go p.processEvents()
	}
	return p
}

func (p *Publisher) processEvents() {
	defer p.wg.Done()
	for event := range p.events {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := p.sink.Write(ctx, event); err != nil {
			p.logger.Error("failed to write audit event",
				"error", err,
				"action", event.Action,
				"principal_id", event.PrincipalID,
			)
		}
		cancel()
	}
}

func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn("audit publisher closed, event dropped",
			"action", event.Action,
			"principal_id", event.PrincipalID,
		)
		return dErrors.New(dErrors.CodeInternal, "audit publisher closed")
	}
	if !p.async {
		return p.sink.Write(ctx, event)
	}
	select {
	case p.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.logger.Warn("audit buffer full, event dropped",
			"action", event.Action,
			"principal_id", event.PrincipalID,
		)
		return dErrors.New(dErrors.CodeInternal, "audit buffer full")
	}
}

// Close stops accepting events and waits for the queue to drain. Emit after
// Close drops the event and returns an error. Close is idempotent.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.async {
		close(p.events)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
