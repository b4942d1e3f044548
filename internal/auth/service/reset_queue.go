package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"shopcore/pkg/platform/privacy"
	"shopcore/pkg/requestcontext"
)

const (
	defaultResetQueueSize = 256
	resetDeliveryTimeout  = 30 * time.Second
)

// resetJob is a reset request waiting for the worker. ctx keeps the request
// values (request id, request time) without its cancellation.
type resetJob struct {
	ctx   context.Context
	email string
	hint  string
}

// resetQueue hands reset requests to a single background worker. A full or
// closed queue drops the request; the caller's answer is the same either way.
type resetQueue struct {
	mu     sync.RWMutex
	jobs   chan resetJob
	closed bool
	wg     sync.WaitGroup
}

func newResetQueue(size int, handle func(resetJob)) *resetQueue {
	q := &resetQueue{jobs: make(chan resetJob, size)}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for job := range q.jobs {
			handle(job)
		}
	}()
	return q
}

func (q *resetQueue) enqueue(ctx context.Context, job resetJob, logger *slog.Logger) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		logger.WarnContext(ctx, "password reset dropped, service closed",
			"email", privacy.MaskEmail(job.email),
			"request_id", requestcontext.RequestID(ctx),
		)
		return
	}
	select {
	case q.jobs <- job:
	default:
		logger.WarnContext(ctx, "password reset queue full, request dropped",
			"email", privacy.MaskEmail(job.email),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

// close stops accepting jobs and waits for queued ones to finish.
func (q *resetQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.wg.Wait()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()
	q.wg.Wait()
}
