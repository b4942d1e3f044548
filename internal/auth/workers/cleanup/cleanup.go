// Package cleanup removes expired auth artifacts outside the request path.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"shopcore/internal/auth/metrics"
	"shopcore/pkg/requestcontext"
)

// ResetSweeper deletes expired password reset tokens, used or not. It reads
// the current time from the context.
type ResetSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// DenylistPurger drops rotation ids whose tokens have expired anyway.
type DenylistPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// LimiterSweeper forgets idle rate limit buckets.
type LimiterSweeper interface {
	Sweep(now time.Time) int
}

// Result summarizes the deletions performed by a cleanup run.
type Result struct {
	ResetTokens     int
	RevokedTokenIDs int
	LimiterBuckets  int
}

// Service periodically removes expired auth artifacts.
type Service struct {
	resets   ResetSweeper
	denylist DenylistPurger
	limiter  LimiterSweeper
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

// WithInterval overrides the cleanup interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithDenylist(d DenylistPurger) Option {
	return func(s *Service) {
		s.denylist = d
	}
}

func WithLimiter(l LimiterSweeper) Option {
	return func(s *Service) {
		s.limiter = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service. The reset sweeper is required; the denylist and
// limiter are swept when provided.
func New(resets ResetSweeper, opts ...Option) (*Service, error) {
	if resets == nil {
		return nil, fmt.Errorf("reset sweeper is required")
	}
	svc := &Service{
		resets:   resets,
		interval: 5 * time.Minute,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start runs cleanup periodically until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "auth cleanup failed", "error", err)
				continue
			}
			s.logger.DebugContext(ctx, "auth cleanup finished",
				"reset_tokens", res.ResetTokens,
				"revoked_token_ids", res.RevokedTokenIDs,
				"limiter_buckets", res.LimiterBuckets,
			)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single pass. Each step runs even if an earlier one
// failed; failures are joined into the returned error.
func (s *Service) RunOnce(ctx context.Context) (Result, error) {
	now := s.now()
	ctx = requestcontext.WithTime(ctx, now)
	var res Result
	var errs []error

	swept, err := s.resets.SweepExpired(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("sweep expired reset tokens: %w", err))
	} else {
		res.ResetTokens = swept
		s.metrics.AddResetTokensSwept(swept)
	}

	if s.denylist != nil {
		purged, err := s.denylist.PurgeExpired(ctx, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("purge expired revocations: %w", err))
		} else {
			res.RevokedTokenIDs = purged
		}
	}

	if s.limiter != nil {
		res.LimiterBuckets = s.limiter.Sweep(now)
	}

	return res, errors.Join(errs...)
}
