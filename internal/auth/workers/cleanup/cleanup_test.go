package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopcore/internal/auth/metrics"
	"shopcore/internal/auth/reset"
	"shopcore/internal/auth/store/resettoken"
	"shopcore/internal/auth/store/revocation"
	"shopcore/pkg/platform/middleware/ratelimit"
	"shopcore/pkg/requestcontext"
	fixtures "shopcore/pkg/testutil"
)

type failingSweeper struct{}

func (failingSweeper) SweepExpired(context.Context) (int, error) {
	return 0, errors.New("database unavailable")
}

type failingPurger struct{}

func (failingPurger) PurgeExpired(context.Context, time.Time) (int, error) {
	return 0, errors.New("database unavailable")
}

func TestNewRequiresResetSweeper(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestRunOnce_RemovesExpiredArtifacts(t *testing.T) {
	ids := fixtures.TestIDs
	issuedAt := ids.FixedNow
	ctx := requestcontext.WithTime(context.Background(), issuedAt)

	store := resettoken.NewInMemory()
	manager := reset.New(store, nil, reset.WithTTL(time.Hour))
	_, err := manager.CreateResetRequest(ctx, ids.Customer, ids.TenantA)
	require.NoError(t, err)
	_, err = manager.CreateResetRequest(ctx, ids.Admin, ids.TenantA)
	require.NoError(t, err)

	denylist := revocation.NewInMemory()
	_, err = denylist.Consume(ctx, "expired-jti", issuedAt.Add(30*time.Minute))
	require.NoError(t, err)
	_, err = denylist.Consume(ctx, "live-jti", issuedAt.Add(24*time.Hour))
	require.NoError(t, err)

	limiter := ratelimit.New(1, 1, ratelimit.WithIdleTTL(time.Minute))
	limiter.Reserve("203.0.113.7", issuedAt)

	m := metrics.New(prometheus.NewRegistry())
	svc, err := New(manager,
		WithDenylist(denylist),
		WithLimiter(limiter),
		WithMetrics(m),
		WithClock(func() time.Time { return issuedAt.Add(61 * time.Minute) }),
	)
	require.NoError(t, err)

	res, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{ResetTokens: 2, RevokedTokenIDs: 1, LimiterBuckets: 1}, res)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ResetTokensSwept))

	revoked, err := denylist.IsRevoked(ctx, "live-jti")
	require.NoError(t, err)
	assert.True(t, revoked)

	res, err = svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestRunOnce_KeepsUnexpiredResetTokens(t *testing.T) {
	ids := fixtures.TestIDs
	ctx := requestcontext.WithTime(context.Background(), ids.FixedNow)
	manager := reset.New(resettoken.NewInMemory(), nil)
	plaintext, err := manager.CreateResetRequest(ctx, ids.Customer, ids.TenantA)
	require.NoError(t, err)

	svc, err := New(manager, WithClock(func() time.Time { return ids.FixedNow.Add(59 * time.Minute) }))
	require.NoError(t, err)

	res, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.ResetTokens)
	assert.True(t, manager.Validate(requestcontext.WithTime(ctx, ids.FixedNow.Add(59*time.Minute)), ids.Customer, plaintext, ids.TenantA))
}

func TestRunOnce_JoinsErrorsAndContinues(t *testing.T) {
	limiter := ratelimit.New(1, 1, ratelimit.WithIdleTTL(time.Minute))
	now := fixtures.TestIDs.FixedNow
	limiter.Reserve("203.0.113.7", now.Add(-time.Hour))

	svc, err := New(failingSweeper{},
		WithDenylist(failingPurger{}),
		WithLimiter(limiter),
		WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)

	res, err := svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweep expired reset tokens")
	assert.Contains(t, err.Error(), "purge expired revocations")
	assert.Equal(t, 1, res.LimiterBuckets)
}

func TestStartStopsOnCancel(t *testing.T) {
	svc, err := New(failingSweeper{}, WithInterval(time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cleanup did not stop")
	}
}
