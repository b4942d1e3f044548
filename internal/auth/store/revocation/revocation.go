// Package revocation keeps the denylist of consumed refresh rotation ids.
//
// Each successful refresh consumes the presented token's jti. A second
// presentation of the same refresh token then fails, which closes the window
// where a stolen refresh token and its owner can both keep rotating.
// Entries only need to live until the token would have expired anyway.
package revocation

import (
	"context"
	"sync"
	"time"

	"shopcore/pkg/requestcontext"
)

// List is the rotation-id denylist.
type List interface {
	// Consume records jti as spent until expiresAt. It reports false when
	// jti was already spent, atomically with respect to concurrent callers.
	Consume(ctx context.Context, jti string, expiresAt time.Time) (bool, error)

	// Revoke spends jti unconditionally (logout).
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error

	// IsRevoked reports whether jti is spent and not yet past its expiry.
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// PurgeExpired removes entries whose expiry is before now.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// InMemoryList is a process-local List for tests and single-instance setups.
type InMemoryList struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewInMemory() *InMemoryList {
	return &InMemoryList{revoked: make(map[string]time.Time)}
}

func (l *InMemoryList) Consume(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if exp, ok := l.revoked[jti]; ok && requestcontext.Now(ctx).Before(exp) {
		return false, nil
	}
	l.revoked[jti] = expiresAt
	return true, nil
}

func (l *InMemoryList) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if exp, ok := l.revoked[jti]; !ok || expiresAt.After(exp) {
		l.revoked[jti] = expiresAt
	}
	return nil
}

func (l *InMemoryList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.revoked[jti]
	return ok && requestcontext.Now(ctx).Before(exp), nil
}

func (l *InMemoryList) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	purged := 0
	for jti, exp := range l.revoked {
		if exp.Before(now) {
			delete(l.revoked, jti)
			purged++
		}
	}
	return purged, nil
}

// Noop accepts every rotation id. It restores the rotate-without-denylist
// behaviour when the denylist is switched off in configuration.
type Noop struct{}

func (Noop) Consume(context.Context, string, time.Time) (bool, error) { return true, nil }
func (Noop) Revoke(context.Context, string, time.Time) error { return nil }
func (Noop) IsRevoked(context.Context, string) (bool, error) { return false, nil }
func (Noop) PurgeExpired(context.Context, time.Time) (int, error) { return 0, nil }
