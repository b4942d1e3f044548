package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"shopcore/pkg/requestcontext"
)

const rotationKeyPrefix = "rotation:spent:"

// RedisList keeps spent rotation ids as keys with a TTL, so Redis expires
// them on its own and PurgeExpired has nothing to do.
type RedisList struct {
	client redis.Cmdable
}

func NewRedis(client redis.Cmdable) *RedisList {
	return &RedisList{client: client}
}

func (l *RedisList) key(jti string) string {
	return rotationKeyPrefix + jti
}

func ttlUntil(ctx context.Context, expiresAt time.Time) time.Duration {
	ttl := expiresAt.Sub(requestcontext.Now(ctx))
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

// Consume uses SET NX so exactly one caller claims a given jti.
func (l *RedisList) Consume(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(jti), 1, ttlUntil(ctx, expiresAt)).Result()
	if err != nil {
		return false, fmt.Errorf("consume rotation id: %w", err)
	}
	return ok, nil
}

func (l *RedisList) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if err := l.client.Set(ctx, l.key(jti), 1, ttlUntil(ctx, expiresAt)).Err(); err != nil {
		return fmt.Errorf("revoke rotation id: %w", err)
	}
	return nil
}

func (l *RedisList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := l.client.Get(ctx, l.key(jti)).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("check rotation id: %w", err)
	}
	return true, nil
}

func (l *RedisList) PurgeExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}
