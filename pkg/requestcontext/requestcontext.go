// Package requestcontext holds the request-scoped values that middleware
// establishes and services read: request id, request time, client metadata,
// the authenticated principal and the resolved tenant.
package requestcontext

import (
	"context"
	"time"

	id "shopcore/pkg/domain"
)

type (
	requestIDKey   struct{}
	requestTimeKey struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	principalKey   struct{}
	tenantKey      struct{}
)

// Principal is the authenticated caller as established by the auth middleware.
// Binding is set only for staff/admin principals bound to one tenant.
type Principal struct {
	ID      id.PrincipalID
	Role    string
	Binding id.TenantID
	TokenID string
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// WithTime pins "now" for everything downstream of ctx.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the request-scoped time, or time.Now() outside a request
// (workers, CLI).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey{}).(string)
	return v
}

func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(userAgentKey{}).(string)
	return v
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the authenticated principal, if the request carried one.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && !p.ID.IsNil()
}

func WithTenantID(ctx context.Context, tenantID id.TenantID) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// TenantID returns the tenant resolved for this request, or "" when no
// resolution happened. Callers must treat "" as "no tenant", never as "all".
func TenantID(ctx context.Context) id.TenantID {
	v, _ := ctx.Value(tenantKey{}).(id.TenantID)
	return v
}
