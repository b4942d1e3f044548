// Package resolver decides which single tenant a request acts for.
//
// Resolution fails closed: every path that cannot prove the caller's right to
// a tenant returns a denial, and the hint supplied by the client is never
// trusted on its own. Bound principals (staff, admins) always act for their
// binding. Unbound principals (customers) pick one of their memberships.
// Unauthenticated callers must name an existing active tenant.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"shopcore/internal/tenant/metrics"
	"shopcore/internal/tenant/models"
	id "shopcore/pkg/domain"
	dErrors "shopcore/pkg/domain-errors"
	"shopcore/pkg/platform/sentinel"
	"shopcore/pkg/requestcontext"
)

// Caller is the authenticated identity behind a request. A nil *Caller means
// the request is unauthenticated.
type Caller struct {
	PrincipalID id.PrincipalID
	Binding     id.TenantID
}

// MembershipLookup lists the tenants an unbound principal belongs to.
type MembershipLookup interface {
	ListTenantIDs(ctx context.Context, principalID id.PrincipalID) ([]id.TenantID, error)
}

// TenantLookup loads tenants for existence and status checks.
type TenantLookup interface {
	FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
}

type Resolver struct {
	memberships MembershipLookup
	tenants     TenantLookup
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(r *Resolver) {
		r.tracer = t
	}
}

func New(memberships MembershipLookup, tenants TenantLookup, opts ...Option) *Resolver {
	r := &Resolver{
		memberships: memberships,
		tenants:     tenants,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer("shopcore/tenant")
	}
	return r
}

// Resolve returns the tenant the caller may act for, given the optional
// client hint. Denials carry one of CodeTenantRequired, CodeTenantMismatch,
// CodeNotAMember, CodeNoMembership or CodeUnknownTenant.
func (r *Resolver) Resolve(ctx context.Context, caller *Caller, hint string) (tenantID id.TenantID, err error) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "tenant.resolve", trace.WithAttributes(
		attribute.Bool("tenant.hint_present", strings.TrimSpace(hint) != ""),
		attribute.Bool("tenant.authenticated", caller != nil),
	))
	defer func() {
		outcome := "resolved"
		if err != nil {
			outcome = string(dErrors.CodeOf(err))
			span.SetStatus(codes.Error, outcome)
			r.logDenial(ctx, caller, hint, err)
		} else {
			span.SetAttributes(attribute.String("tenant.id", tenantID.String()))
		}
		span.End()
		r.metrics.ObserveResolution(outcome, start)
	}()

	h := parseHint(hint)
	switch {
	case caller == nil:
		return r.resolveAnonymous(ctx, h)
	case !caller.Binding.IsNil():
		return r.resolveBound(ctx, caller.Binding, h)
	default:
		return r.resolveMember(ctx, caller.PrincipalID, h)
	}
}

// tenantHint separates "no hint" from "a hint that does not parse". A
// malformed hint is never looked up but still counts as present.
type tenantHint struct {
	present bool
	valid   bool
	id      id.TenantID
}

func parseHint(raw string) tenantHint {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return tenantHint{}
	}
	parsed, err := id.ParseTenantID(raw)
	if err != nil {
		return tenantHint{present: true}
	}
	return tenantHint{present: true, valid: true, id: parsed}
}

func (r *Resolver) resolveBound(ctx context.Context, binding id.TenantID, h tenantHint) (id.TenantID, error) {
	if h.present && (!h.valid || h.id != binding) {
		return "", dErrors.New(dErrors.CodeTenantMismatch, "tenant hint does not match principal binding")
	}
	if err := r.requireActive(ctx, binding); err != nil {
		return "", err
	}
	return binding, nil
}

func (r *Resolver) resolveMember(ctx context.Context, principalID id.PrincipalID, h tenantHint) (id.TenantID, error) {
	if principalID.IsNil() {
		return "", dErrors.New(dErrors.CodeNoMembership, "principal has no tenant memberships")
	}
	memberships, err := r.memberships.ListTenantIDs(ctx, principalID)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant memberships")
	}
	if len(memberships) == 0 {
		return "", dErrors.New(dErrors.CodeNoMembership, "principal has no tenant memberships")
	}
	if !h.present {
		return "", dErrors.New(dErrors.CodeTenantRequired, "tenant hint required for multi-tenant principal")
	}
	if !h.valid || !slices.Contains(memberships, h.id) {
		return "", dErrors.New(dErrors.CodeNotAMember, "principal is not a member of the hinted tenant")
	}
	if err := r.requireActive(ctx, h.id); err != nil {
		return "", err
	}
	return h.id, nil
}

func (r *Resolver) resolveAnonymous(ctx context.Context, h tenantHint) (id.TenantID, error) {
	if !h.present {
		return "", dErrors.New(dErrors.CodeTenantRequired, "tenant hint required")
	}
	if !h.valid {
		return "", dErrors.New(dErrors.CodeUnknownTenant, "unknown tenant")
	}
	if err := r.requireActive(ctx, h.id); err != nil {
		return "", err
	}
	return h.id, nil
}

func (r *Resolver) requireActive(ctx context.Context, tenantID id.TenantID) error {
	tenant, err := r.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeUnknownTenant, "unknown tenant")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant")
	}
	if !tenant.IsActive() {
		return dErrors.New(dErrors.CodeUnknownTenant, "tenant is not active")
	}
	return nil
}

func (r *Resolver) logDenial(ctx context.Context, caller *Caller, hint string, err error) {
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"reason", dErrors.CodeOf(err),
		"hint", strings.TrimSpace(hint),
	}
	if caller != nil {
		attrs = append(attrs, "principal_id", caller.PrincipalID.String(), "binding", caller.Binding.String())
	}
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		r.logger.ErrorContext(ctx, "tenant resolution failed", append(attrs, "error", err)...)
		return
	}
	r.logger.WarnContext(ctx, "tenant resolution denied", attrs...)
}
