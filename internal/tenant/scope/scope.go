// Package scope runs database work bound to exactly one tenant.
//
// WithTenant opens a transaction, binds the tenant with a transaction-local
// setting that the row-level security policies read, and ends the binding
// with the transaction. A pooled connection therefore never carries a tenant
// into its next checkout, and code outside a scope sees no tenant rows at all.
package scope

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"shopcore/internal/tenant/metrics"
	id "shopcore/pkg/domain"
	dErrors "shopcore/pkg/domain-errors"
	txcontext "shopcore/pkg/platform/tx"
	"shopcore/pkg/requestcontext"
)

// TenantSetting is the Postgres setting the RLS policies compare against.
const TenantSetting = "app.current_tenant_id"

const defaultScopeTimeout = 5 * time.Second

// Func is the unit of work run inside a tenant scope. q is the scoped
// transaction; ctx also carries it for stores that use txcontext.Executor.
type Func func(ctx context.Context, q txcontext.Querier) error

type Scoper struct {
	db      *sql.DB
	role    string
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Scoper)

// WithRole switches to the given role for the life of each scoped
// transaction. Use it when the connection's login role may bypass RLS.
func WithRole(role string) Option {
	return func(s *Scoper) {
		s.role = role
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *Scoper) {
		s.timeout = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scoper) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scoper) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Scoper) {
		s.tracer = t
	}
}

func New(db *sql.DB, opts ...Option) *Scoper {
	s := &Scoper{db: db, timeout: defaultScopeTimeout}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("shopcore/tenant")
	}
	return s
}

// WithTenant runs fn in a fresh transaction bound to tenantID. An empty
// tenant fails with CodeNoTenantContext before any database work. fn's error
// is returned as is after rollback; a panic in fn rolls back and re-panics.
func (s *Scoper) WithTenant(ctx context.Context, tenantID id.TenantID, fn Func) (err error) {
	if tenantID.IsNil() {
		s.metrics.IncScopedTx("no_tenant_context")
		return dErrors.New(dErrors.CodeNoTenantContext, "tenant context required")
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "tenant scope aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ctx, span := s.tracer.Start(ctx, "tenant.with_tenant", trace.WithAttributes(
		attribute.String("tenant.id", tenantID.String()),
	))
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.metrics.IncScopedTx("begin_failed")
		span.SetStatus(codes.Error, "begin")
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin tenant transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			s.rollback(ctx, tx, tenantID)
			s.metrics.IncScopedTx("panic")
			panic(p)
		}
	}()

	if err := s.bind(ctx, tx, tenantID); err != nil {
		s.rollback(ctx, tx, tenantID)
		s.metrics.IncScopedTx("bind_failed")
		span.SetStatus(codes.Error, "bind")
		return err
	}

	scoped := requestcontext.WithTenantID(txcontext.WithTx(ctx, tx), tenantID)
	if err := fn(scoped, tx); err != nil {
		s.rollback(ctx, tx, tenantID)
		s.metrics.IncScopedTx("rolled_back")
		span.SetStatus(codes.Error, "fn")
		return err
	}

	if err := tx.Commit(); err != nil {
		s.metrics.IncScopedTx("commit_failed")
		span.SetStatus(codes.Error, "commit")
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit tenant transaction")
	}
	s.metrics.IncScopedTx("committed")
	return nil
}

func (s *Scoper) bind(ctx context.Context, tx *sql.Tx, tenantID id.TenantID) error {
	if s.role != "" {
		if _, err := tx.ExecContext(ctx, "SET LOCAL ROLE "+pgx.Identifier{s.role}.Sanitize()); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to assume tenant role")
		}
	}
	if _, err := tx.ExecContext(ctx, `SELECT set_config($1, $2, true)`, TenantSetting, tenantID.String()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to bind tenant")
	}
	return nil
}

func (s *Scoper) rollback(ctx context.Context, tx *sql.Tx, tenantID id.TenantID) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.logger.ErrorContext(ctx, "tenant transaction rollback failed",
			"request_id", requestcontext.RequestID(ctx),
			"tenant_id", tenantID.String(),
			"error", err,
		)
	}
}

// CurrentTenant reads the tenant bound to q's transaction. It returns an
// empty id outside a scope.
func CurrentTenant(ctx context.Context, q txcontext.Querier) (id.TenantID, error) {
	var current sql.NullString
	if err := q.QueryRowContext(ctx, `SELECT current_setting($1, true)`, TenantSetting).Scan(&current); err != nil {
		return "", fmt.Errorf("read tenant setting: %w", err)
	}
	return id.TenantID(current.String), nil
}

// CheckRole fails when the login role cannot assume the configured tenant
// role, in which case every scoped transaction would fail at SET ROLE.
// Migrations grant the role to the user that runs them; a service that logs
// in as a different user needs the grant from an operator.
func (s *Scoper) CheckRole(ctx context.Context) error {
	if s.role == "" {
		return nil
	}
	var member bool
	err := s.db.QueryRowContext(ctx,
		`SELECT pg_has_role(session_user, $1, 'MEMBER')`, s.role).Scan(&member)
	if err != nil {
		return fmt.Errorf("check tenant role %q: %w", s.role, err)
	}
	if !member {
		return fmt.Errorf("database login cannot assume tenant role %q: GRANT %s TO the service's login role",
			s.role, pgx.Identifier{s.role}.Sanitize())
	}
	return nil
}

// Passthrough enforces the non-empty tenant rule without a database. It backs
// the in-memory server, where there is no row-level security to bind; fn
// receives a nil Querier.
type Passthrough struct{}

func (Passthrough) WithTenant(ctx context.Context, tenantID id.TenantID, fn Func) error {
	if tenantID.IsNil() {
		return dErrors.New(dErrors.CodeNoTenantContext, "tenant context required")
	}
	return fn(requestcontext.WithTenantID(ctx, tenantID), nil)
}
