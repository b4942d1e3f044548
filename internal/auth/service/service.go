// Package service implements the authentication flows: login, refresh
// rotation, logout and password reset. Tenant decisions are delegated to the
// resolver and every denial is recorded with its specific reason while the
// caller only sees a generic rejection.
package service

import (
	"context"
	"log/slog"
	"time"

	"shopcore/internal/auth/metrics"
	"shopcore/internal/auth/models"
	"shopcore/internal/auth/store/revocation"
	jwttoken "shopcore/internal/jwt_token"
	tenantmodels "shopcore/internal/tenant/models"
	"shopcore/internal/tenant/resolver"
	"shopcore/internal/tenant/scope"
	id "shopcore/pkg/domain"
	"shopcore/pkg/platform/audit"
)

// PrincipalStore is the principal persistence the flows need.
// Error Contract: Find methods wrap sentinel.ErrNotFound when nothing matches.
type PrincipalStore interface {
	FindByID(ctx context.Context, principalID id.PrincipalID) (*models.Principal, error)
	FindByEmailInTenant(ctx context.Context, email string, tenantID id.TenantID) (*models.Principal, error)
	UpdatePasswordHash(ctx context.Context, principalID id.PrincipalID, hash string, at time.Time) error
}

type TenantLookup interface {
	FindByID(ctx context.Context, tenantID id.TenantID) (*tenantmodels.Tenant, error)
}

type TenantResolver interface {
	Resolve(ctx context.Context, caller *resolver.Caller, hint string) (id.TenantID, error)
}

type TokenIssuer interface {
	IssuePair(ctx context.Context, principalID id.PrincipalID, tc jwttoken.TenantClaims) (*jwttoken.TokenPair, error)
	Verify(ctx context.Context, token string, expected jwttoken.TokenType) (*jwttoken.Claims, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	VerifyDummy(password string)
	NeedsRehash(hash string) bool
	MigrateLegacy(password, legacyHash string) (string, bool)
}

type ResetManager interface {
	CreateResetRequest(ctx context.Context, principalID id.PrincipalID, tenantID id.TenantID) (string, error)
	Validate(ctx context.Context, principalID id.PrincipalID, plaintext string, tenantID id.TenantID) bool
	MarkUsed(ctx context.Context, principalID id.PrincipalID, plaintext string, tenantID id.TenantID) bool
	LookupPrincipalByIdentifier(ctx context.Context, identifier string, tenantID id.TenantID) (*models.Principal, bool)
}

// TenantScope runs work bound to a single tenant.
type TenantScope interface {
	WithTenant(ctx context.Context, tenantID id.TenantID, fn scope.Func) error
}

// ResetNotice is handed to the notifier for out-of-band delivery.
type ResetNotice struct {
	PrincipalID id.PrincipalID
	TenantID    id.TenantID
	Email       string
	Token       string
	ExpiresAt   time.Time
}

// ResetNotifier delivers reset tokens (email, SMS). It is only called for
// principals that exist, from the reset worker rather than the request.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, notice ResetNotice) error
}

type Service struct {
	principals PrincipalStore
	tenants    TenantLookup
	resolver   TenantResolver
	tokens     TokenIssuer
	hasher     PasswordHasher
	resets     ResetManager
	denylist   revocation.List
	scope      TenantScope
	tx         TxRunner
	notifier   ResetNotifier
	resetTTL   time.Duration
	queueSize  int
	resetQueue *resetQueue
	logger     *slog.Logger
	audit      *audit.Logger
	metrics    *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditLogger(l *audit.Logger) Option {
	return func(s *Service) {
		s.audit = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithDenylist sets the refresh rotation denylist. Without it rotation is
// not tracked and a refresh token stays usable until it expires.
func WithDenylist(list revocation.List) Option {
	return func(s *Service) {
		s.denylist = list
	}
}

func WithTenantScope(sc TenantScope) Option {
	return func(s *Service) {
		s.scope = sc
	}
}

func WithTxRunner(tx TxRunner) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithResetNotifier(n ResetNotifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithResetTTL only affects the expiry reported to the notifier; the reset
// manager owns the stored expiry.
func WithResetTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.resetTTL = ttl
		}
	}
}

// WithResetQueueSize bounds how many reset requests may wait for delivery.
func WithResetQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// New starts the reset delivery worker; Close stops it.
func New(
	principals PrincipalStore,
	tenants TenantLookup,
	tenantResolver TenantResolver,
	tokens TokenIssuer,
	hasher PasswordHasher,
	resets ResetManager,
	opts ...Option,
) *Service {
	s := &Service{
		principals: principals,
		tenants:    tenants,
		resolver:   tenantResolver,
		tokens:     tokens,
		hasher:     hasher,
		resets:     resets,
		resetTTL:   time.Hour,
		queueSize:  defaultResetQueueSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.denylist == nil {
		s.denylist = revocation.Noop{}
	}
	if s.tx == nil {
		s.tx = NewInMemoryTx()
	}
	if s.scope == nil {
		s.scope = scope.Passthrough{}
	}
	s.resetQueue = newResetQueue(s.queueSize, s.deliverReset)
	return s
}

// Close waits for queued password resets to be delivered. Requests made
// after Close are dropped.
func (s *Service) Close() {
	s.resetQueue.close()
}

func (s *Service) issue(ctx context.Context, p *models.Principal, tenantID id.TenantID) (*models.LoginResult, error) {
	pair, err := s.tokens.IssuePair(ctx, p.ID, jwttoken.TenantClaims{Binding: p.Binding, Role: string(p.Role)})
	if err != nil {
		return nil, err
	}
	return &models.LoginResult{
		PrincipalID:      p.ID,
		TenantID:         tenantID,
		Role:             p.Role,
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}, nil
}
