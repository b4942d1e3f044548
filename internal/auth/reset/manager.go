// Package reset manages single-use password reset tokens.
//
// Plaintext tokens leave this package exactly once, from CreateResetRequest,
// for out-of-band delivery. Only their SHA-256 digest is stored. Validation
// failures are reported as a bare false whatever the cause.
package reset

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"shopcore/internal/auth/models"
	id "shopcore/pkg/domain"
	dErrors "shopcore/pkg/domain-errors"
	"shopcore/pkg/platform/sentinel"
	"shopcore/pkg/requestcontext"
)

const (
	DefaultTTL = 60 * time.Minute
	tokenBytes = 32
)

// Store persists hashed reset tokens. Replace and MarkUsed must each be
// atomic with respect to concurrent calls for the same pair.
type Store interface {
	Replace(ctx context.Context, record *models.PasswordResetToken) error
	FindActive(ctx context.Context, principalID id.PrincipalID, tenantID id.TenantID, tokenHash string, now time.Time) (*models.PasswordResetToken, error)
	MarkUsed(ctx context.Context, principalID id.PrincipalID, tenantID id.TenantID, tokenHash string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type PrincipalFinder interface {
	FindByEmailInTenant(ctx context.Context, email string, tenantID id.TenantID) (*models.Principal, error)
}

type Manager struct {
	store      Store
	principals PrincipalFinder
	ttl        time.Duration
	logger     *slog.Logger
}

type Option func(*Manager)

func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func New(store Store, principals PrincipalFinder, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		principals: principals,
		ttl:        DefaultTTL,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateResetRequest issues a new token for the pair, invalidating any
// earlier unused one, and returns the plaintext for delivery.
func (m *Manager) CreateResetRequest(ctx context.Context, principalID id.PrincipalID, tenantID id.TenantID) (string, error) {
	if principalID.IsNil() {
		return "", dErrors.New(dErrors.CodeInvalidPrincipal, "principal id is required")
	}
	if tenantID.IsNil() {
		return "", dErrors.New(dErrors.CodeTenantRequired, "tenant id is required")
	}

	plaintext, err := generateToken()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate reset token")
	}
	now := requestcontext.Now(ctx)
	record := &models.PasswordResetToken{
		ID:          ulid.Make().String(),
		PrincipalID: principalID,
		TenantID:    tenantID,
		TokenHash:   Digest(plaintext),
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.ttl),
	}
	if err := m.store.Replace(ctx, record); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not store reset token")
	}
	return plaintext, nil
}

// Validate reports whether plaintext is an unused, unexpired token for the pair.
func (m *Manager) Validate(ctx context.Context, principalID id.PrincipalID, plaintext string, tenantID id.TenantID) bool {
	if principalID.IsNil() || tenantID.IsNil() || plaintext == "" {
		return false
	}
	_, err := m.store.FindActive(ctx, principalID, tenantID, Digest(plaintext), requestcontext.Now(ctx))
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			m.logger.ErrorContext(ctx, "reset token lookup failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return false
	}
	return true
}

// MarkUsed retires the token and reports whether this call was the one
// that did it. Run it in the same transaction as the password update.
func (m *Manager) MarkUsed(ctx context.Context, principalID id.PrincipalID, plaintext string, tenantID id.TenantID) bool {
	if principalID.IsNil() || tenantID.IsNil() || plaintext == "" {
		return false
	}
	ok, err := m.store.MarkUsed(ctx, principalID, tenantID, Digest(plaintext), requestcontext.Now(ctx))
	if err != nil {
		m.logger.ErrorContext(ctx, "mark reset token used failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return false
	}
	return ok
}

// SweepExpired deletes tokens whose expiry has passed, used or not.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	return m.store.DeleteExpired(ctx, requestcontext.Now(ctx))
}

// LookupPrincipalByIdentifier finds the principal with the given email inside
// tenantID. It is for internal use; the reset request response must not
// depend on the result.
func (m *Manager) LookupPrincipalByIdentifier(ctx context.Context, identifier string, tenantID id.TenantID) (*models.Principal, bool) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || tenantID.IsNil() {
		return nil, false
	}
	p, err := m.principals.FindByEmailInTenant(ctx, identifier, tenantID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			m.logger.ErrorContext(ctx, "principal lookup failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return nil, false
	}
	return p, true
}

// Digest is the stored form of a plaintext token.
func Digest(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
