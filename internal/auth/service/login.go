package service

import (
	"context"
	"strings"
	"time"

	"shopcore/internal/auth/device"
	"shopcore/internal/auth/models"
	"shopcore/internal/auth/password"
	id "shopcore/pkg/domain"
	dErrors "shopcore/pkg/domain-errors"
	"shopcore/pkg/platform/audit"
	"shopcore/pkg/requestcontext"
)

// Login authenticates email and password inside the tenant named by hint and
// returns a fresh token pair.
//
// Unknown tenant, unknown email, wrong password and disabled accounts all
// return CodeInvalidCredentials, and an unknown email still pays for one
// password verification. A staff principal without a binding is refused with
// CodeInvalidPrincipal.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest, hint string) (*models.LoginResult, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveLoginDuration(float64(time.Since(start).Milliseconds()))
	}()

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, dErrors.New(dErrors.CodeEmptyInput, "email and password are required")
	}

	tenantID, err := s.resolver.Resolve(ctx, nil, hint)
	if err != nil {
		s.hasher.VerifyDummy(req.Password)
		if dErrors.HasCode(err, dErrors.CodeUnknownTenant) {
			s.authFailure(ctx, "login", err, "", "")
			s.metrics.IncLogin("failed")
			return nil, errInvalidCredentials()
		}
		s.authFailure(ctx, "login", err, "", "")
		s.metrics.IncLogin("denied")
		return nil, err
	}

	principal, err := s.principals.FindByEmailInTenant(ctx, email, tenantID)
	if err != nil {
		s.hasher.VerifyDummy(req.Password)
		err = storeError(err, errInvalidCredentials, "failed to load principal")
		s.authFailure(ctx, "login", err, "", tenantID)
		s.metrics.IncLogin("failed")
		return nil, err
	}

	if !s.checkPassword(ctx, principal, req.Password) || !principal.IsActive() {
		err := errInvalidCredentials()
		s.authFailure(ctx, "login", err, principal.ID, tenantID)
		s.metrics.IncLogin("failed")
		return nil, err
	}

	if !principal.Validate() {
		err := dErrors.New(dErrors.CodeInvalidPrincipal, "principal binding is inconsistent with its kind")
		s.authFailure(ctx, "login", err, principal.ID, tenantID)
		s.metrics.IncLogin("failed")
		return nil, err
	}

	result, err := s.issue(ctx, principal, tenantID)
	if err != nil {
		s.authFailure(ctx, "login", err, principal.ID, tenantID)
		s.metrics.IncLogin("error")
		return nil, err
	}

	s.audit.Log(ctx, audit.Event{
		Action:      string(audit.EventLoginSucceeded),
		PrincipalID: principal.ID.String(),
		TenantID:    tenantID.String(),
		Decision:    audit.DecisionGranted,
		Device:      device.Label(requestcontext.UserAgent(ctx)),
	})
	s.metrics.IncLogin("succeeded")
	return result, nil
}

// checkPassword verifies the password and upgrades the stored hash when it is
// a legacy digest or was produced with weaker parameters. Upgrade failures
// are logged; they never fail the login.
func (s *Service) checkPassword(ctx context.Context, p *models.Principal, plaintext string) bool {
	if password.IsLegacyHash(p.PasswordHash) {
		upgraded, ok := s.hasher.MigrateLegacy(plaintext, p.PasswordHash)
		if !ok {
			return false
		}
		if s.storeHash(ctx, p.ID, upgraded) {
			s.metrics.IncLegacyMigration()
			s.logAudit(ctx, audit.EventLegacyHashMigrated, p.ID, p.Binding)
		}
		return true
	}

	if !s.hasher.Verify(plaintext, p.PasswordHash) {
		return false
	}
	if s.hasher.NeedsRehash(p.PasswordHash) {
		if rehashed, err := s.hasher.Hash(plaintext); err == nil {
			s.storeHash(ctx, p.ID, rehashed)
		}
	}
	return true
}

func (s *Service) storeHash(ctx context.Context, principalID id.PrincipalID, hash string) bool {
	if err := s.principals.UpdatePasswordHash(ctx, principalID, hash, requestcontext.Now(ctx)); err != nil {
		s.logger.ErrorContext(ctx, "failed to store upgraded password hash",
			"principal_id", principalID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return false
	}
	return true
}
