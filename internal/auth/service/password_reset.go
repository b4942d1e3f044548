package service

import (
	"context"
	"strings"

	"shopcore/internal/auth/models"
	id "shopcore/pkg/domain"
	dErrors "shopcore/pkg/domain-errors"
	"shopcore/pkg/platform/audit"
	"shopcore/pkg/platform/privacy"
	"shopcore/pkg/requestcontext"
)

// RequestPasswordReset accepts a reset for the principal with the given
// email in the hinted tenant. Only an empty email is reported; the request
// is queued and nil returned before the tenant or principal is looked at,
// so neither the result nor the latency depends on whether the account
// exists. Resolution, token creation and delivery run on the reset worker.
func (s *Service) RequestPasswordReset(ctx context.Context, email, hint string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return dErrors.New(dErrors.CodeEmptyInput, "email is required")
	}
	s.metrics.IncResetRequest()
	s.resetQueue.enqueue(ctx, resetJob{
		ctx:   context.WithoutCancel(ctx),
		email: email,
		hint:  hint,
	}, s.logger)
	return nil
}

// deliverReset resolves the tenant, issues a token for a real principal and
// hands it to the notifier. Runs on the reset worker.
func (s *Service) deliverReset(job resetJob) {
	ctx, cancel := context.WithTimeout(job.ctx, resetDeliveryTimeout)
	defer cancel()

	tenantID, err := s.resolver.Resolve(ctx, nil, job.hint)
	if err != nil {
		s.authFailure(ctx, "password_reset_request", err, "", "")
		return
	}

	principal, ok := s.resets.LookupPrincipalByIdentifier(ctx, job.email, tenantID)
	if !ok || !principal.IsActive() {
		s.logger.DebugContext(ctx, "password reset for unknown or inactive principal",
			"email", privacy.MaskEmail(job.email),
			"tenant_id", tenantID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return
	}

	plaintext, err := s.resets.CreateResetRequest(ctx, principal.ID, tenantID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create password reset token",
			"principal_id", principal.ID.String(),
			"tenant_id", tenantID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return
	}
	s.logAudit(ctx, audit.EventPasswordResetRequested, principal.ID, tenantID)

	if s.notifier == nil {
		s.logger.WarnContext(ctx, "no reset notifier configured, token not delivered",
			"principal_id", principal.ID.String(),
			"tenant_id", tenantID.String(),
		)
		return
	}
	notice := ResetNotice{
		PrincipalID: principal.ID,
		TenantID:    tenantID,
		Email:       principal.Email,
		Token:       plaintext,
		ExpiresAt:   requestcontext.Now(ctx).Add(s.resetTTL),
	}
	if err := s.notifier.NotifyPasswordReset(ctx, notice); err != nil {
		s.logger.ErrorContext(ctx, "failed to deliver password reset",
			"principal_id", principal.ID.String(),
			"tenant_id", tenantID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

// ConfirmPasswordReset redeems a reset token and sets a new password. The
// token is retired and the hash written in one transaction, so a concurrent
// second redemption finds nothing to claim. Every token or tenant problem is
// reported as CodeResetTokenInvalid.
func (s *Service) ConfirmPasswordReset(ctx context.Context, req *models.PasswordResetConfirm, hint string) error {
	tenantID, err := s.resolver.Resolve(ctx, nil, hint)
	if err != nil {
		s.authFailure(ctx, "password_reset_confirm", err, "", "")
		s.metrics.IncResetRedemption("invalid")
		return errResetTokenInvalid()
	}

	principalID, err := id.ParsePrincipalID(req.PrincipalID)
	if err != nil || !s.resets.Validate(ctx, principalID, req.Token, tenantID) {
		err := errResetTokenInvalid()
		s.authFailure(ctx, "password_reset_confirm", err, principalID, tenantID)
		s.metrics.IncResetRedemption("invalid")
		return err
	}

	principal, err := s.principals.FindByID(ctx, principalID)
	if err != nil || !principal.IsActive() {
		err := storeError(err, errResetTokenInvalid, "failed to load principal")
		if err == nil {
			err = errResetTokenInvalid()
		}
		s.authFailure(ctx, "password_reset_confirm", err, principalID, tenantID)
		s.metrics.IncResetRedemption("invalid")
		return err
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if !s.resets.MarkUsed(txCtx, principalID, req.Token, tenantID) {
			return errResetTokenInvalid()
		}
		if err := s.principals.UpdatePasswordHash(txCtx, principalID, hash, requestcontext.Now(txCtx)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update password")
		}
		return nil
	})
	if err != nil {
		s.authFailure(ctx, "password_reset_confirm", err, principalID, tenantID)
		s.metrics.IncResetRedemption("invalid")
		return err
	}

	s.logAudit(ctx, audit.EventPasswordResetCompleted, principalID, tenantID)
	s.metrics.IncResetRedemption("redeemed")
	return nil
}
