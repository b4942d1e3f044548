package service

import (
	"context"
	"time"

	"shopcore/internal/auth/models"
	jwttoken "shopcore/internal/jwt_token"
	id "shopcore/pkg/domain"
	dErrors "shopcore/pkg/domain-errors"
	"shopcore/pkg/platform/audit"
	"shopcore/pkg/requestcontext"
)

// Refresh rotates a refresh token into a new pair. The presented token's
// rotation id is consumed first, so a token can be redeemed once; a replay
// is rejected and audited as reuse. The principal is reloaded so a disabled
// account or a changed binding takes effect at the next rotation.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.LoginResult, error) {
	claims, err := s.tokens.Verify(ctx, refreshToken, jwttoken.TokenTypeRefresh)
	if err != nil {
		s.authFailure(ctx, "refresh", err, "", "")
		s.metrics.IncRefresh("rejected")
		return nil, err
	}
	principalID := claims.PrincipalID()

	consumed, err := s.denylist.Consume(ctx, claims.ID, expiryOf(claims))
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to record refresh rotation")
		s.authFailure(ctx, "refresh", err, principalID, "")
		s.metrics.IncRefresh("error")
		return nil, err
	}
	if !consumed {
		s.metrics.IncRotationReuse()
		s.audit.Log(ctx, audit.Event{
			Action:      string(audit.EventRefreshReused),
			PrincipalID: principalID.String(),
			Decision:    audit.DecisionDenied,
			Reason:      "rotation_id_reused",
		})
		err := errTokenRejected()
		s.authFailure(ctx, "refresh", err, principalID, "")
		s.metrics.IncRefresh("reused")
		return nil, err
	}

	principal, err := s.principals.FindByID(ctx, principalID)
	if err != nil {
		err = storeError(err, errTokenRejected, "failed to load principal")
		s.authFailure(ctx, "refresh", err, principalID, "")
		s.metrics.IncRefresh("rejected")
		return nil, err
	}
	if !principal.IsActive() || !principal.Validate() {
		err := errTokenRejected()
		s.authFailure(ctx, "refresh", err, principalID, principal.Binding)
		s.metrics.IncRefresh("rejected")
		return nil, err
	}

	result, err := s.issue(ctx, principal, principal.Binding)
	if err != nil {
		s.authFailure(ctx, "refresh", err, principalID, principal.Binding)
		s.metrics.IncRefresh("error")
		return nil, err
	}
	s.logAudit(ctx, audit.EventTokenRefreshed, principalID, principal.Binding)
	s.metrics.IncRefresh("rotated")
	return result, nil
}

// Logout retires the refresh token's rotation id. It is idempotent: a
// missing or already invalid token is not an error, since the caller is
// logged out either way. The short-lived access token simply expires.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := s.tokens.Verify(ctx, refreshToken, jwttoken.TokenTypeRefresh)
	if err != nil {
		return nil
	}
	if err := s.denylist.Revoke(ctx, claims.ID, expiryOf(claims)); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke refresh token",
			"principal_id", claims.Subject,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke refresh token")
	}
	s.logAudit(ctx, audit.EventLoggedOut, claims.PrincipalID(), id.TenantID(""))
	return nil
}

func expiryOf(claims *jwttoken.Claims) time.Time {
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
