package service

import (
	"context"

	id "shopcore/pkg/domain"
	dErrors "shopcore/pkg/domain-errors"
	"shopcore/pkg/platform/audit"
	"shopcore/pkg/requestcontext"
)

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, principalID id.PrincipalID, tenantID id.TenantID) {
	s.audit.Log(ctx, audit.Event{
		Action:      string(event),
		PrincipalID: principalID.String(),
		TenantID:    tenantID.String(),
		Decision:    audit.DecisionGranted,
	})
}

// authFailure records a rejected request with its specific reason. The error
// returned to the caller stays generic.
func (s *Service) authFailure(ctx context.Context, flow string, err error, principalID id.PrincipalID, tenantID id.TenantID) {
	reason := dErrors.CodeOf(err)
	attrs := []any{
		"flow", flow,
		"reason", reason,
		"principal_id", principalID.String(),
		"tenant_id", tenantID.String(),
		"request_id", requestcontext.RequestID(ctx),
	}
	if reason == dErrors.CodeInternal {
		s.logger.ErrorContext(ctx, string(audit.EventAuthFailed), append(attrs, "error", err)...)
	} else {
		s.logger.WarnContext(ctx, string(audit.EventAuthFailed), attrs...)
	}
	s.audit.Log(ctx, audit.Event{
		Action:      string(audit.EventAuthFailed),
		PrincipalID: principalID.String(),
		TenantID:    tenantID.String(),
		Decision:    audit.DecisionDenied,
		Reason:      string(reason),
	})
	s.metrics.IncAuthFailure(string(reason))
}
