package service

import (
	"context"

	"shopcore/internal/auth/models"
	"shopcore/internal/tenant/scope"
	id "shopcore/pkg/domain"
	dErrors "shopcore/pkg/domain-errors"
	txcontext "shopcore/pkg/platform/tx"
)

// Me describes the caller inside the tenant the request resolved to. The
// reads run inside the tenant scope, so with Postgres they go through the
// tenant-bound transaction.
func (s *Service) Me(ctx context.Context, principalID id.PrincipalID, tenantID id.TenantID) (*models.MeResponse, error) {
	var out *models.MeResponse
	err := s.scope.WithTenant(ctx, tenantID, func(ctx context.Context, q txcontext.Querier) error {
		if q != nil {
			bound, err := scope.CurrentTenant(ctx, q)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read tenant binding")
			}
			if bound != tenantID {
				return dErrors.New(dErrors.CodeNoTenantContext, "tenant binding missing from transaction")
			}
		}

		principal, err := s.principals.FindByID(ctx, principalID)
		if err != nil {
			return storeError(err, errTokenRejected, "failed to load principal")
		}
		tenant, err := s.tenants.FindByID(ctx, tenantID)
		if err != nil {
			return storeError(err, func() error {
				return dErrors.New(dErrors.CodeUnknownTenant, "unknown tenant")
			}, "failed to load tenant")
		}

		out = &models.MeResponse{
			PrincipalID: principal.ID.String(),
			Email:       principal.Email,
			Role:        string(principal.Role),
			TenantID:    tenant.ID.String(),
			TenantName:  tenant.Name,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
