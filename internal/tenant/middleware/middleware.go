// Package middleware resolves the tenant a request acts for and stores it in
// the request context for handlers and the tenant scope.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"shopcore/internal/tenant/resolver"
	id "shopcore/pkg/domain"
	dErrors "shopcore/pkg/domain-errors"
	"shopcore/pkg/platform/httputil"
	"shopcore/pkg/platform/validation"
	"shopcore/pkg/requestcontext"
)

// HeaderTenantID carries the client's tenant hint.
const HeaderTenantID = "X-Tenant-Id"

type Resolver interface {
	Resolve(ctx context.Context, caller *resolver.Caller, hint string) (id.TenantID, error)
}

// ResolveTenant runs after authentication when a principal is present and
// resolves anonymous requests otherwise. Every denial is the same 403; the
// resolver logs the specific reason.
func ResolveTenant(r Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := req.Context()
			hint := req.Header.Get(HeaderTenantID)

			if err := validation.CheckStringLength("tenant hint", hint, validation.MaxTenantHintLength); err != nil {
				logger.WarnContext(ctx, "tenant hint rejected",
					"reason", "hint_too_long",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnknownTenant, "unknown tenant"))
				return
			}

			var caller *resolver.Caller
			if p, ok := requestcontext.PrincipalFrom(ctx); ok {
				caller = &resolver.Caller{PrincipalID: p.ID, Binding: p.Binding}
			}

			tenantID, err := r.Resolve(ctx, caller, hint)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, req.WithContext(requestcontext.WithTenantID(ctx, tenantID)))
		})
	}
}
