package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	id "shopcore/pkg/domain"
	dErrors "shopcore/pkg/domain-errors"
	"shopcore/pkg/requestcontext"
)

// Wire codes for denials. Every tenant, token and reset rejection reaches
// the client as one of these, never as the internal reason.
const (
	codeAccessDenied       = "access_denied"
	codeInvalidCredentials = "invalid_credentials"
	codeInvalidToken       = "invalid_token"
	codeInvalidResetToken  = "invalid_reset_token"
)

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError centralizes domain error translation to HTTP responses.
// Security denials are collapsed into a fixed body so the response does not
// reveal which check failed; other domain errors keep their message.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if !errors.As(err, &domainErr) {
		WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error": DomainCodeToHTTPCode(dErrors.CodeInternal),
		})
		return
	}

	status := DomainCodeToHTTPStatus(domainErr.Code)
	response := map[string]string{
		"error": DomainCodeToHTTPCode(domainErr.Code),
	}
	if exposesMessage(domainErr.Code) && domainErr.Message != "" {
		response["error_description"] = domainErr.Message
	}
	WriteJSON(w, status, response)
}

// exposesMessage is false for denials and internal failures, whose messages
// could leak the reason or implementation details.
func exposesMessage(code dErrors.Code) bool {
	if code == dErrors.CodeInternal || code == dErrors.CodeInvalidCredentials || code == dErrors.CodeInvalidPrincipal {
		return false
	}
	return !dErrors.IsSecurityDenial(&dErrors.Error{Code: code})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput,
		dErrors.CodeInvariantViolation, dErrors.CodeEmptyInput:
		return http.StatusBadRequest
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthorized, dErrors.CodeInvalidCredentials, dErrors.CodeInvalidPrincipal,
		dErrors.CodeTokenRejected:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden, dErrors.CodeTenantRequired, dErrors.CodeTenantMismatch,
		dErrors.CodeNotAMember, dErrors.CodeNoMembership, dErrors.CodeUnknownTenant,
		dErrors.CodeNoTenantContext:
		return http.StatusForbidden
	case dErrors.CodeResetTokenInvalid:
		return http.StatusBadRequest
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// DomainCodeToHTTPCode translates domain error codes to HTTP error codes (for JSON response).
func DomainCodeToHTTPCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput, dErrors.CodeEmptyInput:
		return "bad_request"
	case dErrors.CodeValidation, dErrors.CodeInvariantViolation:
		return "validation_error"
	case dErrors.CodeConflict:
		return "conflict"
	case dErrors.CodeUnauthorized:
		return "unauthorized"
	case dErrors.CodeInvalidCredentials, dErrors.CodeInvalidPrincipal:
		return codeInvalidCredentials
	case dErrors.CodeTokenRejected:
		return codeInvalidToken
	case dErrors.CodeResetTokenInvalid:
		return codeInvalidResetToken
	case dErrors.CodeForbidden, dErrors.CodeTenantRequired, dErrors.CodeTenantMismatch,
		dErrors.CodeNotAMember, dErrors.CodeNoMembership, dErrors.CodeUnknownTenant,
		dErrors.CodeNoTenantContext:
		return codeAccessDenied
	case dErrors.CodeRateLimited:
		return "rate_limited"
	case dErrors.CodeTimeout:
		return "timeout"
	default:
		return "internal_error"
	}
}

// RequirePrincipal extracts the authenticated principal from context.
// Returns a domain error suitable for HTTP response on failure.
func RequirePrincipal(ctx context.Context, logger *slog.Logger) (requestcontext.Principal, error) {
	p, ok := requestcontext.PrincipalFrom(ctx)
	if !ok {
		if logger != nil {
			logger.ErrorContext(ctx, "principal missing from context despite auth middleware",
				"request_id", requestcontext.RequestID(ctx))
		}
		return requestcontext.Principal{}, dErrors.New(dErrors.CodeInternal, "authentication context error")
	}
	return p, nil
}

// RequireTenant extracts the resolved tenant from context. A missing tenant
// is a denial, never a fallback to all tenants.
func RequireTenant(ctx context.Context) (id.TenantID, error) {
	tenantID := requestcontext.TenantID(ctx)
	if tenantID.IsNil() {
		return "", dErrors.New(dErrors.CodeNoTenantContext, "tenant context required")
	}
	return tenantID, nil
}
