package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	dErrors "shopcore/pkg/domain-errors"
	"shopcore/pkg/platform/httputil"
	"shopcore/pkg/platform/validation"
	"shopcore/pkg/requestcontext"
)

// DefaultAccessCookie is where browser clients carry the access token.
const DefaultAccessCookie = "access_token"

// AccessVerifier checks an access token and returns the caller it names.
// Refresh tokens must be rejected.
type AccessVerifier interface {
	VerifyAccess(ctx context.Context, token string) (requestcontext.Principal, error)
}

// RequireAuth returns middleware that authenticates the request from an
// "Authorization: Bearer" header or, failing that, the access cookie, and
// stores the principal in the context. Every failure is the same 401.
func RequireAuth(verifier AccessVerifier, cookieName string, logger *slog.Logger) func(http.Handler) http.Handler {
	if cookieName == "" {
		cookieName = DefaultAccessCookie
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, source := extractToken(r, cookieName)
			if token == "" || validation.CheckStringLength("token", token, validation.MaxTokenLength) != nil {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"source", source,
					"request_id", requestcontext.RequestID(ctx),
				)
				unauthorized(w)
				return
			}

			principal, err := verifier.VerifyAccess(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"source", source,
					"reason", dErrors.CodeOf(err),
					"request_id", requestcontext.RequestID(ctx),
				)
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithPrincipal(ctx, principal)))
		})
	}
}

func extractToken(r *http.Request, cookieName string) (token, source string) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, value, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(value), "header"
		}
		return "", "header"
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value, "cookie"
	}
	return "", "none"
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="shopcore"`)
	httputil.WriteError(w, dErrors.New(dErrors.CodeTokenRejected, "token rejected"))
}
