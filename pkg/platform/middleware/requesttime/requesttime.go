// Package requesttime pins one "now" per request, so token expiry checks,
// reset token expiry and audit timestamps within a request agree.
package requesttime

import (
	"net/http"
	"time"

	"shopcore/pkg/requestcontext"
)

// Middleware stores the time the request arrived; read it with
// requestcontext.Now.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
