package secure

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serve(isDevelopment bool, req *http.Request) *httptest.ResponseRecorder {
	handler := New(Options(isDevelopment))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSecureHeaders(t *testing.T) {
	t.Run("sets baseline headers", func(t *testing.T) {
		rec := serve(false, httptest.NewRequest(http.MethodGet, "/auth/me", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
		assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
		assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")
	})

	t.Run("no HSTS over plain http", func(t *testing.T) {
		rec := serve(false, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
		assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
	})

	t.Run("HSTS behind a TLS terminating proxy", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.Header.Set("X-Forwarded-Proto", "https")
		rec := serve(false, req)
		assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=31536000")
	})

	t.Run("development skips HSTS", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.Header.Set("X-Forwarded-Proto", "https")
		rec := serve(true, req)
		assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
	})
}
