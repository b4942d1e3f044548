// Package secure sets the response security headers for the JSON API.
package secure

import (
	"net/http"

	"github.com/unrolled/secure"
)

// Options returns the header policy. The API serves no documents, so the
// content security policy denies everything. HSTS is only sent outside
// development and only over TLS or behind a proxy that reports it.
func Options(isDevelopment bool) secure.Options {
	return secure.Options{
		IsDevelopment:         isDevelopment,
		ContentTypeNosniff:    true,
		FrameDeny:             true,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:        "no-referrer",
		STSSeconds:            31536000,
		STSIncludeSubdomains:  true,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	}
}

// New returns middleware that adds the security headers.
func New(opts secure.Options) func(next http.Handler) http.Handler {
	return secure.New(opts).Handler
}
