// Package httptransport assembles the HTTP pipeline: cross-cutting
// middleware, the public auth routes, and the authenticated routes that
// additionally require a resolved tenant.
package httptransport

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authhandler "shopcore/internal/auth/handler"
	"shopcore/internal/platform/health"
	tenantmw "shopcore/internal/tenant/middleware"
	"shopcore/pkg/platform/middleware/auth"
	"shopcore/pkg/platform/middleware/metadata"
	"shopcore/pkg/platform/middleware/ratelimit"
	"shopcore/pkg/platform/middleware/request"
	"shopcore/pkg/platform/middleware/requesttime"
	"shopcore/pkg/platform/middleware/secure"
	"shopcore/pkg/platform/validation"
)

// Config carries the collaborators the router wires together. Limiter,
// Latency and Gatherer are optional.
type Config struct {
	Logger         *slog.Logger
	Auth           *authhandler.Handler
	Health         *health.Handler
	Verifier       auth.AccessVerifier
	Resolver       tenantmw.Resolver
	Limiter        *ratelimit.Limiter
	Latency        *request.Metrics
	Gatherer       prometheus.Gatherer
	TrustedProxies []netip.Prefix
	AccessCookie   string
	RequestTimeout time.Duration
	IsDevelopment  bool
}

// NewRouter wires all public endpoints with middleware. The order matters:
// request id and time come first so every later log line and decision sees
// them, and client metadata is resolved before the limiter keys on it.
func NewRouter(cfg Config) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.NewMiddleware(metadata.Config{TrustedProxies: cfg.TrustedProxies}).Handler)
	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.Logger(cfg.Logger))
	r.Use(request.Latency(cfg.Latency))
	r.Use(secure.New(secure.Options(cfg.IsDevelopment)))
	r.Use(request.Timeout(cfg.RequestTimeout))
	r.Use(request.BodyLimit(validation.MaxBodySize))
	r.Use(request.ContentTypeJSON)

	if cfg.Health != nil {
		cfg.Health.Register(r)
	}
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// Credential-accepting endpoints are rate limited per client address.
	r.Group(func(r chi.Router) {
		if cfg.Limiter != nil {
			r.Use(cfg.Limiter.Middleware)
		}
		cfg.Auth.Register(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(cfg.Verifier, cfg.AccessCookie, cfg.Logger))
		r.Use(tenantmw.ResolveTenant(cfg.Resolver, cfg.Logger))
		cfg.Auth.RegisterProtected(r)
	})

	return r
}
