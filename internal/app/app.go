// Package app is the composition root: it turns a Config into a ready HTTP
// handler plus the background workers, choosing Postgres, Redis and Kafka
// backends when they are configured and in-memory ones otherwise.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"shopcore/internal/auth/email"
	authhandler "shopcore/internal/auth/handler"
	authmetrics "shopcore/internal/auth/metrics"
	"shopcore/internal/auth/password"
	"shopcore/internal/auth/reset"
	"shopcore/internal/auth/service"
	principalstore "shopcore/internal/auth/store/principal"
	"shopcore/internal/auth/store/resettoken"
	"shopcore/internal/auth/store/revocation"
	"shopcore/internal/auth/workers/cleanup"
	jwttoken "shopcore/internal/jwt_token"
	"shopcore/internal/platform/config"
	"shopcore/internal/platform/database"
	"shopcore/internal/platform/health"
	"shopcore/internal/platform/kafka/producer"
	redisclient "shopcore/internal/platform/redis"
	"shopcore/internal/seeder"
	tenantmetrics "shopcore/internal/tenant/metrics"
	"shopcore/internal/tenant/resolver"
	"shopcore/internal/tenant/scope"
	membershipstore "shopcore/internal/tenant/store/membership"
	tenantstore "shopcore/internal/tenant/store/tenant"
	httptransport "shopcore/internal/transport/http"
	"shopcore/pkg/platform/audit"
	"shopcore/pkg/platform/audit/publisher"
	"shopcore/pkg/platform/middleware/metadata"
	"shopcore/pkg/platform/middleware/ratelimit"
	"shopcore/pkg/platform/middleware/request"
)

const (
	auditBufferSize   = 1024
	poolStatsInterval = 15 * time.Second
)

// App holds the wired service. Handler serves every route; StartWorkers runs
// the periodic jobs; Close releases connections in reverse order.
type App struct {
	Handler http.Handler
	Tokens  *jwttoken.JWTService
	Outbox  *email.Outbox

	cleanup *cleanup.Service
	redis   *redisclient.Client
	logger  *slog.Logger
	closers []func() error
}

type stores struct {
	tenants     tenantRepo
	memberships membershipRepo
	principals  principalRepo
	resets      reset.Store
}

type tenantRepo interface {
	resolver.TenantLookup
	seeder.TenantStore
}

type membershipRepo interface {
	resolver.MembershipLookup
	seeder.MembershipStore
}

type principalRepo interface {
	service.PrincipalStore
	seeder.PrincipalStore
}

// New builds the application. reg receives every collector; /metrics serves
// it together with the default registry (process and token rejection
// collectors).
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close() //nolint:errcheck // construction already failed
		}
	}()

	authMetrics := authmetrics.New(reg)
	tenantMetrics := tenantmetrics.New(reg)
	latency := request.NewMetrics(reg)

	pool, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	var db *sql.DB
	if pool != nil {
		a.closers = append(a.closers, pool.Close)
		if err := pool.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		if err := pool.RegisterMetrics(reg); err != nil {
			return nil, fmt.Errorf("register database metrics: %w", err)
		}
		db = pool.DB()
		logger.Info("using postgres stores")
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
	}
	st := newStores(db)

	rdb, err := redisclient.New(ctx, cfg.Redis, redisclient.NewPoolMetrics(reg))
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if rdb != nil {
		a.redis = rdb
		a.closers = append(a.closers, rdb.Close)
	}
	denylist := selectDenylist(cfg.Auth.DenylistEnabled, db, rdb, logger)

	emitter, kafkaHealth, err := a.auditEmitter(cfg.Kafka)
	if err != nil {
		return nil, err
	}
	auditLogger := audit.NewLogger(logger, emitter)

	hasher := password.New(
		password.WithCost(cfg.Auth.BcryptCost),
		password.WithAlgorithm(password.Algorithm(cfg.Auth.PasswordAlgorithm)),
	)
	a.Tokens = jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience,
		jwttoken.WithAccessTTL(cfg.Auth.AccessTTL),
		jwttoken.WithRefreshTTL(cfg.Auth.RefreshTTL),
		jwttoken.WithLogger(logger),
	)

	tracer := otel.Tracer("shopcore/tenant")
	tenantResolver := resolver.New(st.memberships, st.tenants,
		resolver.WithLogger(logger),
		resolver.WithMetrics(tenantMetrics),
		resolver.WithTracer(tracer),
	)

	var tenantScope service.TenantScope = scope.Passthrough{}
	var txRunner service.TxRunner = service.NewInMemoryTx()
	if db != nil {
		scoper := scope.New(db,
			scope.WithRole(cfg.Database.AppRole),
			scope.WithTimeout(cfg.Database.ScopeTimeout),
			scope.WithLogger(logger),
			scope.WithMetrics(tenantMetrics),
			scope.WithTracer(tracer),
		)
		if err := scoper.CheckRole(ctx); err != nil {
			return nil, fmt.Errorf("tenant scope: %w", err)
		}
		tenantScope = scoper
		txRunner = newPostgresTx(db, cfg.Database.ScopeTimeout)
	}

	resets := reset.New(st.resets, st.principals,
		reset.WithTTL(cfg.Auth.ResetTTL),
		reset.WithLogger(logger),
	)
	a.Outbox = email.NewOutbox(email.NewLogNotifier(logger, !cfg.IsProduction()))

	authService := service.New(st.principals, st.tenants, tenantResolver, a.Tokens, hasher, resets,
		service.WithLogger(logger),
		service.WithAuditLogger(auditLogger),
		service.WithMetrics(authMetrics),
		service.WithDenylist(denylist),
		service.WithTenantScope(tenantScope),
		service.WithTxRunner(txRunner),
		service.WithResetNotifier(a.Outbox),
		service.WithResetTTL(cfg.Auth.ResetTTL),
	)
	// Closed before the audit publisher and the pool: queued resets still
	// write tokens and emit events.
	a.closers = append(a.closers, func() error {
		authService.Close()
		return nil
	})

	cookies := authhandler.CookieConfig{
		AccessName:    cfg.Cookies.AccessName,
		RefreshName:   cfg.Cookies.RefreshName,
		AccessMaxAge:  a.Tokens.AccessTTL(),
		RefreshMaxAge: a.Tokens.RefreshTTL(),
		Secure:        cfg.Cookies.Secure,
	}
	authHandler := authhandler.New(authService, logger, cookies)

	limiter := ratelimit.New(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst,
		ratelimit.WithIdleTTL(cfg.RateLimit.IdleTTL),
		ratelimit.WithLogger(logger),
	)
	a.cleanup, err = cleanup.New(resets,
		cleanup.WithInterval(cfg.Cleanup.Interval),
		cleanup.WithLogger(logger),
		cleanup.WithMetrics(authMetrics),
		cleanup.WithDenylist(denylist),
		cleanup.WithLimiter(limiter),
	)
	if err != nil {
		return nil, fmt.Errorf("create cleanup worker: %w", err)
	}

	healthHandler := health.New(cfg.Environment)
	if pool != nil {
		healthHandler.RegisterCheck("postgres", pool.Health)
	}
	if rdb != nil {
		healthHandler.RegisterCheck("redis", rdb.Health)
	}
	if kafkaHealth != nil {
		healthHandler.RegisterCheck("kafka", kafkaHealth)
	}

	proxies, err := metadata.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}

	if cfg.SeedDemo {
		if err := seeder.New(st.tenants, st.memberships, st.principals, hasher, logger).SeedAll(ctx); err != nil {
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
	}

	a.Handler = httptransport.NewRouter(httptransport.Config{
		Logger:         logger,
		Auth:           authHandler,
		Health:         healthHandler,
		Verifier:       a.Tokens,
		Resolver:       tenantResolver,
		Limiter:        limiter,
		Latency:        latency,
		Gatherer:       prometheus.Gatherers{reg, prometheus.DefaultGatherer},
		TrustedProxies: proxies,
		AccessCookie:   cfg.Cookies.AccessName,
		RequestTimeout: cfg.Server.RequestTimeout,
		IsDevelopment:  !cfg.IsProduction(),
	})

	ok = true
	return a, nil
}

func newStores(db *sql.DB) stores {
	if db == nil {
		memberships := membershipstore.NewInMemory()
		return stores{
			tenants:     tenantstore.NewInMemory(),
			memberships: memberships,
			principals:  principalstore.NewInMemory(memberships),
			resets:      resettoken.NewInMemory(),
		}
	}
	return stores{
		tenants:     tenantstore.NewPostgres(db),
		memberships: membershipstore.NewPostgres(db),
		principals:  principalstore.NewPostgres(db),
		resets:      resettoken.NewPostgres(db),
	}
}

// selectDenylist prefers Redis (shared, TTL-expiring), then Postgres, then
// process memory.
func selectDenylist(enabled bool, db *sql.DB, rdb *redisclient.Client, logger *slog.Logger) revocation.List {
	switch {
	case !enabled:
		logger.Warn("refresh rotation denylist disabled")
		return revocation.Noop{}
	case rdb != nil:
		return revocation.NewRedis(rdb.Client)
	case db != nil:
		return revocation.NewPostgres(db)
	default:
		return revocation.NewInMemory()
	}
}

// auditEmitter returns the Kafka-backed emitter when brokers are configured.
// Without brokers audit events only reach the structured log.
func (a *App) auditEmitter(cfg config.KafkaConfig) (audit.Emitter, health.CheckFunc, error) {
	if cfg.Brokers == "" {
		return nil, nil, nil
	}
	pcfg := producer.DefaultConfig()
	pcfg.Brokers = cfg.Brokers
	pcfg.Acks = cfg.Acks
	pcfg.Retries = cfg.Retries

	prod, err := producer.New(pcfg, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create kafka producer: %w", err)
	}
	pub := publisher.New(publisher.NewKafkaSink(prod, cfg.AuditTopic),
		publisher.WithAsyncBuffer(auditBufferSize),
		publisher.WithLogger(a.logger),
	)
	// The publisher drains its buffer before the producer goes away.
	a.closers = append(a.closers, prod.Close, func() error {
		pub.Close()
		return nil
	})

	check := func(ctx context.Context) error {
		if !prod.Healthy(ctx) {
			return errors.New("kafka brokers unreachable")
		}
		return nil
	}
	return pub, check, nil
}

// StartWorkers adds the cleanup loop and, with Redis, the pool stats loop to
// g. Both stop when ctx is cancelled.
func (a *App) StartWorkers(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error {
		if err := a.cleanup.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if a.redis == nil {
		return
	}
	g.Go(func() error {
		ticker := time.NewTicker(poolStatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.redis.RecordPoolStats()
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// Close releases resources in reverse acquisition order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
