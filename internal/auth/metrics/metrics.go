package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for auth operations.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Logins               *prometheus.CounterVec
	Refreshes            *prometheus.CounterVec
	AuthFailures         *prometheus.CounterVec
	LegacyHashMigrations prometheus.Counter
	ResetRequests        prometheus.Counter
	ResetRedemptions     *prometheus.CounterVec
	ResetTokensSwept     prometheus.Counter
	RotationReuse        prometheus.Counter
	LoginDurationMs      prometheus.Histogram
}

// New registers auth collectors with reg. Pass prometheus.DefaultRegisterer
// in main and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shopcore_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		Refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shopcore_token_refreshes_total",
			Help: "Refresh token exchanges by outcome",
		}, []string{"outcome"}),
		AuthFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shopcore_auth_failures_total",
			Help: "Security denials by internal reason code",
		}, []string{"code"}),
		LegacyHashMigrations: f.NewCounter(prometheus.CounterOpts{
			Name: "shopcore_legacy_hash_migrations_total",
			Help: "Legacy password digests upgraded on login",
		}),
		ResetRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "shopcore_password_reset_requests_total",
			Help: "Password reset requests accepted",
		}),
		ResetRedemptions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shopcore_password_reset_redemptions_total",
			Help: "Password reset confirmations by outcome",
		}, []string{"outcome"}),
		ResetTokensSwept: f.NewCounter(prometheus.CounterOpts{
			Name: "shopcore_password_reset_tokens_swept_total",
			Help: "Expired password reset tokens deleted by the sweeper",
		}),
		RotationReuse: f.NewCounter(prometheus.CounterOpts{
			Name: "shopcore_refresh_rotation_reuse_total",
			Help: "Refresh tokens presented after their rotation id was consumed",
		}),
		LoginDurationMs: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "shopcore_login_duration_ms",
			Help:    "Duration of login requests in milliseconds",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500},
		}),
	}
}

func (m *Metrics) IncLogin(outcome string) {
	if m != nil {
		m.Logins.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncRefresh(outcome string) {
	if m != nil {
		m.Refreshes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncAuthFailure(code string) {
	if m != nil {
		m.AuthFailures.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) IncLegacyMigration() {
	if m != nil {
		m.LegacyHashMigrations.Inc()
	}
}

func (m *Metrics) IncResetRequest() {
	if m != nil {
		m.ResetRequests.Inc()
	}
}

func (m *Metrics) IncResetRedemption(outcome string) {
	if m != nil {
		m.ResetRedemptions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) AddResetTokensSwept(n int) {
	if m != nil && n > 0 {
		m.ResetTokensSwept.Add(float64(n))
	}
}

func (m *Metrics) IncRotationReuse() {
	if m != nil {
		m.RotationReuse.Inc()
	}
}

func (m *Metrics) ObserveLoginDuration(ms float64) {
	if m != nil {
		m.LoginDurationMs.Observe(ms)
	}
}
