// Package config loads runtime configuration from environment variables and
// an optional file named by SHOPCORE_CONFIG. Environment variables win over
// the file; both win over the defaults below.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileEnv names the optional config file (yaml, json or toml).
const ConfigFileEnv = "SHOPCORE_CONFIG"

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	devSigningKey    = "dev-signing-key-change-me-in-production"
	minSigningKeyLen = 32
)

type Config struct {
	Environment string
	Server      ServerConfig
	Auth        AuthConfig
	Cookies     CookieConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	RateLimit   RateLimitConfig
	Cleanup     CleanupConfig
	SeedDemo    bool
}

type ServerConfig struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	TrustedProxies  []string
}

type AuthConfig struct {
	JWTSigningKey     string
	Issuer            string
	Audience          string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	ResetTTL          time.Duration
	PasswordAlgorithm string
	BcryptCost        int
	DenylistEnabled   bool
}

type CookieConfig struct {
	AccessName  string
	RefreshName string
	Secure      bool
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// AppRole is assumed with SET LOCAL ROLE inside tenant scopes. The login
	// user must be a member; startup fails otherwise.
	AppRole         string
	ScopeTimeout    time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers    string
	AuditTopic string
	Acks       string
	Retries    int
}

type RateLimitConfig struct {
	PerSecond float64
	Burst     int
	IdleTTL   time.Duration
}

type CleanupConfig struct {
	Interval time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SHOPCORE_ENV", EnvDevelopment)

	v.SetDefault("SERVER_ADDR", ":8080")
	v.SetDefault("SERVER_REQUEST_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second)
	v.SetDefault("TRUSTED_PROXIES", "")

	v.SetDefault("JWT_SIGNING_KEY", "")
	v.SetDefault("JWT_ISSUER", "shopcore")
	v.SetDefault("JWT_AUDIENCE", "shopcore-api")
	v.SetDefault("ACCESS_TOKEN_TTL", 15*time.Minute)
	v.SetDefault("REFRESH_TOKEN_TTL", 7*24*time.Hour)
	v.SetDefault("RESET_TOKEN_TTL", time.Hour)
	v.SetDefault("PASSWORD_ALGORITHM", "bcrypt")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("REFRESH_DENYLIST_ENABLED", true)

	v.SetDefault("COOKIE_ACCESS_NAME", "access_token")
	v.SetDefault("COOKIE_REFRESH_NAME", "refresh_token")
	v.SetDefault("COOKIE_SECURE", true)

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute)
	v.SetDefault("DATABASE_APP_ROLE", "shopcore_app")
	v.SetDefault("TENANT_SCOPE_TIMEOUT", 5*time.Second)

	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 2)
	v.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
	v.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
	v.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_AUDIT_TOPIC", "shopcore.audit")
	v.SetDefault("KAFKA_ACKS", "all")
	v.SetDefault("KAFKA_RETRIES", 3)

	v.SetDefault("RATE_LIMIT_PER_SECOND", 5.0)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("RATE_LIMIT_IDLE_TTL", 10*time.Minute)

	v.SetDefault("CLEANUP_INTERVAL", 5*time.Minute)
	v.SetDefault("SEED_DEMO_DATA", false)
}

// Load reads the configuration and validates it.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Environment: strings.ToLower(v.GetString("SHOPCORE_ENV")),
		Server: ServerConfig{
			Addr:            v.GetString("SERVER_ADDR"),
			RequestTimeout:  v.GetDuration("SERVER_REQUEST_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
			TrustedProxies:  splitList(v.GetString("TRUSTED_PROXIES")),
		},
		Auth: AuthConfig{
			JWTSigningKey:     v.GetString("JWT_SIGNING_KEY"),
			Issuer:            v.GetString("JWT_ISSUER"),
			Audience:          v.GetString("JWT_AUDIENCE"),
			AccessTTL:         v.GetDuration("ACCESS_TOKEN_TTL"),
			RefreshTTL:        v.GetDuration("REFRESH_TOKEN_TTL"),
			ResetTTL:          v.GetDuration("RESET_TOKEN_TTL"),
			PasswordAlgorithm: strings.ToLower(v.GetString("PASSWORD_ALGORITHM")),
			BcryptCost:        v.GetInt("BCRYPT_COST"),
			DenylistEnabled:   v.GetBool("REFRESH_DENYLIST_ENABLED"),
		},
		Cookies: CookieConfig{
			AccessName:  v.GetString("COOKIE_ACCESS_NAME"),
			RefreshName: v.GetString("COOKIE_REFRESH_NAME"),
			Secure:      v.GetBool("COOKIE_SECURE"),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("DATABASE_URL"),
			MaxOpenConns:    v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DATABASE_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DATABASE_CONN_MAX_LIFETIME"),
			AppRole:         v.GetString("DATABASE_APP_ROLE"),
			ScopeTimeout:    v.GetDuration("TENANT_SCOPE_TIMEOUT"),
		},
		Redis: RedisConfig{
			URL:          v.GetString("REDIS_URL"),
			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: v.GetInt("REDIS_MIN_IDLE_CONNS"),
			DialTimeout:  v.GetDuration("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  v.GetDuration("REDIS_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("REDIS_WRITE_TIMEOUT"),
		},
		Kafka: KafkaConfig{
			Brokers:    v.GetString("KAFKA_BROKERS"),
			AuditTopic: v.GetString("KAFKA_AUDIT_TOPIC"),
			Acks:       v.GetString("KAFKA_ACKS"),
			Retries:    v.GetInt("KAFKA_RETRIES"),
		},
		RateLimit: RateLimitConfig{
			PerSecond: v.GetFloat64("RATE_LIMIT_PER_SECOND"),
			Burst:     v.GetInt("RATE_LIMIT_BURST"),
			IdleTTL:   v.GetDuration("RATE_LIMIT_IDLE_TTL"),
		},
		Cleanup: CleanupConfig{
			Interval: v.GetDuration("CLEANUP_INTERVAL"),
		},
		SeedDemo: v.GetBool("SEED_DEMO_DATA"),
	}

	if cfg.Auth.JWTSigningKey == "" && !cfg.IsProduction() {
		cfg.Auth.JWTSigningKey = devSigningKey
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Validate rejects settings that would weaken token or cookie security.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Auth.JWTSigningKey) < minSigningKeyLen {
		errs = append(errs, fmt.Errorf("JWT_SIGNING_KEY must be at least %d bytes", minSigningKeyLen))
	}
	if c.IsProduction() && c.Auth.JWTSigningKey == devSigningKey {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must be set in production"))
	}
	if c.IsProduction() && !c.Cookies.Secure {
		errs = append(errs, errors.New("COOKIE_SECURE cannot be disabled in production"))
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 || c.Auth.ResetTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if c.Auth.AccessTTL >= c.Auth.RefreshTTL {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be shorter than REFRESH_TOKEN_TTL"))
	}
	switch c.Auth.PasswordAlgorithm {
	case "bcrypt", "argon2id":
	default:
		errs = append(errs, fmt.Errorf("unsupported PASSWORD_ALGORITHM %q", c.Auth.PasswordAlgorithm))
	}
	if c.RateLimit.PerSecond <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("rate limit must be positive"))
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
