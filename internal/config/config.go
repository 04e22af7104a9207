package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full configuration surface of the service, loaded from
// the environment. Zero-value friendly defaults keep `dev` runnable with
// nothing set; the `prod` profile enforces real secrets.
type Config struct {
	Profile    string
	ListenAddr string

	DatabaseDSN string
	RedisAddr   string

	TokenSecret   string
	SessionSecret string

	AccessTokenTTL          time.Duration
	RefreshTokenTTL         time.Duration
	RefreshRenewalThreshold time.Duration
	AuthHeaderScheme        string
	SessionTTL              time.Duration
	PermissionCacheTTL      time.Duration

	AdminPathPrefix string
	AdminLoginPath  string
	ExemptPaths     []string

	CORSOrigins      []string
	AuthRateLimitRPM int
	APIRateLimitRPM  int
	BodyLimitBytes   int64
	BcryptCost       int

	OTELMetricsEnabled        bool
	OTELTracesEnabled         bool
	OTELLogsEnabled           bool
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELServiceName           string
	OTELEnvironment           string
	OTELMetricsExportInterval time.Duration
}

// defaultExemptPaths is the baseline register of path prefixes that skip
// authentication entirely. Route registration may add to it at startup;
// nothing ever removes from it.
func defaultExemptPaths() []string {
	return []string{
		"/admin/login",
		"/admin/static",
		"/static",
		"/favicon.ico",
		"/api/auth/register/",
		"/api/auth/login/",
		"/api/auth/access/token/",
		"/api/auth/refresh/",
		"/health",
	}
}

func Load() (*Config, error) {
	cfg := &Config{
		Profile:    envString("APP_PROFILE", "dev"),
		ListenAddr: envString("LISTEN_ADDR", ":8080"),

		DatabaseDSN: envString("DATABASE_DSN", ""),
		RedisAddr:   envString("REDIS_ADDR", ""),

		TokenSecret:   envString("TOKEN_SECRET", "dev-token-secret"),
		SessionSecret: envString("SESSION_SECRET", "dev-session-secret"),

		AccessTokenTTL:          envDuration("ACCESS_TOKEN_TTL", 26*time.Hour),
		RefreshTokenTTL:         envDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		RefreshRenewalThreshold: envDuration("REFRESH_RENEWAL_THRESHOLD", 24*time.Hour),
		AuthHeaderScheme:        envString("AUTH_HEADER_SCHEME", "JWT"),
		SessionTTL:              envDuration("SESSION_TTL", 12*time.Hour),
		PermissionCacheTTL:      envDuration("PERMISSION_CACHE_TTL", 5*time.Minute),

		AdminPathPrefix: envString("ADMIN_PATH_PREFIX", "/admin"),
		AdminLoginPath:  envString("ADMIN_LOGIN_PATH", "/admin/login"),
		ExemptPaths:     append(defaultExemptPaths(), envCSV("EXTRA_EXEMPT_PATHS")...),

		CORSOrigins:      envCSV("CORS_ORIGINS"),
		AuthRateLimitRPM: envInt("AUTH_RATE_LIMIT_RPM", 30),
		APIRateLimitRPM:  envInt("API_RATE_LIMIT_RPM", 600),
		BodyLimitBytes:   envInt64("BODY_LIMIT_BYTES", 1<<20),
		BcryptCost:       envInt("BCRYPT_COST", 10),

		OTELMetricsEnabled:        envBool("OTEL_METRICS_ENABLED", false),
		OTELTracesEnabled:         envBool("OTEL_TRACES_ENABLED", false),
		OTELLogsEnabled:           envBool("OTEL_LOGS_ENABLED", false),
		OTELExporterOTLPEndpoint:  envString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure:  envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELServiceName:           envString("OTEL_SERVICE_NAME", "directory-admin-service"),
		OTELEnvironment:           envString("OTEL_ENVIRONMENT", "dev"),
		OTELMetricsExportInterval: envDuration("OTEL_METRICS_EXPORT_INTERVAL", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		recordConfigValidationEvent(context.Background(), cfg.Profile, "invalid", classifyConfigError(err))
		return nil, fmt.Errorf("validate config: %w", err)
	}
	recordConfigValidationEvent(context.Background(), cfg.Profile, "valid", "none")
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token lifetime must be positive")
	}
	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		return fmt.Errorf("token lifetime: access TTL must be shorter than refresh TTL")
	}
	if c.RefreshRenewalThreshold <= 0 || c.RefreshRenewalThreshold >= c.RefreshTokenTTL {
		return fmt.Errorf("token lifetime: renewal threshold must sit inside the refresh TTL")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("token lifetime: session TTL must be positive")
	}
	if strings.TrimSpace(c.AuthHeaderScheme) == "" {
		return fmt.Errorf("auth header scheme must not be empty")
	}
	if c.Profile == "prod" {
		if len(c.TokenSecret) < 32 {
			return fmt.Errorf("secret: TOKEN_SECRET must be at least 32 characters in prod")
		}
		if len(c.SessionSecret) < 32 {
			return fmt.Errorf("secret: SESSION_SECRET must be at least 32 characters in prod")
		}
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required in prod")
		}
	}
	return nil
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envCSV(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
