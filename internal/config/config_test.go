package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Profile != "dev" {
		t.Fatalf("Profile = %q", cfg.Profile)
	}
	if cfg.AccessTokenTTL != 26*time.Hour {
		t.Fatalf("AccessTokenTTL = %s", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 7*24*time.Hour {
		t.Fatalf("RefreshTokenTTL = %s", cfg.RefreshTokenTTL)
	}
	if cfg.RefreshRenewalThreshold != 24*time.Hour {
		t.Fatalf("RefreshRenewalThreshold = %s", cfg.RefreshRenewalThreshold)
	}
	if cfg.AuthHeaderScheme != "JWT" {
		t.Fatalf("AuthHeaderScheme = %q", cfg.AuthHeaderScheme)
	}
	if cfg.AdminPathPrefix != "/admin" || cfg.AdminLoginPath != "/admin/login" {
		t.Fatalf("admin paths = %q, %q", cfg.AdminPathPrefix, cfg.AdminLoginPath)
	}
}

func TestLoadBaselineExemptPaths(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, want := range []string{"/admin/login", "/api/auth/login/", "/api/auth/register/", "/health"} {
		found := false
		for _, p := range cfg.ExemptPaths {
			if p == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("baseline exempt paths missing %q: %v", want, cfg.ExemptPaths)
		}
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "2h")
	t.Setenv("REFRESH_TOKEN_TTL", "48h")
	t.Setenv("REFRESH_RENEWAL_THRESHOLD", "12h")
	t.Setenv("AUTH_HEADER_SCHEME", "Token")
	t.Setenv("EXTRA_EXEMPT_PATHS", "/metrics, /debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AccessTokenTTL != 2*time.Hour {
		t.Fatalf("AccessTokenTTL = %s", cfg.AccessTokenTTL)
	}
	if cfg.AuthHeaderScheme != "Token" {
		t.Fatalf("AuthHeaderScheme = %q", cfg.AuthHeaderScheme)
	}
	var extras []string
	for _, p := range cfg.ExemptPaths {
		if p == "/metrics" || p == "/debug" {
			extras = append(extras, p)
		}
	}
	if len(extras) != 2 {
		t.Fatalf("extra exempt paths = %v", extras)
	}
}

func TestValidateTokenLifetimes(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"access >= refresh", map[string]string{"ACCESS_TOKEN_TTL": "200h", "REFRESH_TOKEN_TTL": "100h", "REFRESH_RENEWAL_THRESHOLD": "10h"}, "access TTL"},
		{"threshold >= refresh", map[string]string{"REFRESH_RENEWAL_THRESHOLD": "200h"}, "renewal threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestValidateProdSecrets(t *testing.T) {
	t.Setenv("APP_PROFILE", "prod")
	t.Setenv("DATABASE_DSN", "host=db user=app dbname=app")

	if _, err := Load(); err == nil {
		t.Fatal("prod with default secrets must fail validation")
	}

	t.Setenv("TOKEN_SECRET", strings.Repeat("a", 32))
	t.Setenv("SESSION_SECRET", strings.Repeat("b", 32))
	if _, err := Load(); err != nil {
		t.Fatalf("prod with real secrets: %v", err)
	}
}

func TestClassifyConfigError(t *testing.T) {
	cfg := &Config{
		AccessTokenTTL:          26 * time.Hour,
		RefreshTokenTTL:         time.Hour,
		RefreshRenewalThreshold: time.Minute,
		SessionTTL:              time.Hour,
		AuthHeaderScheme:        "JWT",
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if got := classifyConfigError(err); got != "token_lifetime" {
		t.Fatalf("class = %q", got)
	}
	if got := classifyConfigError(nil); got != "none" {
		t.Fatalf("class for nil = %q", got)
	}
}
