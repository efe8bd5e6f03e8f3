package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv unsets every variable Load reads so tests control the whole
// environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "ATLAS_ENV", "DATABASE_URL", "JWT_SECRET", "JWT_PREVIOUS_SECRET",
		"REDIS_ADDR", "RATE_LIMIT_REQUESTS", "RATE_LIMIT_WINDOW", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/atlas")
	t.Setenv("JWT_SECRET", "secret")

	cfg, errs := Load("")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.Env != DefaultEnv {
		t.Errorf("Env = %q, want %q", cfg.Env, DefaultEnv)
	}
	if cfg.RateLimitRequests != DefaultRateLimitRequests {
		t.Errorf("RateLimitRequests = %d", cfg.RateLimitRequests)
	}
	if cfg.RateLimitWindow != DefaultRateLimitWindow {
		t.Errorf("RateLimitWindow = %s", cfg.RateLimitWindow)
	}
	if cfg.IsProduction() {
		t.Error("default env should not be production")
	}
}

func TestLoadMissingRequiredValues(t *testing.T) {
	clearEnv(t)

	_, errs := Load("")
	if len(errs) != 2 {
		t.Fatalf("errs = %v, want 2 errors", errs)
	}
	found := map[error]bool{}
	for _, err := range errs {
		for _, want := range []error{ErrMissingDatabaseURL, ErrMissingJWTSecret} {
			if errors.Is(err, want) {
				found[want] = true
			}
		}
	}
	if !found[ErrMissingDatabaseURL] || !found[ErrMissingJWTSecret] {
		t.Errorf("errs = %v, want both missing-value errors", errs)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("ATLAS_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://prod/atlas")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("JWT_PREVIOUS_SECRET", "old-secret")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("RATE_LIMIT_REQUESTS", "50")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, errs := Load("")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if !cfg.IsProduction() {
		t.Error("expected production")
	}
	if cfg.JWTPreviousSecret != "old-secret" {
		t.Errorf("JWTPreviousSecret = %q", cfg.JWTPreviousSecret)
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr)
	}
	if cfg.RateLimitRequests != 50 || cfg.RateLimitWindow != 30*time.Second {
		t.Errorf("rate limit = %d/%s", cfg.RateLimitRequests, cfg.RateLimitWindow)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Errorf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadInvalidNumericOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/atlas")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "not-a-port")
	t.Setenv("RATE_LIMIT_REQUESTS", "lots")
	t.Setenv("RATE_LIMIT_WINDOW", "sometime")

	cfg, errs := Load("")
	if len(errs) != 3 {
		t.Fatalf("errs = %v, want 3 errors", errs)
	}
	// Invalid overrides keep the defaults.
	if cfg.Port != DefaultPort || cfg.RateLimitRequests != DefaultRateLimitRequests {
		t.Errorf("invalid overrides should not alter defaults: %+v", cfg)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("port: 8181\nenv: staging\ndatabase_url: postgres://file/atlas\njwt_secret: file-secret\ncors_allowed_origins:\n  - https://file.example\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, errs := Load(path)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if cfg.Port != 8181 || cfg.Env != "staging" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.DatabaseURL != "postgres://file/atlas" || cfg.JWTSecret != "file-secret" {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "https://file.example" {
		t.Errorf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadEnvBeatsFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("port: 8181\ndatabase_url: postgres://file/atlas\njwt_secret: file-secret\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PORT", "9999")
	t.Setenv("DATABASE_URL", "postgres://env/atlas")

	cfg, errs := Load(path)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if cfg.Port != 9999 {
		t.Errorf("Port = %d, env should win", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://env/atlas" {
		t.Errorf("DatabaseURL = %q, env should win", cfg.DatabaseURL)
	}
	if cfg.JWTSecret != "file-secret" {
		t.Errorf("JWTSecret = %q, file value should survive", cfg.JWTSecret)
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	clearEnv(t)

	_, errs := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if len(errs) != 1 {
		t.Fatalf("errs = %v, want a single load error", errs)
	}
}
