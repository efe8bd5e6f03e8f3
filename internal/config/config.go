// Package config provides configuration loading and validation for the
// API server. It uses koanf to merge environment variables over an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// JWT Authentication
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"`

	// Redis (optional; enables the Redis-backed rate limiter and its
	// readiness check when set)
	RedisAddr string `koanf:"redis_addr"`

	// Rate limiting
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`

	// CORS
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret   = errors.New("JWT_SECRET is required")
	ErrInvalidPort        = errors.New("PORT must be a valid integer")
	ErrInvalidRateLimit   = errors.New("RATE_LIMIT_REQUESTS must be a valid integer")
	ErrInvalidRateWindow  = errors.New("RATE_LIMIT_WINDOW must be a valid duration")
)

// Default values for non-secret configuration.
const (
	DefaultPort              = 8080
	DefaultEnv               = "development"
	DefaultRateLimitRequests = 100
	DefaultRateLimitWindow   = time.Minute
)

// Load reads configuration from an optional YAML file and environment
// variables, with environment variables taking precedence. It returns
// the loaded config and a slice of validation errors (empty if valid).
// A provided but unloadable config file is itself an error.
func Load(configFile string) (*Config, []error) {
	var errs []error

	k := koanf.New(".")

	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("load config file %s: %w", configFile, err)}
		}
	}

	cfg := &Config{
		Port:              DefaultPort,
		Env:               DefaultEnv,
		RateLimitRequests: DefaultRateLimitRequests,
		RateLimitWindow:   DefaultRateLimitWindow,
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, []error{fmt.Errorf("unmarshal config: %w", err)}
	}

	// Environment overrides.
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, ErrInvalidPort)
		} else {
			cfg.Port = port
		}
	}
	if v := os.Getenv("ATLAS_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("JWT_PREVIOUS_SECRET"); v != "" {
		cfg.JWTPreviousSecret = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("RATE_LIMIT_REQUESTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, ErrInvalidRateLimit)
		} else {
			cfg.RateLimitRequests = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, ErrInvalidRateWindow)
		} else {
			cfg.RateLimitWindow = d
		}
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		cfg.CORSAllowedOrigins = cfg.CORSAllowedOrigins[:0]
		for _, origin := range origins {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
			}
		}
	}

	errs = append(errs, cfg.validate()...)
	return cfg, errs
}

func (c *Config) validate() []error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	return errs
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
