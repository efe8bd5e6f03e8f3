// Package main is the entry point for the Atlas API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/rit-atlas/atlas/internal/api"
	"github.com/rit-atlas/atlas/internal/auth"
	"github.com/rit-atlas/atlas/internal/config"
	"github.com/rit-atlas/atlas/internal/db"
	"github.com/rit-atlas/atlas/internal/health"
	"github.com/rit-atlas/atlas/internal/middleware"
	"github.com/rit-atlas/atlas/internal/notify"
	"github.com/rit-atlas/atlas/internal/spot"
)

func main() {
	configFile := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Atlas API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	jwtService := auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)

	spots := spot.NewPostgresSpotRepository(conn, logger)
	taxonomy := spot.NewPostgresTaxonomyRepository(conn, logger)
	perms := spot.NewPostgresPermissionStore(conn)
	notifier := notify.NewDispatcher(notify.NewLogSender(logger), logger)
	service := spot.NewService(spots, taxonomy, perms, notifier, logger)

	metrics := middleware.NewMetrics()
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimitRequests,
		WindowDuration:    cfg.RateLimitWindow,
	}
	if err := rateLimitCfg.Validate(); err != nil {
		logger.Error("invalid rate limit config", "error", err)
		os.Exit(1)
	}

	var limiter middleware.Limiter
	var redisChecker api.HealthChecker
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		limiter = middleware.NewRedisLimiter(redisClient, rateLimitCfg)
		redisChecker = health.NewRedisChecker(redisClient)
		logger.Info("using redis rate limiter", "addr", cfg.RedisAddr)
	} else {
		limiter = middleware.NewMemoryLimiter(rateLimitCfg)
	}

	spotHandlers := api.NewSpotHandlers(service, logger)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:    health.NewDBChecker(conn),
		RedisChecker: redisChecker,
	})

	mux := api.NewRouter(spotHandlers, healthHandlers, jwtService,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Middleware chain, outermost first:
	// RequestID -> Logging -> Metrics -> CORS -> RateLimit -> routes
	handler := middleware.RateLimit(limiter, rateLimitCfg, metrics)(mux)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowCredentials: true,
		MaxAge:           300,
	})(handler)
	handler = middleware.HTTPMetrics(metrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
