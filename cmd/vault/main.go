package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fintrack/vault-api-go/internal/config"
	"github.com/fintrack/vault-api-go/internal/handler"
	"github.com/fintrack/vault-api-go/internal/infra/cache"
	"github.com/fintrack/vault-api-go/internal/infra/client"
	"github.com/fintrack/vault-api-go/internal/infra/localstore"
	"github.com/fintrack/vault-api-go/internal/infra/observability"
	"github.com/fintrack/vault-api-go/internal/infra/resilience"
	"github.com/fintrack/vault-api-go/internal/infra/supabase"
	"github.com/fintrack/vault-api-go/internal/infra/syncstore"
	"github.com/fintrack/vault-api-go/internal/port"
	"github.com/fintrack/vault-api-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("use_supabase", cfg.SupabaseURL != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("probe_interval", cfg.ProbeInterval),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
		zap.Duration("jwt_refresh_ttl", cfg.JWTRefreshTTL),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "fintrack-vault")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	viewCache := cache.New[any](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("external-apis")

	// --- Stores ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	local := localstore.New()

	var users port.UserStore
	var vault port.VaultStore
	var tokens port.TokenStore
	var sync *syncstore.Sync

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.SupabaseURL != "" {
		logger.Info("using Supabase as store of record",
			zap.String("supabase_url", cfg.SupabaseURL),
		)
		remote := supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			cb,
			resilienceCfg,
			logger,
		)
		sync = syncstore.New(remote, local, metrics, logger)
		go sync.Probe(ctx, cfg.ProbeInterval)

		users, vault, tokens = sync, sync, sync
	} else {
		logger.Warn("Supabase not configured, running on the local store only")
		users, vault, tokens = local, local, local
	}

	// --- Clients ---
	advisorClient := client.NewAdvisorClient(httpClient, cfg.AdvisorURL, cb, resilienceCfg)

	// --- Services ---
	authSvc := service.NewAuthService(users, tokens, cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, logger)
	svcs := handler.Services{
		Auth:    authSvc,
		Vault:   service.NewVaultService(vault, users, viewCache, metrics, logger),
		Summary: service.NewSummaryService(vault, users, viewCache, metrics, logger),
		Planner: service.NewPlannerService(vault, viewCache, logger),
		Advisor: service.NewAdvisorService(vault, users, advisorClient, metrics, logger),
		Admin:   service.NewAdminService(users, vault, tokens, local, viewCache, logger),
		Sync:    sync,
	}

	// --- Router ---
	router := handler.NewRouter(svcs, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
