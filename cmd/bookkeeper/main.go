package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redlantern/bookkeeper/internal/config"
	"github.com/redlantern/bookkeeper/internal/domain"
	"github.com/redlantern/bookkeeper/internal/handler"
	"github.com/redlantern/bookkeeper/internal/infra/cache"
	"github.com/redlantern/bookkeeper/internal/infra/observability"
	"github.com/redlantern/bookkeeper/internal/infra/resilience"
	"github.com/redlantern/bookkeeper/internal/infra/restkv"
	"github.com/redlantern/bookkeeper/internal/infra/sqlitekv"
	"github.com/redlantern/bookkeeper/internal/infra/uploads"
	"github.com/redlantern/bookkeeper/internal/port"
	"github.com/redlantern/bookkeeper/internal/records"
	"github.com/redlantern/bookkeeper/internal/service"

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
		zap.Bool("use_remote_store", cfg.UseRemoteStore),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("session_cache_ttl", cfg.SessionCacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("token_ttl", cfg.TokenTTL),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "bookkeeper")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Record store ---
	var kv port.KV
	if cfg.UseRemoteStore && cfg.RemoteStoreURL != "" {
		logger.Info("using remote record store",
			zap.String("remote_store_url", cfg.RemoteStoreURL),
		)
		resilienceCfg := resilience.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
		}
		cb := resilience.NewCircuitBreaker("records-api")
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		kv = restkv.NewClient(httpClient, cfg.RemoteStoreURL, cfg.RemoteStoreKey, cb, resilienceCfg, cfg.WatchPollPeriod, logger)
	} else {
		logger.Info("using sqlite record store", zap.String("path", cfg.SQLitePath))
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			logger.Fatal("failed to create data directory", zap.Error(err))
		}
		store, err := sqlitekv.Open(cfg.SQLitePath, logger)
		if err != nil {
			logger.Fatal("failed to open sqlite store", zap.Error(err))
		}
		defer store.Close()
		kv = store
	}

	cols := records.New(kv)

	// --- Uploads ---
	uploadStore, err := uploads.NewStore(cfg.UploadDir)
	if err != nil {
		logger.Fatal("failed to create upload directory", zap.Error(err))
	}

	// --- Services ---
	sessionCache := cache.New[domain.Session](cfg.SessionCacheTTL)
	authSvc := service.NewAuthService(cols, sessionCache, cfg.JWTSecret, cfg.TokenTTL, logger)
	expenseSvc := service.NewExpenseService(cols, metrics, logger)
	incomeSvc := service.NewIncomeService(cols, metrics, logger)
	balanceSvc := service.NewBalanceService(cols, metrics, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := authSvc.SeedDefaultAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		cancel()
		logger.Fatal("failed to seed default admin", zap.Error(err))
	}
	cancel()

	// --- Router ---
	router := handler.NewRouter(kv, authSvc, expenseSvc, incomeSvc, balanceSvc, uploadStore, metrics, logger)

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
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
