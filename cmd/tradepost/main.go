package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tradepost-erp/tradepost/internal/app"
	"github.com/tradepost-erp/tradepost/internal/auth"
	"github.com/tradepost-erp/tradepost/internal/grn"
	"github.com/tradepost-erp/tradepost/internal/ledger"
	"github.com/tradepost-erp/tradepost/internal/masterdata/products"
	"github.com/tradepost-erp/tradepost/internal/masterdata/suppliers"
	"github.com/tradepost-erp/tradepost/internal/observability"
	"github.com/tradepost-erp/tradepost/internal/platform/cache"
	"github.com/tradepost-erp/tradepost/internal/platform/db"
	"github.com/tradepost-erp/tradepost/internal/shared"
	"github.com/tradepost-erp/tradepost/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	costCache := ledger.NewCostCache(redisClient, cfg.UnitCostCacheTTL)
	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, auditLogger, costCache, metrics)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	grnRepo := grn.NewRepository(pool)
	grnService := grn.NewService(grnRepo, auditLogger, ledgerService, metrics)
	grnHandler := grn.NewHandler(logger, grnService)

	productsRepo := products.NewRepository(pool)
	productsService := products.NewService(productsRepo, auditLogger)
	productsHandler := products.NewHandler(logger, productsService)

	suppliersRepo := suppliers.NewRepository(pool)
	suppliersService := suppliers.NewService(suppliersRepo, auditLogger)
	suppliersHandler := suppliers.NewHandler(logger, suppliersService)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, redisClient, cfg.SessionTTL)
	authHandler := auth.NewHandler(logger, authService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AuthHandler:      authHandler,
		LedgerHandler:    ledgerHandler,
		GRNHandler:       grnHandler,
		ProductsHandler:  productsHandler,
		SuppliersHandler: suppliersHandler,
		JobsHandler:      jobsHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
