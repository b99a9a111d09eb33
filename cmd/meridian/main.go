package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-spa/meridian-erp/internal/app"
	"github.com/meridian-spa/meridian-erp/internal/inventory"
	"github.com/meridian-spa/meridian-erp/internal/masterdata"
	"github.com/meridian-spa/meridian-erp/internal/payables"
	"github.com/meridian-spa/meridian-erp/internal/platform/cache"
	"github.com/meridian-spa/meridian-erp/internal/platform/db"
	"github.com/meridian-spa/meridian-erp/internal/receivables"
	"github.com/meridian-spa/meridian-erp/internal/shared"
	"github.com/meridian-spa/meridian-erp/internal/treatment"
	"github.com/meridian-spa/meridian-erp/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, quantity cache disabled", slog.Any("error", err))
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	quantityCache := cache.NewQuantityCache(redisClient, cfg.QuantityCacheTTL)
	auditLogger := shared.NewAuditLogger(pool)
	idemStore := shared.NewIdempotencyStore(pool)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("job client unavailable, receipt notifications disabled", slog.Any("error", err))
	}
	defer func() {
		if jobClient == nil {
			return
		}
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	masterdataService := masterdata.NewService(masterdata.NewRepository(pool))
	masterdataHandler := masterdata.NewHandler(logger, masterdataService)

	inventoryService := inventory.NewService(inventory.NewRepository(pool), quantityCache, auditLogger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	payablesService := payables.NewService(payables.NewRepository(pool), auditLogger)
	payablesHandler := payables.NewHandler(logger, payablesService, idemStore)

	receivablesService := receivables.NewService(logger, receivables.NewRepository(pool),
		jobs.NewReceiptNotifier(jobClient), auditLogger)
	receivablesHandler := receivables.NewHandler(logger, receivablesService, idemStore)

	treatmentService := treatment.NewService(treatment.NewRepository(pool), auditLogger)
	treatmentHandler := treatment.NewHandler(logger, treatmentService)

	var jobHandler *jobs.Handler
	if jobClient != nil {
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		MasterDataHandler:  masterdataHandler,
		InventoryHandler:   inventoryHandler,
		PayablesHandler:    payablesHandler,
		ReceivablesHandler: receivablesHandler,
		TreatmentHandler:   treatmentHandler,
		JobHandler:         jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
