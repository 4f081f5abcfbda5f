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
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/atrium-pm/atrium/internal/app"
	"github.com/atrium-pm/atrium/internal/audit"
	"github.com/atrium-pm/atrium/internal/auth"
	"github.com/atrium-pm/atrium/internal/billing"
	"github.com/atrium-pm/atrium/internal/billing/templates"
	"github.com/atrium-pm/atrium/internal/imports"
	"github.com/atrium-pm/atrium/internal/leases"
	"github.com/atrium-pm/atrium/internal/meters"
	"github.com/atrium-pm/atrium/internal/platform/db"
	"github.com/atrium-pm/atrium/internal/property"
	"github.com/atrium-pm/atrium/internal/shared"
	"github.com/atrium-pm/atrium/jobs"
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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "atrium_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(pool)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	if err := authService.EnsureAdmin(ctx, cfg.AdminUser, cfg.AdminPassword); err != nil {
		logger.Error("bootstrap admin", slog.Any("error", err))
		os.Exit(1)
	}
	authMiddleware := auth.Middleware{Service: authService, Logger: logger}
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager, authMiddleware)

	propertyRepo := property.NewRepository(pool)
	propertyService := property.NewService(propertyRepo)
	propertyHandler := property.NewHandler(logger, propertyService)

	leaseRepo := leases.NewRepository(pool)
	leaseService := leases.NewService(leaseRepo)
	leaseHandler := leases.NewHandler(logger, leaseService)

	meterRepo := meters.NewRepository(pool)
	meterService := meters.NewService(meterRepo)
	meterHandler := meters.NewHandler(logger, meterService)

	billingRepo := billing.NewRepository(pool, auditLogger)
	billingService := billing.NewService(billingRepo, leaseService, propertyService)
	billingHandler := billing.NewHandler(logger, billingService)

	templateRepo := templates.NewRepository(pool)
	templateService := templates.NewService(templateRepo, billingRepo, leaseService, propertyService)
	templateHandler := templates.NewHandler(logger, templateService)

	queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	importRepo := imports.NewRepository(pool)
	importService := imports.NewService(importRepo, queueClient, cfg.ImportStorageDir, logger)
	importHandler := imports.NewHandler(logger, importService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)
	auditHandler := audit.NewHandler(logger, auditLogger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		AuthMiddleware: authMiddleware,

		AuthHandler:     authHandler,
		PropertyHandler: propertyHandler,
		LeaseHandler:    leaseHandler,
		MeterHandler:    meterHandler,
		BillingHandler:  billingHandler,
		TemplateHandler: templateHandler,
		ImportHandler:   importHandler,
		JobHandler:      jobHandler,
		AuditHandler:    auditHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
