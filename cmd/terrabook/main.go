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

	"github.com/terrabook/terrabook/internal/app"
	"github.com/terrabook/terrabook/internal/auth"
	"github.com/terrabook/terrabook/internal/clients"
	"github.com/terrabook/terrabook/internal/finance"
	"github.com/terrabook/terrabook/internal/land"
	"github.com/terrabook/terrabook/internal/observability"
	"github.com/terrabook/terrabook/internal/platform/cache"
	"github.com/terrabook/terrabook/internal/platform/db"
	"github.com/terrabook/terrabook/internal/rbac"
	"github.com/terrabook/terrabook/internal/roles"
	"github.com/terrabook/terrabook/internal/sales"
	"github.com/terrabook/terrabook/internal/shared"
	"github.com/terrabook/terrabook/internal/users"
	"github.com/terrabook/terrabook/jobs"
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
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "terrabook_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	parcelLocker := shared.NewRedisLocker(redisClient, cfg.ParcelLockTTL)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	rbacRepo := rbac.NewRepository(pool)
	rbacService := rbac.NewService(rbacRepo)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	clientsRepo := clients.NewRepository(pool)
	clientsService := clients.NewService(clientsRepo)
	clientsHandler := clients.NewHandler(logger, clientsService, rbacMiddleware)

	landRepo := land.NewRepository(pool)
	landService := land.NewService(landRepo)
	landHandler := land.NewHandler(logger, landService, rbacMiddleware)

	financeRepo := finance.NewRepository(pool)
	reportCache := finance.NewCache(redisClient, cfg.ReportCacheTTL)
	financeService := finance.NewService(financeRepo, reportCache)
	financeHandler := finance.NewHandler(logger, financeService, rbacMiddleware)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(salesRepo, landService, parcelLocker, auditLogger, idempotencyStore, reportCache)
	enricher := app.NewDisplayEnricher(clientsService, usersService, landService)
	salesHandler := sales.NewHandler(logger, salesService, rbacMiddleware, enricher)

	rolesRepo := roles.NewRepository(pool)
	rolesService := roles.NewService(rolesRepo)
	rolesHandler := roles.NewHandler(logger, rolesService, rbacService, rbacMiddleware)
	permissionsHandler := rbac.NewPermissionsHandler(logger, rbacService, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		AuthHandler:        authHandler,
		ClientsHandler:     clientsHandler,
		LandHandler:        landHandler,
		SalesHandler:       salesHandler,
		FinanceHandler:     financeHandler,
		UsersHandler:       usersHandler,
		RolesHandler:       rolesHandler,
		PermissionsHandler: permissionsHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
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
