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

	"github.com/gridops/gridops/internal/app"
	"github.com/gridops/gridops/internal/assets"
	"github.com/gridops/gridops/internal/audit"
	"github.com/gridops/gridops/internal/auth"
	"github.com/gridops/gridops/internal/modification"
	"github.com/gridops/gridops/internal/notify"
	"github.com/gridops/gridops/internal/observability"
	"github.com/gridops/gridops/internal/platform/cache"
	"github.com/gridops/gridops/internal/platform/db"
	"github.com/gridops/gridops/internal/rbac"
	"github.com/gridops/gridops/internal/shared"
	"github.com/gridops/gridops/internal/users"
	"github.com/gridops/gridops/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, "gridops_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	auditTrail := shared.NewAuditTrail(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	usersRepo := users.NewRepository(dbpool)
	actorResolver := users.NewResolver(usersRepo, redisClient, cfg.ActorCacheTTL, logger)
	rbacMiddleware := rbac.Middleware{Resolver: actorResolver, Logger: logger}

	usersService := users.NewService(usersRepo, actorResolver, auditTrail, logger)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	metrics := observability.NewMetrics()

	assetsRepo := assets.NewRepository(dbpool)
	assetsService := assets.NewService(assetsRepo, auditTrail, logger)
	assetsHandler := assets.NewHandler(logger, assetsService, rbacMiddleware)

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
	dispatcher := notify.NewDispatcher(queueClient, logger)

	modificationRepo := modification.NewRepository(dbpool)
	modificationService := modification.NewService(modificationRepo, dispatcher, assetsService, auditTrail, metrics, logger)
	modificationHandler := modification.NewHandler(logger, modificationService, rbacMiddleware, idempotencyStore)

	notifyRepo := notify.NewRepository(dbpool)
	notifyHandler := notify.NewHandler(logger, notifyRepo)

	auditRepo := audit.NewRepository(dbpool)
	auditService := audit.NewService(auditRepo)
	auditHandler := audit.NewHandler(logger, auditService, rbacMiddleware)

	permissionsHandler := rbac.NewHandler(logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		SessionManager:      sessionManager,
		CSRFManager:         csrfManager,
		RBACMiddleware:      rbacMiddleware,
		AuthHandler:         authHandler,
		UsersHandler:        usersHandler,
		AssetsHandler:       assetsHandler,
		ModificationHandler: modificationHandler,
		NotifyHandler:       notifyHandler,
		AuditHandler:        auditHandler,
		PermissionsHandler:  permissionsHandler,
		JobHandler:          jobHandler,
		Metrics:             metrics,
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
