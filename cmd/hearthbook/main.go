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

	"github.com/hearthbook/hearthbook/internal/app"
	"github.com/hearthbook/hearthbook/internal/audit"
	"github.com/hearthbook/hearthbook/internal/auth"
	"github.com/hearthbook/hearthbook/internal/authz"
	"github.com/hearthbook/hearthbook/internal/content"
	"github.com/hearthbook/hearthbook/internal/moderation"
	"github.com/hearthbook/hearthbook/internal/observability"
	"github.com/hearthbook/hearthbook/internal/platform/cache"
	"github.com/hearthbook/hearthbook/internal/platform/db"
	"github.com/hearthbook/hearthbook/internal/roles"
	"github.com/hearthbook/hearthbook/internal/shared"
	"github.com/hearthbook/hearthbook/internal/tenants"
	"github.com/hearthbook/hearthbook/internal/users"
	"github.com/hearthbook/hearthbook/jobs"
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

	sessionManager := shared.NewSessionManager(redisClient, "hearthbook_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	metrics := observability.NewMetrics()

	auditor := audit.NewPGEmitter(dbpool, logger)
	auditHandler := audit.NewHandler(auditor)

	roleCache := roles.NewCache(redisClient, cfg.RoleCacheTTL)
	roleRepo := roles.NewPGRepository(dbpool)
	roleService := roles.NewService(roleRepo, roleCache, logger)
	if err := roleService.EnsureSystemRoles(ctx); err != nil {
		logger.Error("seed system roles", slog.Any("error", err))
		os.Exit(1)
	}
	rolesHandler := roles.NewHandler(roleService)

	resolver := authz.NewResolver(roleService).WithMetrics(metrics)

	userRepo := users.NewPGRepository(dbpool)
	userService := users.NewService(userRepo, roleService, logger)
	usersHandler := users.NewHandler(userService)

	authzMiddleware := authz.Middleware{Resolver: resolver, Principals: userService, Logger: logger}
	authzHandler := authz.NewHandler(resolver)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	moderationRepo := moderation.NewPGRepository(dbpool)
	moderationService := moderation.NewService(moderationRepo, moderation.DefaultRegistry(), resolver, auditor, logger).
		WithMetrics(metrics).
		WithNotifier(jobs.NewDecisionNotifier(dbpool, jobClient))
	moderationHandler := moderation.NewHandler(moderationService)

	tenantRepo := tenants.NewPGRepository(dbpool)
	tenantService := tenants.NewService(tenantRepo, moderationService, logger)
	tenantsHandler := tenants.NewHandler(tenantService)

	contentRepo := content.NewPGRepository(dbpool)
	contentService := content.NewService(contentRepo, resolver, tenantRepo, moderationService, logger)
	contentHandler := content.NewHandler(contentService)

	authService := auth.NewService(userRepo, auth.NewPGSessionStore(dbpool))
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		AuthHandler:       authHandler,
		AuthzHandler:      authzHandler,
		RolesHandler:      rolesHandler,
		UsersHandler:      usersHandler,
		TenantsHandler:    tenantsHandler,
		ContentHandler:    contentHandler,
		ModerationHandler: moderationHandler,
		AuditHandler:      auditHandler,
		JobHandler:        jobHandler,
		Authz:             authzMiddleware,
		Metrics:           metrics,
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
