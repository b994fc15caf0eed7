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
	"golang.org/x/sync/errgroup"

	"github.com/tripcast/tripcast-admin/internal/app"
	"github.com/tripcast/tripcast-admin/internal/auth"
	"github.com/tripcast/tripcast-admin/internal/observability"
	"github.com/tripcast/tripcast-admin/internal/platform/cache"
	"github.com/tripcast/tripcast-admin/internal/platform/db"
	"github.com/tripcast/tripcast-admin/internal/rbac"
	"github.com/tripcast/tripcast-admin/jobs"
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
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	denylist := auth.NewDenylist(redisClient)
	authService := auth.NewService(auth.NewRepository(pool), tokens, denylist)
	authHandler := auth.NewHandler(logger, authService)

	rbacRepo := rbac.NewRepository(pool)
	rbacService := rbac.NewService(rbacRepo)
	auditStore := rbac.NewAuditStore(pool)
	rbacHandler := rbac.NewHandler(logger, rbacService, auditStore)

	accessMiddleware := rbac.Middleware{
		Service: rbacService,
		Audit:   auditStore,
		Verify: func(ctx context.Context, rawToken string) (rbac.Principal, error) {
			admin, err := authService.VerifyAccess(ctx, rawToken)
			if err != nil {
				return nil, err
			}
			return admin, nil
		},
		Logger:      logger,
		Metrics:     metrics,
		PublicPaths: rbac.DefaultPublicPaths(),
	}

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	jobsHandler := jobs.NewHandler(jobsClient, inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:      logger,
		Config:      cfg,
		Metrics:     metrics,
		RBAC:        accessMiddleware,
		AuthHandler: authHandler,
		RBACHandler: rbacHandler,
		JobsHandler: jobsHandler,
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
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
