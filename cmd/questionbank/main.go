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
	"golang.org/x/sync/errgroup"

	"github.com/questionbank/questionbank/cmd/questionbank/cli"
	"github.com/questionbank/questionbank/internal/app"
	"github.com/questionbank/questionbank/internal/auth"
	"github.com/questionbank/questionbank/internal/observability"
	"github.com/questionbank/questionbank/internal/platform/cache"
	"github.com/questionbank/questionbank/internal/platform/db"
	"github.com/questionbank/questionbank/internal/rbac"
	"github.com/questionbank/questionbank/internal/roles"
	"github.com/questionbank/questionbank/internal/seed"
	"github.com/questionbank/questionbank/internal/users"
	"github.com/questionbank/questionbank/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 && cli.IsCommand(os.Args[1]) {
		cfg, err := app.ReadConfig()
		if err != nil {
			slog.Default().Error("read config", slog.Any("error", err))
			os.Exit(1)
		}
		os.Exit(cli.Run(ctx, cli.Env{
			Settings:  cfg.Security(),
			RedisAddr: cfg.RedisAddr,
			Retention: cfg.AuditRetention,
		}, os.Args[1:]))
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("questionbank stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	hasher, err := auth.NewHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}
	codec, err := auth.NewTokenCodec(cfg.Security())
	if err != nil {
		return err
	}

	if cfg.SeedOnStart {
		report, err := seed.New(seed.NewPGRunner(pool), hasher, cfg.SeedDefaultPassword, logger).Run(ctx)
		if err != nil {
			return err
		}
		if !report.Skipped {
			logger.Info("default data seeded",
				slog.Int("permissions", report.Permissions),
				slog.Int("roles", report.Roles),
				slog.Int("users", report.Users))
		}
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpt)
	if err != nil {
		return err
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpt)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	rbacMiddleware := rbac.Middleware{Policy: rbac.DefaultPolicy(), Logger: logger, Metrics: metrics}

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, hasher, codec, auth.ServiceConfig{
		Throttle: auth.NewThrottle(redisClient, cfg.LoginMaxAttempts, cfg.LoginLockoutWindow),
		Audit:    jobClient,
		Logger:   logger,
		Metrics:  metrics,
	})
	filter := auth.NewFilter(codec, auth.NewResolver(authRepo), logger, metrics)

	rbacService := rbac.NewService(rbac.NewRepository(pool))
	rolesService := roles.NewService(roles.NewRepository(pool), rbacService)
	usersService := users.NewService(users.NewRepository(pool), jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Metrics:            metrics,
		Filter:             filter,
		RBACMiddleware:     rbacMiddleware,
		AuthHandler:        auth.NewHandler(logger, authService, app.LoginLimiter(cfg)),
		RolesHandler:       roles.NewHandler(logger, rolesService, rbacMiddleware),
		UsersHandler:       users.NewHandler(logger, usersService, rbacMiddleware),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, rbacService, rbacMiddleware),
		HealthChecks: map[string]app.HealthCheck{
			"db":    pool.Ping,
			"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
	})

	servers := []*http.Server{
		{
			Addr:         cfg.AppAddr,
			Handler:      router,
			ReadTimeout:  cfg.AppReadTimeout,
			WriteTimeout: cfg.AppWriteTimeout,
		},
		{
			Addr:        cfg.MetricsAddr,
			Handler:     app.NewOpsRouter(metrics, jobs.NewHandler(inspector, logger)),
			ReadTimeout: cfg.AppReadTimeout,
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			logger.Info("starting http server", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("graceful shutdown", slog.String("addr", srv.Addr), slog.Any("error", err))
			}
		}
		return nil
	})
	return g.Wait()
}
