package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/utilitrack/utilitrack-backend/api/controllers"
	"github.com/utilitrack/utilitrack-backend/api/routes"
	"github.com/utilitrack/utilitrack-backend/internal/billing"
	"github.com/utilitrack/utilitrack-backend/internal/scheduler"
	"github.com/utilitrack/utilitrack-backend/pkg/config"
	"github.com/utilitrack/utilitrack-backend/pkg/db"
	"github.com/utilitrack/utilitrack-backend/pkg/logger"
	"github.com/utilitrack/utilitrack-backend/pkg/metrics"
	"github.com/utilitrack/utilitrack-backend/pkg/migrate"
	"github.com/utilitrack/utilitrack-backend/pkg/redis"
)

const lockKeyFormat = "ut:billing-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "billing-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "billing-worker"

	logg = logger.New(logger.Options{
		ServiceName: "billing-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	repo := billing.NewRepository(dbClient.DB())

	engine, err := billing.NewEngine(billing.EngineParams{
		Store:            repo,
		TaxRate:          cfg.Billing.TaxRate,
		DueInDays:        cfg.Billing.DueInDays,
		FallbackCurrency: cfg.Billing.FallbackCurrency,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create invoice engine", err)
		os.Exit(1)
	}

	runner, err := billing.NewRunner(billing.RunnerParams{
		Logger: logg,
		DB:     dbClient,
		Repo:   repo,
		Engine: engine,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create billing runner", err)
		os.Exit(1)
	}

	lock, err := scheduler.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create billing lock", err)
		os.Exit(1)
	}

	billingMetrics := metrics.NewBillingCycleMetrics(prometheus.DefaultRegisterer)

	schedulerSvc, err := scheduler.NewService(scheduler.ServiceParams{
		Logger:       logg,
		Runner:       runner,
		Lock:         lock,
		Metrics:      billingMetrics,
		ErrorBackoff: cfg.Billing.ErrorBackoff,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create billing scheduler", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	readiness := map[string]controllers.Pinger{
		"postgres": dbClient,
		"redis":    redisClient,
	}
	server := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: routes.NewRouter(cfg, logg, readiness, schedulerSvc, prometheus.DefaultGatherer),
	}

	go func() {
		logg.Info(logg.WithField(ctx, "addr", server.Addr), "starting status server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "status server stopped unexpectedly", err)
			stop()
		}
	}()

	logg.Info(ctx, "starting billing worker")
	runErr := schedulerSvc.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "status server shutdown failed", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logg.Error(ctx, "billing worker stopped unexpectedly", runErr)
		os.Exit(1)
	}

	logg.Info(ctx, "billing worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
