package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fundi-app/fundi-backend/internal/bankdetails"
	"github.com/fundi-app/fundi-backend/internal/bookings"
	"github.com/fundi-app/fundi-backend/internal/cron"
	"github.com/fundi-app/fundi-backend/internal/jobproofs"
	"github.com/fundi-app/fundi-backend/internal/notifications"
	"github.com/fundi-app/fundi-backend/internal/payments"
	"github.com/fundi-app/fundi-backend/internal/reconciliation"
	"github.com/fundi-app/fundi-backend/internal/settlement"
	"github.com/fundi-app/fundi-backend/pkg/config"
	"github.com/fundi-app/fundi-backend/pkg/db"
	"github.com/fundi-app/fundi-backend/pkg/logger"
	"github.com/fundi-app/fundi-backend/pkg/metrics"
	"github.com/fundi-app/fundi-backend/pkg/migrate"
	"github.com/fundi-app/fundi-backend/pkg/paystack"
	"github.com/fundi-app/fundi-backend/pkg/redis"
)

const lockKeyFormat = "fundi:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	paystackClient, err := paystack.NewClient(context.Background(), cfg.Paystack, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create paystack client", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	bookingsRepo := bookings.NewRepository(gormDB)
	paymentsRepo := payments.NewRepository(gormDB)
	proofsRepo := jobproofs.NewRepository(gormDB)

	notificationsService, err := notifications.NewService(notifications.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	settlementService, err := settlement.NewService(settlement.ServiceParams{
		Repo:        settlement.NewRepository(gormDB),
		Bookings:    bookingsRepo,
		Payments:    paymentsRepo,
		BankDetails: bankdetails.NewRepository(gormDB),
		Tx:          dbClient,
		Notifier:    notificationsService,
		Processor:   paystackClient,
		Escrow:      cfg.Escrow,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	jobProofsService, err := jobproofs.NewService(jobproofs.ServiceParams{
		Repo:       proofsRepo,
		Bookings:   bookingsRepo,
		Settlement: settlementService,
		Tx:         dbClient,
		Notifier:   notificationsService,
		Escrow:     cfg.Escrow,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create job proofs service", err)
		os.Exit(1)
	}

	reconcileService, err := reconciliation.NewService(reconciliation.ServiceParams{
		Repo:      reconciliation.NewRepository(gormDB),
		Bookings:  bookingsRepo,
		Payments:  paymentsRepo,
		Proofs:    proofsRepo,
		Confirmer: jobProofsService,
		Tx:        dbClient,
		BatchSize: cfg.Reconcile.BatchLimit,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation service", err)
		os.Exit(1)
	}

	reconcileJob, err := cron.NewReconcileJob(cron.ReconcileJobParams{
		Logger:     logg,
		Reconciler: reconcileService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Reconcile.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(reconcileJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Reconcile.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
