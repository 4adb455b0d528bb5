package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fundi-app/fundi-backend/api/routes"
	"github.com/fundi-app/fundi-backend/internal/bankdetails"
	"github.com/fundi-app/fundi-backend/internal/bookings"
	"github.com/fundi-app/fundi-backend/internal/jobproofs"
	"github.com/fundi-app/fundi-backend/internal/notifications"
	"github.com/fundi-app/fundi-backend/internal/payments"
	"github.com/fundi-app/fundi-backend/internal/settlement"
	paystackwebhook "github.com/fundi-app/fundi-backend/internal/webhooks/paystack"
	"github.com/fundi-app/fundi-backend/pkg/config"
	"github.com/fundi-app/fundi-backend/pkg/db"
	"github.com/fundi-app/fundi-backend/pkg/logger"
	"github.com/fundi-app/fundi-backend/pkg/metrics"
	"github.com/fundi-app/fundi-backend/pkg/migrate"
	"github.com/fundi-app/fundi-backend/pkg/paystack"
	"github.com/fundi-app/fundi-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	payoutsRepo := settlement.NewRepository(gormDB)
	bankDetailsRepo := bankdetails.NewRepository(gormDB)
	proofsRepo := jobproofs.NewRepository(gormDB)
	webhookRepo := paystackwebhook.NewRepository(gormDB)

	notificationsService, err := notifications.NewService(notifications.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Repo:     paymentsRepo,
		Bookings: bookingsRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	bookingsService, err := bookings.NewService(bookings.ServiceParams{
		Repo:     bookingsRepo,
		Payments: paymentsRepo,
		Tx:       dbClient,
		Notifier: notificationsService,
		Refunds:  paystackClient,
		Escrow:   cfg.Escrow,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create bookings service", err)
		os.Exit(1)
	}

	settlementService, err := settlement.NewService(settlement.ServiceParams{
		Repo:        payoutsRepo,
		Bookings:    bookingsRepo,
		Payments:    paymentsRepo,
		BankDetails: bankDetailsRepo,
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

	webhookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)
	webhookService, err := paystackwebhook.NewService(paystackwebhook.ServiceParams{
		Repo:              webhookRepo,
		Payments:          paymentsRepo,
		Bookings:          bookingsRepo,
		Payouts:           payoutsRepo,
		Notifier:          notificationsService,
		TransactionRunner: dbClient,
		Metrics:           webhookMetrics,
		Escrow:            cfg.Escrow,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	addr := ":" + cfg.App.Port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			Bookings:       bookingsService,
			Payments:       paymentsService,
			JobProofs:      jobProofsService,
			Notifications:  notificationsService,
			Settlement:     settlementService,
			Webhooks:       webhookService,
			Paystack:       paystackClient,
			WebhookMetrics: webhookMetrics,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
