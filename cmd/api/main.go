package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/telestars/premium-backend/api/routes"
	"github.com/telestars/premium-backend/internal/auth"
	"github.com/telestars/premium-backend/internal/fulfillment"
	"github.com/telestars/premium-backend/internal/intake"
	"github.com/telestars/premium-backend/internal/notifications"
	"github.com/telestars/premium-backend/internal/orders"
	"github.com/telestars/premium-backend/internal/payments"
	"github.com/telestars/premium-backend/internal/settings"
	"github.com/telestars/premium-backend/pkg/callinoo"
	"github.com/telestars/premium-backend/pkg/config"
	"github.com/telestars/premium-backend/pkg/db"
	"github.com/telestars/premium-backend/pkg/logger"
	"github.com/telestars/premium-backend/pkg/metrics"
	"github.com/telestars/premium-backend/pkg/migrate"
	"github.com/telestars/premium-backend/pkg/nowpayments"
	"github.com/telestars/premium-backend/pkg/redis"
	"github.com/telestars/premium-backend/pkg/telegram"
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

	telegramClient, err := telegram.NewClient(cfg.Telegram.BotToken,
		telegram.WithBaseURL(cfg.Telegram.BaseURL),
		telegram.WithHTTPClient(&http.Client{Timeout: cfg.Telegram.CallTimeout}),
		telegram.WithMaxRetries(cfg.Telegram.MaxRetries),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create telegram client", err)
		os.Exit(1)
	}

	nowpaymentsClient, err := nowpayments.NewClient(cfg.NowPayments.APIKey,
		nowpayments.WithBaseURL(cfg.NowPayments.BaseURL),
		nowpayments.WithHTTPClient(&http.Client{Timeout: cfg.NowPayments.CallTimeout}),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create nowpayments client", err)
		os.Exit(1)
	}

	callinooClient, err := callinoo.NewClient(cfg.Callinoo.Token,
		callinoo.WithBaseURL(cfg.Callinoo.BaseURL),
		callinoo.WithHTTPClient(&http.Client{Timeout: cfg.Callinoo.CallTimeout}),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create callinoo client", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())

	settingsService, err := settings.NewService(settings.ServiceParams{
		Repo:   settings.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settings service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.ServiceParams{
		Sender:    telegramClient,
		Customers: ordersRepo,
		Settings:  settingsService,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Repo:              ordersRepo,
		TransactionRunner: dbClient,
		Settings:          settingsService,
		Notifier:          notificationsService,
		Idempotency:       redisClient,
		Metrics:           metrics.NewPaymentMetrics(prometheus.DefaultRegisterer),
		Config:            cfg.NowPayments,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:              ordersRepo,
		TransactionRunner: dbClient,
		Payments:          nowpaymentsClient,
		Settings:          settingsService,
		OrdersConfig:      cfg.Orders,
		PaymentsConfig:    cfg.NowPayments,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	intakeService, err := intake.NewService(intake.ServiceParams{
		Store:    redisClient,
		Orders:   ordersService,
		Settings: settingsService,
		Config:   cfg.Intake,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create intake service", err)
		os.Exit(1)
	}

	fulfillmentService, err := fulfillment.NewService(fulfillment.ServiceParams{
		Repo:              ordersRepo,
		TransactionRunner: dbClient,
		Settings:          settingsService,
		Notifier:          notificationsService,
		Automatic:         fulfillment.NewAutomaticFulfiller(callinooClient, cfg.Callinoo.CallTimeout),
		Balance:           callinooClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create fulfillment service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		Repo:      auth.NewRepository(dbClient.DB()),
		JWTConfig: cfg.JWT,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			Auth:        authService,
			Orders:      ordersService,
			Intake:      intakeService,
			Payments:    paymentsService,
			Fulfillment: fulfillmentService,
			Settings:    settingsService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
