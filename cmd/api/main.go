package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/simmerworks/simmer-backend/api/routes"
	"github.com/simmerworks/simmer-backend/internal/audit"
	"github.com/simmerworks/simmer-backend/internal/entitlements"
	"github.com/simmerworks/simmer-backend/internal/identity"
	"github.com/simmerworks/simmer-backend/internal/reconcile"
	"github.com/simmerworks/simmer-backend/internal/subscribers"
	"github.com/simmerworks/simmer-backend/internal/subscriptions"
	"github.com/simmerworks/simmer-backend/internal/users"
	revenuecatwebhook "github.com/simmerworks/simmer-backend/internal/webhooks/revenuecat"
	stripewebhook "github.com/simmerworks/simmer-backend/internal/webhooks/stripe"
	"github.com/simmerworks/simmer-backend/pkg/config"
	"github.com/simmerworks/simmer-backend/pkg/db"
	"github.com/simmerworks/simmer-backend/pkg/logger"
	"github.com/simmerworks/simmer-backend/pkg/metrics"
	"github.com/simmerworks/simmer-backend/pkg/migrate"
	"github.com/simmerworks/simmer-backend/pkg/redis"
	"github.com/simmerworks/simmer-backend/pkg/revenuecat"
	"github.com/simmerworks/simmer-backend/pkg/stripe"
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

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe client", err)
		os.Exit(1)
	}

	revenuecatClient, err := revenuecat.NewClient(context.Background(), cfg.RevenueCat, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap revenuecat client", err)
		os.Exit(1)
	}

	subscriptionsRepo := subscriptions.NewRepository(dbClient.DB())
	auditRepo := audit.NewRepository(dbClient.DB())
	entitlementsRepo := entitlements.NewRepository(dbClient.DB())
	usersRepo := users.NewRepository(dbClient.DB())

	engine, err := reconcile.NewEngine(subscriptionsRepo, auditRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile engine", err)
		os.Exit(1)
	}
	resolver, err := identity.NewResolver(subscriptionsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create identity resolver", err)
		os.Exit(1)
	}

	stripeWebhooks, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		StripeClient: stripeClient,
		Resolver:     resolver,
		Engine:       engine,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	revenuecatWebhooks, err := revenuecatwebhook.NewService(revenuecatwebhook.ServiceParams{
		Client:   revenuecatClient,
		Resolver: resolver,
		Engine:   engine,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create revenuecat webhook service", err)
		os.Exit(1)
	}

	entitlementsService, err := entitlements.NewService(entitlements.ServiceParams{
		Subscriptions: subscriptionsRepo,
		Entitlements:  entitlementsRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create entitlements service", err)
		os.Exit(1)
	}

	subscribersService, err := subscribers.NewService(subscribers.ServiceParams{
		Repo:          subscribers.NewRepository(dbClient.DB()),
		Users:         usersRepo,
		Entitlements:  entitlementsRepo,
		Subscriptions: subscriptionsRepo,
		Audit:         auditRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscribers service", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:            cfg,
			Logger:            logg,
			DBPinger:          dbClient,
			RedisClient:       redisClient,
			StripeClient:      stripeClient,
			RevenueCatClient:  revenuecatClient,
			StripeWebhooks:    stripeWebhooks,
			RevenueCatWebhook: revenuecatWebhooks,
			Entitlements:      entitlementsService,
			Subscribers:       subscribersService,
			WebhookMetrics:    webhookMetrics,
			MetricsRegistry:   registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
