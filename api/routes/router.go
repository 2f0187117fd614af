package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/simmerworks/simmer-backend/api/controllers"
	webhookcontrollers "github.com/simmerworks/simmer-backend/api/controllers/webhooks"
	"github.com/simmerworks/simmer-backend/api/middleware"
	"github.com/simmerworks/simmer-backend/internal/entitlements"
	"github.com/simmerworks/simmer-backend/internal/subscribers"
	revenuecatwebhook "github.com/simmerworks/simmer-backend/internal/webhooks/revenuecat"
	stripewebhook "github.com/simmerworks/simmer-backend/internal/webhooks/stripe"
	"github.com/simmerworks/simmer-backend/pkg/config"
	"github.com/simmerworks/simmer-backend/pkg/enums"
	"github.com/simmerworks/simmer-backend/pkg/logger"
	"github.com/simmerworks/simmer-backend/pkg/metrics"
	pkgredis "github.com/simmerworks/simmer-backend/pkg/redis"
	pkgrevenuecat "github.com/simmerworks/simmer-backend/pkg/revenuecat"
	pkgstripe "github.com/simmerworks/simmer-backend/pkg/stripe"
)

// RouterParams carries everything the HTTP surface needs.
type RouterParams struct {
	Config            *config.Config
	Logger            *logger.Logger
	DBPinger          controllers.Pinger
	RedisClient       *pkgredis.Client
	StripeClient      *pkgstripe.Client
	RevenueCatClient  *pkgrevenuecat.Client
	StripeWebhooks    *stripewebhook.Service
	RevenueCatWebhook *revenuecatwebhook.Service
	Entitlements      *entitlements.Service
	Subscribers       *subscribers.Service
	WebhookMetrics    *metrics.WebhookMetrics
	MetricsRegistry   *prometheus.Registry
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DBPinger, redisPinger(p.RedisClient)))
	})

	if p.MetricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.MetricsRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.StripeWebhooks, p.StripeClient, p.WebhookMetrics, logg))
		r.Post("/revenuecat", webhookcontrollers.RevenueCatWebhook(p.RevenueCatWebhook, p.RevenueCatClient, p.WebhookMetrics, logg))
	})

	r.Route("/api/v1/me", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/access", controllers.MyAccess(p.Entitlements, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.AppRoleOwner, logg))
		r.Use(middleware.Idempotency(idempotencyStore(p.RedisClient), logg))
		r.Route("/subscribers", func(r chi.Router) {
			r.Get("/", controllers.AdminListSubscribers(p.Subscribers, logg))
			r.Post("/{userId}/grant-enterprise", controllers.AdminGrantEnterprise(p.Subscribers, logg))
			r.Post("/{userId}/revoke-enterprise", controllers.AdminRevokeEnterprise(p.Subscribers, logg))
			r.Post("/{userId}/subscription-status", controllers.AdminSetSubscriptionStatus(p.Subscribers, logg))
			r.Get("/{userId}/audit", controllers.AdminSubscriberAudit(p.Subscribers, logg))
		})
	})

	return r
}

// redisPinger keeps a typed nil from reaching the readiness probe as a
// non-nil interface.
func redisPinger(client *pkgredis.Client) controllers.Pinger {
	if client == nil {
		return nil
	}
	return client
}

func idempotencyStore(client *pkgredis.Client) pkgredis.IdempotencyStore {
	if client == nil {
		return nil
	}
	return client
}
