package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/simmerworks/simmer-backend/api/responses"
	"github.com/simmerworks/simmer-backend/pkg/config"
	"github.com/simmerworks/simmer-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is any dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Simmer-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when every wired dependency answers a ping.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Simmer-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		healthy := true

		checks["database"] = pingStatus(ctx, logg, "database", dbP, &healthy)
		checks["redis"] = pingStatus(ctx, logg, "redis", redisP, &healthy)

		if !healthy {
			responses.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "degraded",
				"checks": checks,
			})
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"status": "ready",
			"checks": checks,
		})
	}
}

func pingStatus(ctx context.Context, logg *logger.Logger, name string, p Pinger, healthy *bool) string {
	if p == nil {
		return "skipped"
	}
	if err := p.Ping(ctx); err != nil {
		*healthy = false
		if logg != nil {
			logg.Error(logg.WithField(ctx, "check", name), "readiness check failed", err)
		}
		return "down"
	}
	return "ok"
}
