package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/simmerworks/simmer-backend/api/responses"
	"github.com/simmerworks/simmer-backend/internal/billing"
	revenuecatwebhook "github.com/simmerworks/simmer-backend/internal/webhooks/revenuecat"
	"github.com/simmerworks/simmer-backend/pkg/enums"
	pkgerrors "github.com/simmerworks/simmer-backend/pkg/errors"
	"github.com/simmerworks/simmer-backend/pkg/logger"
	"github.com/simmerworks/simmer-backend/pkg/metrics"
)

type RevenueCatWebhookService interface {
	HandleEvent(ctx context.Context, payload *revenuecatwebhook.WebhookPayload) (*billing.Outcome, error)
}

type revenueCatClient interface {
	WebhookSecret() string
	VerifySecret(presented string) bool
}

// RevenueCatWebhook authenticates the shared-secret header, then hands the
// parsed payload to the webhook service. RevenueCat sends the secret either
// as a bearer Authorization header or as X-RevenueCat-Secret.
func RevenueCatWebhook(svc RevenueCatWebhookService, client revenueCatClient, m *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	provider := enums.BillingProviderRevenueCat.String()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()
		defer observeDuration(m, provider, start)

		if svc == nil || client == nil {
			incOutcome(m, provider, metrics.OutcomeFailed)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client.WebhookSecret() == "" {
			incOutcome(m, provider, metrics.OutcomeFailed)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeMisconfigured, "revenuecat webhook secret not configured"))
			return
		}

		if !client.VerifySecret(presentedSecret(r)) {
			incOutcome(m, provider, metrics.OutcomeUnauthenticated)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook credentials"))
			return
		}

		var payload revenuecatwebhook.WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			incOutcome(m, provider, metrics.OutcomeInvalid)
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload"))
			return
		}
		if payload.Event == nil {
			incOutcome(m, provider, metrics.OutcomeInvalid)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event payload required"))
			return
		}

		if logg != nil {
			ctx = logg.WithProvider(ctx, provider)
			ctx = logg.WithFields(ctx, map[string]any{
				"event_id":   payload.Event.ID,
				"event_type": payload.Event.Type,
			})
		}

		outcome, err := svc.HandleEvent(ctx, &payload)
		if err != nil {
			incOutcome(m, provider, metrics.OutcomeFailed)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		writeAck(w, m, provider, logg, ctx, outcome)
	}
}

func presentedSecret(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	if raw != "" {
		return raw
	}
	return strings.TrimSpace(r.Header.Get("X-RevenueCat-Secret"))
}
