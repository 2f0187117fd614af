package webhooks

import (
	"context"
	"io"
	"net/http"
	"time"

	stripe "github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/simmerworks/simmer-backend/api/responses"
	"github.com/simmerworks/simmer-backend/internal/billing"
	"github.com/simmerworks/simmer-backend/pkg/enums"
	pkgerrors "github.com/simmerworks/simmer-backend/pkg/errors"
	"github.com/simmerworks/simmer-backend/pkg/logger"
	"github.com/simmerworks/simmer-backend/pkg/metrics"
	"github.com/simmerworks/simmer-backend/pkg/types"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) (*billing.Outcome, error)
}

type stripeClient interface {
	SigningSecret() string
}

// StripeWebhook verifies the delivery signature, then hands the event to the
// webhook service. Signature failures are 401 so a misconfigured or hostile
// sender is visible in provider dashboards; processing failures are 500 so
// Stripe redelivers.
func StripeWebhook(svc StripeWebhookService, client stripeClient, m *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	provider := enums.BillingProviderStripe.String()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()
		defer observeDuration(m, provider, start)

		if svc == nil || client == nil {
			incOutcome(m, provider, metrics.OutcomeFailed)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client.SigningSecret() == "" {
			incOutcome(m, provider, metrics.OutcomeFailed)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeMisconfigured, "stripe webhook secret not configured"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			incOutcome(m, provider, metrics.OutcomeFailed)
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			incOutcome(m, provider, metrics.OutcomeUnauthenticated)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "stripe signature missing"))
			return
		}

		event, err := webhook.ConstructEvent(payload, sigHeader, client.SigningSecret())
		if err != nil {
			incOutcome(m, provider, metrics.OutcomeUnauthenticated)
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "verify signature"))
			return
		}

		if logg != nil {
			ctx = logg.WithProvider(ctx, provider)
			ctx = logg.WithFields(ctx, map[string]any{
				"event_id":   event.ID,
				"event_type": string(event.Type),
			})
		}

		outcome, err := svc.HandleEvent(ctx, &event)
		if err != nil {
			incOutcome(m, provider, metrics.OutcomeFailed)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		writeAck(w, m, provider, logg, ctx, outcome)
	}
}

func writeAck(w http.ResponseWriter, m *metrics.WebhookMetrics, provider string, logg *logger.Logger, ctx context.Context, outcome *billing.Outcome) {
	ack := types.WebhookAck{OK: true}
	if outcome.Applied() {
		incOutcome(m, provider, metrics.OutcomeApplied)
		ack.UserID = outcome.UserID
		ack.SubscriptionStatus = outcome.Status.String()
		if logg != nil {
			logg.Info(logg.WithField(ctx, "subscription_status", ack.SubscriptionStatus), "webhook event applied")
		}
	} else {
		incOutcome(m, provider, metrics.OutcomeIgnored)
		ack.Ignored = outcome.Ignored
		if logg != nil {
			logg.Info(logg.WithField(ctx, "ignored", outcome.Ignored), "webhook event ignored")
		}
	}
	responses.WriteJSON(w, http.StatusOK, ack)
}

func observeDuration(m *metrics.WebhookMetrics, provider string, start time.Time) {
	if m != nil {
		m.ObserveDuration(provider, time.Since(start))
	}
}

func incOutcome(m *metrics.WebhookMetrics, provider, outcome string) {
	if m != nil {
		m.IncOutcome(provider, outcome)
	}
}
