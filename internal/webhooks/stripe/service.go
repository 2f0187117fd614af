package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v84"

	"github.com/simmerworks/simmer-backend/internal/billing"
	"github.com/simmerworks/simmer-backend/internal/identity"
	"github.com/simmerworks/simmer-backend/internal/reconcile"
	"github.com/simmerworks/simmer-backend/pkg/enums"
	pkgerrors "github.com/simmerworks/simmer-backend/pkg/errors"
	"github.com/simmerworks/simmer-backend/pkg/logger"
)

type subscriptionFetcher interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
}

type identityResolver interface {
	Resolve(ctx context.Context, event *billing.Event) (uuid.UUID, error)
}

type reconcileEngine interface {
	Apply(ctx context.Context, userID uuid.UUID, event *billing.Event) (*reconcile.Result, error)
	LinkCustomer(ctx context.Context, userID uuid.UUID, provider enums.BillingProvider, customerID string) error
}

// ServiceParams wires the Stripe webhook service.
type ServiceParams struct {
	StripeClient subscriptionFetcher
	Resolver     identityResolver
	Engine       reconcileEngine
	Logger       *logger.Logger
}

// Service turns verified Stripe deliveries into reconciled subscription
// state.
type Service struct {
	stripe   subscriptionFetcher
	resolver identityResolver
	engine   reconcileEngine
	logg     *logger.Logger
}

// NewService validates dependencies and constructs the service.
func NewService(params ServiceParams) (*Service, error) {
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.Resolver == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "identity resolver required")
	}
	if params.Engine == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconcile engine required")
	}
	return &Service{
		stripe:   params.StripeClient,
		resolver: params.Resolver,
		engine:   params.Engine,
		logg:     params.Logger,
	}, nil
}

// HandleEvent routes one verified event by type. Unhandled types and events
// this system cannot act on return an ignored outcome so Stripe receives a
// 200 and stops retrying.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) (*billing.Outcome, error) {
	if event == nil || event.Data == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		return s.handleCheckoutCompleted(ctx, event)
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		return s.syncSubscription(ctx, &stripeSub, event.Data.Raw, event)
	case stripe.EventTypeInvoicePaymentSucceeded:
		subscriptionID := invoiceSubscriptionID(event)
		if subscriptionID == "" {
			return billing.Ignore(billing.ReasonNoSubscriptionID), nil
		}
		stripeSub, err := s.stripe.GetSubscription(ctx, subscriptionID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
		}
		return s.syncSubscription(ctx, stripeSub, subscriptionRaw(stripeSub), event)
	case stripe.EventTypeInvoicePaymentFailed:
		return s.handlePaymentFailed(ctx, event)
	default:
		return billing.Ignore(billing.ReasonEventNotHandled), nil
	}
}

// handleCheckoutCompleted links the Stripe customer to the user who checked
// out, then syncs the created subscription. Sessions without a subscription
// (one-off payments) only get the link.
func (s *Service) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) (*billing.Outcome, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}

	customerID := ""
	if session.Customer != nil {
		customerID = session.Customer.ID
	}
	subscriptionID := ""
	if session.Subscription != nil {
		subscriptionID = session.Subscription.ID
	}

	checkoutEvent := &billing.Event{
		Provider:          enums.BillingProviderStripe,
		ProviderEventID:   event.ID,
		ProviderEventType: string(event.Type),
		MetadataUserID:    checkoutUserID(&session),
		CustomerID:        customerID,
		SubscriptionID:    subscriptionID,
	}

	userID, err := s.resolver.Resolve(ctx, checkoutEvent)
	if err != nil {
		if errors.Is(err, identity.ErrUnresolvedUser) {
			s.warnUnmapped(ctx, event)
			return billing.Ignore(billing.ReasonUnmappedUser), nil
		}
		return nil, err
	}

	if customerID != "" {
		if err := s.engine.LinkCustomer(ctx, userID, enums.BillingProviderStripe, customerID); err != nil {
			return nil, err
		}
	}

	if subscriptionID == "" {
		return billing.Ignore(billing.ReasonNoSubscriptionID), nil
	}
	stripeSub, err := s.stripe.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
	}
	return s.syncSubscription(ctx, stripeSub, subscriptionRaw(stripeSub), event)
}

// handlePaymentFailed marks the subscriber past_due straight from the
// invoice. The subscription object may already reflect a later state, so the
// invoice itself is treated as the evidence here and nothing is fetched.
func (s *Service) handlePaymentFailed(ctx context.Context, event *stripe.Event) (*billing.Outcome, error) {
	status := enums.SubscriptionStatusPastDue
	normalized := &billing.Event{
		Provider:          enums.BillingProviderStripe,
		ProviderEventID:   event.ID,
		ProviderEventType: string(event.Type),
		CustomerID:        event.GetObjectValue("customer"),
		SubscriptionID:    invoiceSubscriptionID(event),
		TargetStatus:      &status,
	}
	return s.applyResolved(ctx, normalized, event)
}

func (s *Service) syncSubscription(ctx context.Context, stripeSub *stripe.Subscription, raw []byte, event *stripe.Event) (*billing.Outcome, error) {
	if stripeSub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription is required")
	}
	normalized := eventFromSubscription(stripeSub, raw, event.ID, string(event.Type))
	return s.applyResolved(ctx, normalized, event)
}

func (s *Service) applyResolved(ctx context.Context, normalized *billing.Event, event *stripe.Event) (*billing.Outcome, error) {
	userID, err := s.resolver.Resolve(ctx, normalized)
	if err != nil {
		if errors.Is(err, identity.ErrUnresolvedUser) {
			s.warnUnmapped(ctx, event)
			return billing.Ignore(billing.ReasonUnmappedUser), nil
		}
		return nil, err
	}

	if normalized.CustomerID != "" {
		if err := s.engine.LinkCustomer(ctx, userID, enums.BillingProviderStripe, normalized.CustomerID); err != nil {
			return nil, err
		}
	}

	result, err := s.engine.Apply(ctx, userID, normalized)
	if err != nil {
		return nil, err
	}
	if !result.Applied {
		return billing.Ignore(result.Ignored), nil
	}
	return &billing.Outcome{UserID: userID.String(), Status: result.Status}, nil
}

func (s *Service) warnUnmapped(ctx context.Context, event *stripe.Event) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"provider":   enums.BillingProviderStripe.String(),
		"event_id":   event.ID,
		"event_type": string(event.Type),
	})
	s.logg.Warn(ctx, "stripe event references no known user")
}

// checkoutUserID prefers the user id stamped into session metadata at
// checkout creation, falling back to client_reference_id.
func checkoutUserID(session *stripe.CheckoutSession) string {
	if session.Metadata != nil {
		if id := strings.TrimSpace(session.Metadata["user_id"]); id != "" {
			return id
		}
	}
	return strings.TrimSpace(session.ClientReferenceID)
}

// invoiceSubscriptionID digs the subscription id out of an invoice event,
// checking the modern parent location first and the legacy top-level field
// second.
func invoiceSubscriptionID(event *stripe.Event) string {
	if id := event.GetObjectValue("parent", "subscription_details", "subscription"); id != "" {
		return id
	}
	return event.GetObjectValue("subscription")
}
