package revenuecatwebhook

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/simmerworks/simmer-backend/internal/billing"
	"github.com/simmerworks/simmer-backend/internal/identity"
	"github.com/simmerworks/simmer-backend/internal/reconcile"
	"github.com/simmerworks/simmer-backend/pkg/enums"
	pkgerrors "github.com/simmerworks/simmer-backend/pkg/errors"
	"github.com/simmerworks/simmer-backend/pkg/logger"
)

// WebhookPayload is the body RevenueCat posts; the interesting part is nested
// under "event".
type WebhookPayload struct {
	Event *WebhookEvent `json:"event"`
}

// WebhookEvent carries the fields this service reads from a RevenueCat event.
type WebhookEvent struct {
	ID                string   `json:"id"`
	Type              string   `json:"type"`
	AppUserID         string   `json:"app_user_id"`
	OriginalAppUserID string   `json:"original_app_user_id"`
	Aliases           []string `json:"aliases"`
	EntitlementIDs    []string `json:"entitlement_ids"`
	PeriodType        string   `json:"period_type"`
	ExpirationAtMS    int64    `json:"expiration_at_ms"`
	PurchasedAtMS     int64    `json:"purchased_at_ms"`
	ProductID         string   `json:"product_id"`
	TransactionID     string   `json:"transaction_id"`
}

type entitlementScope interface {
	EntitlementID() string
}

type identityResolver interface {
	Resolve(ctx context.Context, event *billing.Event) (uuid.UUID, error)
}

type reconcileEngine interface {
	Apply(ctx context.Context, userID uuid.UUID, event *billing.Event) (*reconcile.Result, error)
}

// ServiceParams wires the RevenueCat webhook service.
type ServiceParams struct {
	Client   entitlementScope
	Resolver identityResolver
	Engine   reconcileEngine
	Logger   *logger.Logger
}

// Service turns authenticated RevenueCat deliveries into reconciled
// subscription state.
type Service struct {
	client   entitlementScope
	resolver identityResolver
	engine   reconcileEngine
	logg     *logger.Logger
}

// NewService validates dependencies and constructs the service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "revenuecat client required")
	}
	if params.Resolver == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "identity resolver required")
	}
	if params.Engine == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconcile engine required")
	}
	return &Service{
		client:   params.Client,
		resolver: params.Resolver,
		engine:   params.Engine,
		logg:     params.Logger,
	}, nil
}

// HandleEvent normalizes, resolves, and applies one delivery. Ignored
// outcomes are acknowledged with 200 upstream so RevenueCat stops retrying
// events this system will never act on.
func (s *Service) HandleEvent(ctx context.Context, payload *WebhookPayload) (*billing.Outcome, error) {
	if payload == nil || payload.Event == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event payload required")
	}

	event := Normalize(payload.Event, s.client.EntitlementID())

	if event.OutOfScope {
		return billing.Ignore(billing.ReasonNonTargetEntitlement), nil
	}

	userID, err := s.resolver.Resolve(ctx, event)
	if err != nil {
		if errors.Is(err, identity.ErrUnresolvedUser) {
			if s.logg != nil {
				ctx = s.logg.WithFields(ctx, map[string]any{
					"provider":   enums.BillingProviderRevenueCat.String(),
					"event_id":   event.ProviderEventID,
					"event_type": event.ProviderEventType,
				})
				s.logg.Warn(ctx, "revenuecat event references no known user")
			}
			return billing.Ignore(billing.ReasonUnmappedUser), nil
		}
		return nil, err
	}

	result, err := s.engine.Apply(ctx, userID, event)
	if err != nil {
		return nil, err
	}
	if !result.Applied {
		return billing.Ignore(result.Ignored), nil
	}

	return &billing.Outcome{UserID: userID.String(), Status: result.Status}, nil
}

// Normalize maps the raw event into the provider-agnostic form. The
// entitlement filter marks an event out of scope only when the event names
// entitlements and none of them is the tracked one. Events without
// entitlement ids stay in scope, as does everything when no tracked id is
// configured.
func Normalize(event *WebhookEvent, trackedEntitlementID string) *billing.Event {
	normalized := &billing.Event{
		Provider:          enums.BillingProviderRevenueCat,
		ProviderEventID:   strings.TrimSpace(event.ID),
		ProviderEventType: strings.TrimSpace(event.Type),
		MetadataUserID:    strings.TrimSpace(event.AppUserID),
		CustomerID:        firstNonEmpty(event.AppUserID, event.OriginalAppUserID),
		SubscriptionID:    firstNonEmpty(event.ProductID, event.TransactionID),
		OutOfScope:        !targetsTrackedEntitlement(event.EntitlementIDs, trackedEntitlementID),
	}

	if alias := strings.TrimSpace(event.OriginalAppUserID); alias != "" {
		normalized.AliasUserIDs = append(normalized.AliasUserIDs, alias)
	}
	for _, alias := range event.Aliases {
		if trimmed := strings.TrimSpace(alias); trimmed != "" {
			normalized.AliasUserIDs = append(normalized.AliasUserIDs, trimmed)
		}
	}

	normalized.TargetStatus = MapEventType(event.Type, event.PeriodType)

	periodEndsAt := timeFromMillis(event.ExpirationAtMS)
	normalized.PeriodEndsAt = periodEndsAt
	if normalized.TargetStatus != nil && *normalized.TargetStatus == enums.SubscriptionStatusTrialing {
		normalized.TrialEndsAt = periodEndsAt
	}

	return normalized
}

func targetsTrackedEntitlement(entitlementIDs []string, trackedID string) bool {
	trackedID = strings.TrimSpace(trackedID)
	if trackedID == "" {
		return true
	}
	named := false
	for _, id := range entitlementIDs {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		named = true
		if trimmed == trackedID {
			return true
		}
	}
	return !named
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
