package reconcile

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/simmerworks/simmer-backend/internal/billing"
	"github.com/simmerworks/simmer-backend/pkg/db/models"
	"github.com/simmerworks/simmer-backend/pkg/enums"
	pkgerrors "github.com/simmerworks/simmer-backend/pkg/errors"
)

// SubscriptionStore is the persistence surface the engine writes through.
type SubscriptionStore interface {
	Upsert(ctx context.Context, record *models.UserSubscription) error
	UpsertCustomerLink(ctx context.Context, userID uuid.UUID, provider enums.BillingProvider, customerID string) error
}

// AuditAppender records why a state change happened.
type AuditAppender interface {
	Append(ctx context.Context, entry *models.AuditLogEntry) error
}

// Engine applies normalized billing events to the canonical per-user
// subscription record.
//
// Webhook delivery is at-least-once and unordered, and events carry no
// sequence that is monotonic across providers, so the engine does not order
// by event time. Each accepted event is an idempotent upsert of the truth as
// that provider currently sees it: the persisted record always reflects the
// most recently processed event, and concurrent writes resolve to whichever
// upsert lands last. Duplicate deliveries are not deduplicated by event id;
// reapplying an event produces the same record plus one extra audit row.
type Engine struct {
	subs  SubscriptionStore
	audit AuditAppender
}

// Result reports what the engine did with an event.
type Result struct {
	Applied bool
	Ignored string
	Status  enums.SubscriptionStatus
}

// NewEngine wires the engine to its stores.
func NewEngine(subs SubscriptionStore, audit AuditAppender) (*Engine, error) {
	if subs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription store required")
	}
	if audit == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "audit appender required")
	}
	return &Engine{subs: subs, audit: audit}, nil
}

type auditMetadata struct {
	Provider             string     `json:"provider"`
	EventID              string     `json:"event_id,omitempty"`
	EventType            string     `json:"event_type,omitempty"`
	SubscriptionStatus   string     `json:"subscription_status"`
	ProviderCustomerID   string     `json:"provider_customer_id,omitempty"`
	ProviderSubscription string     `json:"provider_subscription_id,omitempty"`
	TrialEndsAt          *time.Time `json:"trial_ends_at,omitempty"`
	PeriodEndsAt         *time.Time `json:"current_period_ends_at,omitempty"`
}

// Apply writes the event's target state for the resolved user. Out-of-scope
// and unmapped events are a no-op, never an error. The record upsert and the
// audit append are two operations: when the audit append fails after the
// upsert succeeded, the error propagates so the provider redelivers the whole
// event. That redelivery is safe because the upsert is idempotent; the cost
// is a possible duplicate audit row, which is accepted to keep the trail
// lossless.
func (e *Engine) Apply(ctx context.Context, userID uuid.UUID, event *billing.Event) (*Result, error) {
	if event == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "billing event required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	if event.OutOfScope {
		return &Result{Ignored: billing.ReasonNonTargetEntitlement}, nil
	}
	if event.TargetStatus == nil {
		return &Result{Ignored: billing.ReasonEventNotMapped}, nil
	}

	status := *event.TargetStatus
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown target status")
	}

	record := &models.UserSubscription{
		UserID:                 userID,
		Status:                 status,
		TrialEndsAt:            event.TrialEndsAt,
		CurrentPeriodEndsAt:    event.PeriodEndsAt,
		Provider:               event.Provider,
		ProviderCustomerID:     optionalString(event.CustomerID),
		ProviderSubscriptionID: optionalString(event.SubscriptionID),
	}

	if err := e.subs.Upsert(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert subscription record")
	}

	metadata, err := json.Marshal(auditMetadata{
		Provider:             event.Provider.String(),
		EventID:              event.ProviderEventID,
		EventType:            event.ProviderEventType,
		SubscriptionStatus:   status.String(),
		ProviderCustomerID:   event.CustomerID,
		ProviderSubscription: event.SubscriptionID,
		TrialEndsAt:          event.TrialEndsAt,
		PeriodEndsAt:         event.PeriodEndsAt,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode audit metadata")
	}

	reason := event.Provider.String() + "_webhook"
	entry := &models.AuditLogEntry{
		ActorUserID:  nil,
		TargetUserID: userID,
		Action:       enums.AuditActionSetSubscriptionStatus,
		Reason:       &reason,
		Metadata:     metadata,
	}
	if err := e.audit.Append(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append audit entry")
	}

	return &Result{Applied: true, Status: status}, nil
}

// LinkCustomer records the provider-customer-to-user association so future
// webhooks carrying only the customer id can be resolved. No audit entry is
// written; the link by itself changes no entitlement-relevant state.
func (e *Engine) LinkCustomer(ctx context.Context, userID uuid.UUID, provider enums.BillingProvider, customerID string) error {
	customerID = strings.TrimSpace(customerID)
	if userID == uuid.Nil || customerID == "" {
		return nil
	}
	if err := e.subs.UpsertCustomerLink(ctx, userID, provider, customerID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert customer link")
	}
	return nil
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
