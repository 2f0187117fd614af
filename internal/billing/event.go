package billing

import (
	"time"

	"github.com/simmerworks/simmer-backend/pkg/enums"
)

// Ignore reasons surfaced to billing providers. Returning these with a 200
// stops the provider from retrying an event that will never become
// processable.
const (
	ReasonEventNotHandled      = "event_not_handled"
	ReasonEventNotMapped       = "event not mapped"
	ReasonNonTargetEntitlement = "non-target entitlement"
	ReasonUnmappedUser         = "unmapped_user"
	ReasonNoSubscriptionID     = "no_subscription_id"
)

// Event is the provider-agnostic normalization of a webhook payload. The
// normalizers fail closed: anything they cannot prove from the payload stays
// nil/empty rather than being coerced to a default.
type Event struct {
	Provider          enums.BillingProvider
	ProviderEventID   string
	ProviderEventType string

	// MetadataUserID is an internal user id embedded directly in the event
	// payload (Stripe metadata, RevenueCat app_user_id). It is trusted only
	// after strict format validation by the identity resolver.
	MetadataUserID string
	// AliasUserIDs are additional identifiers some providers attach
	// (RevenueCat original_app_user_id and aliases).
	AliasUserIDs []string

	CustomerID     string
	SubscriptionID string

	// TargetStatus is nil when the event type carries no status mapping;
	// such events are acknowledged but produce no state change.
	TargetStatus *enums.SubscriptionStatus
	TrialEndsAt  *time.Time
	PeriodEndsAt *time.Time

	// OutOfScope marks events whose entitlement identifiers do not include
	// the one entitlement this service manages.
	OutOfScope bool
}

// Outcome is what a webhook service reports back to the HTTP layer.
type Outcome struct {
	UserID  string
	Status  enums.SubscriptionStatus
	Ignored string
}

// Applied reports whether the event changed persisted state.
func (o *Outcome) Applied() bool {
	return o != nil && o.Ignored == ""
}

// Ignore builds a no-op outcome with the given reason.
func Ignore(reason string) *Outcome {
	return &Outcome{Ignored: reason}
}
