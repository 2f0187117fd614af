package stripewebhook

import (
	"encoding/json"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v84"

	"github.com/simmerworks/simmer-backend/internal/billing"
	"github.com/simmerworks/simmer-backend/pkg/enums"
)

// MapStatus maps every Stripe subscription status to a canonical one.
// Statuses Stripe may add later land on expired, the most conservative
// access-denying bucket.
func MapStatus(status stripe.SubscriptionStatus) enums.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusTrialing:
		return enums.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusActive:
		return enums.SubscriptionStatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncomplete:
		return enums.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return enums.SubscriptionStatusCanceled
	default:
		return enums.SubscriptionStatusExpired
	}
}

// eventFromSubscription builds the provider-agnostic event for a full
// subscription snapshot, whether it arrived embedded in the webhook or was
// fetched from the API. raw is the subscription JSON the snapshot was decoded
// from, consulted for fields the v84 struct no longer carries.
func eventFromSubscription(sub *stripe.Subscription, raw []byte, eventID, eventType string) *billing.Event {
	status := MapStatus(sub.Status)
	event := &billing.Event{
		Provider:          enums.BillingProviderStripe,
		ProviderEventID:   eventID,
		ProviderEventType: eventType,
		SubscriptionID:    sub.ID,
		TargetStatus:      &status,
		TrialEndsAt:       timeFromUnix(sub.TrialEnd),
		PeriodEndsAt:      subscriptionPeriodEnd(sub, raw),
	}
	if sub.Customer != nil {
		event.CustomerID = sub.Customer.ID
	}
	if sub.Metadata != nil {
		event.MetadataUserID = strings.TrimSpace(sub.Metadata["user_id"])
	}
	return event
}

// subscriptionPeriodEnd reads the current period end from the first
// subscription item, where Stripe reports it on modern API versions, then
// falls back to the top-level current_period_end that older API versions
// still deliver in the raw payload.
func subscriptionPeriodEnd(sub *stripe.Subscription, raw []byte) *time.Time {
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		if at := timeFromUnix(sub.Items.Data[0].CurrentPeriodEnd); at != nil {
			return at
		}
	}
	if len(raw) == 0 {
		return nil
	}
	var legacy struct {
		CurrentPeriodEnd int64 `json:"current_period_end"`
	}
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil
	}
	return timeFromUnix(legacy.CurrentPeriodEnd)
}

// subscriptionRaw recovers the API response body from a fetched subscription.
func subscriptionRaw(sub *stripe.Subscription) []byte {
	if sub == nil || sub.LastResponse == nil {
		return nil
	}
	return sub.LastResponse.RawJSON
}

func timeFromUnix(seconds int64) *time.Time {
	if seconds <= 0 {
		return nil
	}
	at := time.Unix(seconds, 0).UTC()
	return &at
}
