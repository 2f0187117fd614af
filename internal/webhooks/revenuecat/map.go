package revenuecatwebhook

import (
	"strings"
	"time"

	"github.com/simmerworks/simmer-backend/pkg/enums"
)

const periodTypeTrial = "TRIAL"
const periodTypeIntro = "INTRO"

// MapEventType maps a RevenueCat event type to the status it proves, or nil
// when the type carries no status transition. CANCELLATION means auto-renew
// was switched off, not loss of access, so it maps to active; EXPIRATION is
// the event that actually ends access.
func MapEventType(eventType, periodType string) *enums.SubscriptionStatus {
	switch strings.ToUpper(strings.TrimSpace(eventType)) {
	case "INITIAL_PURCHASE", "RENEWAL", "PRODUCT_CHANGE", "UNCANCELLATION", "SUBSCRIPTION_EXTENDED":
		if isTrialPeriod(periodType) {
			return statusPtr(enums.SubscriptionStatusTrialing)
		}
		return statusPtr(enums.SubscriptionStatusActive)
	case "CANCELLATION":
		return statusPtr(enums.SubscriptionStatusActive)
	case "BILLING_ISSUE":
		return statusPtr(enums.SubscriptionStatusPastDue)
	case "EXPIRATION":
		return statusPtr(enums.SubscriptionStatusExpired)
	case "REFUND":
		return statusPtr(enums.SubscriptionStatusCanceled)
	default:
		return nil
	}
}

func isTrialPeriod(periodType string) bool {
	normalized := strings.ToUpper(strings.TrimSpace(periodType))
	return normalized == periodTypeTrial || normalized == periodTypeIntro
}

func statusPtr(status enums.SubscriptionStatus) *enums.SubscriptionStatus {
	return &status
}

func timeFromMillis(millis int64) *time.Time {
	if millis <= 0 {
		return nil
	}
	at := time.UnixMilli(millis).UTC()
	return &at
}
