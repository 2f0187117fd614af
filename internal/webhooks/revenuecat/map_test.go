package revenuecatwebhook

import (
	"testing"

	"github.com/simmerworks/simmer-backend/pkg/enums"
)

func TestMapEventType(t *testing.T) {
	active := enums.SubscriptionStatusActive
	trialing := enums.SubscriptionStatusTrialing
	pastDue := enums.SubscriptionStatusPastDue
	expired := enums.SubscriptionStatusExpired
	canceled := enums.SubscriptionStatusCanceled

	cases := []struct {
		eventType  string
		periodType string
		want       *enums.SubscriptionStatus
	}{
		{"INITIAL_PURCHASE", "NORMAL", &active},
		{"INITIAL_PURCHASE", "TRIAL", &trialing},
		{"INITIAL_PURCHASE", "INTRO", &trialing},
		{"RENEWAL", "NORMAL", &active},
		{"RENEWAL", "TRIAL", &trialing},
		{"PRODUCT_CHANGE", "NORMAL", &active},
		{"UNCANCELLATION", "NORMAL", &active},
		{"SUBSCRIPTION_EXTENDED", "NORMAL", &active},
		// Auto-renew toggled off: access continues until EXPIRATION.
		{"CANCELLATION", "NORMAL", &active},
		{"BILLING_ISSUE", "NORMAL", &pastDue},
		{"EXPIRATION", "NORMAL", &expired},
		{"REFUND", "NORMAL", &canceled},
		{"TRANSFER", "NORMAL", nil},
		{"SUBSCRIBER_ALIAS", "NORMAL", nil},
		{"TEST", "NORMAL", nil},
		{"", "NORMAL", nil},
	}

	for _, tc := range cases {
		t.Run(tc.eventType+"/"+tc.periodType, func(t *testing.T) {
			got := MapEventType(tc.eventType, tc.periodType)
			if (got == nil) != (tc.want == nil) {
				t.Fatalf("MapEventType(%q, %q) = %v, want %v", tc.eventType, tc.periodType, got, tc.want)
			}
			if got != nil && *got != *tc.want {
				t.Fatalf("MapEventType(%q, %q) = %s, want %s", tc.eventType, tc.periodType, *got, *tc.want)
			}
		})
	}
}

func TestNormalize_TrialEndOnlyWhenTrialing(t *testing.T) {
	event := &WebhookEvent{
		Type:           "RENEWAL",
		PeriodType:     "TRIAL",
		AppUserID:      "user-1",
		ExpirationAtMS: 1767225600000,
	}
	normalized := Normalize(event, "")
	if normalized.TrialEndsAt == nil {
		t.Fatalf("trial renewal must carry trial end")
	}
	if normalized.PeriodEndsAt == nil || !normalized.PeriodEndsAt.Equal(*normalized.TrialEndsAt) {
		t.Fatalf("trial end and period end must agree for trial periods")
	}

	event.PeriodType = "NORMAL"
	normalized = Normalize(event, "")
	if normalized.TrialEndsAt != nil {
		t.Fatalf("paid renewal must not carry trial end")
	}
	if normalized.PeriodEndsAt == nil {
		t.Fatalf("paid renewal keeps the period end")
	}
}

func TestNormalize_EntitlementScope(t *testing.T) {
	cases := []struct {
		name       string
		ids        []string
		tracked    string
		outOfScope bool
	}{
		{"tracked entitlement named", []string{"premium"}, "premium", false},
		{"among several", []string{"other", "premium"}, "premium", false},
		{"different entitlement only", []string{"other"}, "premium", true},
		{"no entitlements on event", nil, "premium", false},
		{"scoping disabled", []string{"anything"}, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			normalized := Normalize(&WebhookEvent{Type: "RENEWAL", EntitlementIDs: tc.ids}, tc.tracked)
			if normalized.OutOfScope != tc.outOfScope {
				t.Fatalf("OutOfScope = %v, want %v", normalized.OutOfScope, tc.outOfScope)
			}
		})
	}
}

func TestNormalize_IdentifierFallbacks(t *testing.T) {
	normalized := Normalize(&WebhookEvent{
		Type:              "EXPIRATION",
		AppUserID:         "",
		OriginalAppUserID: "orig-user",
		Aliases:           []string{"alias-1", ""},
		TransactionID:     "txn_1",
	}, "")

	if normalized.CustomerID != "orig-user" {
		t.Fatalf("expected original app user id as customer fallback, got %q", normalized.CustomerID)
	}
	if normalized.SubscriptionID != "txn_1" {
		t.Fatalf("expected transaction id as subscription fallback, got %q", normalized.SubscriptionID)
	}
	if len(normalized.AliasUserIDs) != 2 {
		t.Fatalf("expected original id and alias collected, got %v", normalized.AliasUserIDs)
	}
}
