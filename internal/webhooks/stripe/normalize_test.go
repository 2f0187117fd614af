package stripewebhook

import (
	"encoding/json"
	"testing"
	"time"

	stripe "github.com/stripe/stripe-go/v84"

	"github.com/simmerworks/simmer-backend/pkg/enums"
)

func TestMapStatus(t *testing.T) {
	cases := []struct {
		in   stripe.SubscriptionStatus
		want enums.SubscriptionStatus
	}{
		{stripe.SubscriptionStatusTrialing, enums.SubscriptionStatusTrialing},
		{stripe.SubscriptionStatusActive, enums.SubscriptionStatusActive},
		{stripe.SubscriptionStatusPastDue, enums.SubscriptionStatusPastDue},
		{stripe.SubscriptionStatusUnpaid, enums.SubscriptionStatusPastDue},
		{stripe.SubscriptionStatusIncomplete, enums.SubscriptionStatusPastDue},
		{stripe.SubscriptionStatusCanceled, enums.SubscriptionStatusCanceled},
		{stripe.SubscriptionStatusIncompleteExpired, enums.SubscriptionStatusCanceled},
		{stripe.SubscriptionStatusPaused, enums.SubscriptionStatusExpired},
		// Unknown future statuses stay access-denying.
		{stripe.SubscriptionStatus("brand_new_status"), enums.SubscriptionStatusExpired},
	}
	for _, tc := range cases {
		if got := MapStatus(tc.in); got != tc.want {
			t.Fatalf("MapStatus(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestEventFromSubscription(t *testing.T) {
	trialEnd := int64(1767225600)
	periodEnd := int64(1769904000)
	sub := &stripe.Subscription{
		ID:       "sub_1",
		Status:   stripe.SubscriptionStatusTrialing,
		TrialEnd: trialEnd,
		Customer: &stripe.Customer{ID: "cus_1"},
		Metadata: map[string]string{"user_id": " 4b1e07fe-9f1c-4b2f-bd32-6a1f87b9f0aa "},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{CurrentPeriodEnd: periodEnd}},
		},
	}

	event := eventFromSubscription(sub, nil, "evt_1", "customer.subscription.updated")
	if event.TargetStatus == nil || *event.TargetStatus != enums.SubscriptionStatusTrialing {
		t.Fatalf("unexpected target status %v", event.TargetStatus)
	}
	if event.CustomerID != "cus_1" || event.SubscriptionID != "sub_1" {
		t.Fatalf("provider ids not carried: %q %q", event.CustomerID, event.SubscriptionID)
	}
	if event.MetadataUserID != "4b1e07fe-9f1c-4b2f-bd32-6a1f87b9f0aa" {
		t.Fatalf("metadata user id not trimmed: %q", event.MetadataUserID)
	}
	if event.TrialEndsAt == nil || !event.TrialEndsAt.Equal(time.Unix(trialEnd, 0)) {
		t.Fatalf("trial end not mapped: %v", event.TrialEndsAt)
	}
	if event.PeriodEndsAt == nil || !event.PeriodEndsAt.Equal(time.Unix(periodEnd, 0)) {
		t.Fatalf("period end not mapped: %v", event.PeriodEndsAt)
	}
}

func TestEventFromSubscriptionWithoutItems(t *testing.T) {
	event := eventFromSubscription(&stripe.Subscription{
		ID:     "sub_bare",
		Status: stripe.SubscriptionStatusActive,
	}, nil, "evt_2", "customer.subscription.created")

	if event.PeriodEndsAt != nil {
		t.Fatalf("no items means no period end, got %v", event.PeriodEndsAt)
	}
	if event.TrialEndsAt != nil {
		t.Fatalf("zero trial end must map to nil, got %v", event.TrialEndsAt)
	}
	if event.CustomerID != "" {
		t.Fatalf("nil customer must map to empty id")
	}
}

func TestEventFromSubscriptionTopLevelPeriodEnd(t *testing.T) {
	// Classic API versions put current_period_end on the subscription itself,
	// a field the v84 struct no longer has.
	raw := []byte(`{
		"id": "sub_legacy",
		"object": "subscription",
		"status": "active",
		"customer": "cus_1",
		"current_period_end": 1800086400,
		"trial_end": 1767225600,
		"metadata": {"user_id": "4b1e07fe-9f1c-4b2f-bd32-6a1f87b9f0aa"}
	}`)
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		t.Fatalf("decode subscription: %v", err)
	}

	event := eventFromSubscription(&sub, raw, "evt_legacy", "customer.subscription.updated")
	want := time.Date(2027, time.January, 16, 8, 0, 0, 0, time.UTC)
	if event.PeriodEndsAt == nil || !event.PeriodEndsAt.Equal(want) {
		t.Fatalf("expected period end %v, got %v", want, event.PeriodEndsAt)
	}
	if event.TrialEndsAt == nil || !event.TrialEndsAt.Equal(time.Unix(1767225600, 0)) {
		t.Fatalf("trial end not mapped: %v", event.TrialEndsAt)
	}
}

func TestSubscriptionPeriodEndPrefersItems(t *testing.T) {
	itemEnd := int64(1769904000)
	sub := &stripe.Subscription{
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{CurrentPeriodEnd: itemEnd}},
		},
	}
	raw := []byte(`{"current_period_end": 1800086400}`)

	got := subscriptionPeriodEnd(sub, raw)
	if got == nil || !got.Equal(time.Unix(itemEnd, 0)) {
		t.Fatalf("expected item period end to win, got %v", got)
	}
}
