package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/simmerworks/simmer-backend/internal/billing"
	"github.com/simmerworks/simmer-backend/pkg/db/models"
	"github.com/simmerworks/simmer-backend/pkg/enums"
)

func TestEngine_ApplyUpsertsRecordAndAppendsAudit(t *testing.T) {
	subs := &stubSubscriptionStore{}
	audit := &stubAuditAppender{}
	engine, err := NewEngine(subs, audit)
	if err != nil {
		t.Fatalf("setup engine: %v", err)
	}

	userID := uuid.New()
	status := enums.SubscriptionStatusActive
	periodEnd := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	event := &billing.Event{
		Provider:          enums.BillingProviderStripe,
		ProviderEventID:   "evt_1",
		ProviderEventType: "customer.subscription.updated",
		CustomerID:        "cus_1",
		SubscriptionID:    "sub_1",
		TargetStatus:      &status,
		PeriodEndsAt:      &periodEnd,
	}

	result, err := engine.Apply(context.Background(), userID, event)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !result.Applied {
		t.Fatalf("expected applied result, got ignored %q", result.Ignored)
	}
	if result.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected active status, got %s", result.Status)
	}
	if len(subs.upserts) != 1 {
		t.Fatalf("expected one upsert, got %d", len(subs.upserts))
	}
	record := subs.upserts[0]
	if record.UserID != userID {
		t.Fatalf("record keyed to %s, want %s", record.UserID, userID)
	}
	if record.ProviderSubscriptionID == nil || *record.ProviderSubscriptionID != "sub_1" {
		t.Fatalf("expected provider subscription id carried through")
	}
	if len(audit.entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(audit.entries))
	}
	entry := audit.entries[0]
	if entry.ActorUserID != nil {
		t.Fatalf("webhook audit entries carry no actor")
	}
	if entry.Reason == nil || *entry.Reason != "stripe_webhook" {
		t.Fatalf("unexpected audit reason %v", entry.Reason)
	}
	var meta map[string]any
	if err := json.Unmarshal(entry.Metadata, &meta); err != nil {
		t.Fatalf("decode audit metadata: %v", err)
	}
	if meta["event_id"] != "evt_1" {
		t.Fatalf("audit metadata missing event id: %v", meta)
	}
}

func TestEngine_ApplyTwiceProducesSameRecord(t *testing.T) {
	subs := &stubSubscriptionStore{}
	audit := &stubAuditAppender{}
	engine, _ := NewEngine(subs, audit)

	userID := uuid.New()
	status := enums.SubscriptionStatusExpired
	event := &billing.Event{
		Provider:       enums.BillingProviderRevenueCat,
		SubscriptionID: "prod_monthly",
		TargetStatus:   &status,
	}

	for i := 0; i < 2; i++ {
		if _, err := engine.Apply(context.Background(), userID, event); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	if len(subs.upserts) != 2 {
		t.Fatalf("expected two upserts, got %d", len(subs.upserts))
	}
	if subs.upserts[0].Status != subs.upserts[1].Status || subs.upserts[0].UserID != subs.upserts[1].UserID {
		t.Fatalf("duplicate delivery produced a different record")
	}
	// Duplicate deliveries cost an extra audit row, nothing else.
	if len(audit.entries) != 2 {
		t.Fatalf("expected two audit entries, got %d", len(audit.entries))
	}
}

func TestEngine_ApplySkipsOutOfScopeWithoutStoreCalls(t *testing.T) {
	subs := &stubSubscriptionStore{}
	audit := &stubAuditAppender{}
	engine, _ := NewEngine(subs, audit)

	result, err := engine.Apply(context.Background(), uuid.New(), &billing.Event{OutOfScope: true})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if result.Applied {
		t.Fatalf("expected ignored result")
	}
	if result.Ignored != billing.ReasonNonTargetEntitlement {
		t.Fatalf("unexpected reason %q", result.Ignored)
	}
	if len(subs.upserts) != 0 || len(audit.entries) != 0 {
		t.Fatalf("out-of-scope event must not touch storage")
	}
}

func TestEngine_ApplySkipsUnmappedEventType(t *testing.T) {
	subs := &stubSubscriptionStore{}
	audit := &stubAuditAppender{}
	engine, _ := NewEngine(subs, audit)

	result, err := engine.Apply(context.Background(), uuid.New(), &billing.Event{
		Provider:          enums.BillingProviderRevenueCat,
		ProviderEventType: "TRANSFER",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if result.Ignored != billing.ReasonEventNotMapped {
		t.Fatalf("unexpected reason %q", result.Ignored)
	}
	if len(subs.upserts) != 0 {
		t.Fatalf("unmapped event must not write")
	}
}

func TestEngine_AuditFailurePropagatesAfterUpsert(t *testing.T) {
	subs := &stubSubscriptionStore{}
	audit := &stubAuditAppender{err: errors.New("audit down")}
	engine, _ := NewEngine(subs, audit)

	status := enums.SubscriptionStatusActive
	_, err := engine.Apply(context.Background(), uuid.New(), &billing.Event{
		Provider:     enums.BillingProviderStripe,
		TargetStatus: &status,
	})
	if err == nil {
		t.Fatalf("expected error when audit append fails")
	}
	// The upsert already happened; the error is what forces redelivery.
	if len(subs.upserts) != 1 {
		t.Fatalf("expected upsert before audit failure, got %d", len(subs.upserts))
	}
}

func TestEngine_LinkCustomerNoopsOnEmptyID(t *testing.T) {
	subs := &stubSubscriptionStore{}
	audit := &stubAuditAppender{}
	engine, _ := NewEngine(subs, audit)

	if err := engine.LinkCustomer(context.Background(), uuid.New(), enums.BillingProviderStripe, "  "); err != nil {
		t.Fatalf("link customer: %v", err)
	}
	if len(subs.links) != 0 {
		t.Fatalf("empty customer id must not link")
	}

	if err := engine.LinkCustomer(context.Background(), uuid.New(), enums.BillingProviderStripe, "cus_9"); err != nil {
		t.Fatalf("link customer: %v", err)
	}
	if len(subs.links) != 1 {
		t.Fatalf("expected one link recorded")
	}
}

type stubSubscriptionStore struct {
	upserts []*models.UserSubscription
	links   []string
	err     error
}

func (s *stubSubscriptionStore) Upsert(ctx context.Context, record *models.UserSubscription) error {
	if s.err != nil {
		return s.err
	}
	s.upserts = append(s.upserts, record)
	return nil
}

func (s *stubSubscriptionStore) UpsertCustomerLink(ctx context.Context, userID uuid.UUID, provider enums.BillingProvider, customerID string) error {
	if s.err != nil {
		return s.err
	}
	s.links = append(s.links, customerID)
	return nil
}

type stubAuditAppender struct {
	entries []*models.AuditLogEntry
	err     error
}

func (s *stubAuditAppender) Append(ctx context.Context, entry *models.AuditLogEntry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}
