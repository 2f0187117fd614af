package entitlements

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/simmerworks/simmer-backend/pkg/db/models"
	"github.com/simmerworks/simmer-backend/pkg/enums"
)

func TestSnapshotForUserWithoutRecords(t *testing.T) {
	service := newSnapshotService(t, &stubSubscriptionReader{}, &stubEntitlementReader{})

	snapshot, err := service.SnapshotFor(context.Background(), uuid.New(), enums.AppRoleSubscriber)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snapshot.SubscriptionStatus != nil {
		t.Fatalf("no record means nil status, got %v", snapshot.SubscriptionStatus)
	}
	if snapshot.CanViewPublic || snapshot.CanViewEnterprise {
		t.Fatalf("subscriber without records has no access: %+v", snapshot)
	}
}

func TestSnapshotForReflectsLatestState(t *testing.T) {
	userID := uuid.New()
	subs := &stubSubscriptionReader{record: &models.UserSubscription{
		UserID: userID,
		Status: enums.SubscriptionStatusActive,
	}}
	ents := &stubEntitlementReader{record: &models.UserEntitlement{
		UserID:            userID,
		EnterpriseGranted: true,
	}}
	service := newSnapshotService(t, subs, ents)

	snapshot, err := service.SnapshotFor(context.Background(), userID, enums.AppRoleSubscriber)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snapshot.CanViewPublic || !snapshot.CanViewEnterprise {
		t.Fatalf("expected full access, got %+v", snapshot)
	}

	// A webhook flips the status; the next snapshot must see it.
	subs.record.Status = enums.SubscriptionStatusExpired
	snapshot, err = service.SnapshotFor(context.Background(), userID, enums.AppRoleSubscriber)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snapshot.CanViewPublic {
		t.Fatalf("expired subscription must lose public access")
	}
	if !snapshot.CanViewEnterprise {
		t.Fatalf("enterprise grant survives billing changes")
	}
}

func TestSnapshotForStampsComputedAt(t *testing.T) {
	at := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	service, err := NewService(ServiceParams{
		Subscriptions: &stubSubscriptionReader{},
		Entitlements:  &stubEntitlementReader{},
		Now:           func() time.Time { return at },
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	snapshot, err := service.SnapshotFor(context.Background(), uuid.New(), enums.AppRoleOwner)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snapshot.ComputedAt.Equal(at) {
		t.Fatalf("ComputedAt = %v, want %v", snapshot.ComputedAt, at)
	}
}

func newSnapshotService(t *testing.T, subs *stubSubscriptionReader, ents *stubEntitlementReader) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Subscriptions: subs,
		Entitlements:  ents,
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return service
}

type stubSubscriptionReader struct {
	record *models.UserSubscription
}

func (s *stubSubscriptionReader) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.UserSubscription, error) {
	return s.record, nil
}

type stubEntitlementReader struct {
	record *models.UserEntitlement
}

func (s *stubEntitlementReader) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.UserEntitlement, error) {
	return s.record, nil
}
