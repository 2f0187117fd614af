package revenuecatwebhook

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/simmerworks/simmer-backend/internal/billing"
	"github.com/simmerworks/simmer-backend/internal/identity"
	"github.com/simmerworks/simmer-backend/internal/reconcile"
	"github.com/simmerworks/simmer-backend/pkg/enums"
)

func TestService_HandleEventApplies(t *testing.T) {
	userID := uuid.New()
	engine := &stubEngine{result: &reconcile.Result{Applied: true, Status: enums.SubscriptionStatusActive}}
	service := newTestService(t, &stubResolver{id: userID}, engine, "premium")

	outcome, err := service.HandleEvent(context.Background(), &WebhookPayload{Event: &WebhookEvent{
		ID:             "evt_1",
		Type:           "RENEWAL",
		AppUserID:      userID.String(),
		EntitlementIDs: []string{"premium"},
	}})
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if !outcome.Applied() {
		t.Fatalf("expected applied outcome, got ignored %q", outcome.Ignored)
	}
	if outcome.UserID != userID.String() {
		t.Fatalf("unexpected user id %q", outcome.UserID)
	}
	if engine.applies != 1 {
		t.Fatalf("expected one engine apply, got %d", engine.applies)
	}
}

func TestService_NonTargetEntitlementIgnoredBeforeResolution(t *testing.T) {
	resolver := &stubResolver{err: identity.ErrUnresolvedUser}
	engine := &stubEngine{}
	service := newTestService(t, resolver, engine, "premium")

	outcome, err := service.HandleEvent(context.Background(), &WebhookPayload{Event: &WebhookEvent{
		Type:           "RENEWAL",
		EntitlementIDs: []string{"some-other-app"},
	}})
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if outcome.Ignored != billing.ReasonNonTargetEntitlement {
		t.Fatalf("unexpected reason %q", outcome.Ignored)
	}
	if resolver.calls != 0 || engine.applies != 0 {
		t.Fatalf("out-of-scope event must not resolve or apply")
	}
}

func TestService_UnmappedUserIgnored(t *testing.T) {
	engine := &stubEngine{}
	service := newTestService(t, &stubResolver{err: identity.ErrUnresolvedUser}, engine, "")

	outcome, err := service.HandleEvent(context.Background(), &WebhookPayload{Event: &WebhookEvent{
		Type:      "EXPIRATION",
		AppUserID: "$RCAnonymousID:abc",
	}})
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if outcome.Ignored != billing.ReasonUnmappedUser {
		t.Fatalf("unexpected reason %q", outcome.Ignored)
	}
	if engine.applies != 0 {
		t.Fatalf("unmapped user must not reach the engine")
	}
}

func TestService_UnmappedEventTypeIgnored(t *testing.T) {
	engine := &stubEngine{result: &reconcile.Result{Ignored: billing.ReasonEventNotMapped}}
	service := newTestService(t, &stubResolver{id: uuid.New()}, engine, "")

	outcome, err := service.HandleEvent(context.Background(), &WebhookPayload{Event: &WebhookEvent{
		Type:      "TRANSFER",
		AppUserID: uuid.NewString(),
	}})
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if outcome.Ignored != billing.ReasonEventNotMapped {
		t.Fatalf("unexpected reason %q", outcome.Ignored)
	}
}

func TestService_MissingEventRejected(t *testing.T) {
	service := newTestService(t, &stubResolver{}, &stubEngine{}, "")

	if _, err := service.HandleEvent(context.Background(), &WebhookPayload{}); err == nil {
		t.Fatalf("expected validation error for missing event")
	}
}

func newTestService(t *testing.T, resolver *stubResolver, engine *stubEngine, entitlementID string) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Client:   stubScope(entitlementID),
		Resolver: resolver,
		Engine:   engine,
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return service
}

type stubScope string

func (s stubScope) EntitlementID() string { return string(s) }

type stubResolver struct {
	id    uuid.UUID
	err   error
	calls int
}

func (s *stubResolver) Resolve(ctx context.Context, event *billing.Event) (uuid.UUID, error) {
	s.calls++
	if s.err != nil {
		return uuid.Nil, s.err
	}
	return s.id, nil
}

type stubEngine struct {
	result  *reconcile.Result
	err     error
	applies int
}

func (s *stubEngine) Apply(ctx context.Context, userID uuid.UUID, event *billing.Event) (*reconcile.Result, error) {
	s.applies++
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &reconcile.Result{Applied: true, Status: enums.SubscriptionStatusActive}, nil
}
