package entitlements

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/simmerworks/simmer-backend/pkg/db/models"
	"github.com/simmerworks/simmer-backend/pkg/enums"
	pkgerrors "github.com/simmerworks/simmer-backend/pkg/errors"
)

type subscriptionReader interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.UserSubscription, error)
}

type entitlementReader interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.UserEntitlement, error)
}

// Snapshot is the entitlement state for one user at one instant. It is
// assembled fresh per request and carries its computation time so consumers
// can see how stale a value they are holding.
type Snapshot struct {
	SubscriptionStatus *enums.SubscriptionStatus `json:"subscription_status"`
	EnterpriseGranted  bool                      `json:"enterprise_granted"`
	CanViewPublic      bool                      `json:"can_view_public"`
	CanViewEnterprise  bool                      `json:"can_view_enterprise"`
	ComputedAt         time.Time                 `json:"computed_at"`
}

// Service reads the persisted billing state and computes access on demand.
type Service struct {
	subscriptions subscriptionReader
	entitlements  entitlementReader
	now           func() time.Time
}

// ServiceParams wires the snapshot service.
type ServiceParams struct {
	Subscriptions subscriptionReader
	Entitlements  entitlementReader
	Now           func() time.Time
}

// NewService validates dependencies and constructs the service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription reader required")
	}
	if params.Entitlements == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "entitlement reader required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		subscriptions: params.Subscriptions,
		entitlements:  params.Entitlements,
		now:           now,
	}, nil
}

// SnapshotFor recomputes the entitlement snapshot for the user. A user with
// no subscription record is in the implicit "none" state, which is not an
// error; they simply have no public access unless their role grants it.
func (s *Service) SnapshotFor(ctx context.Context, userID uuid.UUID, role enums.AppRole) (*Snapshot, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	subscription, err := s.subscriptions.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription record")
	}

	entitlement, err := s.entitlements.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load entitlement record")
	}

	var status *enums.SubscriptionStatus
	if subscription != nil {
		st := subscription.Status
		status = &st
	}

	enterpriseGranted := entitlement != nil && entitlement.EnterpriseGranted
	access := Compute(role, status, enterpriseGranted)

	return &Snapshot{
		SubscriptionStatus: status,
		EnterpriseGranted:  enterpriseGranted,
		CanViewPublic:      access.CanViewPublic,
		CanViewEnterprise:  access.CanViewEnterprise,
		ComputedAt:         s.now().UTC(),
	}, nil
}
