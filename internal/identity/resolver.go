package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/simmerworks/simmer-backend/internal/billing"
	"github.com/simmerworks/simmer-backend/pkg/enums"
	pkgerrors "github.com/simmerworks/simmer-backend/pkg/errors"
)

// ErrUnresolvedUser is returned when no candidate identifier maps to a known
// user. The HTTP layer converts it into a 200-with-ignored acknowledgement so
// the provider does not retry forever.
var ErrUnresolvedUser = pkgerrors.New(pkgerrors.CodeNotFound, "no user resolved for billing event")

// SubscriptionLookup is the persisted provider-identifier-to-user mapping the
// resolver consults.
type SubscriptionLookup interface {
	FindUserIDByProviderSubscriptionID(ctx context.Context, subscriptionID string) (uuid.UUID, bool, error)
	FindUserIDByProviderCustomerID(ctx context.Context, customerID string) (uuid.UUID, bool, error)
}

// Resolver maps a normalized billing event to exactly one internal user id.
type Resolver struct {
	lookup SubscriptionLookup
}

// NewResolver constructs a resolver bound to the provided lookup.
func NewResolver(lookup SubscriptionLookup) (*Resolver, error) {
	if lookup == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription lookup required")
	}
	return &Resolver{lookup: lookup}, nil
}

// Resolve applies the resolution order: embedded metadata id (strict format
// check), provider subscription id, provider customer id, then alias
// identifiers. It never guesses: when nothing matches it returns
// ErrUnresolvedUser.
//
// RevenueCat subscription handles are store product ids, shared by every
// subscriber of the same product, so that step is skipped for RevenueCat
// events. The handle is still persisted for display.
func (r *Resolver) Resolve(ctx context.Context, event *billing.Event) (uuid.UUID, error) {
	if event == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "billing event required")
	}

	if id, ok := parseStrictUserID(event.MetadataUserID); ok {
		return id, nil
	}

	if subID := strings.TrimSpace(event.SubscriptionID); subID != "" && event.Provider != enums.BillingProviderRevenueCat {
		id, found, err := r.lookup.FindUserIDByProviderSubscriptionID(ctx, subID)
		if err != nil {
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup by subscription id")
		}
		if found {
			return id, nil
		}
	}

	if custID := strings.TrimSpace(event.CustomerID); custID != "" {
		id, found, err := r.lookup.FindUserIDByProviderCustomerID(ctx, custID)
		if err != nil {
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup by customer id")
		}
		if found {
			return id, nil
		}
	}

	for _, alias := range event.AliasUserIDs {
		if id, ok := parseStrictUserID(alias); ok {
			return id, nil
		}
	}

	return uuid.Nil, ErrUnresolvedUser
}

// parseStrictUserID accepts only canonical RFC 4122 UUIDs (version 1-5,
// variant 10). Providers echo back whatever app-user id they were given, so
// without the format gate a foreign identifier could be trusted as ours.
func parseStrictUserID(value string) (uuid.UUID, bool) {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) != 36 {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(trimmed)
	if err != nil {
		return uuid.Nil, false
	}
	if v := id.Version(); v < 1 || v > 5 {
		return uuid.Nil, false
	}
	if id.Variant() != uuid.RFC4122 {
		return uuid.Nil, false
	}
	return id, true
}
