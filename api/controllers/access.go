package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/simmerworks/simmer-backend/api/middleware"
	"github.com/simmerworks/simmer-backend/api/responses"
	"github.com/simmerworks/simmer-backend/internal/entitlements"
	"github.com/simmerworks/simmer-backend/pkg/enums"
	pkgerrors "github.com/simmerworks/simmer-backend/pkg/errors"
	"github.com/simmerworks/simmer-backend/pkg/logger"
)

type accessService interface {
	SnapshotFor(ctx context.Context, userID uuid.UUID, role enums.AppRole) (*entitlements.Snapshot, error)
}

// MyAccess returns the caller's entitlement snapshot, recomputed from
// persisted state on every call rather than cached.
func MyAccess(svc accessService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := uuid.Parse(middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid user identity"))
			return
		}
		role := middleware.RoleFromContext(ctx)
		if !role.IsValid() {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid actor role"))
			return
		}

		snapshot, err := svc.SnapshotFor(ctx, userID, role)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}
