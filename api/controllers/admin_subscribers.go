package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/simmerworks/simmer-backend/api/middleware"
	"github.com/simmerworks/simmer-backend/api/responses"
	"github.com/simmerworks/simmer-backend/internal/subscribers"
	"github.com/simmerworks/simmer-backend/pkg/db/models"
	"github.com/simmerworks/simmer-backend/pkg/enums"
	pkgerrors "github.com/simmerworks/simmer-backend/pkg/errors"
	"github.com/simmerworks/simmer-backend/pkg/logger"
)

type subscribersService interface {
	List(ctx context.Context, filter subscribers.ListFilter) (*subscribers.Page, error)
	GrantEnterprise(ctx context.Context, actorID, targetID uuid.UUID, reason string) error
	RevokeEnterprise(ctx context.Context, actorID, targetID uuid.UUID, reason string) error
	SetSubscriptionStatus(ctx context.Context, actorID, targetID uuid.UUID, status enums.SubscriptionStatus, reason string) error
	AuditTrail(ctx context.Context, targetID uuid.UUID, limit int) ([]models.AuditLogEntry, error)
}

// AdminListSubscribers lists users with their subscription and entitlement
// state for the admin console.
func AdminListSubscribers(svc subscribersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		filter := subscribers.ListFilter{
			Status: r.URL.Query().Get("status"),
			Search: r.URL.Query().Get("search"),
			Cursor: r.URL.Query().Get("cursor"),
		}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be an integer"))
				return
			}
			filter.Limit = limit
		}
		if raw := r.URL.Query().Get("enterprise"); raw != "" {
			enterprise, err := strconv.ParseBool(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "enterprise must be a boolean"))
				return
			}
			filter.Enterprise = &enterprise
		}
		if filter.Status != "" {
			if _, err := enums.ParseSubscriptionStatus(filter.Status); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown subscription status"))
				return
			}
		}

		page, err := svc.List(ctx, filter)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

type enterpriseGrantRequest struct {
	Reason string `json:"reason"`
}

// AdminGrantEnterprise turns on the enterprise flag for a user.
func AdminGrantEnterprise(svc subscribersService, logg *logger.Logger) http.HandlerFunc {
	return adminEnterpriseMutation(svc, logg, true)
}

// AdminRevokeEnterprise turns off the enterprise flag for a user.
func AdminRevokeEnterprise(svc subscribersService, logg *logger.Logger) http.HandlerFunc {
	return adminEnterpriseMutation(svc, logg, false)
}

func adminEnterpriseMutation(svc subscribersService, logg *logger.Logger, grant bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		actorID, targetID, err := adminActorAndTarget(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req enterpriseGrantRequest
		if r.Body != nil {
			// Body is optional; a malformed one is still rejected.
			if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, decodeErr, "invalid request body"))
				return
			}
		}

		if grant {
			err = svc.GrantEnterprise(ctx, actorID, targetID, req.Reason)
		} else {
			err = svc.RevokeEnterprise(ctx, actorID, targetID, req.Reason)
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"user_id":            targetID.String(),
			"enterprise_granted": grant,
		})
	}
}

type setStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// AdminSetSubscriptionStatus overrides a user's subscription status by hand.
func AdminSetSubscriptionStatus(svc subscribersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		actorID, targetID, err := adminActorAndTarget(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req setStatusRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, decodeErr, "invalid request body"))
			return
		}
		status, parseErr := enums.ParseSubscriptionStatus(req.Status)
		if parseErr != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown subscription status"))
			return
		}

		if err := svc.SetSubscriptionStatus(ctx, actorID, targetID, status, req.Reason); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"user_id":             targetID.String(),
			"subscription_status": status.String(),
		})
	}
}

// AdminSubscriberAudit returns the newest audit entries for a user, covering
// both webhook-applied changes and manual admin actions.
func AdminSubscriberAudit(svc subscribersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		_, targetID, err := adminActorAndTarget(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be an integer"))
				return
			}
		}

		entries, err := svc.AuditTrail(ctx, targetID, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"entries": entries})
	}
}

func adminActorAndTarget(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	actorID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid actor identity")
	}
	targetID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid user id")
	}
	return actorID, targetID, nil
}
