package subscribers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/simmerworks/simmer-backend/pkg/db/models"
	"github.com/simmerworks/simmer-backend/pkg/enums"
	pkgerrors "github.com/simmerworks/simmer-backend/pkg/errors"
)

type listRepository interface {
	List(ctx context.Context, filter ListFilter) (*Page, error)
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type entitlementWriter interface {
	SetEnterpriseGrant(ctx context.Context, userID uuid.UUID, granted bool, actorID *uuid.UUID, at time.Time) error
}

type subscriptionWriter interface {
	Upsert(ctx context.Context, record *models.UserSubscription) error
}

type auditLog interface {
	Append(ctx context.Context, entry *models.AuditLogEntry) error
	ListByTargetUser(ctx context.Context, targetUserID uuid.UUID, limit int) ([]models.AuditLogEntry, error)
}

// ServiceParams wires the admin subscriber service.
type ServiceParams struct {
	Repo          listRepository
	Users         userReader
	Entitlements  entitlementWriter
	Subscriptions subscriptionWriter
	Audit         auditLog
	Now           func() time.Time
}

// Service backs the admin subscriber surface: listing, manual enterprise
// grants, and manual status overrides. Every mutation records the acting
// admin in the audit log.
type Service struct {
	repo          listRepository
	users         userReader
	entitlements  entitlementWriter
	subscriptions subscriptionWriter
	audit         auditLog
	now           func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscriber repo required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user reader required")
	}
	if params.Entitlements == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "entitlement writer required")
	}
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription writer required")
	}
	if params.Audit == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "audit appender required")
	}
	svc := &Service{
		repo:          params.Repo,
		users:         params.Users,
		entitlements:  params.Entitlements,
		subscriptions: params.Subscriptions,
		audit:         params.Audit,
		now:           params.Now,
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// List returns one page of subscribers.
func (s *Service) List(ctx context.Context, filter ListFilter) (*Page, error) {
	page, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscribers")
	}
	return page, nil
}

// GrantEnterprise turns the enterprise flag on for the target user.
func (s *Service) GrantEnterprise(ctx context.Context, actorID, targetID uuid.UUID, reason string) error {
	return s.setEnterprise(ctx, actorID, targetID, reason, true)
}

// RevokeEnterprise turns the enterprise flag off for the target user.
func (s *Service) RevokeEnterprise(ctx context.Context, actorID, targetID uuid.UUID, reason string) error {
	return s.setEnterprise(ctx, actorID, targetID, reason, false)
}

func (s *Service) setEnterprise(ctx context.Context, actorID, targetID uuid.UUID, reason string, granted bool) error {
	if err := s.requireUser(ctx, targetID); err != nil {
		return err
	}

	if err := s.entitlements.SetEnterpriseGrant(ctx, targetID, granted, &actorID, s.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set enterprise grant")
	}

	action := enums.AuditActionGrantEnterprise
	if !granted {
		action = enums.AuditActionRevokeEnterprise
	}
	return s.appendAudit(ctx, actorID, targetID, action, reason, map[string]any{
		"enterprise_granted": granted,
	})
}

// SetSubscriptionStatus overrides the target user's subscription state by
// hand. The record is stamped with the manual provider so a later provider
// webhook visibly supersedes the override rather than merging with it.
func (s *Service) SetSubscriptionStatus(ctx context.Context, actorID, targetID uuid.UUID, status enums.SubscriptionStatus, reason string) error {
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown subscription status")
	}
	if err := s.requireUser(ctx, targetID); err != nil {
		return err
	}

	record := &models.UserSubscription{
		UserID:   targetID,
		Status:   status,
		Provider: enums.BillingProviderManual,
	}
	if err := s.subscriptions.Upsert(ctx, record); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert subscription record")
	}

	return s.appendAudit(ctx, actorID, targetID, enums.AuditActionSetSubscriptionStatus, reason, map[string]any{
		"provider":            enums.BillingProviderManual.String(),
		"subscription_status": status.String(),
	})
}

// AuditTrail returns the newest audit entries recorded against the target
// user, both webhook-driven and admin-driven.
func (s *Service) AuditTrail(ctx context.Context, targetID uuid.UUID, limit int) ([]models.AuditLogEntry, error) {
	if err := s.requireUser(ctx, targetID); err != nil {
		return nil, err
	}
	entries, err := s.audit.ListByTargetUser(ctx, targetID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit entries")
	}
	return entries, nil
}

func (s *Service) requireUser(ctx context.Context, targetID uuid.UUID) error {
	if targetID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "target user id required")
	}
	user, err := s.users.FindByID(ctx, targetID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if user == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return nil
}

func (s *Service) appendAudit(ctx context.Context, actorID, targetID uuid.UUID, action enums.AuditAction, reason string, metadata map[string]any) error {
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode audit metadata")
	}
	entry := &models.AuditLogEntry{
		ActorUserID:  &actorID,
		TargetUserID: targetID,
		Action:       action,
		Metadata:     encoded,
	}
	if reason != "" {
		entry.Reason = &reason
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append audit entry")
	}
	return nil
}
