package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/rafaelcosta/muralize-backend/pkg/db/models"
	"github.com/rafaelcosta/muralize-backend/pkg/enums"
	pkgerrors "github.com/rafaelcosta/muralize-backend/pkg/errors"
	"github.com/rafaelcosta/muralize-backend/pkg/logger"
	"github.com/rafaelcosta/muralize-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo              Repository
	Stripe            StripeSubscriptionClient
	Outbox            *outbox.Service
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service orchestrates subscription lifecycle operations outside the webhook
// path: user-facing status, cancellation scheduling and the expiry sweep.
type Service struct {
	repo     Repository
	stripe   StripeSubscriptionClient
	outbox   *outbox.Service
	txRunner txRunner
	logg     *logger.Logger
}

// NewService builds a subscription service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Stripe == nil {
		return nil, errors.New("stripe client is required")
	}
	if params.TransactionRunner == nil {
		return nil, errors.New("transaction runner is required")
	}
	return &Service{
		repo:     params.Repo,
		stripe:   params.Stripe,
		outbox:   params.Outbox,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
	}, nil
}

// GetCurrent returns the user's active-like subscription, if any.
func (s *Service) GetCurrent(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	sub, err := s.repo.FindActiveLikeByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active subscription")
	}
	return sub, nil
}

// ListHistory returns all subscription terms for the user, newest first.
func (s *Service) ListHistory(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	subs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list subscriptions")
	}
	return subs, nil
}

// ScheduleCancellation flags the current term to end at the period boundary.
// Access continues until the provider confirms the deletion via webhook.
func (s *Service) ScheduleCancellation(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.GetCurrent(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub.StripeSubscriptionID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is not linked to the provider")
	}
	if sub.CancelAtPeriodEnd {
		return sub, nil
	}

	if _, err := s.stripe.Update(ctx, *sub.StripeSubscriptionID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "schedule cancellation")
	}

	sub.CancelAtPeriodEnd = true
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update subscription")
	}
	return sub, nil
}

// ReactivateSubscription clears a pending cancellation before the period ends.
func (s *Service) ReactivateSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.GetCurrent(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub.StripeSubscriptionID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is not linked to the provider")
	}
	if !sub.CancelAtPeriodEnd {
		return sub, nil
	}

	if _, err := s.stripe.Update(ctx, *sub.StripeSubscriptionID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(false),
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reactivate subscription")
	}

	sub.CancelAtPeriodEnd = false
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update subscription")
	}
	return sub, nil
}

// ProcessExpired marks active-like subscriptions whose period ended as
// expired and revokes access. Each subscription is handled in its own
// transaction so one bad row does not block the sweep.
func (s *Service) ProcessExpired(ctx context.Context, asOf time.Time, limit int) (int, error) {
	candidates, err := s.repo.ListExpiredCandidates(ctx, asOf, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list expired subscriptions")
	}

	var errs error
	expired := 0
	for i := range candidates {
		sub := candidates[i]
		err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			sub.Status = enums.SubscriptionStatusExpired
			if err := repo.Update(ctx, &sub); err != nil {
				return err
			}
			if s.outbox != nil {
				return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventAccessRevoked,
					AggregateType: enums.AggregateSubscription,
					AggregateID:   sub.ID,
					Data: map[string]any{
						"userId": sub.UserID.String(),
						"reason": "subscription_expired",
					},
				})
			}
			return nil
		})
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		expired++
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"subscription_id": sub.ID.String(),
				"user_id":         sub.UserID.String(),
			})
			s.logg.Info(logCtx, "subscription expired")
		}
	}
	return expired, errs
}
