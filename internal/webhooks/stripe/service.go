package stripewebhook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/rafaelcosta/muralize-backend/internal/billing"
	"github.com/rafaelcosta/muralize-backend/internal/plans"
	"github.com/rafaelcosta/muralize-backend/internal/subscriptions"
	"github.com/rafaelcosta/muralize-backend/pkg/db/models"
	"github.com/rafaelcosta/muralize-backend/pkg/enums"
	pkgerrors "github.com/rafaelcosta/muralize-backend/pkg/errors"
	"github.com/rafaelcosta/muralize-backend/pkg/logger"
	"github.com/rafaelcosta/muralize-backend/pkg/metrics"
	"github.com/rafaelcosta/muralize-backend/pkg/outbox"
)

// metadataUserID is the checkout metadata key carrying the internal user id.
const metadataUserID = "userId"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type handlerFunc func(ctx context.Context, event *stripe.Event) (Result, error)

type ServiceParams struct {
	BillingRepo       billing.Repository
	SubscriptionRepo  subscriptions.Repository
	PlanRepo          plans.Repository
	Outbox            *outbox.Service
	TransactionRunner txRunner
	Logger            *logger.Logger
	Metrics           *metrics.WebhookMetrics
}

// Service reconciles provider webhook events into the local billing state.
// Every handler is idempotent: the sender delivers at least once and does
// not guarantee order across related entities.
type Service struct {
	billingRepo billing.Repository
	subRepo     subscriptions.Repository
	planRepo    plans.Repository
	outbox      *outbox.Service
	txRunner    txRunner
	logg        *logger.Logger
	metrics     *metrics.WebhookMetrics

	handlers map[stripe.EventType]handlerFunc
}

func NewService(params ServiceParams) (*Service, error) {
	if params.BillingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing repo required")
	}
	if params.SubscriptionRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription repo required")
	}
	if params.PlanRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plan repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}

	s := &Service{
		billingRepo: params.BillingRepo,
		subRepo:     params.SubscriptionRepo,
		planRepo:    params.PlanRepo,
		outbox:      params.Outbox,
		txRunner:    params.TransactionRunner,
		logg:        params.Logger,
		metrics:     params.Metrics,
	}
	s.handlers = map[stripe.EventType]handlerFunc{
		stripe.EventTypeCheckoutSessionCompleted:    s.handleCheckoutCompleted,
		stripe.EventTypeCheckoutSessionExpired:      s.handleCheckoutExpired,
		stripe.EventTypeCustomerSubscriptionCreated: s.handleSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionDeleted: s.handleSubscriptionDeleted,
		stripe.EventTypeCustomerSubscriptionUpdated: s.handleSubscriptionUpdated,
		stripe.EventTypeInvoiceCreated:              s.handleInvoiceCreated,
		stripe.EventTypeInvoicePaymentSucceeded:     s.handleInvoicePaymentSucceeded,
		stripe.EventTypeInvoicePaymentFailed:        s.handleInvoicePaymentFailed,
	}
	return s, nil
}

// HandleEvent dispatches one verified event to its handler and classifies
// the outcome. It returns a non-nil error only when the sender should
// redeliver: retryable gaps and infrastructure failures. Permanent data
// integrity errors are logged loudly and acknowledged to stop redelivery
// storms.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	handler, ok := s.handlers[event.Type]
	if !ok {
		s.record(ctx, event, Result{Outcome: OutcomeIgnored}, 0)
		return nil
	}

	start := time.Now()
	result, err := handler(ctx, event)
	elapsed := time.Since(start)

	if err != nil {
		switch {
		case isRetryableGap(err):
			s.record(ctx, event, Result{Outcome: OutcomeRetryableGap, Detail: err.Error()}, elapsed)
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "prerequisite event not processed yet")
		case isPermanentError(err):
			s.record(ctx, event, Result{Outcome: OutcomePermanentError, Detail: err.Error()}, elapsed)
			return nil
		default:
			s.record(ctx, event, Result{Outcome: OutcomeRetryableGap, Detail: err.Error()}, elapsed)
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "handle stripe event")
		}
	}

	s.record(ctx, event, result, elapsed)
	return nil
}

func (s *Service) record(ctx context.Context, event *stripe.Event, result Result, elapsed time.Duration) {
	eventType := string(event.Type)
	s.metrics.IncEvent(eventType, string(result.Outcome))
	if elapsed > 0 {
		s.metrics.ObserveDuration(eventType, elapsed)
	}
	if result.Outcome == OutcomeReconciliationGap {
		s.metrics.IncReconciliationGap(eventType)
	}

	if s.logg == nil {
		return
	}
	fields := map[string]any{
		"event_id":   event.ID,
		"event_type": eventType,
		"outcome":    string(result.Outcome),
	}
	if result.Detail != "" {
		fields["detail"] = result.Detail
	}
	logCtx := s.logg.WithFields(ctx, fields)
	switch result.Outcome {
	case OutcomeApplied:
		s.logg.Info(logCtx, "webhook event applied")
	case OutcomePermanentError:
		s.logg.Error(logCtx, "webhook event references unprovisioned state", nil)
	case OutcomeReconciliationGap:
		s.logg.Warn(logCtx, "webhook event had no local counterpart")
	default:
		s.logg.Debug(logCtx, "webhook event settled without mutation")
	}
}

// handleCheckoutCompleted moves the checkout's payment attempt to processing
// and merges any customer details onto the billing profile.
func (s *Service) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) (Result, error) {
	session, err := decodeEvent[checkoutSessionEvent](event)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}

	userID, err := uuid.Parse(session.Metadata[metadataUserID])
	if err != nil {
		return Result{}, ErrMissingMetadata
	}

	var result Result
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)

		profile, err := repo.FindProfileByUserID(ctx, userID)
		if err != nil {
			return err
		}
		if profile == nil {
			return ErrUnknownCustomer
		}
		if s.mergeProfile(profile, session) {
			if err := repo.UpdateProfile(ctx, profile); err != nil {
				return err
			}
		}

		attempt, err := repo.FindAttemptBySessionID(ctx, session.ID)
		if err != nil {
			return err
		}
		if attempt == nil {
			result = gap("no payment attempt for session " + session.ID)
			return nil
		}
		if attempt.Status.IsTerminal() || attempt.Status == enums.PaymentAttemptStatusProcessing {
			result = skipped("attempt already " + attempt.Status.String())
			return nil
		}

		attempt.Status = enums.PaymentAttemptStatusProcessing
		if session.PaymentIntent != "" {
			attempt.StripePaymentIntentID = &session.PaymentIntent
		}
		if err := repo.UpdateAttempt(ctx, attempt); err != nil {
			return err
		}
		result = applied("attempt processing")
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// handleCheckoutExpired cancels the pending attempt and its invoice. A
// succeeded attempt is never downgraded.
func (s *Service) handleCheckoutExpired(ctx context.Context, event *stripe.Event) (Result, error) {
	session, err := decodeEvent[checkoutSessionEvent](event)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}

	var result Result
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)

		attempt, err := repo.FindAttemptBySessionID(ctx, session.ID)
		if err != nil {
			return err
		}
		if attempt == nil {
			result = gap("no payment attempt for session " + session.ID)
			return nil
		}
		if attempt.Status == enums.PaymentAttemptStatusSucceeded ||
			attempt.Status == enums.PaymentAttemptStatusCancelled {
			result = skipped("attempt already " + attempt.Status.String())
			return nil
		}

		attempt.Status = enums.PaymentAttemptStatusCancelled
		if err := repo.UpdateAttempt(ctx, attempt); err != nil {
			return err
		}

		invoice, err := repo.FindInvoiceByID(ctx, attempt.InvoiceID)
		if err != nil {
			return err
		}
		if invoice != nil && invoiceStatusTransitionAllowed(invoice.Status, enums.InvoiceStatusCancelled) {
			invoice.Status = enums.InvoiceStatusCancelled
			if err := repo.UpdateInvoice(ctx, invoice); err != nil {
				return err
			}
		}
		result = applied("attempt cancelled")
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// handleSubscriptionCreated cancels prior active-like terms and inserts the
// new one atomically, so readers never observe two live subscriptions.
func (s *Service) handleSubscriptionCreated(ctx context.Context, event *stripe.Event) (Result, error) {
	sub, err := decodeEvent[subscriptionEvent](event)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription")
	}

	existing, err := s.subRepo.FindByStripeID(ctx, sub.ID)
	if err != nil {
		return Result{}, err
	}
	if existing != nil {
		return skipped("subscription already recorded"), nil
	}

	profile, err := s.billingRepo.FindProfileByStripeCustomerID(ctx, sub.Customer)
	if err != nil {
		return Result{}, err
	}
	if profile == nil {
		return Result{}, ErrUnknownCustomer
	}

	price, err := s.planRepo.FindPriceByStripeID(ctx, sub.priceID())
	if err != nil {
		return Result{}, err
	}
	if price == nil {
		return Result{}, ErrUnknownPlan
	}

	status := enums.SubscriptionStatusActive
	if localSubscriptionStatus(sub.Status) == enums.SubscriptionStatusTrialing {
		status = enums.SubscriptionStatusTrialing
	}

	newSub := &models.Subscription{
		UserID:               profile.UserID,
		PlanID:               price.PlanID,
		Status:               status,
		StartAt:              unixTime(sub.StartDate),
		CurrentPeriodEnd:     unixTime(sub.CurrentPeriodEnd),
		TrialEnd:             unixTimePtr(sub.TrialEnd),
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		StripeSubscriptionID: &sub.ID,
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.subRepo.WithTx(tx)

		priors, err := repo.ListActiveLikeByUser(ctx, profile.UserID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for i := range priors {
			priors[i].Status = enums.SubscriptionStatusCancelled
			priors[i].CancelledAt = &now
			if err := repo.Update(ctx, &priors[i]); err != nil {
				return err
			}
		}

		if err := repo.Create(ctx, newSub); err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventAccessGranted, newSub.ID, map[string]any{
			"userId": profile.UserID.String(),
			"planId": price.PlanID.String(),
			"status": newSub.Status.String(),
		})
	})
	if err != nil {
		return Result{}, err
	}
	return applied("subscription " + newSub.Status.String()), nil
}

// handleSubscriptionDeleted retires the named subscription. Terminal rows
// stay as they are; a missing row is tolerated as a gap.
func (s *Service) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event) (Result, error) {
	sub, err := decodeEvent[subscriptionEvent](event)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription")
	}

	var result Result
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.subRepo.WithTx(tx)

		stored, err := repo.FindByStripeID(ctx, sub.ID)
		if err != nil {
			return err
		}
		if stored == nil {
			result = gap("no subscription for " + sub.ID)
			return nil
		}
		if stored.Status.IsTerminal() {
			result = skipped("subscription already " + stored.Status.String())
			return nil
		}

		now := time.Now().UTC()
		stored.Status = enums.SubscriptionStatusCancelled
		stored.CancelledAt = &now
		if err := repo.Update(ctx, stored); err != nil {
			return err
		}
		if err := s.emit(ctx, tx, enums.EventAccessRevoked, stored.ID, map[string]any{
			"userId": stored.UserID.String(),
			"reason": "subscription_deleted",
		}); err != nil {
			return err
		}
		result = applied("subscription cancelled")
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

type transitionAction int

const (
	actionNone transitionAction = iota
	actionGrantAccess
	actionRevokeAccess
	actionFlagPastDue
)

type statusTransition struct {
	from enums.SubscriptionStatus
	to   enums.SubscriptionStatus
}

// transitionTable maps true status changes to access actions. Pairs not
// listed here are logged and ignored.
var transitionTable = map[statusTransition]transitionAction{
	{enums.SubscriptionStatusIncomplete, enums.SubscriptionStatusActive}:   actionGrantAccess,
	{enums.SubscriptionStatusIncomplete, enums.SubscriptionStatusTrialing}: actionGrantAccess,
	{enums.SubscriptionStatusTrialing, enums.SubscriptionStatusActive}:     actionGrantAccess,
	{enums.SubscriptionStatusTrialing, enums.SubscriptionStatusPastDue}:    actionFlagPastDue,
	{enums.SubscriptionStatusTrialing, enums.SubscriptionStatusCancelled}:  actionRevokeAccess,
	{enums.SubscriptionStatusTrialing, enums.SubscriptionStatusExpired}:    actionRevokeAccess,
	{enums.SubscriptionStatusActive, enums.SubscriptionStatusPastDue}:      actionFlagPastDue,
	{enums.SubscriptionStatusActive, enums.SubscriptionStatusCancelled}:    actionRevokeAccess,
	{enums.SubscriptionStatusActive, enums.SubscriptionStatusExpired}:      actionRevokeAccess,
	{enums.SubscriptionStatusPastDue, enums.SubscriptionStatusActive}:      actionGrantAccess,
	{enums.SubscriptionStatusPastDue, enums.SubscriptionStatusCancelled}:   actionRevokeAccess,
	{enums.SubscriptionStatusPastDue, enums.SubscriptionStatusExpired}:     actionRevokeAccess,
}

// handleSubscriptionUpdated reacts to status changes via the transition
// table, and independently to period-end shifts, trial-end shifts and
// cancel_at_period_end toggles. The three side-checks run even when status
// did not change.
func (s *Service) handleSubscriptionUpdated(ctx context.Context, event *stripe.Event) (Result, error) {
	sub, err := decodeEvent[subscriptionEvent](event)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription")
	}
	diff, err := decodeSubscriptionDiff(event)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription diff")
	}

	var result Result
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.subRepo.WithTx(tx)

		stored, err := repo.FindByStripeID(ctx, sub.ID)
		if err != nil {
			return err
		}
		if stored == nil {
			// The created event may still be in flight; redeliver.
			return ErrSubscriptionNotFound
		}

		dirty := false
		details := []string{}

		if diff.Status != nil && *diff.Status != sub.Status {
			prev := localSubscriptionStatus(*diff.Status)
			next := localSubscriptionStatus(sub.Status)
			action, mapped := transitionTable[statusTransition{prev, next}]
			switch {
			case prev == "" || next == "":
				s.debugf(ctx, event, "unknown provider status in transition %s -> %s", *diff.Status, sub.Status)
			case !mapped:
				s.debugf(ctx, event, "unmapped status transition %s -> %s", prev, next)
			default:
				stored.Status = next
				if next.IsTerminal() {
					now := time.Now().UTC()
					stored.CancelledAt = &now
				}
				dirty = true
				details = append(details, "status "+prev.String()+" -> "+next.String())
				if err := s.emitTransition(ctx, tx, stored, action); err != nil {
					return err
				}
			}
		}

		if periodEnd := unixTime(sub.CurrentPeriodEnd); sub.CurrentPeriodEnd != 0 && !periodEnd.Equal(stored.CurrentPeriodEnd) {
			renewed := periodEnd.After(stored.CurrentPeriodEnd)
			stored.CurrentPeriodEnd = periodEnd
			dirty = true
			details = append(details, "period end shifted")
			if renewed && stored.Status == enums.SubscriptionStatusActive {
				if err := s.emit(ctx, tx, enums.EventSubscriptionRenewed, stored.ID, map[string]any{
					"userId":           stored.UserID.String(),
					"currentPeriodEnd": periodEnd.Format(time.RFC3339),
				}); err != nil {
					return err
				}
			}
		}

		if trialEnd := unixTimePtr(sub.TrialEnd); !equalTimePtr(trialEnd, stored.TrialEnd) {
			stored.TrialEnd = trialEnd
			dirty = true
			details = append(details, "trial end shifted")
		}

		if sub.CancelAtPeriodEnd != stored.CancelAtPeriodEnd {
			stored.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
			dirty = true
			if sub.CancelAtPeriodEnd {
				details = append(details, "cancellation scheduled")
			} else {
				details = append(details, "cancellation unscheduled")
			}
		}

		if !dirty {
			result = skipped("no effective change")
			return nil
		}
		if err := repo.Update(ctx, stored); err != nil {
			return err
		}
		result = applied(strings.Join(details, ", "))
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// handleInvoiceCreated records the provider invoice as pending and links any
// payment attempt already carrying the invoice's payment intent, so the
// linkage is the same whichever event arrives first.
func (s *Service) handleInvoiceCreated(ctx context.Context, event *stripe.Event) (Result, error) {
	inv, err := decodeEvent[invoiceEvent](event)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode invoice")
	}

	existing, err := s.billingRepo.FindInvoiceByStripeID(ctx, inv.ID)
	if err != nil {
		return Result{}, err
	}
	if existing != nil {
		return skipped("invoice already recorded"), nil
	}

	profile, err := s.billingRepo.FindProfileByStripeCustomerID(ctx, inv.Customer)
	if err != nil {
		return Result{}, err
	}
	if profile == nil {
		return Result{}, ErrUnknownCustomer
	}

	var subID *uuid.UUID
	var planName *string
	var planType *enums.PlanType
	if inv.Subscription != "" {
		stored, err := s.subRepo.FindByStripeID(ctx, inv.Subscription)
		if err != nil {
			return Result{}, err
		}
		if stored != nil {
			subID = &stored.ID
			plan, err := s.planRepo.FindPlanByID(ctx, stored.PlanID)
			if err != nil {
				return Result{}, err
			}
			if plan != nil {
				planName = &plan.Name
				planType = &plan.Type
			}
		}
	}

	amount := minorUnitsToDecimal(inv.AmountDue)
	currency := strings.ToUpper(inv.Currency)
	invoice := &models.Invoice{
		UserID:           profile.UserID,
		BillingProfileID: profile.ID,
		SubscriptionID:   subID,
		Type:             enums.InvoiceTypeSubscription,
		Status:           enums.InvoiceStatusPending,
		Amount:           amount,
		Currency:         currency,
		StripeInvoiceID:  &inv.ID,
		PlanName:         planName,
		PlanType:         planType,
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)
		if err := repo.CreateInvoice(ctx, invoice); err != nil {
			return err
		}

		if inv.PaymentIntent == "" {
			return nil
		}
		attempt, err := repo.FindAttemptByPaymentIntentID(ctx, inv.PaymentIntent)
		if err != nil {
			return err
		}
		if attempt == nil {
			return nil
		}
		attempt.InvoiceID = invoice.ID
		attempt.Amount = &amount
		attempt.Currency = &currency
		return repo.UpdateAttempt(ctx, attempt)
	})
	if err != nil {
		return Result{}, err
	}
	return applied("invoice recorded"), nil
}

// handleInvoicePaymentSucceeded settles the attempt, creates at most one
// Payment and completes the invoice. Missing invoice or attempt means the
// prerequisite event has not landed; the sender redelivers.
func (s *Service) handleInvoicePaymentSucceeded(ctx context.Context, event *stripe.Event) (Result, error) {
	inv, err := decodeEvent[invoiceEvent](event)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode invoice")
	}

	var result Result
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)

		invoice, err := repo.FindInvoiceByStripeID(ctx, inv.ID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return ErrInvoiceNotFound
		}

		attempt, err := repo.FindAttemptByPaymentIntentID(ctx, inv.PaymentIntent)
		if err != nil {
			return err
		}
		if attempt == nil {
			return ErrPaymentAttemptNotFound
		}

		if attempt.Status != enums.PaymentAttemptStatusSucceeded {
			attempt.Status = enums.PaymentAttemptStatusSucceeded
			if inv.Charge != "" {
				attempt.StripeChargeID = &inv.Charge
			}
			if err := repo.UpdateAttempt(ctx, attempt); err != nil {
				return err
			}
		}

		existing, err := repo.FindPaymentByOriginAttemptID(ctx, attempt.ID)
		if err != nil {
			return err
		}
		created := false
		if existing == nil {
			currency := strings.ToUpper(inv.Currency)
			payment := &models.Payment{
				InvoiceID:             invoice.ID,
				OriginAttemptID:       &attempt.ID,
				PaymentMethodID:       attempt.PaymentMethodID,
				Status:                enums.PaymentStatusSucceeded,
				Amount:                minorUnitsToDecimal(inv.AmountPaid),
				Currency:              &currency,
				StripePaymentIntentID: attempt.StripePaymentIntentID,
				StripeChargeID:        attempt.StripeChargeID,
			}
			if err := repo.CreatePayment(ctx, payment); err != nil {
				return err
			}
			created = true
			if err := s.emitOnce(ctx, tx, enums.EventPaymentRecorded, payment.ID, map[string]any{
				"userId":    invoice.UserID.String(),
				"invoiceId": invoice.ID.String(),
				"amount":    payment.Amount.String(),
			}); err != nil {
				return err
			}
		}

		completed := false
		if invoiceStatusTransitionAllowed(invoice.Status, enums.InvoiceStatusCompleted) {
			now := time.Now().UTC()
			invoice.Status = enums.InvoiceStatusCompleted
			invoice.ProcessedAt = &now
			if err := repo.UpdateInvoice(ctx, invoice); err != nil {
				return err
			}
			completed = true
		}

		subID, err := s.linkInvoiceSubscription(ctx, tx, invoice, inv.Subscription)
		if err != nil {
			return err
		}
		if subID != nil {
			if err := s.restoreSubscription(ctx, tx, *subID); err != nil {
				return err
			}
		}

		if created || completed {
			result = applied("payment recorded")
		} else {
			result = skipped("payment already recorded")
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// handleInvoicePaymentFailed fails the attempt and invoice and pushes the
// subscription to past_due, or cancels it when the provider has given up
// retrying.
func (s *Service) handleInvoicePaymentFailed(ctx context.Context, event *stripe.Event) (Result, error) {
	inv, err := decodeEvent[invoiceEvent](event)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode invoice")
	}

	var result Result
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)

		invoice, err := repo.FindInvoiceByStripeID(ctx, inv.ID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return ErrInvoiceNotFound
		}

		dirty := false

		if inv.PaymentIntent != "" {
			attempt, err := repo.FindAttemptByPaymentIntentID(ctx, inv.PaymentIntent)
			if err != nil {
				return err
			}
			// A succeeded attempt is never downgraded by a late failure.
			if attempt != nil && attempt.Status != enums.PaymentAttemptStatusSucceeded &&
				attempt.Status != enums.PaymentAttemptStatusFailed {
				attempt.Status = enums.PaymentAttemptStatusFailed
				if err := repo.UpdateAttempt(ctx, attempt); err != nil {
					return err
				}
				dirty = true
			}
		}

		providerGaveUp := inv.NextPaymentAttempt == 0

		if providerGaveUp && invoiceStatusTransitionAllowed(invoice.Status, enums.InvoiceStatusFailed) {
			invoice.Status = enums.InvoiceStatusFailed
			if err := repo.UpdateInvoice(ctx, invoice); err != nil {
				return err
			}
			dirty = true
		}

		subID, err := s.linkInvoiceSubscription(ctx, tx, invoice, inv.Subscription)
		if err != nil {
			return err
		}
		if subID != nil {
			changed, err := s.demoteSubscription(ctx, tx, *subID, providerGaveUp)
			if err != nil {
				return err
			}
			dirty = dirty || changed
		}

		if dirty {
			result = applied("payment failure recorded")
		} else {
			result = skipped("failure already recorded")
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// mergeProfile copies customer details from the checkout session onto the
// profile without clobbering values we already hold. Reports whether
// anything changed.
func (s *Service) mergeProfile(profile *models.BillingProfile, session *checkoutSessionEvent) bool {
	changed := false
	if profile.StripeCustomerID == nil && session.Customer != "" {
		profile.StripeCustomerID = &session.Customer
		changed = true
	}
	if profile.FullName == "" && session.CustomerDetails != nil && session.CustomerDetails.Name != "" {
		profile.FullName = session.CustomerDetails.Name
		changed = true
	}
	if currency := strings.ToUpper(session.Currency); currency != "" && profile.Currency == "" {
		profile.Currency = currency
		changed = true
	}
	return changed
}

// linkInvoiceSubscription resolves the subscription an invoice belongs to,
// preferring the stored link and falling back to the subscription named on
// the event. The fallback repairs invoices recorded before their
// subscription row existed.
func (s *Service) linkInvoiceSubscription(ctx context.Context, tx *gorm.DB, invoice *models.Invoice, stripeSubID string) (*uuid.UUID, error) {
	if invoice.SubscriptionID != nil {
		return invoice.SubscriptionID, nil
	}
	if stripeSubID == "" {
		return nil, nil
	}
	stored, err := s.subRepo.WithTx(tx).FindByStripeID(ctx, stripeSubID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, nil
	}
	invoice.SubscriptionID = &stored.ID
	if err := s.billingRepo.WithTx(tx).UpdateInvoice(ctx, invoice); err != nil {
		return nil, err
	}
	return &stored.ID, nil
}

func (s *Service) restoreSubscription(ctx context.Context, tx *gorm.DB, subID uuid.UUID) error {
	repo := s.subRepo.WithTx(tx)
	stored, err := repo.FindByID(ctx, subID)
	if err != nil {
		return err
	}
	if stored == nil || stored.Status != enums.SubscriptionStatusPastDue {
		return nil
	}
	stored.Status = enums.SubscriptionStatusActive
	if err := repo.Update(ctx, stored); err != nil {
		return err
	}
	return s.emit(ctx, tx, enums.EventAccessGranted, stored.ID, map[string]any{
		"userId": stored.UserID.String(),
		"reason": "payment_recovered",
	})
}

func (s *Service) demoteSubscription(ctx context.Context, tx *gorm.DB, subID uuid.UUID, terminal bool) (bool, error) {
	repo := s.subRepo.WithTx(tx)
	stored, err := repo.FindByID(ctx, subID)
	if err != nil {
		return false, err
	}
	if stored == nil || stored.Status.IsTerminal() {
		return false, nil
	}

	if terminal {
		now := time.Now().UTC()
		stored.Status = enums.SubscriptionStatusCancelled
		stored.CancelledAt = &now
		if err := repo.Update(ctx, stored); err != nil {
			return false, err
		}
		return true, s.emit(ctx, tx, enums.EventAccessRevoked, stored.ID, map[string]any{
			"userId": stored.UserID.String(),
			"reason": "payment_failed",
		})
	}

	if stored.Status == enums.SubscriptionStatusPastDue {
		return false, nil
	}
	stored.Status = enums.SubscriptionStatusPastDue
	return true, repo.Update(ctx, stored)
}

func (s *Service) emitTransition(ctx context.Context, tx *gorm.DB, sub *models.Subscription, action transitionAction) error {
	switch action {
	case actionGrantAccess:
		return s.emit(ctx, tx, enums.EventAccessGranted, sub.ID, map[string]any{
			"userId": sub.UserID.String(),
			"status": sub.Status.String(),
		})
	case actionRevokeAccess:
		return s.emit(ctx, tx, enums.EventAccessRevoked, sub.ID, map[string]any{
			"userId": sub.UserID.String(),
			"status": sub.Status.String(),
		})
	default:
		return nil
	}
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, aggregateID uuid.UUID, data map[string]any) error {
	if s.outbox == nil {
		return nil
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   aggregateID,
		Data:          data,
	})
}

// emitOnce queues the event unless one already exists for the aggregate.
// Only for event kinds whose (type, aggregate) pair never repeats.
func (s *Service) emitOnce(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, aggregateID uuid.UUID, data map[string]any) error {
	if s.outbox == nil {
		return nil
	}
	return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayment,
		AggregateID:   aggregateID,
		Data:          data,
	})
}

func (s *Service) debugf(ctx context.Context, event *stripe.Event, format string, args ...any) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event_id":   event.ID,
		"event_type": string(event.Type),
	})
	s.logg.Debug(logCtx, fmt.Sprintf(format, args...))
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
