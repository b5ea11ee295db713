package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/rafaelcosta/muralize-backend/internal/plans"
	"github.com/rafaelcosta/muralize-backend/internal/users"
	"github.com/rafaelcosta/muralize-backend/pkg/config"
	"github.com/rafaelcosta/muralize-backend/pkg/db/models"
	"github.com/rafaelcosta/muralize-backend/pkg/enums"
	pkgerrors "github.com/rafaelcosta/muralize-backend/pkg/errors"
	"github.com/rafaelcosta/muralize-backend/pkg/logger"
	"github.com/rafaelcosta/muralize-backend/pkg/pagination"
)

// CheckoutMetadataUserID and CheckoutMetadataPlanType are the metadata keys
// stamped on checkout sessions and read back by the webhook engine.
const (
	CheckoutMetadataUserID   = "userId"
	CheckoutMetadataPlanType = "planType"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the billing service.
type ServiceParams struct {
	Repo              Repository
	Users             users.Repository
	Plans             *plans.Service
	Stripe            StripeBillingClient
	StripeCfg         config.StripeConfig
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service orchestrates billing profile, checkout and invoice operations.
type Service struct {
	repo      Repository
	users     users.Repository
	plans     *plans.Service
	stripe    StripeBillingClient
	stripeCfg config.StripeConfig
	txRunner  txRunner
	logg      *logger.Logger
}

// NewService builds a billing service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Plans == nil {
		return nil, errors.New("plan service is required")
	}
	if params.Stripe == nil {
		return nil, errors.New("stripe client is required")
	}
	if params.TransactionRunner == nil {
		return nil, errors.New("transaction runner is required")
	}
	return &Service{
		repo:      params.Repo,
		users:     params.Users,
		plans:     params.Plans,
		stripe:    params.Stripe,
		stripeCfg: params.StripeCfg,
		txRunner:  params.TransactionRunner,
		logg:      params.Logger,
	}, nil
}

// GetProfile returns the user's billing profile.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*models.BillingProfile, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	profile, err := s.repo.FindProfileByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find billing profile")
	}
	if profile == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "billing profile not found")
	}
	return profile, nil
}

// UpsertProfileParams carries billing profile input.
type UpsertProfileParams struct {
	UserID   uuid.UUID
	FullName string
	Currency string
}

// UpsertProfile creates or updates the user's billing profile.
func (s *Service) UpsertProfile(ctx context.Context, params UpsertProfileParams) (*models.BillingProfile, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if params.FullName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "full name is required")
	}
	if _, err := s.lookupUser(ctx, params.UserID); err != nil {
		return nil, err
	}

	profile, err := s.repo.FindProfileByUserID(ctx, params.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find billing profile")
	}

	if profile == nil {
		profile = &models.BillingProfile{
			UserID:   params.UserID,
			FullName: params.FullName,
			Currency: defaultCurrency(params.Currency),
		}
		if err := s.repo.CreateProfile(ctx, profile); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create billing profile")
		}
		return profile, nil
	}

	profile.FullName = params.FullName
	if params.Currency != "" {
		profile.Currency = params.Currency
	}
	if err := s.repo.UpdateProfile(ctx, profile); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update billing profile")
	}
	return profile, nil
}

// CheckoutParams carries checkout session input.
type CheckoutParams struct {
	UserID        uuid.UUID
	PlanID        uuid.UUID
	BillingPeriod enums.BillingPeriod
}

// CheckoutResult is the provider-hosted checkout handoff.
type CheckoutResult struct {
	SessionID   string    `json:"session_id"`
	CheckoutURL string    `json:"checkout_url"`
	InvoiceID   uuid.UUID `json:"invoice_id"`
	AttemptID   uuid.UUID `json:"attempt_id"`
}

// CreateCheckoutSession opens a hosted checkout for the given plan and
// records the pending invoice plus payment attempt keyed by the session id.
// The webhook engine later resolves the attempt by that id when the provider
// confirms or expires the session.
func (s *Service) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if params.BillingPeriod == "" {
		params.BillingPeriod = enums.BillingPeriodMonthly
	}
	if !params.BillingPeriod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid billing period")
	}

	plan, err := s.plans.GetPlan(ctx, params.PlanID)
	if err != nil {
		return nil, err
	}
	if plan.Status != enums.PlanStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "plan is not open for subscription")
	}

	var price *models.PlanPrice
	for i := range plan.Prices {
		if plan.Prices[i].BillingPeriod == params.BillingPeriod {
			price = &plan.Prices[i]
			break
		}
	}
	if price == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan has no price for the requested billing period")
	}

	profile, err := s.ensureProfileWithCustomer(ctx, params.UserID)
	if err != nil {
		return nil, err
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Customer:   profile.StripeCustomerID,
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(s.stripeCfg.CheckoutSuccessURL),
		CancelURL:  stripe.String(s.stripeCfg.CheckoutCancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(price.StripePriceID),
			Quantity: stripe.Int64(1),
		}},
		Metadata: map[string]string{
			CheckoutMetadataUserID:   params.UserID.String(),
			CheckoutMetadataPlanType: plan.Type.String(),
		},
	}
	sessionParams.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
		Metadata: sessionParams.Metadata,
	}

	session, err := s.stripe.CreateCheckoutSession(ctx, sessionParams)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	planName := plan.Name
	planType := plan.Type
	invoice := &models.Invoice{
		UserID:           params.UserID,
		BillingProfileID: profile.ID,
		Type:             enums.InvoiceTypeSubscription,
		Status:           enums.InvoiceStatusPending,
		Amount:           price.Amount,
		Currency:         price.Currency,
		PlanName:         &planName,
		PlanType:         &planType,
	}
	attempt := &models.PaymentAttempt{
		Status:          enums.PaymentAttemptStatusPending,
		Amount:          &price.Amount,
		Currency:        &price.Currency,
		StripeSessionID: &session.ID,
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateInvoice(ctx, invoice); err != nil {
			return err
		}
		attempt.InvoiceID = invoice.ID
		return repo.CreateAttempt(ctx, attempt)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record checkout")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"user_id":    params.UserID.String(),
			"session_id": session.ID,
			"invoice_id": invoice.ID.String(),
		})
		s.logg.Info(logCtx, "checkout session created")
	}

	return &CheckoutResult{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
		InvoiceID:   invoice.ID,
		AttemptID:   attempt.ID,
	}, nil
}

// CreatePortalSession opens the provider's self-service billing portal.
func (s *Service) CreatePortalSession(ctx context.Context, userID uuid.UUID) (string, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	if profile.StripeCustomerID == nil {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "billing profile has no provider customer yet")
	}

	session, err := s.stripe.CreatePortalSession(ctx, &stripe.BillingPortalSessionParams{
		Customer:  profile.StripeCustomerID,
		ReturnURL: stripe.String(s.stripeCfg.PortalReturnURL),
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create portal session")
	}
	return session.URL, nil
}

// ListInvoicesParams carries invoice history inputs.
type ListInvoicesParams struct {
	UserID uuid.UUID
	Status *enums.InvoiceStatus
	Limit  int
	Cursor string
}

// ListInvoices returns the user's invoice history, newest first.
func (s *Service) ListInvoices(ctx context.Context, params ListInvoicesParams) ([]models.Invoice, string, error) {
	if params.UserID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	after, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	invoices, next, err := s.repo.ListInvoices(ctx, ListInvoicesQuery{
		UserID: params.UserID,
		Status: params.Status,
		Limit:  params.Limit,
		After:  after,
	})
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list invoices")
	}

	nextCursor := ""
	if next != nil {
		nextCursor = pagination.EncodeCursor(*next)
	}
	return invoices, nextCursor, nil
}

// GetInvoiceStats aggregates the user's invoice history.
func (s *Service) GetInvoiceStats(ctx context.Context, userID uuid.UUID) (*InvoiceStats, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	stats, err := s.repo.InvoiceStats(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "invoice stats")
	}
	return stats, nil
}

func (s *Service) ensureProfileWithCustomer(ctx context.Context, userID uuid.UUID) (*models.BillingProfile, error) {
	profile, err := s.repo.FindProfileByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find billing profile")
	}
	if profile == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "billing profile must be created before checkout")
	}
	if profile.StripeCustomerID != nil {
		return profile, nil
	}

	customerParams := &stripe.CustomerParams{
		Name: stripe.String(profile.FullName),
		Metadata: map[string]string{
			CheckoutMetadataUserID: userID.String(),
		},
	}
	if user, err := s.lookupUser(ctx, userID); err == nil && user != nil {
		customerParams.Email = stripe.String(user.Email)
	}

	cust, err := s.stripe.CreateCustomer(ctx, customerParams)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe customer")
	}

	profile.StripeCustomerID = &cust.ID
	if err := s.repo.UpdateProfile(ctx, profile); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store stripe customer id")
	}
	return profile, nil
}

// lookupUser resolves the mirrored identity row when a user repository is
// wired. Missing or deactivated users cannot own billing state.
func (s *Service) lookupUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	if s.users == nil {
		return nil, nil
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find user")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "user account is deactivated")
	}
	return user, nil
}

func defaultCurrency(currency string) string {
	if currency == "" {
		return "BRL"
	}
	return currency
}
