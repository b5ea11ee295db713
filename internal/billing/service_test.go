package billing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/rafaelcosta/muralize-backend/internal/plans"
	"github.com/rafaelcosta/muralize-backend/pkg/db/models"
	"github.com/rafaelcosta/muralize-backend/pkg/enums"
	pkgerrors "github.com/rafaelcosta/muralize-backend/pkg/errors"
)

type stubPlanRepo struct {
	plan *models.Plan
}

func (s *stubPlanRepo) WithTx(tx *gorm.DB) plans.Repository { return s }
func (s *stubPlanRepo) CreatePlan(ctx context.Context, plan *models.Plan) error {
	return nil
}
func (s *stubPlanRepo) UpdatePlan(ctx context.Context, plan *models.Plan) error {
	return nil
}
func (s *stubPlanRepo) ListPlans(ctx context.Context, params plans.ListPlansQuery) ([]models.Plan, error) {
	return nil, nil
}
func (s *stubPlanRepo) FindPlanByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	if s.plan != nil && s.plan.ID == id {
		return s.plan, nil
	}
	return nil, nil
}
func (s *stubPlanRepo) FindPlanByType(ctx context.Context, planType enums.PlanType) (*models.Plan, error) {
	return nil, nil
}
func (s *stubPlanRepo) FindDefaultPlan(ctx context.Context) (*models.Plan, error) {
	return nil, nil
}
func (s *stubPlanRepo) CreatePrice(ctx context.Context, price *models.PlanPrice) error {
	return nil
}
func (s *stubPlanRepo) FindPriceByStripeID(ctx context.Context, stripePriceID string) (*models.PlanPrice, error) {
	return nil, nil
}
func (s *stubPlanRepo) ListPricesByPlan(ctx context.Context, planID uuid.UUID) ([]models.PlanPrice, error) {
	return nil, nil
}

type stubStripeClient struct {
	customers int
	sessions  int
}

func (s *stubStripeClient) CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	s.customers++
	return &stripe.Customer{ID: "cus_test"}, nil
}

func (s *stubStripeClient) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.sessions++
	return &stripe.CheckoutSession{ID: "cs_test", URL: "https://checkout.test/cs_test"}, nil
}

func (s *stubStripeClient) CreatePortalSession(ctx context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	return &stripe.BillingPortalSession{URL: "https://portal.test"}, nil
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r *gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

func newCheckoutFixture(t *testing.T) (*Service, *stubStripeClient, *models.Plan) {
	t.Helper()
	db := setupBillingTestDB(t)

	plan := &models.Plan{
		ID:     uuid.New(),
		Name:   "Studio",
		Type:   enums.PlanTypePro,
		Status: enums.PlanStatusActive,
		Prices: []models.PlanPrice{{
			ID:            uuid.New(),
			BillingPeriod: enums.BillingPeriodMonthly,
			Amount:        decimal.NewFromFloat(74.90),
			Currency:      "BRL",
			StripePriceID: "price_studio_monthly",
		}},
	}
	planService, err := plans.NewService(plans.ServiceParams{Repo: &stubPlanRepo{plan: plan}})
	require.NoError(t, err)

	stripeClient := &stubStripeClient{}
	service, err := NewService(ServiceParams{
		Repo:              NewRepository(db),
		Plans:             planService,
		Stripe:            stripeClient,
		TransactionRunner: &gormTxRunner{db: db},
	})
	require.NoError(t, err)
	return service, stripeClient, plan
}

// Checkout never provisions a profile implicitly; the profile endpoint is
// the only way billing profiles come into existence.
func TestCreateCheckoutSession_RequiresExistingProfile(t *testing.T) {
	service, stripeClient, plan := newCheckoutFixture(t)

	_, err := service.CreateCheckoutSession(context.Background(), CheckoutParams{
		UserID:        uuid.New(),
		PlanID:        plan.ID,
		BillingPeriod: enums.BillingPeriodMonthly,
	})

	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	assert.Zero(t, stripeClient.customers)
	assert.Zero(t, stripeClient.sessions)
}

func TestCreateCheckoutSession_RejectsInactivePlan(t *testing.T) {
	service, _, plan := newCheckoutFixture(t)
	plan.Status = enums.PlanStatusArchived

	_, err := service.CreateCheckoutSession(context.Background(), CheckoutParams{
		UserID:        uuid.New(),
		PlanID:        plan.ID,
		BillingPeriod: enums.BillingPeriodMonthly,
	})

	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}
