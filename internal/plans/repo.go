package plans

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rafaelcosta/muralize-backend/pkg/db/models"
	"github.com/rafaelcosta/muralize-backend/pkg/enums"
)

// Repository handles plan catalog persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreatePlan(ctx context.Context, plan *models.Plan) error
	UpdatePlan(ctx context.Context, plan *models.Plan) error
	ListPlans(ctx context.Context, params ListPlansQuery) ([]models.Plan, error)
	FindPlanByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	FindPlanByType(ctx context.Context, planType enums.PlanType) (*models.Plan, error)
	FindDefaultPlan(ctx context.Context) (*models.Plan, error)
	CreatePrice(ctx context.Context, price *models.PlanPrice) error
	FindPriceByStripeID(ctx context.Context, stripePriceID string) (*models.PlanPrice, error)
	ListPricesByPlan(ctx context.Context, planID uuid.UUID) ([]models.PlanPrice, error)
}

// ListPlansQuery configures plan list queries.
type ListPlansQuery struct {
	Status    *enums.PlanStatus
	IsDefault *bool
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a plan repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePlan(ctx context.Context, plan *models.Plan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *repository) UpdatePlan(ctx context.Context, plan *models.Plan) error {
	return r.db.WithContext(ctx).Save(plan).Error
}

func (r *repository) ListPlans(ctx context.Context, params ListPlansQuery) ([]models.Plan, error) {
	query := r.db.WithContext(ctx).Model(&models.Plan{}).Preload("Prices")
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.IsDefault != nil {
		query = query.Where("is_default = ?", *params.IsDefault)
	}
	var plans []models.Plan
	if err := query.Order("created_at ASC").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repository) FindPlanByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).Preload("Prices").Where("id = ?", id).First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) FindPlanByType(ctx context.Context, planType enums.PlanType) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).Preload("Prices").Where("type = ?", planType).First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) FindDefaultPlan(ctx context.Context) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).Preload("Prices").Where("is_default = TRUE").First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) CreatePrice(ctx context.Context, price *models.PlanPrice) error {
	return r.db.WithContext(ctx).Create(price).Error
}

func (r *repository) FindPriceByStripeID(ctx context.Context, stripePriceID string) (*models.PlanPrice, error) {
	var price models.PlanPrice
	if err := r.db.WithContext(ctx).Where("stripe_price_id = ?", stripePriceID).First(&price).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &price, nil
}

func (r *repository) ListPricesByPlan(ctx context.Context, planID uuid.UUID) ([]models.PlanPrice, error) {
	var prices []models.PlanPrice
	if err := r.db.WithContext(ctx).
		Where("plan_id = ?", planID).
		Order("created_at ASC").
		Find(&prices).Error; err != nil {
		return nil, err
	}
	return prices, nil
}
