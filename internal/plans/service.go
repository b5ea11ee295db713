package plans

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/rafaelcosta/muralize-backend/pkg/db/models"
	"github.com/rafaelcosta/muralize-backend/pkg/enums"
	pkgerrors "github.com/rafaelcosta/muralize-backend/pkg/errors"
)

// ServiceParams groups dependencies for the plan service.
type ServiceParams struct {
	Repo Repository
}

// Service orchestrates plan catalog operations.
type Service struct {
	repo Repository
}

// NewService builds a plan service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	return &Service{repo: params.Repo}, nil
}

// ListActivePlans returns the plans currently offered for subscription.
func (s *Service) ListActivePlans(ctx context.Context) ([]models.Plan, error) {
	status := enums.PlanStatusActive
	return s.repo.ListPlans(ctx, ListPlansQuery{Status: &status})
}

// GetPlan fetches one plan with its prices.
func (s *Service) GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id is required")
	}
	plan, err := s.repo.FindPlanByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find plan")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	return plan, nil
}

// GetDefaultPlan returns the plan users land on without a paid subscription.
func (s *Service) GetDefaultPlan(ctx context.Context) (*models.Plan, error) {
	plan, err := s.repo.FindDefaultPlan(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find default plan")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no default plan configured")
	}
	return plan, nil
}

// ResolvePrice maps a provider price id to the cataloged price row.
func (s *Service) ResolvePrice(ctx context.Context, stripePriceID string) (*models.PlanPrice, error) {
	if stripePriceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe price id is required")
	}
	price, err := s.repo.FindPriceByStripeID(ctx, stripePriceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find price")
	}
	return price, nil
}

// CreatePlanParams carries admin input for a new plan.
type CreatePlanParams struct {
	Name      string
	Type      enums.PlanType
	IsDefault bool
	Features  []string
}

// CreatePlan registers a new catalog entry in draft status.
func (s *Service) CreatePlan(ctx context.Context, params CreatePlanParams) (*models.Plan, error) {
	if params.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan name is required")
	}
	if !params.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid plan type")
	}

	existing, err := s.repo.FindPlanByType(ctx, params.Type)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check plan type")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a plan of this type already exists")
	}

	plan := &models.Plan{
		Name:      params.Name,
		Type:      params.Type,
		Status:    enums.PlanStatusDraft,
		IsDefault: params.IsDefault,
		Features:  params.Features,
	}
	if err := s.repo.CreatePlan(ctx, plan); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create plan")
	}
	return plan, nil
}

// ActivatePlan moves a draft plan into the offered catalog.
func (s *Service) ActivatePlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	plan, err := s.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.Status == enums.PlanStatusArchived {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "archived plans cannot be activated")
	}
	plan.Status = enums.PlanStatusActive
	if err := s.repo.UpdatePlan(ctx, plan); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update plan")
	}
	return plan, nil
}
