package plans

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rafaelcosta/muralize-backend/api/responses"
	"github.com/rafaelcosta/muralize-backend/api/validators"
	plansvc "github.com/rafaelcosta/muralize-backend/internal/plans"
	"github.com/rafaelcosta/muralize-backend/pkg/db/models"
	"github.com/rafaelcosta/muralize-backend/pkg/enums"
	pkgerrors "github.com/rafaelcosta/muralize-backend/pkg/errors"
	"github.com/rafaelcosta/muralize-backend/pkg/logger"
)

type planPriceResponse struct {
	ID            uuid.UUID `json:"id"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	BillingPeriod string    `json:"billing_period"`
}

type planResponse struct {
	ID        uuid.UUID           `json:"id"`
	Name      string              `json:"name"`
	Type      string              `json:"type"`
	Status    string              `json:"status"`
	IsDefault bool                `json:"is_default"`
	Features  []string            `json:"features"`
	Prices    []planPriceResponse `json:"prices"`
}

type planListResponse struct {
	Plans []planResponse `json:"plans"`
}

type createPlanRequest struct {
	Name      string   `json:"name" validate:"required,min=2,max=80"`
	Type      string   `json:"type" validate:"required"`
	IsDefault bool     `json:"is_default,omitempty"`
	Features  []string `json:"features,omitempty"`
}

// List returns the active catalog. Public: the pricing page reads this.
func List(svc *plansvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		plans, err := svc.ListActivePlans(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		payload := planListResponse{Plans: make([]planResponse, len(plans))}
		for i := range plans {
			payload.Plans[i] = newPlanResponse(&plans[i])
		}
		responses.WriteSuccess(w, payload)
	}
}

func AdminCreate(svc *plansvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		var payload createPlanRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		planType, err := enums.ParsePlanType(payload.Type)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan type"))
			return
		}

		plan, err := svc.CreatePlan(ctx, plansvc.CreatePlanParams{
			Name:      payload.Name,
			Type:      planType,
			IsDefault: payload.IsDefault,
			Features:  payload.Features,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		resp := newPlanResponse(plan)
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

func AdminActivate(svc *plansvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		planID, err := uuid.Parse(chi.URLParam(r, "planId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan id"))
			return
		}

		plan, err := svc.ActivatePlan(ctx, planID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		resp := newPlanResponse(plan)
		responses.WriteSuccess(w, resp)
	}
}

func newPlanResponse(plan *models.Plan) planResponse {
	resp := planResponse{
		ID:        plan.ID,
		Name:      plan.Name,
		Type:      string(plan.Type),
		Status:    string(plan.Status),
		IsDefault: plan.IsDefault,
		Features:  plan.Features,
		Prices:    make([]planPriceResponse, len(plan.Prices)),
	}
	for i, price := range plan.Prices {
		resp.Prices[i] = planPriceResponse{
			ID:            price.ID,
			Amount:        price.Amount.StringFixed(2),
			Currency:      price.Currency,
			BillingPeriod: string(price.BillingPeriod),
		}
	}
	return resp
}
