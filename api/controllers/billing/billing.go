package billing

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rafaelcosta/muralize-backend/api/controllers/usercontext"
	"github.com/rafaelcosta/muralize-backend/api/responses"
	"github.com/rafaelcosta/muralize-backend/api/validators"
	billingsvc "github.com/rafaelcosta/muralize-backend/internal/billing"
	"github.com/rafaelcosta/muralize-backend/pkg/db/models"
	"github.com/rafaelcosta/muralize-backend/pkg/enums"
	pkgerrors "github.com/rafaelcosta/muralize-backend/pkg/errors"
	"github.com/rafaelcosta/muralize-backend/pkg/logger"
)

type profileResponse struct {
	ID               uuid.UUID `json:"id"`
	FullName         string    `json:"full_name"`
	Currency         string    `json:"currency"`
	HasStripeAccount bool      `json:"has_stripe_account"`
	CreatedAt        time.Time `json:"created_at"`
}

type upsertProfileRequest struct {
	FullName string `json:"full_name" validate:"required,min=2,max=120"`
	Currency string `json:"currency,omitempty" validate:"omitempty,len=3"`
}

type checkoutRequest struct {
	PlanID        string `json:"plan_id" validate:"required,uuid4"`
	BillingPeriod string `json:"billing_period,omitempty"`
}

type portalResponse struct {
	PortalURL string `json:"portal_url"`
}

type invoiceResponse struct {
	ID          uuid.UUID  `json:"id"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Amount      string     `json:"amount"`
	Currency    string     `json:"currency"`
	PlanName    *string    `json:"plan_name,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type invoiceListResponse struct {
	Invoices []invoiceResponse `json:"invoices"`
	Cursor   string            `json:"cursor"`
}

type invoiceStatsResponse struct {
	TotalCount     int64  `json:"total_count"`
	CompletedCount int64  `json:"completed_count"`
	FailedCount    int64  `json:"failed_count"`
	TotalPaid      string `json:"total_paid"`
}

func Profile(svc *billingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		userID, err := usercontext.ResolveUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		profile, err := svc.GetProfile(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if profile == nil {
			responses.WriteSuccess(w, nil)
			return
		}
		responses.WriteSuccess(w, newProfileResponse(profile))
	}
}

func UpsertProfile(svc *billingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		userID, err := usercontext.ResolveUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload upsertProfileRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		profile, err := svc.UpsertProfile(ctx, billingsvc.UpsertProfileParams{
			UserID:   userID,
			FullName: payload.FullName,
			Currency: strings.ToUpper(payload.Currency),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProfileResponse(profile))
	}
}

func CreateCheckoutSession(svc *billingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		userID, err := usercontext.ResolveUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		planID, err := uuid.Parse(payload.PlanID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan id"))
			return
		}
		period := enums.BillingPeriodMonthly
		if raw := strings.TrimSpace(payload.BillingPeriod); raw != "" {
			parsed, parseErr := enums.ParseBillingPeriod(raw)
			if parseErr != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid billing period"))
				return
			}
			period = parsed
		}

		result, err := svc.CreateCheckoutSession(ctx, billingsvc.CheckoutParams{
			UserID:        userID,
			PlanID:        planID,
			BillingPeriod: period,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func CreatePortalSession(svc *billingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		userID, err := usercontext.ResolveUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		portalURL, err := svc.CreatePortalSession(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, portalResponse{PortalURL: portalURL})
	}
}

func ListInvoices(svc *billingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		userID, err := usercontext.ResolveUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var status *enums.InvoiceStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, parseErr := enums.ParseInvoiceStatus(raw)
			if parseErr != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid status"))
				return
			}
			status = &parsed
		}

		invoices, cursor, err := svc.ListInvoices(ctx, billingsvc.ListInvoicesParams{
			UserID: userID,
			Status: status,
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		payload := invoiceListResponse{
			Invoices: make([]invoiceResponse, len(invoices)),
			Cursor:   cursor,
		}
		for i, invoice := range invoices {
			payload.Invoices[i] = newInvoiceResponse(invoice)
		}
		responses.WriteSuccess(w, payload)
	}
}

func InvoiceStats(svc *billingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		userID, err := usercontext.ResolveUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		stats, err := svc.GetInvoiceStats(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoiceStatsResponse{
			TotalCount:     stats.TotalCount,
			CompletedCount: stats.CompletedCount,
			FailedCount:    stats.FailedCount,
			TotalPaid:      stats.TotalPaid.StringFixed(2),
		})
	}
}

func newProfileResponse(profile *models.BillingProfile) *profileResponse {
	if profile == nil {
		return nil
	}
	return &profileResponse{
		ID:               profile.ID,
		FullName:         profile.FullName,
		Currency:         profile.Currency,
		HasStripeAccount: profile.StripeCustomerID != nil,
		CreatedAt:        profile.CreatedAt,
	}
}

func newInvoiceResponse(invoice models.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:          invoice.ID,
		Type:        string(invoice.Type),
		Status:      string(invoice.Status),
		Amount:      formatAmount(invoice.Amount),
		Currency:    invoice.Currency,
		PlanName:    invoice.PlanName,
		ProcessedAt: invoice.ProcessedAt,
		CreatedAt:   invoice.CreatedAt,
	}
}

func formatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
