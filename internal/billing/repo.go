package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rafaelcosta/muralize-backend/pkg/db/models"
	"github.com/rafaelcosta/muralize-backend/pkg/enums"
	"github.com/rafaelcosta/muralize-backend/pkg/pagination"
)

// Repository handles billing ledger persistence: profiles, invoices,
// payment attempts and settled payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateProfile(ctx context.Context, profile *models.BillingProfile) error
	UpdateProfile(ctx context.Context, profile *models.BillingProfile) error
	FindProfileByUserID(ctx context.Context, userID uuid.UUID) (*models.BillingProfile, error)
	FindProfileByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*models.BillingProfile, error)

	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
	UpdateInvoice(ctx context.Context, invoice *models.Invoice) error
	FindInvoiceByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FindInvoiceByStripeID(ctx context.Context, stripeInvoiceID string) (*models.Invoice, error)
	ListInvoices(ctx context.Context, params ListInvoicesQuery) ([]models.Invoice, *pagination.Cursor, error)
	InvoiceStats(ctx context.Context, userID uuid.UUID) (*InvoiceStats, error)

	CreateAttempt(ctx context.Context, attempt *models.PaymentAttempt) error
	UpdateAttempt(ctx context.Context, attempt *models.PaymentAttempt) error
	FindAttemptByID(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error)
	FindAttemptBySessionID(ctx context.Context, stripeSessionID string) (*models.PaymentAttempt, error)
	FindAttemptByPaymentIntentID(ctx context.Context, stripePaymentIntentID string) (*models.PaymentAttempt, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindPaymentByOriginAttemptID(ctx context.Context, attemptID uuid.UUID) (*models.Payment, error)
	FindPaymentByPaymentIntentID(ctx context.Context, stripePaymentIntentID string) (*models.Payment, error)
}

// ListInvoicesQuery configures invoice list queries.
type ListInvoicesQuery struct {
	UserID uuid.UUID
	Status *enums.InvoiceStatus
	Limit  int
	After  *pagination.Cursor
}

// InvoiceStats aggregates a user's invoice history.
type InvoiceStats struct {
	TotalCount     int64           `json:"total_count"`
	CompletedCount int64           `json:"completed_count"`
	FailedCount    int64           `json:"failed_count"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateProfile(ctx context.Context, profile *models.BillingProfile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *repository) UpdateProfile(ctx context.Context, profile *models.BillingProfile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}

func (r *repository) FindProfileByUserID(ctx context.Context, userID uuid.UUID) (*models.BillingProfile, error) {
	var profile models.BillingProfile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *repository) FindProfileByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*models.BillingProfile, error) {
	var profile models.BillingProfile
	if err := r.db.WithContext(ctx).
		Where("stripe_customer_id = ?", stripeCustomerID).
		First(&profile).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *repository) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) UpdateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Save(invoice).Error
}

func (r *repository) FindInvoiceByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&invoice).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) FindInvoiceByStripeID(ctx context.Context, stripeInvoiceID string) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).
		Where("stripe_invoice_id = ?", stripeInvoiceID).
		First(&invoice).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) ListInvoices(ctx context.Context, params ListInvoicesQuery) ([]models.Invoice, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("user_id = ?", params.UserID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.After != nil {
		query = query.Where(
			"(created_at, id) < (?, ?)",
			params.After.CreatedAt, params.After.ID,
		)
	}

	var invoices []models.Invoice
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(limit + 1).
		Find(&invoices).Error; err != nil {
		return nil, nil, err
	}

	var next *pagination.Cursor
	if len(invoices) > limit {
		invoices = invoices[:limit]
		last := invoices[len(invoices)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return invoices, next, nil
}

func (r *repository) InvoiceStats(ctx context.Context, userID uuid.UUID) (*InvoiceStats, error) {
	var stats InvoiceStats
	base := r.db.WithContext(ctx).Model(&models.Invoice{}).Where("user_id = ?", userID)

	if err := base.Session(&gorm.Session{}).Count(&stats.TotalCount).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).
		Where("status = ?", enums.InvoiceStatusCompleted).
		Count(&stats.CompletedCount).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).
		Where("status = ?", enums.InvoiceStatusFailed).
		Count(&stats.FailedCount).Error; err != nil {
		return nil, err
	}

	var totalPaid decimal.NullDecimal
	if err := base.Session(&gorm.Session{}).
		Where("status = ?", enums.InvoiceStatusCompleted).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&totalPaid).Error; err != nil {
		return nil, err
	}
	if totalPaid.Valid {
		stats.TotalPaid = totalPaid.Decimal
	}
	return &stats, nil
}

func (r *repository) CreateAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *repository) UpdateAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	return r.db.WithContext(ctx).Save(attempt).Error
}

func (r *repository) FindAttemptByID(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&attempt).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &attempt, nil
}

func (r *repository) FindAttemptBySessionID(ctx context.Context, stripeSessionID string) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	if err := r.db.WithContext(ctx).
		Where("stripe_session_id = ?", stripeSessionID).
		First(&attempt).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &attempt, nil
}

func (r *repository) FindAttemptByPaymentIntentID(ctx context.Context, stripePaymentIntentID string) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	if err := r.db.WithContext(ctx).
		Where("stripe_payment_intent_id = ?", stripePaymentIntentID).
		First(&attempt).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &attempt, nil
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindPaymentByOriginAttemptID(ctx context.Context, attemptID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("origin_attempt_id = ?", attemptID).
		First(&payment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindPaymentByPaymentIntentID(ctx context.Context, stripePaymentIntentID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("stripe_payment_intent_id = ?", stripePaymentIntentID).
		First(&payment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}
