package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rafaelcosta/muralize-backend/pkg/enums"
)

// Invoice is the local ledger record for money owed. Amount, plan name and
// plan type are snapshotted at registration time so later catalog edits do
// not rewrite history.
type Invoice struct {
	ID               uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	BillingProfileID uuid.UUID           `gorm:"column:billing_profile_id;type:uuid;not null;index"`
	SubscriptionID   *uuid.UUID          `gorm:"column:subscription_id;type:uuid;index"`
	Type             enums.InvoiceType   `gorm:"column:type;type:invoice_type;not null"`
	Status           enums.InvoiceStatus `gorm:"column:status;type:invoice_status;not null;default:'pending'"`
	Amount           decimal.Decimal     `gorm:"column:amount;type:numeric(10,2);not null"`
	Currency         string              `gorm:"column:currency;not null;default:'BRL'"`
	StripeInvoiceID  *string             `gorm:"column:stripe_invoice_id;uniqueIndex"`
	PlanName         *string             `gorm:"column:plan_name"`
	PlanType         *enums.PlanType     `gorm:"column:plan_type;type:plan_type"`
	Description      *string             `gorm:"column:description"`
	ProcessedAt      *time.Time          `gorm:"column:processed_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
