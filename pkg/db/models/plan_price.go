package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rafaelcosta/muralize-backend/pkg/enums"
)

// PlanPrice is one purchasable price point of a plan. The stripe price id is
// the lookup key used to resolve plans from webhook payloads.
type PlanPrice struct {
	ID            uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PlanID        uuid.UUID           `gorm:"column:plan_id;type:uuid;not null;index"`
	StripePriceID string              `gorm:"column:stripe_price_id;not null;uniqueIndex"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(10,2);not null"`
	Currency      string              `gorm:"column:currency;type:char(3);not null"`
	BillingPeriod enums.BillingPeriod `gorm:"column:billing_period;type:billing_period;not null;default:'monthly'"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
