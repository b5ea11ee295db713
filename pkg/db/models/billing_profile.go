package models

import (
	"time"

	"github.com/google/uuid"
)

// BillingProfile links a user to their identity at the payment provider.
// One per user; the stripe customer id is set lazily on first checkout.
type BillingProfile struct {
	ID               uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	FullName         string    `gorm:"column:full_name;not null"`
	StripeCustomerID *string   `gorm:"column:stripe_customer_id;uniqueIndex"`
	Currency         string    `gorm:"column:currency;not null;default:'BRL'"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
