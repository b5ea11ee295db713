package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/rafaelcosta/muralize-backend/pkg/enums"
)

// PaymentMethod mirrors Stripe payment methods per user.
type PaymentMethod struct {
	ID                    uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	StripePaymentMethodID string                  `gorm:"column:stripe_payment_method_id;not null;unique"`
	Type                  enums.PaymentMethodType `gorm:"column:type;type:payment_method_type;not null;default:'card'"`
	IsDefault             bool                    `gorm:"column:is_default;not null;default:false"`
	CardBrand             *string                 `gorm:"column:card_brand"`
	CardLast4             *string                 `gorm:"column:card_last4"`
	Metadata              json.RawMessage         `gorm:"column:metadata;type:jsonb"`
	CreatedAt             time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
