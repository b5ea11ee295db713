package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rafaelcosta/muralize-backend/pkg/enums"
)

// Payment records money that actually moved. At most one Payment exists per
// successful attempt; refunds and chargebacks mutate status, never delete.
type Payment struct {
	ID                    uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID             uuid.UUID           `gorm:"column:invoice_id;type:uuid;not null;index"`
	OriginAttemptID       *uuid.UUID          `gorm:"column:origin_attempt_id;type:uuid;uniqueIndex"`
	PaymentMethodID       *uuid.UUID          `gorm:"column:payment_method_id;type:uuid"`
	Status                enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'succeeded'"`
	Amount                decimal.Decimal     `gorm:"column:amount;type:numeric(10,2);not null"`
	Currency              *string             `gorm:"column:currency"`
	StripePaymentIntentID *string             `gorm:"column:stripe_payment_intent_id;uniqueIndex"`
	StripeChargeID        *string             `gorm:"column:stripe_charge_id;uniqueIndex"`
	Metadata              json.RawMessage     `gorm:"column:metadata;type:jsonb"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
