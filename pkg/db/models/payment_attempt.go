package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rafaelcosta/muralize-backend/pkg/enums"
)

// PaymentAttempt tracks one charge attempt against an invoice, keyed to the
// provider by checkout session id and later payment intent id.
type PaymentAttempt struct {
	ID                    uuid.UUID                  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID             uuid.UUID                  `gorm:"column:invoice_id;type:uuid;not null;index"`
	PaymentMethodID       *uuid.UUID                 `gorm:"column:payment_method_id;type:uuid"`
	Status                enums.PaymentAttemptStatus `gorm:"column:status;type:payment_attempt_status;not null;default:'pending'"`
	Amount                *decimal.Decimal           `gorm:"column:amount;type:numeric(10,2)"`
	Currency              *string                    `gorm:"column:currency"`
	StripeSessionID       *string                    `gorm:"column:stripe_session_id;uniqueIndex"`
	StripePaymentIntentID *string                    `gorm:"column:stripe_payment_intent_id;uniqueIndex"`
	StripeChargeID        *string                    `gorm:"column:stripe_charge_id"`
	Metadata              json.RawMessage            `gorm:"column:metadata;type:jsonb"`
	CreatedAt             time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}
