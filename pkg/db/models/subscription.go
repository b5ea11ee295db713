package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/rafaelcosta/muralize-backend/pkg/enums"
)

// Subscription is one billing term for a user. Rows are never hard-deleted;
// cancellation and expiry are status transitions so history survives. A fresh
// row is inserted on resubscription.
type Subscription struct {
	ID                   uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID               uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	PlanID               uuid.UUID                `gorm:"column:plan_id;type:uuid;not null"`
	Status               enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'incomplete'"`
	StartAt              time.Time                `gorm:"column:start_at;not null"`
	CurrentPeriodEnd     time.Time                `gorm:"column:current_period_end;not null"`
	TrialEnd             *time.Time               `gorm:"column:trial_end"`
	CancelAtPeriodEnd    bool                     `gorm:"column:cancel_at_period_end;not null;default:false"`
	CancelledAt          *time.Time               `gorm:"column:cancelled_at"`
	StripeSubscriptionID *string                  `gorm:"column:stripe_subscription_id;uniqueIndex"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
