package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/rafaelcosta/muralize-backend/pkg/enums"
)

// Plan captures the local metadata for a subscription plan. At most one plan
// exists per commercial type.
type Plan struct {
	ID        uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string           `gorm:"column:name;not null"`
	Type      enums.PlanType   `gorm:"column:type;type:plan_type;not null;uniqueIndex"`
	Status    enums.PlanStatus `gorm:"column:status;type:plan_status;not null;default:'draft'"`
	IsDefault bool             `gorm:"column:is_default;not null;default:false"`
	Features  pq.StringArray   `gorm:"column:features;type:text[];default:ARRAY[]::text[]"`
	Limits    json.RawMessage  `gorm:"column:limits;type:jsonb"`
	Prices    []PlanPrice      `gorm:"foreignKey:PlanID"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
