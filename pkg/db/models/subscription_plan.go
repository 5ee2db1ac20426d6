package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/utilitrack/utilitrack-backend/pkg/enums"
)

// SubscriptionPlan is the pricing record looked up by a tenant's plan type.
// Read-only from the billing pipeline's perspective.
type SubscriptionPlan struct {
	ID           string          `gorm:"column:id;primaryKey"`
	PlanType     enums.PlanType  `gorm:"column:plan_type;type:plan_type;not null;uniqueIndex"`
	Name         string          `gorm:"column:name;not null"`
	MonthlyFee   decimal.Decimal `gorm:"column:monthly_fee;type:numeric(12,2);not null"`
	CurrencyCode string          `gorm:"column:currency_code;not null;default:''"`
	Features     pq.StringArray  `gorm:"column:features;type:text[];default:ARRAY[]::text[]"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
