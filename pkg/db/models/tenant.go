package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/utilitrack/utilitrack-backend/pkg/enums"
)

// Tenant is a customer account on the platform. The billing pipeline reads
// identity/plan/status and advances SubscriptionEndsAt; everything else is
// owned by the CRUD surface.
type Tenant struct {
	ID                 uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyName        string             `gorm:"column:company_name;not null"`
	BillingEmail       string             `gorm:"column:billing_email;not null"`
	Active             bool               `gorm:"column:active;not null;default:true"`
	Status             enums.TenantStatus `gorm:"column:status;type:tenant_status;not null;default:'pending'"`
	PlanType           enums.PlanType     `gorm:"column:plan_type;type:plan_type;not null"`
	SubscriptionEndsAt *time.Time         `gorm:"column:subscription_ends_at;index"`
	CreatedAt          time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
