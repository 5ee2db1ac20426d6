package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/utilitrack/utilitrack-backend/pkg/db/models"
	"github.com/utilitrack/utilitrack-backend/pkg/enums"
)

// Repository handles billing persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActiveTenantsDueForBilling(ctx context.Context, windowStart, windowEnd time.Time) ([]models.Tenant, error)
	FindPlanByType(ctx context.Context, planType enums.PlanType) (*models.SubscriptionPlan, error)
	SubscriptionInvoiceExists(ctx context.Context, tenantID uuid.UUID, periodLabel string) (bool, error)
	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
	SaveTenantsWithTx(tx *gorm.DB, tenants []models.Tenant) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindActiveTenantsDueForBilling(ctx context.Context, windowStart, windowEnd time.Time) ([]models.Tenant, error) {
	var tenants []models.Tenant
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Where("status = ?", enums.TenantStatusActive).
		Where("subscription_ends_at IS NOT NULL").
		Where("subscription_ends_at BETWEEN ? AND ?", windowStart, windowEnd).
		Order("subscription_ends_at ASC").
		Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}

func (r *repository) FindPlanByType(ctx context.Context, planType enums.PlanType) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	if err := r.db.WithContext(ctx).
		Where("plan_type = ?", planType).
		First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) SubscriptionInvoiceExists(ctx context.Context, tenantID uuid.UUID, periodLabel string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("tenant_id = ?", tenantID).
		Where("period_label = ?", periodLabel).
		Where("type = ?", enums.InvoiceTypeSubscription).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) SaveTenantsWithTx(tx *gorm.DB, tenants []models.Tenant) error {
	for i := range tenants {
		if err := tx.Save(&tenants[i]).Error; err != nil {
			return err
		}
	}
	return nil
}
