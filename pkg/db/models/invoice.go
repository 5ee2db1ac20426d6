package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utilitrack/utilitrack-backend/pkg/enums"
)

// Invoice is created once by the billing engine and never mutated by it
// afterward; status transitions belong to the payment workflow. The unique
// index on (tenant_id, period_label, type) backs the one-invoice-per-period
// guarantee for subscription invoices.
type Invoice struct {
	ID           uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Number       string              `gorm:"column:number;not null;unique"`
	TenantID     uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:idx_invoices_tenant_period_type"`
	PeriodLabel  string              `gorm:"column:period_label;not null;uniqueIndex:idx_invoices_tenant_period_type"`
	Type         enums.InvoiceType   `gorm:"column:type;type:invoice_type;not null;uniqueIndex:idx_invoices_tenant_period_type"`
	Status       enums.InvoiceStatus `gorm:"column:status;type:invoice_status;not null;default:'draft'"`
	IssueDate    time.Time           `gorm:"column:issue_date;not null"`
	DueDate      time.Time           `gorm:"column:due_date;not null"`
	CurrencyCode string              `gorm:"column:currency_code;not null"`
	TaxRate      decimal.Decimal     `gorm:"column:tax_rate;type:numeric(5,4);not null"`
	NetAmount    decimal.Decimal     `gorm:"column:net_amount;type:numeric(12,2);not null"`
	TaxAmount    decimal.Decimal     `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	TotalAmount  decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Items        []InvoiceItem       `gorm:"foreignKey:InvoiceID"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
}
