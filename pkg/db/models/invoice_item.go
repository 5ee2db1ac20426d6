package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceItem is a single line on an invoice. Line totals must sum to the
// parent invoice's net amount.
type InvoiceItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID   uuid.UUID       `gorm:"column:invoice_id;type:uuid;not null;index"`
	Description string          `gorm:"column:description;not null"`
	Quantity    int             `gorm:"column:quantity;not null;default:1"`
	Unit        string          `gorm:"column:unit;not null;default:'month'"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	TaxAmount   decimal.Decimal `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	Total       decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}
