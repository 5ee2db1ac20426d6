package billing

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utilitrack/utilitrack-backend/pkg/db/models"
	"github.com/utilitrack/utilitrack-backend/pkg/enums"
)

const (
	defaultTaxRate          = 0.20
	defaultDueInDays        = 30
	defaultFallbackCurrency = string(enums.CurrencyUSD)
)

// invoiceStore defines the persistence surface the engine needs.
type invoiceStore interface {
	SubscriptionInvoiceExists(ctx context.Context, tenantID uuid.UUID, periodLabel string) (bool, error)
	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
}

// EngineParams configure the invoice generation engine.
type EngineParams struct {
	Store            invoiceStore
	TaxRate          float64
	DueInDays        int
	FallbackCurrency string
	Now              func() time.Time
}

// Engine decides whether a tenant is owed a new subscription invoice for a
// billing period and, if so, builds and persists it.
type Engine struct {
	store            invoiceStore
	taxRate          decimal.Decimal
	dueIn            time.Duration
	fallbackCurrency string
	now              func() time.Time
}

// NewEngine builds an invoice generation engine.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("invoice store required")
	}
	taxRate := params.TaxRate
	if taxRate <= 0 {
		taxRate = defaultTaxRate
	}
	dueInDays := params.DueInDays
	if dueInDays <= 0 {
		dueInDays = defaultDueInDays
	}
	fallback := params.FallbackCurrency
	if fallback == "" {
		fallback = defaultFallbackCurrency
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:            params.Store,
		taxRate:          decimal.NewFromFloat(taxRate),
		dueIn:            time.Duration(dueInDays) * 24 * time.Hour,
		fallbackCurrency: fallback,
		now:              now,
	}, nil
}

// PeriodLabel returns the calendar-month key used as the idempotency key
// alongside the tenant id.
func PeriodLabel(billingDate time.Time) string {
	return billingDate.UTC().Format("2006-01")
}

// IsAlreadyBilled reports whether a subscription invoice already exists for
// the tenant in the billing period containing billingDate.
func (e *Engine) IsAlreadyBilled(ctx context.Context, tenant models.Tenant, billingDate time.Time) (bool, error) {
	return e.store.SubscriptionInvoiceExists(ctx, tenant.ID, PeriodLabel(billingDate))
}

// GenerateInvoice builds and persists a draft subscription invoice for the
// tenant. Callers must check IsAlreadyBilled first; the plan must match the
// tenant's subscription type.
func (e *Engine) GenerateInvoice(ctx context.Context, tenant models.Tenant, plan models.SubscriptionPlan, billingDate time.Time) (*models.Invoice, error) {
	if plan.PlanType != tenant.PlanType {
		return nil, fmt.Errorf("plan %s does not match tenant plan type %s", plan.PlanType, tenant.PlanType)
	}

	issueDate := billingDate.UTC()
	label := PeriodLabel(billingDate)

	net := plan.MonthlyFee.Round(2)
	tax := net.Mul(e.taxRate).Round(2)
	total := net.Add(tax)

	currency := plan.CurrencyCode
	if currency == "" {
		currency = e.fallbackCurrency
	}

	invoice := &models.Invoice{
		Number:       e.invoiceNumber(tenant.ID, issueDate),
		TenantID:     tenant.ID,
		PeriodLabel:  label,
		Type:         enums.InvoiceTypeSubscription,
		Status:       enums.InvoiceStatusDraft,
		IssueDate:    issueDate,
		DueDate:      issueDate.Add(e.dueIn),
		CurrencyCode: currency,
		TaxRate:      e.taxRate,
		NetAmount:    net,
		TaxAmount:    tax,
		TotalAmount:  total,
		Items: []models.InvoiceItem{{
			Description: fmt.Sprintf("%s subscription for %s", plan.Name, label),
			Quantity:    1,
			Unit:        "month",
			UnitPrice:   net,
			TaxAmount:   tax,
			Total:       net,
		}},
	}

	if err := e.store.CreateInvoice(ctx, invoice); err != nil {
		return nil, fmt.Errorf("persist invoice: %w", err)
	}
	return invoice, nil
}

// invoiceNumber composes INV-{tenant4}-{yyyyMM}-{suffix4}. The suffix is
// wall-clock derived, which keeps collisions within the same tenant-month
// vanishingly unlikely without needing a sequence.
func (e *Engine) invoiceNumber(tenantID uuid.UUID, issueDate time.Time) string {
	tenantPart := binary.BigEndian.Uint32(tenantID[:4]) % 10000
	suffix := e.now().UnixNano() % 10000
	return fmt.Sprintf("INV-%04d-%s-%04d", tenantPart, issueDate.Format("200601"), suffix)
}
