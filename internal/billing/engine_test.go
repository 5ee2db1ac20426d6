package billing

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utilitrack/utilitrack-backend/pkg/db/models"
	"github.com/utilitrack/utilitrack-backend/pkg/enums"
)

type fakeInvoiceStore struct {
	exists    bool
	existsErr error
	createErr error
	created   []*models.Invoice
}

func (f *fakeInvoiceStore) SubscriptionInvoiceExists(ctx context.Context, tenantID uuid.UUID, periodLabel string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeInvoiceStore) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, invoice)
	return nil
}

func testTenant() models.Tenant {
	return models.Tenant{
		ID:           uuid.MustParse("a1b2c3d4-0000-0000-0000-000000000001"),
		CompanyName:  "Acme Utilities",
		BillingEmail: "billing@acme.test",
		Active:       true,
		Status:       enums.TenantStatusActive,
		PlanType:     enums.PlanTypePremium,
	}
}

func testPlan() models.SubscriptionPlan {
	return models.SubscriptionPlan{
		ID:           "plan_premium",
		PlanType:     enums.PlanTypePremium,
		Name:         "Premium",
		MonthlyFee:   decimal.RequireFromString("199.99"),
		CurrencyCode: "USD",
	}
}

func newTestEngine(t *testing.T, store invoiceStore) *Engine {
	t.Helper()
	engine, err := NewEngine(EngineParams{
		Store: store,
		Now:   func() time.Time { return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewEngine returned error: %v", err)
	}
	return engine
}

func TestNewEngineRequiresStore(t *testing.T) {
	if _, err := NewEngine(EngineParams{}); err == nil {
		t.Fatal("expected error for missing store")
	}
}

func TestPeriodLabel(t *testing.T) {
	cases := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC), "2026-03"},
		{time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC), "2026-12"},
		// Local time close to a month boundary must resolve in UTC.
		{time.Date(2026, 4, 1, 0, 30, 0, 0, time.FixedZone("east", 2*3600)), "2026-03"},
	}
	for _, tc := range cases {
		if got := PeriodLabel(tc.in); got != tc.want {
			t.Errorf("PeriodLabel(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsAlreadyBilled(t *testing.T) {
	store := &fakeInvoiceStore{exists: true}
	engine := newTestEngine(t, store)

	billed, err := engine.IsAlreadyBilled(context.Background(), testTenant(), time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("IsAlreadyBilled returned error: %v", err)
	}
	if !billed {
		t.Error("expected tenant to be reported as billed")
	}
}

func TestGenerateInvoiceAmounts(t *testing.T) {
	store := &fakeInvoiceStore{}
	engine := newTestEngine(t, store)
	billingDate := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)

	invoice, err := engine.GenerateInvoice(context.Background(), testTenant(), testPlan(), billingDate)
	if err != nil {
		t.Fatalf("GenerateInvoice returned error: %v", err)
	}

	if got := invoice.NetAmount.StringFixed(2); got != "199.99" {
		t.Errorf("net amount = %s, want 199.99", got)
	}
	if got := invoice.TaxAmount.StringFixed(2); got != "40.00" {
		t.Errorf("tax amount = %s, want 40.00", got)
	}
	if got := invoice.TotalAmount.StringFixed(2); got != "239.99" {
		t.Errorf("total amount = %s, want 239.99", got)
	}
	if !invoice.TotalAmount.Equal(invoice.NetAmount.Add(invoice.TaxAmount)) {
		t.Error("total must equal net plus tax")
	}

	if invoice.PeriodLabel != "2026-03" {
		t.Errorf("period label = %q, want 2026-03", invoice.PeriodLabel)
	}
	if invoice.Type != enums.InvoiceTypeSubscription {
		t.Errorf("invoice type = %q, want subscription", invoice.Type)
	}
	if invoice.Status != enums.InvoiceStatusDraft {
		t.Errorf("invoice status = %q, want draft", invoice.Status)
	}
	if want := billingDate.Add(30 * 24 * time.Hour); !invoice.DueDate.Equal(want) {
		t.Errorf("due date = %v, want %v", invoice.DueDate, want)
	}

	if len(invoice.Items) != 1 {
		t.Fatalf("expected one line item, got %d", len(invoice.Items))
	}
	item := invoice.Items[0]
	if item.Quantity != 1 || item.Unit != "month" {
		t.Errorf("line item quantity/unit = %d/%q, want 1/month", item.Quantity, item.Unit)
	}
	if !item.UnitPrice.Equal(invoice.NetAmount) {
		t.Errorf("line item unit price = %s, want %s", item.UnitPrice, invoice.NetAmount)
	}

	if len(store.created) != 1 {
		t.Fatalf("expected invoice to be persisted once, got %d", len(store.created))
	}
}

func TestGenerateInvoiceNumberFormat(t *testing.T) {
	store := &fakeInvoiceStore{}
	engine := newTestEngine(t, store)

	invoice, err := engine.GenerateInvoice(context.Background(), testTenant(), testPlan(), time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GenerateInvoice returned error: %v", err)
	}

	pattern := regexp.MustCompile(`^INV-\d{4}-202603-\d{4}$`)
	if !pattern.MatchString(invoice.Number) {
		t.Errorf("invoice number %q does not match %s", invoice.Number, pattern)
	}
}

func TestGenerateInvoiceCurrencyFallback(t *testing.T) {
	store := &fakeInvoiceStore{}
	engine := newTestEngine(t, store)

	plan := testPlan()
	plan.CurrencyCode = ""

	invoice, err := engine.GenerateInvoice(context.Background(), testTenant(), plan, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GenerateInvoice returned error: %v", err)
	}
	if invoice.CurrencyCode != "USD" {
		t.Errorf("currency = %q, want USD fallback", invoice.CurrencyCode)
	}
}

func TestGenerateInvoicePlanMismatch(t *testing.T) {
	store := &fakeInvoiceStore{}
	engine := newTestEngine(t, store)

	plan := testPlan()
	plan.PlanType = enums.PlanTypeBasic

	if _, err := engine.GenerateInvoice(context.Background(), testTenant(), plan, time.Now()); err == nil {
		t.Fatal("expected error for plan type mismatch")
	}
	if len(store.created) != 0 {
		t.Error("no invoice should be persisted on mismatch")
	}
}

func TestGenerateInvoicePersistError(t *testing.T) {
	store := &fakeInvoiceStore{createErr: errors.New("connection reset")}
	engine := newTestEngine(t, store)

	_, err := engine.GenerateInvoice(context.Background(), testTenant(), testPlan(), time.Now())
	if err == nil {
		t.Fatal("expected persistence error to propagate")
	}
}
