package billing

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/utilitrack/utilitrack-backend/pkg/db/models"
	"github.com/utilitrack/utilitrack-backend/pkg/enums"
	"github.com/utilitrack/utilitrack-backend/pkg/logger"
)

type fakeRepository struct {
	tenants    []models.Tenant
	tenantsErr error
	plans      map[enums.PlanType]*models.SubscriptionPlan
	planErr    error
	saved      []models.Tenant
	saveErr    error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) FindActiveTenantsDueForBilling(ctx context.Context, windowStart, windowEnd time.Time) ([]models.Tenant, error) {
	return f.tenants, f.tenantsErr
}

func (f *fakeRepository) FindPlanByType(ctx context.Context, planType enums.PlanType) (*models.SubscriptionPlan, error) {
	if f.planErr != nil {
		return nil, f.planErr
	}
	return f.plans[planType], nil
}

func (f *fakeRepository) SubscriptionInvoiceExists(ctx context.Context, tenantID uuid.UUID, periodLabel string) (bool, error) {
	return false, nil
}

func (f *fakeRepository) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return nil
}

func (f *fakeRepository) SaveTenantsWithTx(tx *gorm.DB, tenants []models.Tenant) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, tenants...)
	return nil
}

type fakeEngine struct {
	billed      map[uuid.UUID]bool
	billedErr   map[uuid.UUID]error
	generateErr map[uuid.UUID]error
	generated   []uuid.UUID
}

func (f *fakeEngine) IsAlreadyBilled(ctx context.Context, tenant models.Tenant, billingDate time.Time) (bool, error) {
	if err := f.billedErr[tenant.ID]; err != nil {
		return false, err
	}
	return f.billed[tenant.ID], nil
}

func (f *fakeEngine) GenerateInvoice(ctx context.Context, tenant models.Tenant, plan models.SubscriptionPlan, billingDate time.Time) (*models.Invoice, error) {
	if err := f.generateErr[tenant.ID]; err != nil {
		return nil, err
	}
	f.generated = append(f.generated, tenant.ID)
	return &models.Invoice{Number: "INV-0001-202603-0001", TenantID: tenant.ID}, nil
}

type fakeTxRunner struct {
	err error
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

func tenantWithEnd(id string, end time.Time) models.Tenant {
	return models.Tenant{
		ID:                 uuid.MustParse(id),
		Active:             true,
		Status:             enums.TenantStatusActive,
		PlanType:           enums.PlanTypePremium,
		SubscriptionEndsAt: &end,
	}
}

func newTestRunner(t *testing.T, repo Repository, engine invoiceGenerator, db txRunner) *Runner {
	t.Helper()
	runner, err := NewRunner(RunnerParams{
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:     db,
		Repo:   repo,
		Engine: engine,
	})
	if err != nil {
		t.Fatalf("NewRunner returned error: %v", err)
	}
	return runner
}

func TestRunCycleReportsOutcomes(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	end := now.AddDate(0, 0, 10)

	billedID := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	skippedID := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	failedID := uuid.MustParse("00000000-0000-0000-0000-000000000003")

	repo := &fakeRepository{
		tenants: []models.Tenant{
			tenantWithEnd(billedID.String(), end),
			tenantWithEnd(skippedID.String(), end),
			tenantWithEnd(failedID.String(), end),
		},
		plans: map[enums.PlanType]*models.SubscriptionPlan{
			enums.PlanTypePremium: {ID: "plan_premium", PlanType: enums.PlanTypePremium, Name: "Premium"},
		},
	}
	engine := &fakeEngine{
		billed:      map[uuid.UUID]bool{skippedID: true},
		billedErr:   map[uuid.UUID]error{},
		generateErr: map[uuid.UUID]error{failedID: errors.New("db down")},
	}
	runner := newTestRunner(t, repo, engine, &fakeTxRunner{})

	report, err := runner.RunCycle(context.Background(), now)
	if err != nil {
		t.Fatalf("RunCycle returned error: %v", err)
	}
	if report.Created != 1 || report.Skipped != 1 || report.Failed != 1 {
		t.Errorf("report = %+v, want 1 created, 1 skipped, 1 failed", report)
	}
	if len(engine.generated) != 1 || engine.generated[0] != billedID {
		t.Errorf("generated invoices for %v, want only %s", engine.generated, billedID)
	}
	if len(repo.saved) != 1 || repo.saved[0].ID != billedID {
		t.Fatalf("saved tenants %v, want only the billed tenant", repo.saved)
	}
}

func TestRunCycleAdvancesSubscription(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	id := "00000000-0000-0000-0000-000000000010"

	repo := &fakeRepository{
		tenants: []models.Tenant{tenantWithEnd(id, end)},
		plans: map[enums.PlanType]*models.SubscriptionPlan{
			enums.PlanTypePremium: {ID: "plan_premium", PlanType: enums.PlanTypePremium},
		},
	}
	runner := newTestRunner(t, repo, &fakeEngine{}, &fakeTxRunner{})

	if _, err := runner.RunCycle(context.Background(), now); err != nil {
		t.Fatalf("RunCycle returned error: %v", err)
	}
	if len(repo.saved) != 1 {
		t.Fatalf("expected one saved tenant, got %d", len(repo.saved))
	}
	want := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if got := repo.saved[0].SubscriptionEndsAt; got == nil || !got.Equal(want) {
		t.Errorf("subscription end = %v, want %v", got, want)
	}
}

func TestRunCycleMissingPlanSkips(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	repo := &fakeRepository{
		tenants: []models.Tenant{tenantWithEnd("00000000-0000-0000-0000-000000000020", now.AddDate(0, 0, 5))},
		plans:   map[enums.PlanType]*models.SubscriptionPlan{},
	}
	runner := newTestRunner(t, repo, &fakeEngine{}, &fakeTxRunner{})

	report, err := runner.RunCycle(context.Background(), now)
	if err != nil {
		t.Fatalf("RunCycle returned error: %v", err)
	}
	if report.Skipped != 1 || report.Created != 0 || report.Failed != 0 {
		t.Errorf("report = %+v, want the tenant skipped", report)
	}
	if len(repo.saved) != 0 {
		t.Error("skipped tenant must not be saved")
	}
}

func TestRunCycleConcurrentInsertSkips(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	id := uuid.MustParse("00000000-0000-0000-0000-000000000040")

	repo := &fakeRepository{
		tenants: []models.Tenant{tenantWithEnd(id.String(), now.AddDate(0, 0, 5))},
		plans: map[enums.PlanType]*models.SubscriptionPlan{
			enums.PlanTypePremium: {ID: "plan_premium", PlanType: enums.PlanTypePremium},
		},
	}
	engine := &fakeEngine{
		generateErr: map[uuid.UUID]error{
			id: errors.New(`duplicate key value violates unique constraint "idx_invoices_tenant_period_type"`),
		},
	}
	runner := newTestRunner(t, repo, engine, &fakeTxRunner{})

	report, err := runner.RunCycle(context.Background(), now)
	if err != nil {
		t.Fatalf("RunCycle returned error: %v", err)
	}
	if report.Skipped != 1 || report.Failed != 0 {
		t.Errorf("report = %+v, want the duplicate counted as skipped", report)
	}
	if len(repo.saved) != 0 {
		t.Error("tenant must not be advanced when another worker billed it")
	}
}

func TestRunCycleListError(t *testing.T) {
	repo := &fakeRepository{tenantsErr: errors.New("timeout")}
	runner := newTestRunner(t, repo, &fakeEngine{}, &fakeTxRunner{})

	if _, err := runner.RunCycle(context.Background(), time.Now()); err == nil {
		t.Fatal("expected tenant listing error to propagate")
	}
}

func TestRunCycleCommitFailure(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	repo := &fakeRepository{
		tenants: []models.Tenant{tenantWithEnd("00000000-0000-0000-0000-000000000030", now.AddDate(0, 0, 5))},
		plans: map[enums.PlanType]*models.SubscriptionPlan{
			enums.PlanTypePremium: {ID: "plan_premium", PlanType: enums.PlanTypePremium},
		},
		saveErr: errors.New("deadlock"),
	}
	runner := newTestRunner(t, repo, &fakeEngine{}, &fakeTxRunner{})

	report, err := runner.RunCycle(context.Background(), now)
	if err == nil {
		t.Fatal("expected commit failure to surface as cycle error")
	}
	if report.Created != 1 {
		t.Errorf("report should still count the created invoice, got %+v", report)
	}
}

func TestRunCycleNoTenants(t *testing.T) {
	repo := &fakeRepository{}
	runner := newTestRunner(t, repo, &fakeEngine{}, &fakeTxRunner{})

	report, err := runner.RunCycle(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("RunCycle returned error: %v", err)
	}
	if report != (CycleReport{}) {
		t.Errorf("report = %+v, want empty", report)
	}
}
