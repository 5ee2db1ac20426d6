package billing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/utilitrack/utilitrack-backend/pkg/db"
	"github.com/utilitrack/utilitrack-backend/pkg/db/models"
	"github.com/utilitrack/utilitrack-backend/pkg/logger"
)

// Tenants whose subscription ends within this window are due for renewal.
const billingLookaheadMonths = 1

// CycleReport accounts for every tenant touched by one billing cycle.
type CycleReport struct {
	Created int
	Skipped int
	Failed  int
}

type invoiceGenerator interface {
	IsAlreadyBilled(ctx context.Context, tenant models.Tenant, billingDate time.Time) (bool, error)
	GenerateInvoice(ctx context.Context, tenant models.Tenant, plan models.SubscriptionPlan, billingDate time.Time) (*models.Invoice, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RunnerParams configure the billing cycle runner.
type RunnerParams struct {
	Logger *logger.Logger
	DB     txRunner
	Repo   Repository
	Engine invoiceGenerator
}

// Runner executes one full billing pass: it discovers due tenants, applies
// the engine to each in isolation, and batch-commits subscription
// advancements at the end.
type Runner struct {
	logg   *logger.Logger
	db     txRunner
	repo   Repository
	engine invoiceGenerator
}

// NewRunner builds a billing cycle runner.
func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("billing repository required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("invoice engine required")
	}
	return &Runner{
		logg:   params.Logger,
		db:     params.DB,
		repo:   params.Repo,
		engine: params.Engine,
	}, nil
}

type tenantOutcome int

const (
	tenantBilled tenantOutcome = iota
	tenantSkipped
	tenantFailed
)

// RunCycle processes every due tenant once. Per-tenant failures are recorded
// in the report and never abort the cycle; only the final batch commit of
// subscription advancements is a cycle-level error.
func (r *Runner) RunCycle(ctx context.Context, now time.Time) (CycleReport, error) {
	var report CycleReport

	windowStart := now.UTC()
	windowEnd := windowStart.AddDate(0, billingLookaheadMonths, 0)
	tenants, err := r.repo.FindActiveTenantsDueForBilling(ctx, windowStart, windowEnd)
	if err != nil {
		return report, fmt.Errorf("list tenants due for billing: %w", err)
	}

	logCtx := r.logg.WithFields(ctx, map[string]any{
		"period":     PeriodLabel(now),
		"candidates": len(tenants),
	})
	r.logg.Info(logCtx, "billing cycle starting")

	var tenantErrs error
	staged := make([]models.Tenant, 0, len(tenants))
	for i := range tenants {
		tenant := tenants[i]
		tenantCtx := r.logg.WithFields(logCtx, map[string]any{
			"tenant_id": tenant.ID,
			"plan_type": tenant.PlanType,
		})
		outcome, err := r.billTenant(tenantCtx, &tenant, now)
		switch outcome {
		case tenantBilled:
			report.Created++
			staged = append(staged, tenant)
		case tenantSkipped:
			report.Skipped++
		case tenantFailed:
			report.Failed++
			r.logg.Error(tenantCtx, "tenant billing failed", err)
			tenantErrs = multierr.Append(tenantErrs, err)
		}
	}
	if tenantErrs != nil {
		r.logg.Error(logCtx, "billing cycle had tenant failures", tenantErrs)
	}

	if len(staged) > 0 {
		if err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
			return r.repo.SaveTenantsWithTx(tx, staged)
		}); err != nil {
			return report, fmt.Errorf("persist subscription advancements: %w", err)
		}
	}

	reportCtx := r.logg.WithFields(logCtx, map[string]any{
		"created": report.Created,
		"skipped": report.Skipped,
		"failed":  report.Failed,
	})
	r.logg.Info(reportCtx, "billing cycle complete")
	return report, nil
}

// billTenant handles one tenant in isolation. It mutates the tenant's
// subscription end date in memory on success; the caller commits the batch.
func (r *Runner) billTenant(ctx context.Context, tenant *models.Tenant, now time.Time) (tenantOutcome, error) {
	billed, err := r.engine.IsAlreadyBilled(ctx, *tenant, now)
	if err != nil {
		return tenantFailed, fmt.Errorf("check existing invoice: %w", err)
	}
	if billed {
		r.logg.Info(ctx, "tenant already billed this period; skipping")
		return tenantSkipped, nil
	}

	plan, err := r.repo.FindPlanByType(ctx, tenant.PlanType)
	if err != nil {
		return tenantFailed, fmt.Errorf("resolve subscription plan: %w", err)
	}
	if plan == nil {
		r.logg.Warn(ctx, "no subscription plan matches tenant plan type; skipping")
		return tenantSkipped, nil
	}

	invoice, err := r.engine.GenerateInvoice(ctx, *tenant, *plan, now)
	if err != nil {
		// Another worker may have inserted the invoice between the
		// existence check and the write. The unique index makes that a
		// duplicate, not a double charge.
		if db.IsUniqueViolation(err, "idx_invoices_tenant_period_type") {
			r.logg.Info(ctx, "invoice already created by another worker; skipping")
			return tenantSkipped, nil
		}
		return tenantFailed, fmt.Errorf("generate invoice: %w", err)
	}

	advanceSubscription(tenant, now)
	successCtx := r.logg.WithFields(ctx, map[string]any{
		"invoice_number": invoice.Number,
		"total_amount":   invoice.TotalAmount,
	})
	r.logg.Info(successCtx, "subscription invoice created")
	return tenantBilled, nil
}

// advanceSubscription moves the tenant's subscription end date forward by one
// calendar month, anchoring on now when no end date exists yet.
func advanceSubscription(tenant *models.Tenant, now time.Time) {
	if tenant.SubscriptionEndsAt == nil {
		next := now.UTC().AddDate(0, 1, 0)
		tenant.SubscriptionEndsAt = &next
		return
	}
	next := tenant.SubscriptionEndsAt.AddDate(0, 1, 0)
	tenant.SubscriptionEndsAt = &next
}
