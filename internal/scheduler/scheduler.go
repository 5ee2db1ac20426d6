package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/utilitrack/utilitrack-backend/internal/billing"
	"github.com/utilitrack/utilitrack-backend/pkg/logger"
	"github.com/utilitrack/utilitrack-backend/pkg/metrics"
)

const defaultErrorBackoff = time.Hour

type cycleRunner interface {
	RunCycle(ctx context.Context, now time.Time) (billing.CycleReport, error)
}

// Status is a point-in-time snapshot of the scheduler, safe to hand to the
// HTTP status endpoint.
type Status struct {
	IsRunning bool       `json:"is_running"`
	Progress  int        `json:"progress"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
}

// ServiceParams configure the recurring billing scheduler.
type ServiceParams struct {
	Logger       *logger.Logger
	Runner       cycleRunner
	Lock         Lock
	Metrics      *metrics.BillingCycleMetrics
	ErrorBackoff time.Duration
	Now          func() time.Time
}

// Service wakes at every UTC midnight and drives one billing cycle,
// coordinating with other replicas through the lock.
type Service struct {
	logg    *logger.Logger
	runner  cycleRunner
	lock    Lock
	metrics *metrics.BillingCycleMetrics
	backoff time.Duration
	now     func() time.Time

	mu     sync.Mutex
	status Status
}

// NewService builds a billing scheduler.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Runner == nil {
		return nil, fmt.Errorf("cycle runner required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	backoff := params.ErrorBackoff
	if backoff <= 0 {
		backoff = defaultErrorBackoff
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:    params.Logger,
		runner:  params.Runner,
		lock:    params.Lock,
		metrics: params.Metrics,
		backoff: backoff,
		now:     now,
	}, nil
}

// NextRunTime returns the next UTC midnight strictly after from.
func NextRunTime(from time.Time) time.Time {
	utc := from.UTC()
	midnight := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.AddDate(0, 0, 1)
}

// Snapshot returns a copy of the current scheduler status.
func (s *Service) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Run drives the daily scheduling loop until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		next := NextRunTime(s.now())
		s.setNextRun(next)
		s.logg.Info(s.logg.WithField(ctx, "next_run_at", next), "billing scheduler waiting for next run")

		if err := s.sleepUntil(ctx, next); err != nil {
			s.logg.Info(ctx, "billing scheduler context canceled")
			return err
		}
		if err := s.loopOnce(ctx); err != nil {
			s.logg.Error(ctx, "billing run failed; backing off", err)
			if err := s.sleep(ctx, s.backoff); err != nil {
				return err
			}
		}
	}
}

// loopOnce runs a single cycle, converting panics into errors so one bad
// run cannot take the scheduler down.
func (s *Service) loopOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("billing cycle panicked: %v", r)
		}
	}()
	return s.executeCycle(ctx)
}

func (s *Service) executeCycle(ctx context.Context) error {
	started := s.now()
	s.startRun(started)
	defer s.finishRun()

	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another worker owns the billing lock; skipping this run")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release billing lock", relErr)
		}
	}()

	s.setProgress(25)
	s.logg.Info(ctx, "billing run starting")

	s.setProgress(50)
	report, runErr := s.runner.RunCycle(ctx, started)
	s.setProgress(75)

	duration := s.now().Sub(started)
	s.metrics.ObserveCycle(duration, report.Created, report.Skipped, report.Failed, runErr)

	resultCtx := s.logg.WithFields(ctx, map[string]any{
		"created":     report.Created,
		"skipped":     report.Skipped,
		"failed":      report.Failed,
		"duration_ms": duration.Milliseconds(),
	})
	if runErr != nil {
		s.logg.Error(resultCtx, "billing run failed", runErr)
		return runErr
	}
	s.setProgress(100)
	s.logg.Info(resultCtx, "billing run complete")
	return nil
}

func (s *Service) sleepUntil(ctx context.Context, deadline time.Time) error {
	return s.sleep(ctx, deadline.Sub(s.now()))
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Service) startRun(started time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.IsRunning = true
	s.status.Progress = 0
	s.status.LastRunAt = &started
}

func (s *Service) setProgress(progress int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Progress = progress
}

func (s *Service) setNextRun(next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.NextRunAt = &next
}

func (s *Service) finishRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.IsRunning = false
	s.status.Progress = 0
}
