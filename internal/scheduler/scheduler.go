// Package scheduler drives the periodic sweeps: aggregation, reading
// retention, pending-order promotion, and payment retries. Every sweep runs
// outside any request context and per-item failures never abort a whole run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gridora/gridora/internal/clock"
	"github.com/gridora/gridora/internal/observability/metrics"
	orderdomain "github.com/gridora/gridora/internal/order/domain"
	paymentdomain "github.com/gridora/gridora/internal/payment/domain"
	telemetrydomain "github.com/gridora/gridora/internal/telemetry/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler: missing required dependency")

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	TelemetrySvc telemetrydomain.Service
	OrderSvc     orderdomain.Service
	PaymentSvc   paymentdomain.Service
	Metrics      *metrics.Metrics `optional:"true"`
	Config       Config           `optional:"true"`
}

type Scheduler struct {
	db        *gorm.DB
	log       *zap.Logger
	cfg       Config
	clock     clock.Clock
	telemetry telemetrydomain.Service
	orders    orderdomain.Service
	payments  paymentdomain.Service
	metrics   *metrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil ||
		p.TelemetrySvc == nil || p.OrderSvc == nil || p.PaymentSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:        p.DB,
		log:       p.Log.Named("scheduler"),
		cfg:       p.Config.withDefaults(),
		clock:     p.Clock,
		telemetry: p.TelemetrySvc,
		orders:    p.OrderSvc,
		payments:  p.PaymentSvc,
		metrics:   p.Metrics,
	}, nil
}

// runJob wraps one sweep with a timeout, metrics, and logging. Hitting the
// deadline is treated as a soft failure: the job is cut short and retried
// on the next cycle.
func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	s.metrics.IncJobRun(name)
	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(name)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"aggregate_readings", s.AggregateReadingsJob},
		{"cleanup_readings", s.CleanupReadingsJob},
		{"process_pending_orders", s.ProcessPendingOrdersJob},
		{"retry_failed_payments", s.RetryFailedPaymentsJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.JobTimeout, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Empty EnabledJobs means every job runs.
func (s *Scheduler) isJobEnabled(name string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, name) {
			return true
		}
	}
	return false
}

func (s *Scheduler) AggregateReadingsJob(ctx context.Context) error {
	upserts, err := s.telemetry.Aggregate(ctx, s.clock.Now())
	if err != nil {
		return err
	}
	if upserts > 0 {
		s.log.Info("aggregation sweep done", zap.Int("upserts", upserts))
	}
	return nil
}

func (s *Scheduler) CleanupReadingsJob(ctx context.Context) error {
	cutoff := s.clock.Now().AddDate(0, 0, -s.cfg.RetentionDays)
	_, err := s.telemetry.CleanupOldReadings(ctx, cutoff)
	return err
}

func (s *Scheduler) ProcessPendingOrdersJob(ctx context.Context) error {
	promoted, err := s.orders.ProcessPending(ctx, s.clock.Now(), s.cfg.OrderConfirmAfter)
	if err != nil {
		return err
	}
	if promoted > 0 {
		s.log.Info("pending orders confirmed", zap.Int("promoted", promoted))
	}
	return nil
}

func (s *Scheduler) RetryFailedPaymentsJob(ctx context.Context) error {
	_, err := s.payments.RetryFailed(ctx, s.cfg.PaymentMaxAttempts)
	return err
}
