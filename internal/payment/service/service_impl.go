package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gridora/gridora/internal/clock"
	orderdomain "github.com/gridora/gridora/internal/order/domain"
	"github.com/gridora/gridora/internal/payment/domain"
	"github.com/gridora/gridora/pkg/repository"
	"github.com/gridora/gridora/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	OrderSvc orderdomain.Service
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	repo   domain.Repository
	orders orderdomain.Service

	payments *repository.Store[domain.Payment]
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("payment.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		repo:   p.Repo,
		orders: p.OrderSvc,

		payments: repository.NewStore[domain.Payment](p.DB, p.Log),
	}
}

func (s *Service) CreateForOrder(ctx context.Context, req domain.CreateRequest) (*domain.Payment, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return nil, repository.ErrTenantRequired
	}

	if !req.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if req.Method == "" {
		req.Method = domain.MethodCard
	}
	if !req.Method.Valid() {
		return nil, domain.ErrInvalidMethod
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	// The order must exist in the caller's tenant before a payment is
	// attached to it.
	if _, err := s.orders.Get(ctx, req.OrderID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	payment := &domain.Payment{
		ID:        s.genID.Generate(),
		OrderID:   req.OrderID,
		Amount:    req.Amount,
		Currency:  strings.ToUpper(req.Currency),
		Status:    domain.StatusPending,
		Method:    req.Method,
		CreatedAt: now,
		UpdatedAt: now,
	}
	payment.TenantID = tenantID
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		payment.IdempotencyKey = &key
	}

	existing, created, err := s.repo.CreateIdempotent(ctx, payment)
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Info("payment created",
			zap.Int64("order_id", int64(req.OrderID)),
			zap.String("currency", payment.Currency),
		)
	}
	return existing, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Payment, error) {
	payment, err := s.payments.FindOne(ctx, &domain.Payment{ID: id})
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, domain.ErrNotFound
	}
	return payment, nil
}

func (s *Service) GetByOrder(ctx context.Context, orderID snowflake.ID) (*domain.Payment, error) {
	payment, err := s.payments.FindOne(ctx, &domain.Payment{OrderID: orderID})
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, domain.ErrNotFound
	}
	return payment, nil
}

func (s *Service) transition(ctx context.Context, id snowflake.ID, changes map[string]any) (*domain.Payment, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	changes["updated_at"] = s.clock.Now()
	if err := s.payments.Updates(ctx, id, changes); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Service) MarkAuthorized(ctx context.Context, id snowflake.ID, transactionID string) (*domain.Payment, error) {
	return s.transition(ctx, id, map[string]any{
		"status":         domain.StatusAuthorized,
		"transaction_id": transactionID,
		"authorized_at":  s.clock.Now(),
	})
}

func (s *Service) MarkCaptured(ctx context.Context, id snowflake.ID) (*domain.Payment, error) {
	return s.transition(ctx, id, map[string]any{
		"status":      domain.StatusCaptured,
		"captured_at": s.clock.Now(),
	})
}

func (s *Service) MarkFailed(ctx context.Context, id snowflake.ID, reason string) (*domain.Payment, error) {
	return s.transition(ctx, id, map[string]any{
		"status":     domain.StatusFailed,
		"last_error": reason,
		"failed_at":  s.clock.Now(),
	})
}

func (s *Service) MarkRefunded(ctx context.Context, id snowflake.ID) (*domain.Payment, error) {
	return s.transition(ctx, id, map[string]any{
		"status":      domain.StatusRefunded,
		"refunded_at": s.clock.Now(),
	})
}

// RetryFailed hands every retryable payment back to processing, bumping its
// attempt count. The claim and the update share one transaction so
// concurrent sweeps never double-count an attempt.
func (s *Service) RetryFailed(ctx context.Context, maxAttempts int) (int, error) {
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}

	var retried int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payments, err := s.repo.LockRetryable(ctx, tx, maxAttempts, 500)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		for _, payment := range payments {
			res := tx.Model(&domain.Payment{}).
				Where("id = ? AND status = ? AND attempt_count = ?",
					payment.ID, domain.StatusFailed, payment.AttemptCount).
				Updates(map[string]any{
					"attempt_count": payment.AttemptCount + 1,
					"status":        domain.StatusProcessing,
					"updated_at":    now,
				})
			if res.Error != nil {
				s.log.Error("payment retry failed",
					zap.Int64("payment_id", int64(payment.ID)),
					zap.Error(res.Error),
				)
				continue
			}
			if res.RowsAffected == 0 {
				continue
			}
			retried++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if retried > 0 {
		s.log.Info("failed payments retried", zap.Int("count", retried))
	}
	return retried, nil
}
