package repository

import (
	"context"
	"errors"

	"github.com/gridora/gridora/internal/payment/domain"
	"github.com/gridora/gridora/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct {
	db *gorm.DB
}

func ProvideRepository(gdb *gorm.DB) domain.Repository {
	return &repo{db: gdb}
}

// CreateIdempotent races on the unique indexes: the loser of a concurrent
// duplicate submission observes the constraint violation and falls back to
// fetching the winner's row.
func (r *repo) CreateIdempotent(ctx context.Context, payment *domain.Payment) (*domain.Payment, bool, error) {
	err := r.db.WithContext(ctx).Create(payment).Error
	if err == nil {
		return payment, true, nil
	}
	if !db.IsDuplicateKeyErr(err) {
		return nil, false, err
	}

	if payment.IdempotencyKey != nil {
		var existing domain.Payment
		ferr := r.db.WithContext(ctx).
			Where("idempotency_key = ?", *payment.IdempotencyKey).
			First(&existing).Error
		if ferr == nil {
			return &existing, false, nil
		}
		if !errors.Is(ferr, gorm.ErrRecordNotFound) {
			return nil, false, ferr
		}
	}

	// No key or no key match: the order already has a payment.
	return nil, false, domain.ErrAlreadyExists
}

// LockRetryable claims retryable rows for the sweep. SKIP LOCKED is only
// emitted on postgres; sqlite serializes writers on its own.
func (r *repo) LockRetryable(ctx context.Context, tx *gorm.DB, maxAttempts, limit int) ([]*domain.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	q := tx.WithContext(ctx).
		Where("status = ? AND attempt_count < ?", domain.StatusFailed, maxAttempts).
		Order("updated_at ASC").
		Limit(limit)
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}

	var payments []*domain.Payment
	if err := q.Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}
