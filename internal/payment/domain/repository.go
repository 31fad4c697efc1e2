package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository covers the payment writes that need storage-level races
// resolved: the idempotent insert and the retry-sweep claim.
type Repository interface {
	// CreateIdempotent inserts the payment, falling back to the existing
	// record when the idempotency key already exists. The second return
	// reports whether a new row was created. A duplicate order without a
	// matching key is ErrAlreadyExists.
	CreateIdempotent(ctx context.Context, payment *Payment) (*Payment, bool, error)

	// LockRetryable claims up to limit retryable payments inside tx. On
	// postgres the rows are locked with SKIP LOCKED so concurrent sweeps
	// never claim the same payment.
	LockRetryable(ctx context.Context, tx *gorm.DB, maxAttempts, limit int) ([]*Payment, error)
}
