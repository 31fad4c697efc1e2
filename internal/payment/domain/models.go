// Package domain models the payment record, its retry state machine, and
// the service contract.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gridora/gridora/pkg/apperr"
	"github.com/gridora/gridora/pkg/model"
	"github.com/shopspring/decimal"
)

// DefaultMaxAttempts bounds the retry sweep when no override is configured.
const DefaultMaxAttempts = 3

// Status is the payment lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusAuthorized Status = "authorized"
	StatusCaptured   Status = "captured"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
	StatusCancelled  Status = "cancelled"
)

// Method is how the payment is taken.
type Method string

const (
	MethodCard         Method = "card"
	MethodBankTransfer Method = "bank_transfer"
	MethodWallet       Method = "wallet"
	MethodCashOnDelivery Method = "cash_on_delivery"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	switch m {
	case MethodCard, MethodBankTransfer, MethodWallet, MethodCashOnDelivery:
		return true
	}
	return false
}

// Payment is one-to-one with an order. The idempotency key, when present,
// is globally unique so duplicate submissions collapse onto one record.
type Payment struct {
	ID snowflake.ID `json:"id" gorm:"primaryKey"`
	model.TenantField
	OrderID        snowflake.ID    `json:"order_id" gorm:"not null;uniqueIndex"`
	Amount         decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	Currency       string          `json:"currency" gorm:"type:text;not null"`
	Status         Status          `json:"status" gorm:"type:text;not null;index"`
	Method         Method          `json:"method" gorm:"type:text;not null"`
	TransactionID  string          `json:"transaction_id" gorm:"type:text"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty" gorm:"type:text;uniqueIndex"`
	AttemptCount   int             `json:"attempt_count" gorm:"not null;default:0"`
	LastError      string          `json:"last_error" gorm:"type:text"`
	AuthorizedAt   *time.Time      `json:"authorized_at,omitempty"`
	CapturedAt     *time.Time      `json:"captured_at,omitempty"`
	FailedAt       *time.Time      `json:"failed_at,omitempty"`
	RefundedAt     *time.Time      `json:"refunded_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

// CanRetry reports whether the retry sweep may pick this payment up.
func (p *Payment) CanRetry(maxAttempts int) bool {
	return p.Status == StatusFailed && p.AttemptCount < maxAttempts
}

// CreateRequest creates a payment for an order.
type CreateRequest struct {
	OrderID        snowflake.ID    `json:"order_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Method         Method          `json:"method"`
	IdempotencyKey string          `json:"idempotency_key"`
}

var (
	ErrNotFound       = apperr.NotFound("payment_not_found")
	ErrAlreadyExists  = apperr.Conflict("payment_exists")
	ErrInvalidAmount  = apperr.Validation("payment_amount_invalid")
	ErrInvalidMethod  = apperr.Validation("payment_method_invalid")
	ErrRetryExhausted = apperr.Payment("payment_retry_exhausted")
)

// Service manages payment records and the retry sweep.
type Service interface {
	// CreateForOrder creates the order's payment. With an idempotency key,
	// a repeat submission returns the existing record unchanged; without
	// one, a second creation for the same order is a conflict.
	CreateForOrder(ctx context.Context, req CreateRequest) (*Payment, error)
	Get(ctx context.Context, id snowflake.ID) (*Payment, error)
	GetByOrder(ctx context.Context, orderID snowflake.ID) (*Payment, error)

	MarkAuthorized(ctx context.Context, id snowflake.ID, transactionID string) (*Payment, error)
	MarkCaptured(ctx context.Context, id snowflake.ID) (*Payment, error)
	MarkFailed(ctx context.Context, id snowflake.ID, reason string) (*Payment, error)
	MarkRefunded(ctx context.Context, id snowflake.ID) (*Payment, error)

	// RetryFailed re-attempts every retryable payment once. Sweep entry
	// point; per-payment claims are serialized at the storage layer.
	RetryFailed(ctx context.Context, maxAttempts int) (int, error)
}
