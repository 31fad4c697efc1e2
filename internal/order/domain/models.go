// Package domain contains the order aggregate: orders, line items, status
// transitions, and the service contract.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gridora/gridora/pkg/apperr"
	"github.com/gridora/gridora/pkg/model"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// OrderNumberPrefix leads every generated order number.
const OrderNumberPrefix = "ORD-"

// Status is the order lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped,
		StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Cancellable reports whether an order in this status may still be
// cancelled. Shipped, delivered, and refunded orders may not.
func (s Status) Cancellable() bool {
	switch s {
	case StatusShipped, StatusDelivered, StatusRefunded:
		return false
	}
	return true
}

// Order is the aggregate root. Version guards every update through the
// conditional-update path in the repository.
type Order struct {
	ID snowflake.ID `json:"id" gorm:"primaryKey"`
	model.TenantField
	OrderNumber     string            `json:"order_number" gorm:"type:text;not null;uniqueIndex"`
	CustomerName    string            `json:"customer_name" gorm:"type:text;not null"`
	CustomerEmail   string            `json:"customer_email" gorm:"type:text;not null;index"`
	Status          Status            `json:"status" gorm:"type:text;not null;index"`
	Subtotal        decimal.Decimal   `json:"subtotal" gorm:"type:decimal(12,2);not null"`
	Tax             decimal.Decimal   `json:"tax" gorm:"type:decimal(12,2);not null"`
	Shipping        decimal.Decimal   `json:"shipping" gorm:"type:decimal(12,2);not null"`
	Discount        decimal.Decimal   `json:"discount" gorm:"type:decimal(12,2);not null"`
	Total           decimal.Decimal   `json:"total" gorm:"type:decimal(12,2);not null"`
	ShippingAddress string            `json:"shipping_address" gorm:"type:text"`
	BillingAddress  string            `json:"billing_address" gorm:"type:text"`
	Notes           string            `json:"notes" gorm:"type:text"`
	Metadata        datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	FulfilledAt     *time.Time        `json:"fulfilled_at,omitempty"`
	model.VersionField
	model.SoftDeleteFields
	model.TimestampFields
}

// TableName sets the database table name.
func (Order) TableName() string { return "orders" }

// CalculateTotal recomputes total from the four components, clamping at
// zero when the discount exceeds the rest.
func (o *Order) CalculateTotal() {
	total := o.Subtotal.Add(o.Tax).Add(o.Shipping).Sub(o.Discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	o.Total = total
}

// OrderLineItem snapshots product data at order time; it carries no link to
// a live catalog.
type OrderLineItem struct {
	ID snowflake.ID `json:"id" gorm:"primaryKey"`
	model.TenantField
	OrderID     snowflake.ID      `json:"order_id" gorm:"not null;index"`
	ProductName string            `json:"product_name" gorm:"type:text;not null"`
	ProductSKU  string            `json:"product_sku" gorm:"type:text"`
	Quantity    int               `json:"quantity" gorm:"not null"`
	UnitPrice   decimal.Decimal   `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	TotalPrice  decimal.Decimal   `json:"total_price" gorm:"type:decimal(12,2);not null"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt   time.Time         `json:"created_at" gorm:"not null"`
}

// TableName sets the database table name.
func (OrderLineItem) TableName() string { return "order_line_items" }

// LineItemInput is one line in an order-creation request.
type LineItemInput struct {
	ProductName string          `json:"product_name"`
	ProductSKU  string          `json:"product_sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Metadata    map[string]any  `json:"metadata"`
}

// CreateRequest creates an order with its line items.
type CreateRequest struct {
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email"`
	ShippingAddress string          `json:"shipping_address"`
	BillingAddress  string          `json:"billing_address"`
	Notes           string          `json:"notes"`
	Metadata        map[string]any  `json:"metadata"`
	LineItems       []LineItemInput `json:"line_items"`
}

// UpdateRequest patches an order. ExpectedVersion must match the stored
// version or the update is rejected with a conflict.
type UpdateRequest struct {
	ExpectedVersion int64            `json:"expected_version"`
	Status          *Status          `json:"status"`
	Tax             *decimal.Decimal `json:"tax"`
	Shipping        *decimal.Decimal `json:"shipping"`
	Discount        *decimal.Decimal `json:"discount"`
	ShippingAddress *string          `json:"shipping_address"`
	BillingAddress  *string          `json:"billing_address"`
	Notes           *string          `json:"notes"`
	Metadata        map[string]any   `json:"metadata"`
}

// ListRequest filters order listings.
type ListRequest struct {
	Status        Status `json:"status"`
	CustomerEmail string `json:"customer_email"`
	Limit         int    `json:"limit"`
}

var (
	ErrNotFound        = apperr.NotFound("order_not_found")
	ErrEmptyLineItems  = apperr.Validation("order_line_items_empty")
	ErrInvalidLineItem = apperr.Validation("order_line_item_invalid")
	ErrInvalidCustomer = apperr.Validation("order_customer_invalid")
	ErrInvalidStatus   = apperr.Validation("order_status_invalid")
	ErrVersionConflict = apperr.Conflict("order_version_conflict")
	ErrNotCancellable  = apperr.Conflict("order_not_cancellable")
)

// Service manages the order aggregate.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Order, error)
	Get(ctx context.Context, id snowflake.ID) (*Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*Order, error)
	List(ctx context.Context, req ListRequest) ([]*Order, error)
	LineItems(ctx context.Context, orderID snowflake.ID) ([]*OrderLineItem, error)

	// Update applies changes only when the stored version still equals
	// req.ExpectedVersion; a stale version yields ErrVersionConflict.
	Update(ctx context.Context, id snowflake.ID, req UpdateRequest) (*Order, error)
	Cancel(ctx context.Context, id snowflake.ID, expectedVersion int64) (*Order, error)

	SoftDelete(ctx context.Context, id snowflake.ID) error
	Restore(ctx context.Context, id snowflake.ID) error

	// ProcessPending promotes pending orders older than the confirmation
	// delay to confirmed. Sweep entry point.
	ProcessPending(ctx context.Context, now time.Time, confirmAfter time.Duration) (int, error)
}
