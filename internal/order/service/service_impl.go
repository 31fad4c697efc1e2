package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gridora/gridora/internal/clock"
	"github.com/gridora/gridora/internal/order/domain"
	"github.com/gridora/gridora/pkg/repository"
	"github.com/gridora/gridora/pkg/tenantctx"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository

	orders *repository.Store[domain.Order]
	items  *repository.Store[domain.OrderLineItem]
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("order.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,

		orders: repository.NewSoftDeleteStore[domain.Order](p.DB, p.Log),
		items:  repository.NewStore[domain.OrderLineItem](p.DB, p.Log),
	}
}

func newOrderNumber() string {
	return domain.OrderNumberPrefix + ulid.Make().String()
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Order, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return nil, repository.ErrTenantRequired
	}

	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	if req.CustomerName == "" || req.CustomerEmail == "" {
		return nil, domain.ErrInvalidCustomer
	}
	if len(req.LineItems) == 0 {
		return nil, domain.ErrEmptyLineItems
	}
	for _, item := range req.LineItems {
		if strings.TrimSpace(item.ProductName) == "" ||
			item.Quantity < 1 ||
			item.UnitPrice.IsNegative() {
			return nil, domain.ErrInvalidLineItem
		}
	}

	now := s.clock.Now()
	order := &domain.Order{
		ID:              s.genID.Generate(),
		OrderNumber:     newOrderNumber(),
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		Status:          domain.StatusPending,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Notes:           req.Notes,
	}
	order.TenantID = tenantID
	order.Version = 1
	order.CreatedAt = now
	order.UpdatedAt = now
	if len(req.Metadata) > 0 {
		order.Metadata = datatypes.JSONMap(req.Metadata)
	}

	items := make([]*domain.OrderLineItem, 0, len(req.LineItems))
	for _, input := range req.LineItems {
		item := &domain.OrderLineItem{
			ID:          s.genID.Generate(),
			OrderID:     order.ID,
			ProductName: strings.TrimSpace(input.ProductName),
			ProductSKU:  strings.TrimSpace(input.ProductSKU),
			Quantity:    input.Quantity,
			UnitPrice:   input.UnitPrice,
			TotalPrice:  input.UnitPrice.Mul(decimal.NewFromInt(int64(input.Quantity))),
			CreatedAt:   now,
		}
		item.TenantID = tenantID
		if len(input.Metadata) > 0 {
			item.Metadata = datatypes.JSONMap(input.Metadata)
		}
		order.Subtotal = order.Subtotal.Add(item.TotalPrice)
		items = append(items, item)
	}
	order.CalculateTotal()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orders.WithTrx(tx).Create(ctx, order); err != nil {
			return err
		}
		return s.items.WithTrx(tx).CreateInBatches(ctx, items, len(items))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order created",
		zap.String("order_number", order.OrderNumber),
		zap.Int("line_items", len(items)),
	)
	return order, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Order, error) {
	order, err := s.orders.FindOne(ctx, &domain.Order{ID: id})
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (s *Service) GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	order, err := s.orders.FindOne(ctx, &domain.Order{OrderNumber: orderNumber})
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]*domain.Order, error) {
	filter := &domain.Order{}
	if req.Status != "" {
		if !req.Status.Valid() {
			return nil, domain.ErrInvalidStatus
		}
		filter.Status = req.Status
	}
	if req.CustomerEmail != "" {
		filter.CustomerEmail = req.CustomerEmail
	}
	opts := []repository.QueryOption{repository.NewestFirst()}
	if req.Limit > 0 {
		opts = append(opts, repository.WithLimit(req.Limit))
	}
	return s.orders.Find(ctx, filter, opts...)
}

func (s *Service) LineItems(ctx context.Context, orderID snowflake.ID) ([]*domain.OrderLineItem, error) {
	if _, err := s.Get(ctx, orderID); err != nil {
		return nil, err
	}
	return s.items.Find(ctx, &domain.OrderLineItem{OrderID: orderID}, repository.OldestFirst())
}

// Update applies the patch through the conditional write: the stored version
// must equal req.ExpectedVersion or the caller gets a conflict and should
// re-fetch and retry.
func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateRequest) (*domain.Order, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return nil, repository.ErrTenantRequired
	}

	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{"updated_at": s.clock.Now()}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, domain.ErrInvalidStatus
		}
		changes["status"] = *req.Status
		if *req.Status == domain.StatusDelivered && order.FulfilledAt == nil {
			changes["fulfilled_at"] = s.clock.Now()
		}
	}

	recompute := false
	if req.Tax != nil {
		order.Tax = *req.Tax
		changes["tax"] = *req.Tax
		recompute = true
	}
	if req.Shipping != nil {
		order.Shipping = *req.Shipping
		changes["shipping"] = *req.Shipping
		recompute = true
	}
	if req.Discount != nil {
		order.Discount = *req.Discount
		changes["discount"] = *req.Discount
		recompute = true
	}
	if recompute {
		order.CalculateTotal()
		changes["total"] = order.Total
	}
	if req.ShippingAddress != nil {
		changes["shipping_address"] = *req.ShippingAddress
	}
	if req.BillingAddress != nil {
		changes["billing_address"] = *req.BillingAddress
	}
	if req.Notes != nil {
		changes["notes"] = *req.Notes
	}
	if req.Metadata != nil {
		changes["metadata"] = datatypes.JSONMap(req.Metadata)
	}

	if err := s.repo.UpdateVersioned(ctx, tenantID, id, req.ExpectedVersion, changes); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID, expectedVersion int64) (*domain.Order, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return nil, repository.ErrTenantRequired
	}

	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.Cancellable() {
		return nil, domain.ErrNotCancellable
	}

	err = s.repo.UpdateVersioned(ctx, tenantID, id, expectedVersion, map[string]any{
		"status":     domain.StatusCancelled,
		"updated_at": s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Service) SoftDelete(ctx context.Context, id snowflake.ID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.orders.SoftDelete(ctx, id, s.clock.Now())
}

func (s *Service) Restore(ctx context.Context, id snowflake.ID) error {
	order, err := s.orders.DeletedOnly().FindOne(ctx, &domain.Order{ID: id})
	if err != nil {
		return err
	}
	if order == nil {
		return domain.ErrNotFound
	}
	return s.orders.Restore(ctx, id)
}

// ProcessPending promotes pending orders older than confirmAfter to
// confirmed. Each promotion goes through the versioned write; a conflict
// means another writer touched the order first and the sweep just skips it.
func (s *Service) ProcessPending(ctx context.Context, now time.Time, confirmAfter time.Duration) (int, error) {
	cutoff := now.Add(-confirmAfter)
	orders, err := s.repo.PendingBefore(ctx, cutoff, 500)
	if err != nil {
		return 0, err
	}

	var promoted int
	for _, order := range orders {
		err := s.repo.UpdateVersioned(ctx, order.TenantID, order.ID, order.Version, map[string]any{
			"status":     domain.StatusConfirmed,
			"updated_at": s.clock.Now(),
		})
		if err != nil {
			s.log.Warn("pending order skipped",
				zap.String("order_number", order.OrderNumber),
				zap.Error(err),
			)
			continue
		}
		promoted++
	}
	return promoted, nil
}
