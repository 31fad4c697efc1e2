package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/gridora/gridora/internal/clock"
	"github.com/gridora/gridora/internal/order/domain"
	"github.com/gridora/gridora/internal/order/repository"
	"github.com/gridora/gridora/pkg/tenantctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Order{}, &domain.OrderLineItem{}))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  repository.ProvideRepository(db),
	})
	return svc, fake
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func createOrder(t *testing.T, svc domain.Service, ctx context.Context) *domain.Order {
	t.Helper()
	order, err := svc.Create(ctx, domain.CreateRequest{
		CustomerName:    "Ada Lovelace",
		CustomerEmail:   "ada@example.com",
		ShippingAddress: "12 Analytical St",
		LineItems: []domain.LineItemInput{
			{ProductName: "Widget", Quantity: 2, UnitPrice: money("10.00")},
			{ProductName: "Gadget", ProductSKU: "GDT-1", Quantity: 1, UnitPrice: money("5.00")},
		},
	})
	require.NoError(t, err)
	return order
}

func TestCreateComputesTotals(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := tenantctx.WithTenant(context.Background(), uuid.New())

	order := createOrder(t, svc, ctx)
	require.True(t, strings.HasPrefix(order.OrderNumber, domain.OrderNumberPrefix))
	require.Equal(t, domain.StatusPending, order.Status)
	require.EqualValues(t, 1, order.Version)
	require.True(t, order.Subtotal.Equal(money("25.00")))
	require.True(t, order.Total.Equal(money("25.00")))

	items, err := svc.LineItems(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		if item.ProductName == "Widget" {
			require.True(t, item.TotalPrice.Equal(money("20.00")))
		}
	}
}

func TestCreateRejectsEmptyLineItems(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := tenantctx.WithTenant(context.Background(), uuid.New())

	_, err := svc.Create(ctx, domain.CreateRequest{
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
	})
	require.ErrorIs(t, err, domain.ErrEmptyLineItems)
}

func TestCreateRejectsBadLineItem(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := tenantctx.WithTenant(context.Background(), uuid.New())

	_, err := svc.Create(ctx, domain.CreateRequest{
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		LineItems: []domain.LineItemInput{
			{ProductName: "Widget", Quantity: 0, UnitPrice: money("1.00")},
		},
	})
	require.ErrorIs(t, err, domain.ErrInvalidLineItem)

	_, err = svc.Create(ctx, domain.CreateRequest{
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		LineItems: []domain.LineItemInput{
			{ProductName: "Widget", Quantity: 1, UnitPrice: money("-1.00")},
		},
	})
	require.ErrorIs(t, err, domain.ErrInvalidLineItem)
}

func TestUpdateRecalculatesTotal(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := tenantctx.WithTenant(context.Background(), uuid.New())
	order := createOrder(t, svc, ctx)

	tax := money("2.00")
	shipping := money("5.00")
	discount := money("3.00")
	updated, err := svc.Update(ctx, order.ID, domain.UpdateRequest{
		ExpectedVersion: order.Version,
		Tax:             &tax,
		Shipping:        &shipping,
		Discount:        &discount,
	})
	require.NoError(t, err)
	require.True(t, updated.Total.Equal(money("29.00")))
	require.EqualValues(t, 2, updated.Version)
}

func TestTotalClampsAtZero(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := tenantctx.WithTenant(context.Background(), uuid.New())
	order := createOrder(t, svc, ctx)

	discount := money("100.00")
	updated, err := svc.Update(ctx, order.ID, domain.UpdateRequest{
		ExpectedVersion: order.Version,
		Discount:        &discount,
	})
	require.NoError(t, err)
	require.True(t, updated.Total.IsZero())
}

func TestStaleVersionConflicts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := tenantctx.WithTenant(context.Background(), uuid.New())
	order := createOrder(t, svc, ctx)

	notes := "first writer"
	_, err := svc.Update(ctx, order.ID, domain.UpdateRequest{
		ExpectedVersion: order.Version,
		Notes:           &notes,
	})
	require.NoError(t, err)

	// Second writer still holds version 1.
	notes = "second writer"
	_, err = svc.Update(ctx, order.ID, domain.UpdateRequest{
		ExpectedVersion: order.Version,
		Notes:           &notes,
	})
	require.ErrorIs(t, err, domain.ErrVersionConflict)

	got, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, "first writer", got.Notes)
	require.EqualValues(t, 2, got.Version)
}

func TestCancelGatedByStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := tenantctx.WithTenant(context.Background(), uuid.New())

	for _, status := range []domain.Status{
		domain.StatusShipped, domain.StatusDelivered, domain.StatusRefunded,
	} {
		order := createOrder(t, svc, ctx)
		updated, err := svc.Update(ctx, order.ID, domain.UpdateRequest{
			ExpectedVersion: order.Version,
			Status:          &status,
		})
		require.NoError(t, err)

		_, err = svc.Cancel(ctx, order.ID, updated.Version)
		require.ErrorIs(t, err, domain.ErrNotCancellable, "status %s", status)
	}

	order := createOrder(t, svc, ctx)
	cancelled, err := svc.Cancel(ctx, order.ID, order.Version)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, cancelled.Status)
	require.EqualValues(t, 2, cancelled.Version)
}

func TestDeliveredStampsFulfilledAt(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := tenantctx.WithTenant(context.Background(), uuid.New())
	order := createOrder(t, svc, ctx)

	status := domain.StatusDelivered
	updated, err := svc.Update(ctx, order.ID, domain.UpdateRequest{
		ExpectedVersion: order.Version,
		Status:          &status,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.FulfilledAt)
}

func TestSoftDeleteAndRestore(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := tenantctx.WithTenant(context.Background(), uuid.New())
	order := createOrder(t, svc, ctx)

	require.NoError(t, svc.SoftDelete(ctx, order.ID))
	_, err := svc.Get(ctx, order.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, svc.Restore(ctx, order.ID))
	got, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, order.OrderNumber, got.OrderNumber)
}

func TestTenantIsolation(t *testing.T) {
	svc, _ := newTestService(t)
	ctxA := tenantctx.WithTenant(context.Background(), uuid.New())
	ctxB := tenantctx.WithTenant(context.Background(), uuid.New())

	order := createOrder(t, svc, ctxA)

	_, err := svc.Get(ctxB, order.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	notes := "cross-tenant write"
	_, err = svc.Update(ctxB, order.ID, domain.UpdateRequest{
		ExpectedVersion: order.Version,
		Notes:           &notes,
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProcessPendingPromotes(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := tenantctx.WithTenant(context.Background(), uuid.New())

	old := createOrder(t, svc, ctx)
	fake.Advance(10 * time.Minute)
	fresh := createOrder(t, svc, ctx)

	promoted, err := svc.ProcessPending(context.Background(), fake.Now(), 5*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, promoted)

	got, err := svc.Get(ctx, old.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusConfirmed, got.Status)
	require.EqualValues(t, 2, got.Version)

	got, err = svc.Get(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, got.Status)
}
