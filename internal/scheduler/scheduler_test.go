package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/gridora/gridora/internal/clock"
	devicedomain "github.com/gridora/gridora/internal/device/domain"
	deviceservice "github.com/gridora/gridora/internal/device/service"
	orderdomain "github.com/gridora/gridora/internal/order/domain"
	orderrepo "github.com/gridora/gridora/internal/order/repository"
	orderservice "github.com/gridora/gridora/internal/order/service"
	paymentdomain "github.com/gridora/gridora/internal/payment/domain"
	paymentrepo "github.com/gridora/gridora/internal/payment/repository"
	paymentservice "github.com/gridora/gridora/internal/payment/service"
	telemetrydomain "github.com/gridora/gridora/internal/telemetry/domain"
	telemetryrepo "github.com/gridora/gridora/internal/telemetry/repository"
	telemetryservice "github.com/gridora/gridora/internal/telemetry/service"
	"github.com/gridora/gridora/pkg/tenantctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fixture struct {
	sched     *Scheduler
	db        *gorm.DB
	clock     *clock.FakeClock
	devices   devicedomain.Service
	telemetry telemetrydomain.Service
	orders    orderdomain.Service
	payments  paymentdomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&devicedomain.Device{},
		&telemetrydomain.SensorReading{},
		&telemetrydomain.SensorAggregate{},
		&orderdomain.Order{},
		&orderdomain.OrderLineItem{},
		&paymentdomain.Payment{},
	))

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2024, 6, 1, 12, 1, 0, 0, time.UTC))
	log := zap.NewNop()

	devSvc := deviceservice.NewService(deviceservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: fake,
	})
	telSvc := telemetryservice.NewService(telemetryservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: fake,
		DeviceSvc: devSvc,
		Repo:      telemetryrepo.ProvideRepository(db),
	})
	ordSvc := orderservice.NewService(orderservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: fake,
		Repo: orderrepo.ProvideRepository(db),
	})
	paySvc := paymentservice.NewService(paymentservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: fake,
		Repo:     paymentrepo.ProvideRepository(db),
		OrderSvc: ordSvc,
	})

	sched, err := New(Params{
		DB: db, Log: log, Clock: fake,
		TelemetrySvc: telSvc,
		OrderSvc:     ordSvc,
		PaymentSvc:   paySvc,
		Config: Config{
			RetentionDays:      30,
			PaymentMaxAttempts: 3,
			OrderConfirmAfter:  5 * time.Minute,
		},
	})
	require.NoError(t, err)

	return &fixture{
		sched: sched, db: db, clock: fake,
		devices: devSvc, telemetry: telSvc,
		orders: ordSvc, payments: paySvc,
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunJobTimeoutIsSoft(t *testing.T) {
	f := newFixture(t)

	err := f.sched.runJob(context.Background(), "slow_job", 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)
}

func TestRunJobPropagatesRealErrors(t *testing.T) {
	f := newFixture(t)

	err := f.sched.runJob(context.Background(), "broken_job", time.Second, func(ctx context.Context) error {
		return fmt.Errorf("storage unavailable")
	})
	require.ErrorContains(t, err, "broken_job")
}

func TestRunOnceExecutesAllSweeps(t *testing.T) {
	f := newFixture(t)
	ctx := tenantctx.WithTenant(context.Background(), uuid.New())

	// Readings for the aggregation sweep, one old enough for retention.
	_, err := f.devices.Register(ctx, devicedomain.RegisterRequest{
		DeviceID: "s-1", Name: "s-1", DeviceType: devicedomain.DeviceTypeTemperature,
	})
	require.NoError(t, err)

	value := decimal.RequireFromString("42.0")
	_, err = f.telemetry.Ingest(ctx, "s-1", telemetrydomain.ReadingInput{Value: &value})
	require.NoError(t, err)

	// A pending order past the confirmation delay, with a failed payment.
	order, err := f.orders.Create(ctx, orderdomain.CreateRequest{
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		LineItems: []orderdomain.LineItemInput{
			{ProductName: "Widget", Quantity: 1, UnitPrice: decimal.RequireFromString("9.99")},
		},
	})
	require.NoError(t, err)

	payment, err := f.payments.CreateForOrder(ctx, paymentdomain.CreateRequest{
		OrderID: order.ID, Amount: order.Total,
	})
	require.NoError(t, err)
	_, err = f.payments.MarkFailed(ctx, payment.ID, "card declined")
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	require.NoError(t, f.sched.RunOnce(context.Background()))

	// Aggregates exist for the reading's windows.
	aggs, err := f.telemetry.ListAggregates(ctx, telemetrydomain.ListAggregatesRequest{})
	require.NoError(t, err)
	require.NotEmpty(t, aggs)

	// The pending order was promoted.
	got, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, orderdomain.StatusConfirmed, got.Status)

	// The failed payment was handed back for another attempt.
	gotPay, err := f.payments.Get(ctx, payment.ID)
	require.NoError(t, err)
	require.Equal(t, paymentdomain.StatusProcessing, gotPay.Status)
	require.Equal(t, 1, gotPay.AttemptCount)
}

func TestRetentionSweepDropsOldReadings(t *testing.T) {
	f := newFixture(t)
	ctx := tenantctx.WithTenant(context.Background(), uuid.New())

	_, err := f.devices.Register(ctx, devicedomain.RegisterRequest{
		DeviceID: "s-1", Name: "s-1", DeviceType: devicedomain.DeviceTypeTemperature,
	})
	require.NoError(t, err)

	value := decimal.RequireFromString("1.0")
	_, err = f.telemetry.Ingest(ctx, "s-1", telemetrydomain.ReadingInput{Value: &value})
	require.NoError(t, err)

	// Beyond the 30 day retention window.
	f.clock.Advance(31 * 24 * time.Hour)
	_, err = f.telemetry.Ingest(ctx, "s-1", telemetrydomain.ReadingInput{Value: &value})
	require.NoError(t, err)

	require.NoError(t, f.sched.CleanupReadingsJob(context.Background()))

	readings, err := f.telemetry.ListReadings(ctx, telemetrydomain.ListReadingsRequest{})
	require.NoError(t, err)
	require.Len(t, readings, 1)
}

func TestEnabledJobsFilter(t *testing.T) {
	f := newFixture(t)
	f.sched.cfg.EnabledJobs = []string{"aggregate_readings"}

	require.True(t, f.sched.isJobEnabled("aggregate_readings"))
	require.False(t, f.sched.isJobEnabled("retry_failed_payments"))
}

func TestAggregationRerunAfterClockAdvance(t *testing.T) {
	f := newFixture(t)
	ctx := tenantctx.WithTenant(context.Background(), uuid.New())

	_, err := f.devices.Register(ctx, devicedomain.RegisterRequest{
		DeviceID: "s-1", Name: "s-1", DeviceType: devicedomain.DeviceTypeTemperature,
	})
	require.NoError(t, err)

	value := decimal.RequireFromString("10")
	_, err = f.telemetry.Ingest(ctx, "s-1", telemetrydomain.ReadingInput{Value: &value})
	require.NoError(t, err)

	require.NoError(t, f.sched.AggregateReadingsJob(context.Background()))

	// The next 5 minute window holds no readings; the re-run recomputes the
	// closed window in place instead of adding a second row.
	f.clock.Advance(5 * time.Minute)
	require.NoError(t, f.sched.AggregateReadingsJob(context.Background()))

	aggs, err := f.telemetry.ListAggregates(ctx, telemetrydomain.ListAggregatesRequest{
		Bucket: telemetrydomain.Bucket5Min,
	})
	require.NoError(t, err)
	require.Len(t, aggs, 1)
}
