package service

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
	"github.com/gridora/gridora/internal/telemetry/domain"
	"github.com/gridora/gridora/internal/telemetry/repository"
	"github.com/gridora/gridora/pkg/tenantctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fixture struct {
	svc     domain.Service
	devices devicedomain.Service
	db      *gorm.DB
	clock   *clock.FakeClock
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
		&domain.SensorReading{},
		&domain.SensorAggregate{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2024, 6, 1, 12, 2, 30, 0, time.UTC))
	devSvc := deviceservice.NewService(deviceservice.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: fake,
	})
	svc := NewService(ServiceParam{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     fake,
		DeviceSvc: devSvc,
		Repo:      repository.ProvideRepository(db),
	})
	return &fixture{svc: svc, devices: devSvc, db: db, clock: fake}
}

func (f *fixture) registerDevice(t *testing.T, ctx context.Context, externalID string) *devicedomain.Device {
	t.Helper()
	device, err := f.devices.Register(ctx, devicedomain.RegisterRequest{
		DeviceID:   externalID,
		Name:       externalID,
		DeviceType: devicedomain.DeviceTypeTemperature,
	})
	require.NoError(t, err)
	return device
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestIngestSingle(t *testing.T) {
	f := newFixture(t)
	ctx := tenantctx.WithTenant(context.Background(), uuid.New())
	device := f.registerDevice(t, ctx, "s-1")

	reading, err := f.svc.Ingest(ctx, "s-1", domain.ReadingInput{
		Value: dec("21.5"),
		Unit:  "celsius",
	})
	require.NoError(t, err)
	require.True(t, reading.Value.Equal(decimal.RequireFromString("21.5")))
	require.True(t, reading.IsValid)

	got, err := f.devices.Get(ctx, device.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastReadingAt)
}

func TestIngestRequiresValue(t *testing.T) {
	f := newFixture(t)
	ctx := tenantctx.WithTenant(context.Background(), uuid.New())
	f.registerDevice(t, ctx, "s-1")

	_, err := f.svc.Ingest(ctx, "s-1", domain.ReadingInput{Unit: "celsius"})
	require.ErrorIs(t, err, domain.ErrValueRequired)
}

func TestIngestUnknownDevice(t *testing.T) {
	f := newFixture(t)
	ctx := tenantctx.WithTenant(context.Background(), uuid.New())

	_, err := f.svc.Ingest(ctx, "ghost", domain.ReadingInput{Value: dec("1")})
	require.ErrorIs(t, err, devicedomain.ErrNotFound)
}

func batchOf(n int) []domain.ReadingInput {
	readings := make([]domain.ReadingInput, n)
	for i := range readings {
		readings[i] = domain.ReadingInput{Value: dec(fmt.Sprintf("%d.5", i))}
	}
	return readings
}

func TestIngestBatchLimits(t *testing.T) {
	f := newFixture(t)
	ctx := tenantctx.WithTenant(context.Background(), uuid.New())
	f.registerDevice(t, ctx, "s-1")

	_, err := f.svc.IngestBatch(ctx, domain.IngestBatchRequest{DeviceID: "s-1"})
	require.ErrorIs(t, err, domain.ErrEmptyBatch)

	_, err = f.svc.IngestBatch(ctx, domain.IngestBatchRequest{
		DeviceID: "s-1",
		Readings: batchOf(domain.MaxBatchSize + 1),
	})
	require.ErrorIs(t, err, domain.ErrBatchTooLarge)

	var count int64
	require.NoError(t, f.db.Model(&domain.SensorReading{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestIngestBatchMax(t *testing.T) {
	f := newFixture(t)
	ctx := tenantctx.WithTenant(context.Background(), uuid.New())
	device := f.registerDevice(t, ctx, "s-1")

	n, err := f.svc.IngestBatch(ctx, domain.IngestBatchRequest{
		DeviceID: "s-1",
		Readings: batchOf(domain.MaxBatchSize),
	})
	require.NoError(t, err)
	require.Equal(t, domain.MaxBatchSize, n)

	var count int64
	require.NoError(t, f.db.Model(&domain.SensorReading{}).Count(&count).Error)
	require.EqualValues(t, domain.MaxBatchSize, count)

	got, err := f.devices.Get(ctx, device.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastReadingAt)
}

func TestIngestBatchUnknownDeviceWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := tenantctx.WithTenant(context.Background(), uuid.New())

	_, err := f.svc.IngestBatch(ctx, domain.IngestBatchRequest{
		DeviceID: "ghost",
		Readings: batchOf(5),
	})
	require.ErrorIs(t, err, devicedomain.ErrNotFound)

	var count int64
	require.NoError(t, f.db.Model(&domain.SensorReading{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestListReadingsTenantScoped(t *testing.T) {
	f := newFixture(t)
	ctxA := tenantctx.WithTenant(context.Background(), uuid.New())
	ctxB := tenantctx.WithTenant(context.Background(), uuid.New())
	f.registerDevice(t, ctxA, "a-1")
	f.registerDevice(t, ctxB, "b-1")

	_, err := f.svc.IngestBatch(ctxA, domain.IngestBatchRequest{DeviceID: "a-1", Readings: batchOf(3)})
	require.NoError(t, err)
	_, err = f.svc.IngestBatch(ctxB, domain.IngestBatchRequest{DeviceID: "b-1", Readings: batchOf(2)})
	require.NoError(t, err)

	readingsA, err := f.svc.ListReadings(ctxA, domain.ListReadingsRequest{})
	require.NoError(t, err)
	require.Len(t, readingsA, 3)

	none, err := f.svc.ListReadings(context.Background(), domain.ListReadingsRequest{})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestAggregateSweep(t *testing.T) {
	f := newFixture(t)
	ctx := tenantctx.WithTenant(context.Background(), uuid.New())
	device := f.registerDevice(t, ctx, "s-1")

	valid := false
	_, err := f.svc.IngestBatch(ctx, domain.IngestBatchRequest{
		DeviceID: "s-1",
		Readings: []domain.ReadingInput{
			{Value: dec("10")},
			{Value: dec("20")},
			{Value: dec("30"), IsValid: &valid},
		},
	})
	require.NoError(t, err)

	upserts, err := f.svc.Aggregate(context.Background(), f.clock.Now())
	require.NoError(t, err)
	require.Equal(t, len(domain.AllBuckets), upserts)

	aggs, err := f.svc.ListAggregates(ctx, domain.ListAggregatesRequest{
		DeviceID: device.ID,
		Bucket:   domain.Bucket1Hour,
	})
	require.NoError(t, err)
	require.Len(t, aggs, 1)

	agg := aggs[0]
	require.True(t, agg.MinValue.Equal(decimal.NewFromInt(10)))
	require.True(t, agg.MaxValue.Equal(decimal.NewFromInt(30)))
	require.True(t, agg.AvgValue.Equal(decimal.NewFromInt(20)))
	require.EqualValues(t, 3, agg.Count)
	require.EqualValues(t, 2, agg.ValidCount)
	require.Equal(t, domain.Bucket1Hour.Start(f.clock.Now()), agg.BucketStart.UTC())
}

func TestAggregateCoversClosedWindow(t *testing.T) {
	f := newFixture(t)
	ctx := tenantctx.WithTenant(context.Background(), uuid.New())
	device := f.registerDevice(t, ctx, "s-1")

	// Sweep once inside the 12:00-12:05 window, then let a reading land
	// right before the boundary. Only a sweep that revisits the closed
	// window can still pick it up.
	f.clock.Advance(90 * time.Second) // 12:04:00
	_, err := f.svc.Aggregate(context.Background(), f.clock.Now())
	require.NoError(t, err)

	f.clock.Advance(55 * time.Second) // 12:04:55
	_, err = f.svc.Ingest(ctx, "s-1", domain.ReadingInput{Value: dec("7")})
	require.NoError(t, err)

	f.clock.Advance(10 * time.Second) // 12:05:05
	_, err = f.svc.Aggregate(context.Background(), f.clock.Now())
	require.NoError(t, err)

	f.clock.Advance(time.Minute) // 12:06:05
	_, err = f.svc.Aggregate(context.Background(), f.clock.Now())
	require.NoError(t, err)

	aggs, err := f.svc.ListAggregates(ctx, domain.ListAggregatesRequest{
		DeviceID: device.ID,
		Bucket:   domain.Bucket5Min,
	})
	require.NoError(t, err)

	var total int64
	for _, agg := range aggs {
		total += agg.Count
	}
	require.EqualValues(t, 1, total)
}

func TestAggregateRerunIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := tenantctx.WithTenant(context.Background(), uuid.New())
	device := f.registerDevice(t, ctx, "s-1")

	_, err := f.svc.IngestBatch(ctx, domain.IngestBatchRequest{
		DeviceID: "s-1",
		Readings: []domain.ReadingInput{{Value: dec("5")}},
	})
	require.NoError(t, err)

	_, err = f.svc.Aggregate(context.Background(), f.clock.Now())
	require.NoError(t, err)

	// New reading in the same window, then re-run: the rollup is replaced,
	// not duplicated.
	_, err = f.svc.IngestBatch(ctx, domain.IngestBatchRequest{
		DeviceID: "s-1",
		Readings: []domain.ReadingInput{{Value: dec("15")}},
	})
	require.NoError(t, err)

	_, err = f.svc.Aggregate(context.Background(), f.clock.Now())
	require.NoError(t, err)

	aggs, err := f.svc.ListAggregates(ctx, domain.ListAggregatesRequest{
		DeviceID: device.ID,
		Bucket:   domain.Bucket5Min,
	})
	require.NoError(t, err)
	require.Len(t, aggs, 1)
	require.EqualValues(t, 2, aggs[0].Count)
	require.True(t, aggs[0].MaxValue.Equal(decimal.NewFromInt(15)))
}

func TestCleanupOldReadings(t *testing.T) {
	f := newFixture(t)
	ctx := tenantctx.WithTenant(context.Background(), uuid.New())
	f.registerDevice(t, ctx, "s-1")

	_, err := f.svc.IngestBatch(ctx, domain.IngestBatchRequest{DeviceID: "s-1", Readings: batchOf(4)})
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)
	_, err = f.svc.IngestBatch(ctx, domain.IngestBatchRequest{DeviceID: "s-1", Readings: batchOf(2)})
	require.NoError(t, err)

	deleted, err := f.svc.CleanupOldReadings(context.Background(), f.clock.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 4, deleted)

	remaining, err := f.svc.ListReadings(ctx, domain.ListReadingsRequest{})
	require.NoError(t, err)
	require.Len(t, remaining, 2)
}
