package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gridora/gridora/internal/clock"
	devicedomain "github.com/gridora/gridora/internal/device/domain"
	"github.com/gridora/gridora/internal/observability/metrics"
	"github.com/gridora/gridora/internal/telemetry/domain"
	"github.com/gridora/gridora/pkg/repository"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	DeviceSvc devicedomain.Service
	Repo      domain.Repository
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	devices devicedomain.Service
	repo    domain.Repository
	metrics *metrics.Metrics

	readings   *repository.Store[domain.SensorReading]
	aggregates *repository.Store[domain.SensorAggregate]
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("telemetry.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		devices: p.DeviceSvc,
		repo:    p.Repo,
		metrics: p.Metrics,

		readings:   repository.NewStore[domain.SensorReading](p.DB, p.Log),
		aggregates: repository.NewStore[domain.SensorAggregate](p.DB, p.Log),
	}
}

func (s *Service) buildReading(tenantID uuid.UUID, deviceID snowflake.ID, input domain.ReadingInput, now time.Time) (*domain.SensorReading, error) {
	if input.Value == nil {
		return nil, domain.ErrValueRequired
	}
	reading := &domain.SensorReading{
		ID:        s.genID.Generate(),
		DeviceID:  deviceID,
		Value:     *input.Value,
		Unit:      input.Unit,
		IsValid:   true,
		CreatedAt: now,
	}
	reading.TenantID = tenantID
	if input.IsValid != nil {
		reading.IsValid = *input.IsValid
	}
	if len(input.Metadata) > 0 {
		reading.Metadata = datatypes.JSONMap(input.Metadata)
	}
	return reading, nil
}

func (s *Service) Ingest(ctx context.Context, deviceID string, input domain.ReadingInput) (*domain.SensorReading, error) {
	device, err := s.devices.GetByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	reading, err := s.buildReading(device.TenantID, device.ID, input, now)
	if err != nil {
		return nil, err
	}
	if err := s.readings.Create(ctx, reading); err != nil {
		return nil, err
	}
	if err := s.devices.TouchLastReading(ctx, device.ID, now); err != nil {
		s.log.Warn("touch last reading failed",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}
	s.metrics.IncReadingsIngested("single", 1)
	return reading, nil
}

// IngestBatch validates and persists up to MaxBatchSize readings for one
// device. The device is resolved before any row is written, and the device
// last-seen mark moves once for the whole batch.
func (s *Service) IngestBatch(ctx context.Context, req domain.IngestBatchRequest) (int, error) {
	if len(req.Readings) == 0 {
		return 0, domain.ErrEmptyBatch
	}
	if len(req.Readings) > domain.MaxBatchSize {
		return 0, domain.ErrBatchTooLarge
	}

	device, err := s.devices.GetByDeviceID(ctx, req.DeviceID)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	records := make([]*domain.SensorReading, 0, len(req.Readings))
	for _, input := range req.Readings {
		reading, err := s.buildReading(device.TenantID, device.ID, input, now)
		if err != nil {
			return 0, err
		}
		records = append(records, reading)
	}

	if err := s.readings.CreateInBatches(ctx, records, domain.InsertChunkSize); err != nil {
		return 0, err
	}
	if err := s.devices.TouchLastReading(ctx, device.ID, now); err != nil {
		s.log.Warn("touch last reading failed",
			zap.String("device_id", req.DeviceID),
			zap.Error(err),
		)
	}

	s.metrics.IncReadingsIngested("batch", len(records))
	s.log.Info("batch ingested",
		zap.String("device_id", req.DeviceID),
		zap.Int("count", len(records)),
	)
	return len(records), nil
}

func (s *Service) ListReadings(ctx context.Context, req domain.ListReadingsRequest) ([]*domain.SensorReading, error) {
	filter := &domain.SensorReading{}
	if req.DeviceID != 0 {
		filter.DeviceID = req.DeviceID
	}
	opts := []repository.QueryOption{repository.NewestFirst()}
	if req.Since != nil {
		opts = append(opts, repository.Where("created_at >= ?", *req.Since))
	}
	if req.Until != nil {
		opts = append(opts, repository.Where("created_at < ?", *req.Until))
	}
	if req.Limit > 0 {
		opts = append(opts, repository.WithLimit(req.Limit))
	}
	return s.readings.Find(ctx, filter, opts...)
}

func (s *Service) ListAggregates(ctx context.Context, req domain.ListAggregatesRequest) ([]*domain.SensorAggregate, error) {
	filter := &domain.SensorAggregate{}
	if req.DeviceID != 0 {
		filter.DeviceID = req.DeviceID
	}
	if req.Bucket != "" {
		if req.Bucket.Duration() == 0 {
			return nil, domain.ErrInvalidBucket
		}
		filter.Bucket = req.Bucket
	}
	opts := []repository.QueryOption{
		func(db *gorm.DB) *gorm.DB { return db.Order("bucket_start DESC") },
	}
	if req.Since != nil {
		opts = append(opts, repository.Where("bucket_start >= ?", *req.Since))
	}
	if req.Limit > 0 {
		opts = append(opts, repository.WithLimit(req.Limit))
	}
	return s.aggregates.Find(ctx, filter, opts...)
}

// Aggregate rolls up, for every bucket kind, the window containing now and
// the closed window before it, for every device that produced readings there.
// The closed window is recomputed so readings that landed after its last
// in-window sweep still make it into the rollup. One device failing does not
// stop the sweep. Re-running over the same window is idempotent: the upsert
// replaces the existing rollup.
func (s *Service) Aggregate(ctx context.Context, now time.Time) (int, error) {
	var upserts int
	for _, bucket := range domain.AllBuckets {
		current := bucket.Start(now)
		for _, start := range []time.Time{current.Add(-bucket.Duration()), current} {
			n, err := s.aggregateWindow(ctx, bucket, start)
			upserts += n
			if err != nil {
				return upserts, err
			}
		}
	}
	return upserts, nil
}

func (s *Service) aggregateWindow(ctx context.Context, bucket domain.Bucket, start time.Time) (int, error) {
	end := start.Add(bucket.Duration())

	devices, err := s.repo.DevicesWithReadings(ctx, start, end)
	if err != nil {
		return 0, err
	}

	var upserts int
	for _, dw := range devices {
		stats, err := s.repo.ComputeBucketStats(ctx, dw.TenantID, dw.DeviceID, start, end)
		if err != nil {
			s.log.Error("bucket stats failed",
				zap.Int64("device_id", int64(dw.DeviceID)),
				zap.String("bucket", string(bucket)),
				zap.Error(err),
			)
			continue
		}
		if stats == nil {
			continue
		}

		agg := &domain.SensorAggregate{
			ID:          s.genID.Generate(),
			DeviceID:    dw.DeviceID,
			Bucket:      bucket,
			BucketStart: start,
			BucketEnd:   end,
			MinValue:    stats.MinValue,
			MaxValue:    stats.MaxValue,
			AvgValue:    stats.AvgValue,
			Count:       stats.Count,
			ValidCount:  stats.ValidCount,
			CreatedAt:   s.clock.Now(),
		}
		agg.TenantID = dw.TenantID

		if err := s.repo.UpsertAggregate(ctx, agg); err != nil {
			s.log.Error("aggregate upsert failed",
				zap.Int64("device_id", int64(dw.DeviceID)),
				zap.String("bucket", string(bucket)),
				zap.Error(err),
			)
			continue
		}
		upserts++
	}
	return upserts, nil
}

func (s *Service) CleanupOldReadings(ctx context.Context, cutoff time.Time) (int64, error) {
	deleted, err := s.repo.DeleteReadingsBefore(ctx, cutoff, domain.InsertChunkSize)
	if err != nil {
		return deleted, err
	}
	if deleted > 0 {
		s.log.Info("old readings removed",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
	return deleted, nil
}
