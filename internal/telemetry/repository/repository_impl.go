package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/gridora/gridora/internal/telemetry/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct {
	db *gorm.DB
}

func ProvideRepository(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

// DevicesWithReadings lists every (device, tenant) pair that produced at
// least one reading in [from, to). Runs across tenants; the sweep is the
// only caller.
func (r *repo) DevicesWithReadings(ctx context.Context, from, to time.Time) ([]domain.DeviceWindow, error) {
	var rows []domain.DeviceWindow
	err := r.db.WithContext(ctx).Raw(
		`SELECT DISTINCT device_id, tenant_id
		 FROM sensor_readings
		 WHERE created_at >= ? AND created_at < ?`,
		from, to,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ComputeBucketStats rolls up readings of one device in [from, to). Returns
// nil when the window holds no readings.
func (r *repo) ComputeBucketStats(ctx context.Context, tenantID uuid.UUID, deviceID snowflake.ID, from, to time.Time) (*domain.BucketStats, error) {
	var stats domain.BucketStats
	err := r.db.WithContext(ctx).Raw(
		`SELECT
		   MIN(value) AS min_value,
		   MAX(value) AS max_value,
		   AVG(value) AS avg_value,
		   COUNT(*) AS total,
		   SUM(CASE WHEN is_valid THEN 1 ELSE 0 END) AS valid_total
		 FROM sensor_readings
		 WHERE tenant_id = ? AND device_id = ?
		   AND created_at >= ? AND created_at < ?`,
		tenantID, deviceID, from, to,
	).Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	if stats.Count == 0 {
		return nil, nil
	}
	return &stats, nil
}

// UpsertAggregate inserts or replaces the rollup keyed by
// (device_id, bucket, bucket_start).
func (r *repo) UpsertAggregate(ctx context.Context, agg *domain.SensorAggregate) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "device_id"},
			{Name: "bucket"},
			{Name: "bucket_start"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"min_value", "max_value", "avg_value", "count", "valid_count",
		}),
	}).Create(agg).Error
}

// DeleteReadingsBefore removes readings older than cutoff in chunks so the
// retention sweep never holds a long transaction.
func (r *repo) DeleteReadingsBefore(ctx context.Context, cutoff time.Time, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = domain.InsertChunkSize
	}
	var deleted int64
	for {
		res := r.db.WithContext(ctx).Exec(
			`DELETE FROM sensor_readings
			 WHERE id IN (
			   SELECT id FROM sensor_readings
			   WHERE created_at < ?
			   LIMIT ?
			 )`,
			cutoff, chunkSize,
		)
		if res.Error != nil {
			return deleted, res.Error
		}
		deleted += res.RowsAffected
		if res.RowsAffected < int64(chunkSize) {
			return deleted, nil
		}
	}
}
