// Package domain holds sensor readings, time-bucket aggregates, and the
// ingestion service contract.
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

// MaxBatchSize caps a single bulk ingestion request.
const MaxBatchSize = 1000

// InsertChunkSize bounds per-statement row counts for bulk inserts.
const InsertChunkSize = 500

// Bucket is an aggregation window kind.
type Bucket string

const (
	Bucket5Min  Bucket = "5min"
	Bucket1Hour Bucket = "1hour"
	Bucket1Day  Bucket = "1day"
)

// AllBuckets lists every bucket kind swept by aggregation.
var AllBuckets = []Bucket{Bucket5Min, Bucket1Hour, Bucket1Day}

// Duration returns the bucket's window length.
func (b Bucket) Duration() time.Duration {
	switch b {
	case Bucket5Min:
		return 5 * time.Minute
	case Bucket1Hour:
		return time.Hour
	case Bucket1Day:
		return 24 * time.Hour
	}
	return 0
}

// Start truncates t down to the bucket boundary containing it.
func (b Bucket) Start(t time.Time) time.Time {
	return t.UTC().Truncate(b.Duration())
}

// SensorReading is an immutable measurement. Readings are append-only; the
// only delete path is the retention sweep.
type SensorReading struct {
	ID snowflake.ID `json:"id" gorm:"primaryKey"`
	model.TenantField
	DeviceID  snowflake.ID      `json:"device_id" gorm:"not null;index:idx_readings_device_created,priority:1"`
	Value     decimal.Decimal   `json:"value" gorm:"type:decimal(20,6);not null"`
	Unit      string            `json:"unit" gorm:"type:text"`
	IsValid   bool              `json:"is_valid" gorm:"not null;default:true"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt time.Time         `json:"created_at" gorm:"not null;index:idx_readings_device_created,priority:2"`
}

// TableName sets the database table name.
func (SensorReading) TableName() string { return "sensor_readings" }

// SensorAggregate is a precomputed rollup over one bucket window. Written
// only by the aggregation sweep, keyed by device+bucket+bucket_start.
type SensorAggregate struct {
	ID snowflake.ID `json:"id" gorm:"primaryKey"`
	model.TenantField
	DeviceID    snowflake.ID    `json:"device_id" gorm:"not null;uniqueIndex:idx_aggregates_device_bucket,priority:1"`
	Bucket      Bucket          `json:"bucket" gorm:"type:text;not null;uniqueIndex:idx_aggregates_device_bucket,priority:2"`
	BucketStart time.Time       `json:"bucket_start" gorm:"not null;uniqueIndex:idx_aggregates_device_bucket,priority:3"`
	BucketEnd   time.Time       `json:"bucket_end" gorm:"not null"`
	MinValue    decimal.Decimal `json:"min_value" gorm:"type:decimal(20,6);not null"`
	MaxValue    decimal.Decimal `json:"max_value" gorm:"type:decimal(20,6);not null"`
	AvgValue    decimal.Decimal `json:"avg_value" gorm:"type:decimal(20,6);not null"`
	Count       int64           `json:"count" gorm:"not null"`
	ValidCount  int64           `json:"valid_count" gorm:"not null"`
	CreatedAt   time.Time       `json:"created_at" gorm:"not null"`
}

// TableName sets the database table name.
func (SensorAggregate) TableName() string { return "sensor_aggregates" }

// ReadingInput is one measurement in an ingestion request.
type ReadingInput struct {
	Value    *decimal.Decimal `json:"value"`
	Unit     string           `json:"unit"`
	IsValid  *bool            `json:"is_valid"`
	Metadata map[string]any   `json:"metadata"`
}

// IngestBatchRequest targets a device by its external identifier.
type IngestBatchRequest struct {
	DeviceID string         `json:"device_id"`
	Readings []ReadingInput `json:"readings"`
}

// ListReadingsRequest filters reading queries.
type ListReadingsRequest struct {
	DeviceID snowflake.ID `json:"device_id"`
	Since    *time.Time   `json:"since"`
	Until    *time.Time   `json:"until"`
	Limit    int          `json:"limit"`
}

// ListAggregatesRequest filters aggregate queries.
type ListAggregatesRequest struct {
	DeviceID snowflake.ID `json:"device_id"`
	Bucket   Bucket       `json:"bucket"`
	Since    *time.Time   `json:"since"`
	Limit    int          `json:"limit"`
}

var (
	ErrValueRequired = apperr.Validation("reading_value_required")
	ErrEmptyBatch    = apperr.Validation("reading_batch_empty")
	ErrBatchTooLarge = apperr.Validation("reading_batch_too_large")
	ErrInvalidBucket = apperr.Validation("invalid_bucket")
)

// Service is the ingestion and aggregation pipeline.
type Service interface {
	Ingest(ctx context.Context, deviceID string, input ReadingInput) (*SensorReading, error)
	IngestBatch(ctx context.Context, req IngestBatchRequest) (int, error)
	ListReadings(ctx context.Context, req ListReadingsRequest) ([]*SensorReading, error)
	ListAggregates(ctx context.Context, req ListAggregatesRequest) ([]*SensorAggregate, error)

	// Aggregate recomputes every bucket containing now for all devices of
	// all tenants. Per-device failures are logged and skipped.
	Aggregate(ctx context.Context, now time.Time) (int, error)

	// CleanupOldReadings hard-deletes readings created before cutoff.
	CleanupOldReadings(ctx context.Context, cutoff time.Time) (int64, error)
}
