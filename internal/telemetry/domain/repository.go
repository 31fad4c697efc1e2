package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeviceWindow identifies a device that produced readings inside a sweep
// window, with the tenant that owns it.
type DeviceWindow struct {
	DeviceID snowflake.ID `gorm:"column:device_id"`
	TenantID uuid.UUID    `gorm:"column:tenant_id"`
}

// BucketStats is the raw rollup computed over one bucket window.
type BucketStats struct {
	MinValue   decimal.Decimal `gorm:"column:min_value"`
	MaxValue   decimal.Decimal `gorm:"column:max_value"`
	AvgValue   decimal.Decimal `gorm:"column:avg_value"`
	Count      int64           `gorm:"column:total"`
	ValidCount int64           `gorm:"column:valid_total"`
}

// Repository covers the raw-SQL paths of the pipeline: sweep device discovery,
// window statistics, aggregate upsert, and retention deletes.
type Repository interface {
	DevicesWithReadings(ctx context.Context, from, to time.Time) ([]DeviceWindow, error)
	ComputeBucketStats(ctx context.Context, tenantID uuid.UUID, deviceID snowflake.ID, from, to time.Time) (*BucketStats, error)
	UpsertAggregate(ctx context.Context, agg *SensorAggregate) error
	DeleteReadingsBefore(ctx context.Context, cutoff time.Time, chunkSize int) (int64, error)
}
