// Package domain contains the sensor device model and service contract.
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

// DeviceType classifies the sensor hardware.
type DeviceType string

const (
	DeviceTypeTemperature DeviceType = "temperature"
	DeviceTypeHumidity    DeviceType = "humidity"
	DeviceTypePressure    DeviceType = "pressure"
	DeviceTypeMotion      DeviceType = "motion"
	DeviceTypeLight       DeviceType = "light"
	DeviceTypeCustom      DeviceType = "custom"
)

// Valid reports whether t is a known device type.
func (t DeviceType) Valid() bool {
	switch t {
	case DeviceTypeTemperature, DeviceTypeHumidity, DeviceTypePressure,
		DeviceTypeMotion, DeviceTypeLight, DeviceTypeCustom:
		return true
	}
	return false
}

// Device is a physical sensor unit. The external DeviceID is unique within
// a tenant (enforced by the tenant_id+device_id unique index).
type Device struct {
	ID snowflake.ID `json:"id" gorm:"primaryKey"`
	model.TenantField
	DeviceID      string           `json:"device_id" gorm:"type:text;not null;index"`
	Name          string           `json:"name" gorm:"type:text;not null"`
	DeviceType    DeviceType       `json:"device_type" gorm:"type:text;not null"`
	Location      string           `json:"location" gorm:"type:text"`
	Latitude      *decimal.Decimal `json:"latitude,omitempty" gorm:"type:decimal(9,6)"`
	Longitude     *decimal.Decimal `json:"longitude,omitempty" gorm:"type:decimal(9,6)"`
	IsActive      bool             `json:"is_active" gorm:"not null;default:true;index"`
	LastReadingAt *time.Time       `json:"last_reading_at,omitempty" gorm:"index"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	model.SoftDeleteFields
	model.TimestampFields
}

// TableName sets the database table name.
func (Device) TableName() string { return "devices" }

// RegisterRequest creates a device.
type RegisterRequest struct {
	DeviceID   string           `json:"device_id"`
	Name       string           `json:"name"`
	DeviceType DeviceType       `json:"device_type"`
	Location   string           `json:"location"`
	Latitude   *decimal.Decimal `json:"latitude"`
	Longitude  *decimal.Decimal `json:"longitude"`
	Metadata   map[string]any   `json:"metadata"`
}

// UpdateRequest patches mutable device attributes.
type UpdateRequest struct {
	Name     *string        `json:"name"`
	Location *string        `json:"location"`
	IsActive *bool          `json:"is_active"`
	Metadata map[string]any `json:"metadata"`
}

// ListRequest filters device listings.
type ListRequest struct {
	DeviceType DeviceType `json:"device_type"`
	ActiveOnly bool       `json:"active_only"`
	Limit      int        `json:"limit"`
}

var (
	ErrNotFound        = apperr.NotFound("device_not_found")
	ErrDeviceExists    = apperr.Conflict("device_exists")
	ErrInvalidDeviceID = apperr.Validation("invalid_device_id")
	ErrInvalidName     = apperr.Validation("invalid_device_name")
	ErrInvalidType     = apperr.Validation("invalid_device_type")
)

// Service manages the device registry.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*Device, error)
	Get(ctx context.Context, id snowflake.ID) (*Device, error)
	GetByDeviceID(ctx context.Context, deviceID string) (*Device, error)
	List(ctx context.Context, req ListRequest) ([]*Device, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateRequest) (*Device, error)
	SoftDelete(ctx context.Context, id snowflake.ID) error
	Restore(ctx context.Context, id snowflake.ID) error
	TouchLastReading(ctx context.Context, id snowflake.ID, at time.Time) error
}
