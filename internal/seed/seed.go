// Package seed provisions a demo tenant with a registered device so local
// setups have something to ingest against immediately.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	devicedomain "github.com/gridora/gridora/internal/device/domain"
	"github.com/gridora/gridora/pkg/tenantctx"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DemoTenantID is the fixed tenant used by local bootstrap.
var DemoTenantID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

const demoDeviceID = "demo-sensor-001"

func EnsureDemoTenant(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	return tenantctx.As(context.Background(), DemoTenantID, func(ctx context.Context) error {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return ensureDemoDevice(ctx, tx, node)
		})
	})
}

func ensureDemoDevice(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var count int64
	err := tx.Model(&devicedomain.Device{}).
		Where("tenant_id = ? AND device_id = ?", DemoTenantID, demoDeviceID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	device := &devicedomain.Device{
		ID:         node.Generate(),
		DeviceID:   demoDeviceID,
		Name:       "Demo Temperature Sensor",
		DeviceType: devicedomain.DeviceTypeTemperature,
		Location:   "demo-lab",
		IsActive:   true,
	}
	device.TenantID = DemoTenantID
	device.CreatedAt = now
	device.UpdatedAt = now

	return tx.Create(device).Error
}
