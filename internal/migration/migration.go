// Package migration creates the schema on startup so a fresh deployment is
// usable out of the box. Postgres runs versioned SQL migrations; other
// dialects fall back to gorm's AutoMigrate.
package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	devicedomain "github.com/gridora/gridora/internal/device/domain"
	orderdomain "github.com/gridora/gridora/internal/order/domain"
	paymentdomain "github.com/gridora/gridora/internal/payment/domain"
	telemetrydomain "github.com/gridora/gridora/internal/telemetry/domain"
	"gorm.io/gorm"
)

//go:embed sql/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "sql"

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Not closing the migrator: it would close the shared *sql.DB.

	return nil
}

// AutoMigrate covers sqlite and mysql, where the embedded SQL does not
// apply. The composite unique index on devices is created separately since
// it spans an embedded struct field.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&devicedomain.Device{},
		&telemetrydomain.SensorReading{},
		&telemetrydomain.SensorAggregate{},
		&orderdomain.Order{},
		&orderdomain.OrderLineItem{},
		&paymentdomain.Payment{},
	); err != nil {
		return err
	}
	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_devices_tenant_device ON devices (tenant_id, device_id)`,
	).Error
}
