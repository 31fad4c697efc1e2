package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// Repository covers order writes that need conditional SQL: the versioned
// update and the cross-tenant sweep scan.
type Repository interface {
	// UpdateVersioned applies changes to the order only when its stored
	// version equals expectedVersion, incrementing the version in the same
	// statement. Returns ErrVersionConflict when another writer got there
	// first, ErrNotFound when the order does not exist in the tenant.
	UpdateVersioned(ctx context.Context, tenantID uuid.UUID, id snowflake.ID, expectedVersion int64, changes map[string]any) error

	// PendingBefore lists pending, non-deleted orders created before cutoff,
	// across tenants. Sweep use only.
	PendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Order, error)
}
