// Package model holds the field components shared by persisted entities.
// Entities embed these structs (gorm embedded) instead of inheriting
// behavior, so each table declares exactly the concerns it carries.
package model

import (
	"time"

	"github.com/google/uuid"
)

// TimestampFields records creation and last-update times.
type TimestampFields struct {
	CreatedAt time.Time `json:"created_at" gorm:"not null;index"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

// Touch stamps both timestamps for a new record.
func (t *TimestampFields) Touch(now time.Time) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
}

// SoftDeleteFields marks a record as removed without deleting the row.
// Plain bool + timestamp rather than gorm.DeletedAt: visibility is decided
// by the repository scopes, never by driver magic.
type SoftDeleteFields struct {
	Deleted   bool       `json:"deleted" gorm:"not null;default:false;index"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" gorm:"index"`
}

// VersionField implements optimistic locking. Version starts at 1 and is
// only ever advanced by the storage layer's conditional update.
type VersionField struct {
	Version int64 `json:"version" gorm:"not null;default:1"`
}

// TenantField scopes a record to one tenant. Set at creation, immutable
// afterwards.
type TenantField struct {
	TenantID uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;index"`
}
