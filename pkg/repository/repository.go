// Package repository is the tenant-scoped data-access layer. Every read and
// write funnels through Store, which resolves the tenant from the request
// context and fails closed: reads with no tenant yield empty results, writes
// with no tenant are rejected. Nothing in this package ever falls back to
// "all tenants" by default.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gridora/gridora/pkg/apperr"
	"github.com/gridora/gridora/pkg/tenantctx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrTenantRequired rejects tenant-scoped writes issued without a tenant.
var ErrTenantRequired = apperr.Tenant("tenant_required")

// QueryOption customizes a query built by Store.
type QueryOption func(*gorm.DB) *gorm.DB

// WithLimit caps the number of returned rows.
func WithLimit(n int) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if n > 0 {
			return db.Limit(n)
		}
		return db
	}
}

// NewestFirst orders by created_at descending.
func NewestFirst() QueryOption {
	return func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }
}

// OldestFirst orders by created_at ascending.
func OldestFirst() QueryOption {
	return func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }
}

// Where adds a raw condition.
func Where(query string, args ...any) QueryOption {
	return func(db *gorm.DB) *gorm.DB { return db.Where(query, args...) }
}

type visibility int

const (
	visibleActive visibility = iota
	visibleDeleted
	visibleAll
)

// Store is a generic gorm-backed repository for one entity type.
type Store[T any] struct {
	db  *gorm.DB
	log *zap.Logger

	softDelete bool
	vis        visibility
	bypass     bool
}

// NewStore builds a store for entities without a soft-delete lifecycle.
func NewStore[T any](db *gorm.DB, log *zap.Logger) *Store[T] {
	return &Store[T]{db: db, log: log}
}

// NewSoftDeleteStore builds a store whose default visibility excludes
// soft-deleted rows.
func NewSoftDeleteStore[T any](db *gorm.DB, log *zap.Logger) *Store[T] {
	return &Store[T]{db: db, log: log, softDelete: true}
}

// WithTrx rebinds the store to a transaction handle.
func (s *Store[T]) WithTrx(tx *gorm.DB) *Store[T] {
	clone := *s
	clone.db = tx
	return &clone
}

// DeletedOnly scopes queries to soft-deleted rows.
func (s *Store[T]) DeletedOnly() *Store[T] {
	clone := *s
	clone.vis = visibleDeleted
	return &clone
}

// AllIncludingDeleted scopes queries to every row regardless of deletion.
func (s *Store[T]) AllIncludingDeleted() *Store[T] {
	clone := *s
	clone.vis = visibleAll
	return &clone
}

// WithoutTenant bypasses tenant filtering for privileged code paths. The
// bypass is logged with the caller-supplied reason so it stays auditable.
func (s *Store[T]) WithoutTenant(reason string) *Store[T] {
	if s.log != nil {
		s.log.Warn("tenant filter bypassed",
			zap.String("reason", reason),
		)
	}
	clone := *s
	clone.bypass = true
	return &clone
}

// query applies tenant and soft-delete scoping. It returns ok=false when no
// tenant is set and the store is tenant-scoped; readers then short-circuit
// to empty results.
func (s *Store[T]) query(ctx context.Context) (*gorm.DB, bool) {
	db := s.db.WithContext(ctx).Model(new(T))

	if !s.bypass {
		tenantID, ok := tenantctx.TenantID(ctx)
		if !ok {
			return nil, false
		}
		db = db.Where("tenant_id = ?", tenantID)
	}

	if s.softDelete {
		switch s.vis {
		case visibleActive:
			db = db.Where("deleted = ?", false)
		case visibleDeleted:
			db = db.Where("deleted = ?", true)
		}
	}

	return db, true
}

// writeQuery is like query but fails instead of short-circuiting.
func (s *Store[T]) writeQuery(ctx context.Context) (*gorm.DB, error) {
	db, ok := s.query(ctx)
	if !ok {
		return nil, ErrTenantRequired
	}
	return db, nil
}

// Find returns all rows matching filter within the current scope.
func (s *Store[T]) Find(ctx context.Context, filter *T, opts ...QueryOption) ([]*T, error) {
	db, ok := s.query(ctx)
	if !ok {
		return nil, nil
	}
	if filter != nil {
		db = db.Where(filter)
	}
	for _, opt := range opts {
		db = opt(db)
	}
	var result []*T
	if err := db.Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// FindOne returns the first row matching filter, or nil when absent.
func (s *Store[T]) FindOne(ctx context.Context, filter *T, opts ...QueryOption) (*T, error) {
	db, ok := s.query(ctx)
	if !ok {
		return nil, nil
	}
	if filter != nil {
		db = db.Where(filter)
	}
	for _, opt := range opts {
		db = opt(db)
	}
	var result T
	if err := db.First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

// Count counts rows matching filter within the current scope.
func (s *Store[T]) Count(ctx context.Context, filter *T) (int64, error) {
	db, ok := s.query(ctx)
	if !ok {
		return 0, nil
	}
	if filter != nil {
		db = db.Where(filter)
	}
	var count int64
	if err := db.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Create persists a new record. The caller stamps the record's tenant id;
// the store only verifies a tenant scope exists.
func (s *Store[T]) Create(ctx context.Context, record *T) error {
	if _, err := s.writeQuery(ctx); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(record).Error
}

// CreateInBatches persists records in chunks of batchSize within a single
// transaction, bounding per-statement size for high-volume inserts.
func (s *Store[T]) CreateInBatches(ctx context.Context, records []*T, batchSize int) error {
	if len(records) == 0 {
		return nil
	}
	if _, err := s.writeQuery(ctx); err != nil {
		return err
	}
	return s.db.WithContext(ctx).CreateInBatches(records, batchSize).Error
}

// Updates applies changes to the row with the given id, inside the tenant
// scope.
func (s *Store[T]) Updates(ctx context.Context, id snowflake.ID, changes map[string]any) error {
	db, err := s.writeQuery(ctx)
	if err != nil {
		return err
	}
	return db.Where("id = ?", id).Updates(changes).Error
}

// SoftDelete marks the row deleted and stamps deleted_at, touching only
// those two columns.
func (s *Store[T]) SoftDelete(ctx context.Context, id snowflake.ID, now time.Time) error {
	db, err := s.writeQuery(ctx)
	if err != nil {
		return err
	}
	return db.Where("id = ?", id).Updates(map[string]any{
		"deleted":    true,
		"deleted_at": now,
	}).Error
}

// Restore clears the soft-delete mark on the row.
func (s *Store[T]) Restore(ctx context.Context, id snowflake.ID) error {
	db, err := s.DeletedOnly().writeQuery(ctx)
	if err != nil {
		return err
	}
	return db.Where("id = ?", id).Updates(map[string]any{
		"deleted":    false,
		"deleted_at": nil,
	}).Error
}

// RestoreAll clears the soft-delete mark on every deleted row matching
// filter. Administrative recovery path.
func (s *Store[T]) RestoreAll(ctx context.Context, filter *T) (int64, error) {
	db, err := s.DeletedOnly().writeQuery(ctx)
	if err != nil {
		return 0, err
	}
	if filter != nil {
		db = db.Where(filter)
	}
	result := db.Updates(map[string]any{
		"deleted":    false,
		"deleted_at": nil,
	})
	return result.RowsAffected, result.Error
}

// HardDelete physically removes the row. Never called by normal flows;
// retention sweeps and cascading owner deletion only.
func (s *Store[T]) HardDelete(ctx context.Context, id snowflake.ID) error {
	db, err := s.AllIncludingDeleted().writeQuery(ctx)
	if err != nil {
		return err
	}
	var dummy T
	return db.Where("id = ?", id).Delete(&dummy).Error
}
