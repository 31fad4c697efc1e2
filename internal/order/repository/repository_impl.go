package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/gridora/gridora/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func ProvideRepository(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

// UpdateVersioned is the compare-and-swap write path. The version check and
// increment happen in one statement, so two writers starting from the same
// version cannot both succeed.
func (r *repo) UpdateVersioned(ctx context.Context, tenantID uuid.UUID, id snowflake.ID, expectedVersion int64, changes map[string]any) error {
	assigned := make(map[string]any, len(changes)+1)
	for k, v := range changes {
		assigned[k] = v
	}
	assigned["version"] = gorm.Expr("version + 1")

	res := r.db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND tenant_id = ? AND version = ? AND deleted = ?",
			id, tenantID, expectedVersion, false).
		Updates(assigned)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	// Zero rows: distinguish a missing order from a lost race.
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND tenant_id = ? AND deleted = ?", id, tenantID, false).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrVersionConflict
}

func (r *repo) PendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var orders []*domain.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND deleted = ? AND created_at < ?",
			domain.StatusPending, false, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
