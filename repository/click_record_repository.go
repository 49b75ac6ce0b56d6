package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/leadbridge/models"
	"gorm.io/gorm"
)

// ClickRecordRepositoryImpl implements ClickRecordRepository
type ClickRecordRepositoryImpl struct {
	*BaseRepository[models.ClickRecord, models.ClickRecordFilter]
}

func NewClickRecordRepository(db *gorm.DB) ClickRecordRepository {
	return &ClickRecordRepositoryImpl{BaseRepository: NewBaseRepository[models.ClickRecord, models.ClickRecordFilter](db)}
}

// ByToken returns the record carrying token, or nil when there is none
func (r *ClickRecordRepositoryImpl) ByToken(ctx context.Context, token string) (*models.ClickRecord, error) {
	filter := models.ClickRecordFilter{UniqueToken: &token}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *ClickRecordRepositoryImpl) ResolveIdentity(ctx context.Context, token, chatID string, at time.Time) (bool, error) {
	var resolved bool
	err := r.withWriteTx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&models.ClickRecord{}).
			Where("unique_token = ? AND telegram_id IS NULL", token).
			Updates(map[string]any{
				"telegram_id": chatID,
				"status":      models.ClickStatusVerified,
				"verified_at": at,
				"updated_at":  at,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to resolve click record identity: %w", res.Error)
		}
		resolved = res.RowsAffected == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	return resolved, nil
}

func (r *ClickRecordRepositoryImpl) applyFilter(db *gorm.DB, f models.ClickRecordFilter) *gorm.DB {
	if f.UniqueToken != nil {
		db = db.Where("unique_token = ?", *f.UniqueToken)
	}
	if f.Resolved != nil {
		if *f.Resolved {
			db = db.Where("telegram_id IS NOT NULL")
		} else {
			db = db.Where("telegram_id IS NULL")
		}
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *ClickRecordRepositoryImpl) ByFilter(ctx context.Context, filter models.ClickRecordFilter, orderBy string, limit, offset int) ([]*models.ClickRecord, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ClickRecord{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.ClickRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find click records: %w", err)
	}
	return rows, nil
}

func (r *ClickRecordRepositoryImpl) Count(ctx context.Context, filter models.ClickRecordFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ClickRecord{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count click records: %w", err)
	}
	return count, nil
}

