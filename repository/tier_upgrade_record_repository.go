package repository

import (
	"context"

	"github.com/amirphl/Susanoo/models"
	"gorm.io/gorm"
)

// TierUpgradeRecordRepositoryImpl implements TierUpgradeRecordRepository interface
type TierUpgradeRecordRepositoryImpl struct {
	*BaseRepository[models.TierUpgradeRecord, models.TierUpgradeRecordFilter]
}

// NewTierUpgradeRecordRepository creates a new tier upgrade record repository
func NewTierUpgradeRecordRepository(db *gorm.DB) TierUpgradeRecordRepository {
	return &TierUpgradeRecordRepositoryImpl{
		BaseRepository: NewBaseRepository[models.TierUpgradeRecord, models.TierUpgradeRecordFilter](db),
	}
}

// ByFilter retrieves tier upgrade records based on filter criteria
func (r *TierUpgradeRecordRepositoryImpl) ByFilter(ctx context.Context, filter models.TierUpgradeRecordFilter, orderBy string, limit, offset int) ([]*models.TierUpgradeRecord, error) {
	return r.listWith(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) }, orderBy, limit, offset)
}

// Count returns the number of records matching the filter
func (r *TierUpgradeRecordRepositoryImpl) Count(ctx context.Context, filter models.TierUpgradeRecordFilter) (int64, error) {
	return r.countWith(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) })
}

// Exists checks if any record matching the filter exists
func (r *TierUpgradeRecordRepositoryImpl) Exists(ctx context.Context, filter models.TierUpgradeRecordFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ByAccount lists an account's tier changes, oldest first
func (r *TierUpgradeRecordRepositoryImpl) ByAccount(ctx context.Context, accountID uint) ([]*models.TierUpgradeRecord, error) {
	return r.ByFilter(ctx, models.TierUpgradeRecordFilter{AccountID: &accountID}, "id ASC", 0, 0)
}

// applyFilter applies filter conditions to the GORM query
func (r *TierUpgradeRecordRepositoryImpl) applyFilter(db *gorm.DB, filter models.TierUpgradeRecordFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.AccountID != nil {
		db = db.Where("account_id = ?", *filter.AccountID)
	}
	if filter.ToTier != nil {
		db = db.Where("to_tier = ?", *filter.ToTier)
	}
	if filter.ProcessedAfter != nil {
		db = db.Where("processed_at >= ?", *filter.ProcessedAfter)
	}
	if filter.ProcessedBefore != nil {
		db = db.Where("processed_at <= ?", *filter.ProcessedBefore)
	}
	return db
}
