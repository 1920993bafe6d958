package repository

import (
	"context"

	"github.com/amirphl/Susanoo/models"
	"gorm.io/gorm"
)

// CommissionClawbackRepositoryImpl implements CommissionClawbackRepository interface
type CommissionClawbackRepositoryImpl struct {
	*BaseRepository[models.CommissionClawback, models.CommissionClawbackFilter]
}

// NewCommissionClawbackRepository creates a new clawback repository
func NewCommissionClawbackRepository(db *gorm.DB) CommissionClawbackRepository {
	return &CommissionClawbackRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CommissionClawback, models.CommissionClawbackFilter](db),
	}
}

// ByFilter retrieves clawbacks based on filter criteria
func (r *CommissionClawbackRepositoryImpl) ByFilter(ctx context.Context, filter models.CommissionClawbackFilter, orderBy string, limit, offset int) ([]*models.CommissionClawback, error) {
	return r.listWith(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) }, orderBy, limit, offset)
}

// Count returns the number of clawbacks matching the filter
func (r *CommissionClawbackRepositoryImpl) Count(ctx context.Context, filter models.CommissionClawbackFilter) (int64, error) {
	return r.countWith(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) })
}

// Exists checks if any clawback matching the filter exists
func (r *CommissionClawbackRepositoryImpl) Exists(ctx context.Context, filter models.CommissionClawbackFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ByInvestment lists clawbacks triggered by withdrawing an investment
func (r *CommissionClawbackRepositoryImpl) ByInvestment(ctx context.Context, investmentID uint) ([]*models.CommissionClawback, error) {
	db := r.getDB(ctx)
	var clawbacks []*models.CommissionClawback
	err := db.Where("investment_id = ?", investmentID).Order("id ASC").Find(&clawbacks).Error
	if err != nil {
		return nil, err
	}
	return clawbacks, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *CommissionClawbackRepositoryImpl) applyFilter(db *gorm.DB, filter models.CommissionClawbackFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.CorrelationID != nil {
		db = db.Where("correlation_id = ?", *filter.CorrelationID)
	}
	if filter.CommissionID != nil {
		db = db.Where("commission_id = ?", *filter.CommissionID)
	}
	if filter.AccountID != nil {
		db = db.Where("account_id = ?", *filter.AccountID)
	}
	if filter.InvestmentID != nil {
		db = db.Where("investment_id = ?", *filter.InvestmentID)
	}
	if filter.WithdrawalReference != nil {
		db = db.Where("withdrawal_reference = ?", *filter.WithdrawalReference)
	}
	if filter.ProcessedAfter != nil {
		db = db.Where("processed_at >= ?", *filter.ProcessedAfter)
	}
	if filter.ProcessedBefore != nil {
		db = db.Where("processed_at <= ?", *filter.ProcessedBefore)
	}
	return db
}
