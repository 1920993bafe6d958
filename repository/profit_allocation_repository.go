package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProfitAllocationRepositoryImpl implements ProfitAllocationRepository interface
type ProfitAllocationRepositoryImpl struct {
	*BaseRepository[models.ProfitAllocation, models.ProfitAllocationFilter]
}

// NewProfitAllocationRepository creates a new profit allocation repository
func NewProfitAllocationRepository(db *gorm.DB) ProfitAllocationRepository {
	return &ProfitAllocationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ProfitAllocation, models.ProfitAllocationFilter](db),
	}
}

// ByFilter retrieves allocations based on filter criteria
func (r *ProfitAllocationRepositoryImpl) ByFilter(ctx context.Context, filter models.ProfitAllocationFilter, orderBy string, limit, offset int) ([]*models.ProfitAllocation, error) {
	return r.listWith(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) }, orderBy, limit, offset)
}

// Count returns the number of allocations matching the filter
func (r *ProfitAllocationRepositoryImpl) Count(ctx context.Context, filter models.ProfitAllocationFilter) (int64, error) {
	return r.countWith(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) })
}

// Exists checks if any allocation matching the filter exists
func (r *ProfitAllocationRepositoryImpl) Exists(ctx context.Context, filter models.ProfitAllocationFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ByDistribution lists the allocation lines of a distribution
func (r *ProfitAllocationRepositoryImpl) ByDistribution(ctx context.Context, distributionID uint) ([]*models.ProfitAllocation, error) {
	return r.ByFilter(ctx, models.ProfitAllocationFilter{DistributionID: &distributionID}, "account_id ASC", 0, 0)
}

// SumByDistribution totals the allocation lines of a distribution
func (r *ProfitAllocationRepositoryImpl) SumByDistribution(ctx context.Context, distributionID uint) (decimal.Decimal, error) {
	db := r.getDB(ctx)

	var total decimal.Decimal
	err := db.Model(&models.ProfitAllocation{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("distribution_id = ?", distributionID).
		Row().
		Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum allocations of distribution %d: %w", distributionID, err)
	}
	return total.Round(utils.MoneyPlaces), nil
}

// applyFilter applies filter conditions to the GORM query
func (r *ProfitAllocationRepositoryImpl) applyFilter(db *gorm.DB, filter models.ProfitAllocationFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.DistributionID != nil {
		db = db.Where("distribution_id = ?", *filter.DistributionID)
	}
	if filter.AccountID != nil {
		db = db.Where("account_id = ?", *filter.AccountID)
	}
	return db
}
