package repository

import (
	"context"
	"errors"
	"time"

	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
	"gorm.io/gorm"
)

// ProfitDistributionRepositoryImpl implements ProfitDistributionRepository interface
type ProfitDistributionRepositoryImpl struct {
	*BaseRepository[models.ProfitDistribution, models.ProfitDistributionFilter]
}

// NewProfitDistributionRepository creates a new profit distribution repository
func NewProfitDistributionRepository(db *gorm.DB) ProfitDistributionRepository {
	return &ProfitDistributionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ProfitDistribution, models.ProfitDistributionFilter](db),
	}
}

// ByUUID finds a distribution by UUID
func (r *ProfitDistributionRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.ProfitDistribution, error) {
	return r.byUUID(ctx, uuid)
}

// ByFilter retrieves distributions based on filter criteria
func (r *ProfitDistributionRepositoryImpl) ByFilter(ctx context.Context, filter models.ProfitDistributionFilter, orderBy string, limit, offset int) ([]*models.ProfitDistribution, error) {
	return r.listWith(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) }, orderBy, limit, offset)
}

// Count returns the number of distributions matching the filter
func (r *ProfitDistributionRepositoryImpl) Count(ctx context.Context, filter models.ProfitDistributionFilter) (int64, error) {
	return r.countWith(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) })
}

// Exists checks if any distribution matching the filter exists
func (r *ProfitDistributionRepositoryImpl) Exists(ctx context.Context, filter models.ProfitDistributionFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ExistsProcessed reports whether an effective distribution exists for the type and calendar day
func (r *ProfitDistributionRepositoryImpl) ExistsProcessed(ctx context.Context, distributionType models.DistributionType, date time.Time) (bool, error) {
	status := models.DistributionStatusProcessed
	return r.Exists(ctx, models.ProfitDistributionFilter{
		Type:             &distributionType,
		DistributionDate: &date,
		Status:           &status,
	})
}

// ProcessedFor returns the effective distribution for the type and calendar day, or nil
func (r *ProfitDistributionRepositoryImpl) ProcessedFor(ctx context.Context, distributionType models.DistributionType, date time.Time) (*models.ProfitDistribution, error) {
	db := r.getDB(ctx)
	status := models.DistributionStatusProcessed

	var distribution models.ProfitDistribution
	err := r.applyFilter(db, models.ProfitDistributionFilter{
		Type:             &distributionType,
		DistributionDate: &date,
		Status:           &status,
	}).Last(&distribution).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &distribution, nil
}

// UpdateStatus changes a distribution's status and merges extra calculation details
func (r *ProfitDistributionRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status models.DistributionStatus, details models.JSONMap) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	var distribution models.ProfitDistribution
	if err = db.Select("id", "calculation_details").Where("id = ?", id).Last(&distribution).Error; err != nil {
		return finish(db, shouldCommit, err)
	}

	merged := models.JSONMap{}
	for k, v := range distribution.CalculationDetails {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}

	err = db.Model(&models.ProfitDistribution{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":              status,
			"calculation_details": merged,
			"updated_at":          utils.UTCNow(),
		}).Error

	return finish(db, shouldCommit, err)
}

// applyFilter applies filter conditions to the GORM query
func (r *ProfitDistributionRepositoryImpl) applyFilter(db *gorm.DB, filter models.ProfitDistributionFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.Type != nil {
		db = db.Where("type = ?", *filter.Type)
	}
	if filter.DistributionDate != nil {
		day := utils.StartOfDay(*filter.DistributionDate)
		db = db.Where("distribution_date >= ? AND distribution_date < ?", day, day.AddDate(0, 0, 1))
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}
