package repository

import (
	"context"

	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
	"gorm.io/gorm"
)

// WorkUnitRepositoryImpl implements WorkUnitRepository interface
type WorkUnitRepositoryImpl struct {
	*BaseRepository[models.WorkUnit, models.WorkUnitFilter]
}

// NewWorkUnitRepository creates a new work unit repository
func NewWorkUnitRepository(db *gorm.DB) WorkUnitRepository {
	return &WorkUnitRepositoryImpl{
		BaseRepository: NewBaseRepository[models.WorkUnit, models.WorkUnitFilter](db),
	}
}

// ByUUID finds a work unit by UUID
func (r *WorkUnitRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.WorkUnit, error) {
	return r.byUUID(ctx, uuid)
}

// ByFilter retrieves work units based on filter criteria
func (r *WorkUnitRepositoryImpl) ByFilter(ctx context.Context, filter models.WorkUnitFilter, orderBy string, limit, offset int) ([]*models.WorkUnit, error) {
	return r.listWith(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) }, orderBy, limit, offset)
}

// Count returns the number of work units matching the filter
func (r *WorkUnitRepositoryImpl) Count(ctx context.Context, filter models.WorkUnitFilter) (int64, error) {
	return r.countWith(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) })
}

// Exists checks if any work unit matching the filter exists
func (r *WorkUnitRepositoryImpl) Exists(ctx context.Context, filter models.WorkUnitFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update persists the mutable execution fields of a work unit
func (r *WorkUnitRepositoryImpl) Update(ctx context.Context, unit *models.WorkUnit) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	unit.UpdatedAt = utils.UTCNow()
	err = db.Model(&models.WorkUnit{}).
		Where("id = ?", unit.ID).
		Updates(map[string]any{
			"status":      unit.Status,
			"attempts":    unit.Attempts,
			"last_error":  unit.LastError,
			"result":      unit.Result,
			"started_at":  unit.StartedAt,
			"finished_at": unit.FinishedAt,
			"updated_at":  unit.UpdatedAt,
		}).Error

	return finish(db, shouldCommit, err)
}

// ListFailed lists permanently failed work units, newest first
func (r *WorkUnitRepositoryImpl) ListFailed(ctx context.Context, limit, offset int) ([]*models.WorkUnit, error) {
	status := models.WorkUnitStatusFailed
	return r.ByFilter(ctx, models.WorkUnitFilter{Status: &status}, "id DESC", limit, offset)
}

// applyFilter applies filter conditions to the GORM query
func (r *WorkUnitRepositoryImpl) applyFilter(db *gorm.DB, filter models.WorkUnitFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.TaskType != nil {
		db = db.Where("task_type = ?", *filter.TaskType)
	}
	if filter.IdentityKey != nil {
		db = db.Where("identity_key = ?", *filter.IdentityKey)
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
