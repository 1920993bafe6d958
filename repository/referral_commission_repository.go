package repository

import (
	"context"
	"time"

	"github.com/amirphl/Susanoo/models"
	"gorm.io/gorm"
)

// ReferralCommissionRepositoryImpl implements ReferralCommissionRepository interface
type ReferralCommissionRepositoryImpl struct {
	*BaseRepository[models.ReferralCommission, models.ReferralCommissionFilter]
}

// NewReferralCommissionRepository creates a new referral commission repository
func NewReferralCommissionRepository(db *gorm.DB) ReferralCommissionRepository {
	return &ReferralCommissionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ReferralCommission, models.ReferralCommissionFilter](db),
	}
}

// ByFilter retrieves commissions based on filter criteria
func (r *ReferralCommissionRepositoryImpl) ByFilter(ctx context.Context, filter models.ReferralCommissionFilter, orderBy string, limit, offset int) ([]*models.ReferralCommission, error) {
	return r.listWith(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) }, orderBy, limit, offset)
}

// Count returns the number of commissions matching the filter
func (r *ReferralCommissionRepositoryImpl) Count(ctx context.Context, filter models.ReferralCommissionFilter) (int64, error) {
	return r.countWith(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) })
}

// Exists checks if any commission matching the filter exists
func (r *ReferralCommissionRepositoryImpl) Exists(ctx context.Context, filter models.ReferralCommissionFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ByInvestment lists the commissions of one type generated by an investment, by level
func (r *ReferralCommissionRepositoryImpl) ByInvestment(ctx context.Context, investmentID uint, commissionType models.CommissionType) ([]*models.ReferralCommission, error) {
	db := r.getDB(ctx)
	var commissions []*models.ReferralCommission
	err := db.Where("source_investment_id = ? AND type = ?", investmentID, commissionType).
		Order("level ASC, id ASC").
		Find(&commissions).Error
	if err != nil {
		return nil, err
	}
	return commissions, nil
}

// PaidForWithdrawal lists paid commissions earned on an investment owned by referredAccountID
func (r *ReferralCommissionRepositoryImpl) PaidForWithdrawal(ctx context.Context, investmentID, referredAccountID uint, types []models.CommissionType) ([]*models.ReferralCommission, error) {
	db := r.getDB(ctx)
	var commissions []*models.ReferralCommission
	err := db.Where("source_investment_id = ? AND referred_account_id = ? AND status = ? AND type IN ?",
		investmentID, referredAccountID, models.CommissionStatusPaid, types).
		Order("referrer_account_id ASC, id ASC").
		Find(&commissions).Error
	if err != nil {
		return nil, err
	}
	return commissions, nil
}

// ListSettleable returns the oldest pending commissions created before the cutoff
func (r *ReferralCommissionRepositoryImpl) ListSettleable(ctx context.Context, createdBefore time.Time, limit int) ([]*models.ReferralCommission, error) {
	db := r.getDB(ctx)
	var commissions []*models.ReferralCommission

	query := db.Where("status = ? AND created_at < ?", models.CommissionStatusPending, createdBefore).
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&commissions).Error; err != nil {
		return nil, err
	}
	return commissions, nil
}

// MarkPaid settles pending commissions; rows already paid are left untouched
func (r *ReferralCommissionRepositoryImpl) MarkPaid(ctx context.Context, ids []uint, paidAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return 0, err
	}

	res := db.Model(&models.ReferralCommission{}).
		Where("id IN ? AND status = ?", ids, models.CommissionStatusPending).
		Updates(map[string]any{
			"status":     models.CommissionStatusPaid,
			"paid_at":    paidAt,
			"updated_at": paidAt,
		})

	return res.RowsAffected, finish(db, shouldCommit, res.Error)
}

// applyFilter applies filter conditions to the GORM query
func (r *ReferralCommissionRepositoryImpl) applyFilter(db *gorm.DB, filter models.ReferralCommissionFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.CorrelationID != nil {
		db = db.Where("correlation_id = ?", *filter.CorrelationID)
	}
	if filter.ReferrerAccountID != nil {
		db = db.Where("referrer_account_id = ?", *filter.ReferrerAccountID)
	}
	if filter.ReferredAccountID != nil {
		db = db.Where("referred_account_id = ?", *filter.ReferredAccountID)
	}
	if filter.SourceInvestmentID != nil {
		db = db.Where("source_investment_id = ?", *filter.SourceInvestmentID)
	}
	if filter.Type != nil {
		db = db.Where("type = ?", *filter.Type)
	}
	if filter.Types != nil {
		db = db.Where("type IN ?", filter.Types)
	}
	if filter.Level != nil {
		db = db.Where("level = ?", *filter.Level)
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
	if filter.PaidAfter != nil {
		db = db.Where("paid_at >= ?", *filter.PaidAfter)
	}
	if filter.PaidBefore != nil {
		db = db.Where("paid_at <= ?", *filter.PaidBefore)
	}
	return db
}
