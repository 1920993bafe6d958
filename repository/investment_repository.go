package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvestmentRepositoryImpl implements InvestmentRepository interface
type InvestmentRepositoryImpl struct {
	*BaseRepository[models.Investment, models.InvestmentFilter]
}

// NewInvestmentRepository creates a new investment repository
func NewInvestmentRepository(db *gorm.DB) InvestmentRepository {
	return &InvestmentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Investment, models.InvestmentFilter](db),
	}
}

// ByUUID finds an investment by UUID
func (r *InvestmentRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Investment, error) {
	return r.byUUID(ctx, uuid)
}

// ByFilter retrieves investments based on filter criteria
func (r *InvestmentRepositoryImpl) ByFilter(ctx context.Context, filter models.InvestmentFilter, orderBy string, limit, offset int) ([]*models.Investment, error) {
	return r.listWith(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) }, orderBy, limit, offset)
}

// Count returns the number of investments matching the filter
func (r *InvestmentRepositoryImpl) Count(ctx context.Context, filter models.InvestmentFilter) (int64, error) {
	return r.countWith(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) })
}

// Exists checks if any investment matching the filter exists
func (r *InvestmentRepositoryImpl) Exists(ctx context.Context, filter models.InvestmentFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SumActiveByAccount returns the total of an account's active investments
func (r *InvestmentRepositoryImpl) SumActiveByAccount(ctx context.Context, accountID uint) (decimal.Decimal, error) {
	db := r.getDB(ctx)

	var total decimal.Decimal
	err := db.Model(&models.Investment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("account_id = ? AND status = ?", accountID, models.InvestmentStatusActive).
		Row().
		Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum active investments of account %d: %w", accountID, err)
	}
	return total.Round(utils.MoneyPlaces), nil
}

// SumActivePool returns the active investment pool, optionally restricted to holders of tierNames
func (r *InvestmentRepositoryImpl) SumActivePool(ctx context.Context, tierNames []string) (decimal.Decimal, error) {
	db := r.getDB(ctx)

	var total decimal.Decimal
	err := r.activeQuery(db, tierNames).
		Select("COALESCE(SUM(investments.amount), 0)").
		Row().
		Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum active investment pool: %w", err)
	}
	return total.Round(utils.MoneyPlaces), nil
}

// ActiveShares returns per-account active totals ordered by account id
func (r *InvestmentRepositoryImpl) ActiveShares(ctx context.Context, tierNames []string) ([]models.AccountShare, error) {
	db := r.getDB(ctx)

	rows, err := r.activeQuery(db, tierNames).
		Select("investments.account_id, accounts.tier_name, SUM(investments.amount)").
		Group("investments.account_id, accounts.tier_name").
		Order("investments.account_id ASC").
		Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to group active investments: %w", err)
	}
	defer rows.Close()

	var shares []models.AccountShare
	for rows.Next() {
		var s models.AccountShare
		if err := rows.Scan(&s.AccountID, &s.TierName, &s.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan active share: %w", err)
		}
		s.Amount = s.Amount.Round(utils.MoneyPlaces)
		shares = append(shares, s)
	}
	return shares, rows.Err()
}

// MarkInactive flips an active investment to inactive and reports whether it changed
func (r *InvestmentRepositoryImpl) MarkInactive(ctx context.Context, investmentID uint, at time.Time) (bool, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}

	res := db.Model(&models.Investment{}).
		Where("id = ? AND status = ?", investmentID, models.InvestmentStatusActive).
		Updates(map[string]any{
			"status":       models.InvestmentStatusInactive,
			"withdrawn_at": at,
			"updated_at":   at,
		})

	return res.RowsAffected > 0, finish(db, shouldCommit, res.Error)
}

func (r *InvestmentRepositoryImpl) activeQuery(db *gorm.DB, tierNames []string) *gorm.DB {
	query := db.Table("investments").
		Joins("JOIN accounts ON accounts.id = investments.account_id").
		Where("investments.status = ?", models.InvestmentStatusActive)
	if tierNames != nil {
		query = query.Where("accounts.tier_name IN ?", tierNames)
	}
	return query
}

// applyFilter applies filter conditions to the GORM query
func (r *InvestmentRepositoryImpl) applyFilter(db *gorm.DB, filter models.InvestmentFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.AccountID != nil {
		db = db.Where("account_id = ?", *filter.AccountID)
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
