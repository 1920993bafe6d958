package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AccountRepositoryImpl implements AccountRepository interface
type AccountRepositoryImpl struct {
	*BaseRepository[models.Account, models.AccountFilter]
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &AccountRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Account, models.AccountFilter](db),
	}
}

// ByUUID finds an account by UUID
func (r *AccountRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Account, error) {
	return r.byUUID(ctx, uuid)
}

// ByFilter retrieves accounts based on filter criteria
func (r *AccountRepositoryImpl) ByFilter(ctx context.Context, filter models.AccountFilter, orderBy string, limit, offset int) ([]*models.Account, error) {
	return r.listWith(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) }, orderBy, limit, offset)
}

// Count returns the number of accounts matching the filter
func (r *AccountRepositoryImpl) Count(ctx context.Context, filter models.AccountFilter) (int64, error) {
	return r.countWith(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) })
}

// Exists checks if any account matching the filter exists
func (r *AccountRepositoryImpl) Exists(ctx context.Context, filter models.AccountFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateEarnings adds delta to accumulated earnings with a single in-place update
func (r *AccountRepositoryImpl) UpdateEarnings(ctx context.Context, accountID uint, delta decimal.Decimal) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	res := db.Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"accumulated_earnings": gorm.Expr("accumulated_earnings + ?", delta),
			"updated_at":           utils.UTCNow(),
		})
	err = res.Error
	if err == nil && res.RowsAffected == 0 {
		err = fmt.Errorf("account %d not found for earnings update", accountID)
	}

	return finish(db, shouldCommit, err)
}

// SettleNegativeEarnings converts negative earnings into outstanding debt
func (r *AccountRepositoryImpl) SettleNegativeEarnings(ctx context.Context, accountID uint) (decimal.Decimal, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	var earnings decimal.Decimal
	err = db.Model(&models.Account{}).
		Select("accumulated_earnings").
		Where("id = ?", accountID).
		Row().
		Scan(&earnings)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = fmt.Errorf("account %d not found for debt conversion", accountID)
		}
		return decimal.Zero, finish(db, shouldCommit, err)
	}

	if !earnings.IsNegative() {
		return decimal.Zero, finish(db, shouldCommit, nil)
	}

	// SET expressions see the pre-update row, so debt grows by the full negative balance
	err = db.Model(&models.Account{}).
		Where("id = ? AND accumulated_earnings < 0", accountID).
		Updates(map[string]any{
			"outstanding_debt":     gorm.Expr("outstanding_debt - accumulated_earnings"),
			"accumulated_earnings": decimal.Zero,
			"updated_at":           utils.UTCNow(),
		}).Error

	return earnings.Neg(), finish(db, shouldCommit, err)
}

// UpgradeTier stores the new tier together with its history entry and benefit snapshot
func (r *AccountRepositoryImpl) UpgradeTier(ctx context.Context, accountID uint, tierName string, entry models.TierHistoryEntry, benefits models.JSONMap) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	var account models.Account
	err = db.Select("id", "tier_history").Where("id = ?", accountID).Last(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = fmt.Errorf("account %d not found for tier upgrade", accountID)
		}
		return finish(db, shouldCommit, err)
	}

	history := append(account.TierHistory, entry)
	err = db.Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"tier_name":    tierName,
			"tier_history": history,
			"benefits":     benefits,
			"updated_at":   utils.UTCNow(),
		}).Error

	return finish(db, shouldCommit, err)
}

// UpdateTotalInvestment stores the recomputed active investment total
func (r *AccountRepositoryImpl) UpdateTotalInvestment(ctx context.Context, accountID uint, total decimal.Decimal) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	err = db.Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"total_investment": total,
			"updated_at":       utils.UTCNow(),
		}).Error

	return finish(db, shouldCommit, err)
}

// ListWithInvestmentsSince returns accounts that made an investment at or after since
func (r *AccountRepositoryImpl) ListWithInvestmentsSince(ctx context.Context, since time.Time, limit int) ([]*models.Account, error) {
	db := r.getDB(ctx)

	sub := db.Session(&gorm.Session{NewDB: true}).
		Model(&models.Investment{}).
		Select("account_id").
		Where("created_at >= ?", since)

	var accounts []*models.Account
	query := db.Where("id IN (?)", sub).Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *AccountRepositoryImpl) applyFilter(db *gorm.DB, filter models.AccountFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.Email != nil {
		db = db.Where("email = ?", *filter.Email)
	}
	if filter.ReferrerID != nil {
		db = db.Where("referrer_id = ?", *filter.ReferrerID)
	}
	if filter.TierName != nil {
		db = db.Where("tier_name = ?", *filter.TierName)
	}
	if filter.TierNames != nil {
		db = db.Where("tier_name IN ?", filter.TierNames)
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}
	if filter.HasDebt != nil {
		if *filter.HasDebt {
			db = db.Where("outstanding_debt > 0")
		} else {
			db = db.Where("outstanding_debt = 0")
		}
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}
