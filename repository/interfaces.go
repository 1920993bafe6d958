// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/Susanoo/models"
	"github.com/shopspring/decimal"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// AccountRepository defines operations for accounts. It is the engine's account store.
type AccountRepository interface {
	Repository[models.Account, models.AccountFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Account, error)
	// UpdateEarnings adds delta (possibly negative) to accumulated earnings in place
	UpdateEarnings(ctx context.Context, accountID uint, delta decimal.Decimal) error
	// SettleNegativeEarnings moves a negative earnings balance into outstanding debt
	// and zeroes earnings. It returns the amount moved (zero if earnings were not negative).
	SettleNegativeEarnings(ctx context.Context, accountID uint) (decimal.Decimal, error)
	// UpgradeTier stores a new tier, appends to the tier history and caches benefit rates
	UpgradeTier(ctx context.Context, accountID uint, tierName string, entry models.TierHistoryEntry, benefits models.JSONMap) error
	UpdateTotalInvestment(ctx context.Context, accountID uint, total decimal.Decimal) error
	ListWithInvestmentsSince(ctx context.Context, since time.Time, limit int) ([]*models.Account, error)
}

// InvestmentRepository defines operations for investments. It is the engine's investment store.
type InvestmentRepository interface {
	Repository[models.Investment, models.InvestmentFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Investment, error)
	SumActiveByAccount(ctx context.Context, accountID uint) (decimal.Decimal, error)
	// SumActivePool sums active investments, restricted to holders of the given tiers when tierNames is non-nil
	SumActivePool(ctx context.Context, tierNames []string) (decimal.Decimal, error)
	// ActiveShares groups active investments per account, with the same tier restriction as SumActivePool
	ActiveShares(ctx context.Context, tierNames []string) ([]models.AccountShare, error)
	MarkInactive(ctx context.Context, investmentID uint, at time.Time) (bool, error)
}

// ReferralCommissionRepository defines operations for referral commissions
type ReferralCommissionRepository interface {
	Repository[models.ReferralCommission, models.ReferralCommissionFilter]
	ByInvestment(ctx context.Context, investmentID uint, commissionType models.CommissionType) ([]*models.ReferralCommission, error)
	PaidForWithdrawal(ctx context.Context, investmentID, referredAccountID uint, types []models.CommissionType) ([]*models.ReferralCommission, error)
	ListSettleable(ctx context.Context, createdBefore time.Time, limit int) ([]*models.ReferralCommission, error)
	// MarkPaid moves the given pending commissions to paid and returns how many changed
	MarkPaid(ctx context.Context, ids []uint, paidAt time.Time) (int64, error)
}

// CommissionClawbackRepository defines operations for the clawback ledger
type CommissionClawbackRepository interface {
	Repository[models.CommissionClawback, models.CommissionClawbackFilter]
	ByInvestment(ctx context.Context, investmentID uint) ([]*models.CommissionClawback, error)
}

// ProfitDistributionRepository defines operations for distribution headers
type ProfitDistributionRepository interface {
	Repository[models.ProfitDistribution, models.ProfitDistributionFilter]
	ByUUID(ctx context.Context, uuid string) (*models.ProfitDistribution, error)
	// ExistsProcessed is the (type, date) uniqueness check
	ExistsProcessed(ctx context.Context, distributionType models.DistributionType, date time.Time) (bool, error)
	ProcessedFor(ctx context.Context, distributionType models.DistributionType, date time.Time) (*models.ProfitDistribution, error)
	UpdateStatus(ctx context.Context, id uint, status models.DistributionStatus, details models.JSONMap) error
}

// ProfitAllocationRepository defines operations for per-account distribution lines
type ProfitAllocationRepository interface {
	Repository[models.ProfitAllocation, models.ProfitAllocationFilter]
	ByDistribution(ctx context.Context, distributionID uint) ([]*models.ProfitAllocation, error)
	SumByDistribution(ctx context.Context, distributionID uint) (decimal.Decimal, error)
}

// TierUpgradeRecordRepository defines operations for tier change records
type TierUpgradeRecordRepository interface {
	Repository[models.TierUpgradeRecord, models.TierUpgradeRecordFilter]
	ByAccount(ctx context.Context, accountID uint) ([]*models.TierUpgradeRecord, error)
}

// ActivityLogRepository defines operations for account activity
type ActivityLogRepository interface {
	Repository[models.ActivityLog, models.ActivityLogFilter]
	ListByAccount(ctx context.Context, accountID uint, limit, offset int) ([]*models.ActivityLog, error)
}

// WorkUnitRepository defines operations for dispatched work units
type WorkUnitRepository interface {
	Repository[models.WorkUnit, models.WorkUnitFilter]
	ByUUID(ctx context.Context, uuid string) (*models.WorkUnit, error)
	Update(ctx context.Context, unit *models.WorkUnit) error
	ListFailed(ctx context.Context, limit, offset int) ([]*models.WorkUnit, error)
}
