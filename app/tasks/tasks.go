// Package tasks wraps the distribution engine operations into retryable, deduplicated units of work
package tasks

import (
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/Susanoo/models"
	"github.com/shopspring/decimal"
)

// TaskType tags a unit of work
type TaskType string

const (
	TypeProcessInvestmentCommissions TaskType = "process_investment_commissions"
	TypeProcessWithdrawalClawback    TaskType = "process_withdrawal_clawback"
	TypeSettlePendingCommissions     TaskType = "settle_pending_commissions"
	TypeDistributeAnnualProfit       TaskType = "distribute_annual_profit"
	TypeDistributeQuarterlyBonus     TaskType = "distribute_quarterly_bonus"
	TypeUpgradeAccountTier           TaskType = "upgrade_account_tier"
	TypeSweepTierUpgrades            TaskType = "sweep_tier_upgrades"
)

// Identity names a unit by its type and the entities it touches.
// Two units with the same key never run at the same time.
type Identity struct {
	Type      TaskType `json:"type"`
	EntityIDs []string `json:"entity_ids"`
}

// Key renders the identity as a single string
func (i Identity) Key() string {
	parts := append([]string{string(i.Type)}, i.EntityIDs...)
	return strings.Join(parts, ":")
}

// Task is one of the variants below. The set is closed; the dispatcher switches on it exhaustively.
type Task interface {
	Type() TaskType
	Identity() Identity
	Payload() models.JSONMap
	isTask()
}

func uintID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func dayID(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// ProcessInvestmentCommissions grants referral and matrix commissions for a new investment
type ProcessInvestmentCommissions struct {
	InvestmentID uint `json:"investment_id" validate:"required"`
}

func (ProcessInvestmentCommissions) isTask() {}

func (t ProcessInvestmentCommissions) Type() TaskType { return TypeProcessInvestmentCommissions }

func (t ProcessInvestmentCommissions) Identity() Identity {
	return Identity{Type: t.Type(), EntityIDs: []string{uintID(t.InvestmentID)}}
}

func (t ProcessInvestmentCommissions) Payload() models.JSONMap {
	return models.JSONMap{"investment_id": t.InvestmentID}
}

// ProcessWithdrawalClawback reclaims commissions after an early withdrawal
type ProcessWithdrawalClawback struct {
	InvestmentID        uint      `json:"investment_id" validate:"required"`
	WithdrawalReference string    `json:"withdrawal_reference" validate:"required,max=255"`
	WithdrawnAt         time.Time `json:"withdrawn_at" validate:"required"`
}

func (ProcessWithdrawalClawback) isTask() {}

func (t ProcessWithdrawalClawback) Type() TaskType { return TypeProcessWithdrawalClawback }

func (t ProcessWithdrawalClawback) Identity() Identity {
	return Identity{Type: t.Type(), EntityIDs: []string{uintID(t.InvestmentID)}}
}

func (t ProcessWithdrawalClawback) Payload() models.JSONMap {
	return models.JSONMap{
		"investment_id":        t.InvestmentID,
		"withdrawal_reference": t.WithdrawalReference,
		"withdrawn_at":         t.WithdrawnAt.UTC().Format(time.RFC3339),
	}
}

// SettlePendingCommissions settles one bounded batch of aged pending commissions
type SettlePendingCommissions struct {
	BatchSize  int `json:"batch_size" validate:"required,min=1,max=10000"`
	MaxAgeDays int `json:"max_age_days" validate:"min=0"`
}

func (SettlePendingCommissions) isTask() {}

func (t SettlePendingCommissions) Type() TaskType { return TypeSettlePendingCommissions }

// Identity is shared by all settlement batches so they never overlap
func (t SettlePendingCommissions) Identity() Identity {
	return Identity{Type: t.Type(), EntityIDs: []string{"pending"}}
}

func (t SettlePendingCommissions) Payload() models.JSONMap {
	return models.JSONMap{"batch_size": t.BatchSize, "max_age_days": t.MaxAgeDays}
}

// DistributeAnnualProfit runs the annual profit pool distribution
type DistributeAnnualProfit struct {
	TotalProfit      decimal.Decimal `json:"total_profit"`
	DistributionDate time.Time       `json:"distribution_date" validate:"required"`
	Force            bool            `json:"force"`
	CreatedBy        string          `json:"created_by" validate:"max=100"`
}

func (DistributeAnnualProfit) isTask() {}

func (t DistributeAnnualProfit) Type() TaskType { return TypeDistributeAnnualProfit }

func (t DistributeAnnualProfit) Identity() Identity {
	return Identity{Type: t.Type(), EntityIDs: []string{dayID(t.DistributionDate)}}
}

func (t DistributeAnnualProfit) Payload() models.JSONMap {
	return models.JSONMap{
		"total_profit":      t.TotalProfit.String(),
		"distribution_date": dayID(t.DistributionDate),
		"force":             t.Force,
		"created_by":        t.CreatedBy,
	}
}

// DistributeQuarterlyBonus runs the quarterly bonus pool distribution
type DistributeQuarterlyBonus struct {
	TotalProfit         decimal.Decimal `json:"total_profit"`
	BonusPoolPercentage decimal.Decimal `json:"bonus_pool_percentage"`
	DistributionDate    time.Time       `json:"distribution_date" validate:"required"`
	Force               bool            `json:"force"`
	CreatedBy           string          `json:"created_by" validate:"max=100"`
}

func (DistributeQuarterlyBonus) isTask() {}

func (t DistributeQuarterlyBonus) Type() TaskType { return TypeDistributeQuarterlyBonus }

func (t DistributeQuarterlyBonus) Identity() Identity {
	return Identity{Type: t.Type(), EntityIDs: []string{dayID(t.DistributionDate)}}
}

func (t DistributeQuarterlyBonus) Payload() models.JSONMap {
	return models.JSONMap{
		"total_profit":          t.TotalProfit.String(),
		"bonus_pool_percentage": t.BonusPoolPercentage.String(),
		"distribution_date":     dayID(t.DistributionDate),
		"force":                 t.Force,
		"created_by":            t.CreatedBy,
	}
}

// UpgradeAccountTier reclassifies one account
type UpgradeAccountTier struct {
	AccountID uint                    `json:"account_id" validate:"required"`
	Reason    models.TierChangeReason `json:"reason" validate:"omitempty,oneof=investment_activity scheduled_sweep manual"`
}

func (UpgradeAccountTier) isTask() {}

func (t UpgradeAccountTier) Type() TaskType { return TypeUpgradeAccountTier }

func (t UpgradeAccountTier) Identity() Identity {
	return Identity{Type: t.Type(), EntityIDs: []string{uintID(t.AccountID)}}
}

func (t UpgradeAccountTier) Payload() models.JSONMap {
	return models.JSONMap{"account_id": t.AccountID, "reason": string(t.Reason)}
}

// SweepTierUpgrades reclassifies accounts with investment activity since a given instant
type SweepTierUpgrades struct {
	Since     time.Time `json:"since" validate:"required"`
	BatchSize int       `json:"batch_size" validate:"required,min=1,max=10000"`
}

func (SweepTierUpgrades) isTask() {}

func (t SweepTierUpgrades) Type() TaskType { return TypeSweepTierUpgrades }

// Identity is shared by all sweeps so they never overlap
func (t SweepTierUpgrades) Identity() Identity {
	return Identity{Type: t.Type(), EntityIDs: []string{"sweep"}}
}

func (t SweepTierUpgrades) Payload() models.JSONMap {
	return models.JSONMap{"since": t.Since.UTC().Format(time.RFC3339), "batch_size": t.BatchSize}
}
