package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DistributionType represents the kind of profit pool run
type DistributionType string

const (
	DistributionTypeAnnual         DistributionType = "annual"
	DistributionTypeQuarterlyBonus DistributionType = "quarterly_bonus"
)

// IsValid reports whether t is a known distribution type
func (t DistributionType) IsValid() bool {
	return t == DistributionTypeAnnual || t == DistributionTypeQuarterlyBonus
}

// DistributionStatus represents the outcome of a distribution run
type DistributionStatus string

const (
	DistributionStatusProcessed DistributionStatus = "processed"
	DistributionStatusFailed    DistributionStatus = "failed"
	DistributionStatusSuspended DistributionStatus = "suspended" // Superseded by a forced re-run
)

// ProfitDistribution is the header of one pool distribution run.
// At most one processed row exists per (type, distribution date).
type ProfitDistribution struct {
	ID               uint               `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID             uuid.UUID          `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	Type             DistributionType   `gorm:"type:varchar(20);not null;index:idx_distribution_type_date,priority:1" json:"type"`
	DistributionDate time.Time          `gorm:"not null;index:idx_distribution_type_date,priority:2" json:"distribution_date"`
	Status           DistributionStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	TotalProfit      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"total_profit"`
	PoolPercentage   decimal.Decimal `gorm:"type:decimal(9,4);not null" json:"pool_percentage"` // Annual: fraction of profit. Quarterly: percent.
	PoolAmount       decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"pool_amount"`
	TotalDistributed decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_distributed"`
	RemainingPool    decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"remaining_pool"`
	RecipientCount   int             `gorm:"not null;default:0" json:"recipient_count"`

	CalculationDetails JSONMap `gorm:"type:jsonb" json:"calculation_details"`
	CreatedBy          string  `gorm:"size:100;not null" json:"created_by"`

	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`

	Allocations []ProfitAllocation `gorm:"foreignKey:DistributionID" json:"allocations,omitempty"`
}

func (ProfitDistribution) TableName() string {
	return "profit_distributions"
}

// BeforeCreate ensures UUID is set
func (pd *ProfitDistribution) BeforeCreate(tx *gorm.DB) error {
	if pd.UUID == uuid.Nil {
		pd.UUID = uuid.New()
	}
	return nil
}

// IsProcessed returns true if this run is the effective one for its type and date
func (pd *ProfitDistribution) IsProcessed() bool {
	return pd.Status == DistributionStatusProcessed
}

// ProfitDistributionFilter represents filter criteria for distribution queries
type ProfitDistributionFilter struct {
	ID               *uint               `json:"id,omitempty"`
	UUID             *uuid.UUID          `json:"uuid,omitempty"`
	Type             *DistributionType   `json:"type,omitempty"`
	DistributionDate *time.Time          `json:"distribution_date,omitempty"`
	Status           *DistributionStatus `json:"status,omitempty"`
	CreatedAfter     *time.Time          `json:"created_after,omitempty"`
	CreatedBefore    *time.Time          `json:"created_before,omitempty"`
}

// ProfitAllocation is one account's slice of a distribution
type ProfitAllocation struct {
	ID             uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	DistributionID uint            `gorm:"not null;index;uniqueIndex:idx_allocation_distribution_account,priority:1" json:"distribution_id"`
	AccountID      uint            `gorm:"not null;index;uniqueIndex:idx_allocation_distribution_account,priority:2" json:"account_id"`
	TierName       string          `gorm:"size:30" json:"tier_name"`
	InvestedAmount decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"invested_amount"`
	PoolShare      decimal.Decimal `gorm:"type:decimal(12,10);not null" json:"pool_share"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
}

func (ProfitAllocation) TableName() string {
	return "profit_allocations"
}

// ProfitAllocationFilter represents filter criteria for allocation queries
type ProfitAllocationFilter struct {
	ID             *uint `json:"id,omitempty"`
	DistributionID *uint `json:"distribution_id,omitempty"`
	AccountID      *uint `json:"account_id,omitempty"`
}
