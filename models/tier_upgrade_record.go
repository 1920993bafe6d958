package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TierChangeReason explains what triggered a reclassification
type TierChangeReason string

const (
	TierChangeReasonInvestment TierChangeReason = "investment_activity"
	TierChangeReasonSweep      TierChangeReason = "scheduled_sweep"
	TierChangeReasonManual     TierChangeReason = "manual"
)

// TierUpgradeRecord is written whenever classification moves an account to a different tier
type TierUpgradeRecord struct {
	ID              uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID            uuid.UUID        `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	AccountID       uint             `gorm:"not null;index" json:"account_id"`
	FromTier        string           `gorm:"size:30" json:"from_tier"`
	ToTier          string           `gorm:"size:30" json:"to_tier"`
	TotalInvestment decimal.Decimal  `gorm:"type:decimal(20,2);not null" json:"total_investment"`
	Reason          TierChangeReason `gorm:"type:varchar(30);not null" json:"reason"`
	IsDowngrade     bool             `gorm:"not null;default:false" json:"is_downgrade"`
	ProcessedAt     time.Time        `gorm:"not null;index" json:"processed_at"`
}

func (TierUpgradeRecord) TableName() string {
	return "tier_upgrade_records"
}

// BeforeCreate ensures UUID is set
func (r *TierUpgradeRecord) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	return nil
}

// TierUpgradeRecordFilter represents filter criteria for tier upgrade queries
type TierUpgradeRecordFilter struct {
	ID              *uint      `json:"id,omitempty"`
	AccountID       *uint      `json:"account_id,omitempty"`
	ToTier          *string    `json:"to_tier,omitempty"`
	ProcessedAfter  *time.Time `json:"processed_after,omitempty"`
	ProcessedBefore *time.Time `json:"processed_before,omitempty"`
}
