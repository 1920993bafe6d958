package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ActivityLog struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	AccountID   uint                `gorm:"not null;index:idx_activity_account_id" json:"account_id"`
	Action      string              `gorm:"size:50;not null;index:idx_activity_action" json:"action"`
	Description string              `gorm:"type:text" json:"description"`
	Amount      decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"amount"`
	Metadata    JSONMap             `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time           `gorm:"not null;index:idx_activity_created_at" json:"created_at"`
}

func (ActivityLog) TableName() string {
	return "activity_log"
}

// Activity action constants
const (
	ActivityActionCommissionEarned        = "commission_earned"
	ActivityActionCommissionClawedBack    = "commission_clawed_back"
	ActivityActionDebtRecorded            = "debt_recorded"
	ActivityActionTierChanged             = "tier_changed"
	ActivityActionProfitAllocated         = "profit_allocated"
	ActivityActionQuarterlyBonusAllocated = "quarterly_bonus_allocated"
)

// ActivityLogFilter represents filter criteria for activity log queries
type ActivityLogFilter struct {
	ID            *uint
	AccountID     *uint
	Action        *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
