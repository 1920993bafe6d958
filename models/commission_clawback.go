package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionClawback reclaims part of a paid commission after an early withdrawal.
// Rows are append-only and never reversed.
type CommissionClawback struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID          uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	CorrelationID uuid.UUID `gorm:"type:uuid;index;not null" json:"correlation_id"` // Shared by all clawbacks of one withdrawal

	CommissionID        uint   `gorm:"not null;uniqueIndex" json:"commission_id"`
	AccountID           uint   `gorm:"not null;index" json:"account_id"` // Referrer losing the amount
	InvestmentID        uint   `gorm:"not null;index" json:"investment_id"`
	WithdrawalReference string `gorm:"size:255;index" json:"withdrawal_reference"`

	OriginalAmount     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"original_amount"`
	ClawbackPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"clawback_percentage"`
	ClawbackAmount     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"clawback_amount"`
	MonthsElapsed      int             `gorm:"not null" json:"months_elapsed"`
	Reason             string          `gorm:"type:text" json:"reason"`

	ProcessedAt time.Time `gorm:"not null;index" json:"processed_at"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`

	Commission *ReferralCommission `gorm:"foreignKey:CommissionID" json:"commission,omitempty"`
}

func (CommissionClawback) TableName() string {
	return "commission_clawbacks"
}

// BeforeCreate ensures UUID and CorrelationID are set
func (cc *CommissionClawback) BeforeCreate(tx *gorm.DB) error {
	if cc.UUID == uuid.Nil {
		cc.UUID = uuid.New()
	}
	if cc.CorrelationID == uuid.Nil {
		cc.CorrelationID = uuid.New()
	}
	return nil
}

// CommissionClawbackFilter represents filter criteria for clawback queries
type CommissionClawbackFilter struct {
	ID                  *uint      `json:"id,omitempty"`
	CorrelationID       *uuid.UUID `json:"correlation_id,omitempty"`
	CommissionID        *uint      `json:"commission_id,omitempty"`
	AccountID           *uint      `json:"account_id,omitempty"`
	InvestmentID        *uint      `json:"investment_id,omitempty"`
	WithdrawalReference *string    `json:"withdrawal_reference,omitempty"`
	ProcessedAfter      *time.Time `json:"processed_after,omitempty"`
	ProcessedBefore     *time.Time `json:"processed_before,omitempty"`
}
