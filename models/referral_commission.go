package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionStatus represents the settlement state of a referral commission.
// pending -> paid is the only transition; paid is terminal.
type CommissionStatus string

const (
	CommissionStatusPending CommissionStatus = "pending" // Granted to earnings, awaiting settlement
	CommissionStatusPaid    CommissionStatus = "paid"    // Settled
)

// CommissionType represents the structure that generated a commission
type CommissionType string

const (
	CommissionTypeMultiLevel CommissionType = "multi_level" // Sponsor chain, levels 1..3
	CommissionTypeMatrix     CommissionType = "matrix"      // Spillover matrix placement
)

// ReferralCommission is income credited to a referrer for an investment made by someone below them
type ReferralCommission struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID          uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	CorrelationID uuid.UUID `gorm:"type:uuid;index;not null" json:"correlation_id"` // Shared by all commissions of one investment event

	ReferrerAccountID  uint           `gorm:"not null;index;uniqueIndex:idx_commission_unique_grant,priority:4" json:"referrer_account_id"`
	ReferredAccountID  uint           `gorm:"not null;index" json:"referred_account_id"`
	SourceInvestmentID uint           `gorm:"not null;index;uniqueIndex:idx_commission_unique_grant,priority:1" json:"source_investment_id"`
	Type               CommissionType `gorm:"type:varchar(20);not null;index;uniqueIndex:idx_commission_unique_grant,priority:2" json:"type"`
	Level              int            `gorm:"not null;uniqueIndex:idx_commission_unique_grant,priority:3" json:"level"`

	BaseAmount decimal.Decimal  `gorm:"type:decimal(20,2);not null" json:"base_amount"`
	Rate       decimal.Decimal  `gorm:"type:decimal(9,6);not null" json:"rate"`
	Amount     decimal.Decimal  `gorm:"type:decimal(20,2);not null" json:"amount"`
	TierName   string           `gorm:"size:30" json:"tier_name"` // Referrer tier at calculation time
	Status     CommissionStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	PaidAt    *time.Time `gorm:"index" json:"paid_at,omitempty"`
	CreatedAt time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null" json:"updated_at"`
}

func (ReferralCommission) TableName() string {
	return "referral_commissions"
}

var ErrCommissionLevelOutOfRange = errors.New("commission level out of range")

// BeforeCreate ensures UUID and CorrelationID are set and rejects levels outside 1..MaxReferralLevel
func (rc *ReferralCommission) BeforeCreate(tx *gorm.DB) error {
	if rc.Level < 1 || rc.Level > MaxReferralLevel {
		return fmt.Errorf("%w: %d", ErrCommissionLevelOutOfRange, rc.Level)
	}
	if rc.UUID == uuid.Nil {
		rc.UUID = uuid.New()
	}
	if rc.CorrelationID == uuid.Nil {
		rc.CorrelationID = uuid.New()
	}
	return nil
}

// IsPaid returns true if the commission has been settled
func (rc *ReferralCommission) IsPaid() bool {
	return rc.Status == CommissionStatusPaid
}

// IsPending returns true if the commission is awaiting settlement
func (rc *ReferralCommission) IsPending() bool {
	return rc.Status == CommissionStatusPending
}

// MarkAsPaid settles a pending commission. It returns false if the commission was not pending.
func (rc *ReferralCommission) MarkAsPaid(at time.Time) bool {
	if !rc.IsPending() {
		return false
	}
	rc.Status = CommissionStatusPaid
	rc.PaidAt = &at
	return true
}

// ReferralCommissionFilter represents filter criteria for referral commission queries
type ReferralCommissionFilter struct {
	ID                 *uint             `json:"id,omitempty"`
	UUID               *uuid.UUID        `json:"uuid,omitempty"`
	CorrelationID      *uuid.UUID        `json:"correlation_id,omitempty"`
	ReferrerAccountID  *uint             `json:"referrer_account_id,omitempty"`
	ReferredAccountID  *uint             `json:"referred_account_id,omitempty"`
	SourceInvestmentID *uint             `json:"source_investment_id,omitempty"`
	Type               *CommissionType   `json:"type,omitempty"`
	Types              []CommissionType  `json:"types,omitempty"`
	Level              *int              `json:"level,omitempty"`
	Status             *CommissionStatus `json:"status,omitempty"`
	CreatedAfter       *time.Time        `json:"created_after,omitempty"`
	CreatedBefore      *time.Time        `json:"created_before,omitempty"`
	PaidAfter          *time.Time        `json:"paid_after,omitempty"`
	PaidBefore         *time.Time        `json:"paid_before,omitempty"`
}
