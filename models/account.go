package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Account is an investor and, through ReferrerID, a link in a referral chain
type Account struct {
	ID    uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID  uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	Email string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Name  string    `gorm:"size:255" json:"name"`

	// Direct sponsor. The chain is not guaranteed to be acyclic.
	ReferrerID *uint `gorm:"index" json:"referrer_id,omitempty"`

	// Tier state
	TierName        string          `gorm:"size:30;index;not null;default:''" json:"tier_name"`
	TotalInvestment decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_investment"`
	TierHistory     TierHistory     `gorm:"type:jsonb" json:"tier_history"`
	Benefits        JSONMap         `gorm:"type:jsonb" json:"benefits"`

	// Referral ledger
	AccumulatedEarnings decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"accumulated_earnings"`
	OutstandingDebt     decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"outstanding_debt"`

	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

// BeforeCreate ensures UUID is set
func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	return nil
}

// HasTier returns true if the account currently holds a tier
func (a *Account) HasTier() bool {
	return a.TierName != ""
}

// HasDebt returns true if clawbacks left the account owing money
func (a *Account) HasDebt() bool {
	return a.OutstandingDebt.IsPositive()
}

// AccountFilter represents filter criteria for account queries
type AccountFilter struct {
	ID            *uint      `json:"id,omitempty"`
	UUID          *uuid.UUID `json:"uuid,omitempty"`
	Email         *string    `json:"email,omitempty"`
	ReferrerID    *uint      `json:"referrer_id,omitempty"`
	TierName      *string    `json:"tier_name,omitempty"`
	TierNames     []string   `json:"tier_names,omitempty"`
	IsActive      *bool      `json:"is_active,omitempty"`
	HasDebt       *bool      `json:"has_debt,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}
