package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvestmentStatus represents the lifecycle state of an investment
type InvestmentStatus string

const (
	InvestmentStatusActive    InvestmentStatus = "active"
	InvestmentStatusInactive  InvestmentStatus = "inactive" // withdrawn or matured
	InvestmentStatusPending   InvestmentStatus = "pending"
	InvestmentStatusCancelled InvestmentStatus = "cancelled"
)

// Investment is capital placed by an account
type Investment struct {
	ID        uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID      uuid.UUID        `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	AccountID uint             `gorm:"not null;index" json:"account_id"`
	Amount    decimal.Decimal  `gorm:"type:decimal(20,2);not null" json:"amount"`
	Status    InvestmentStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`

	// Tier held by the owner when the investment was made
	TierSnapshot string `gorm:"size:30" json:"tier_snapshot"`

	WithdrawnAt *time.Time `json:"withdrawn_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`

	Account *Account `gorm:"foreignKey:AccountID" json:"account,omitempty"`
}

func (Investment) TableName() string {
	return "investments"
}

// BeforeCreate ensures UUID is set
func (i *Investment) BeforeCreate(tx *gorm.DB) error {
	if i.UUID == uuid.Nil {
		i.UUID = uuid.New()
	}
	return nil
}

// IsActive returns true if the investment counts toward pools and tiers
func (i *Investment) IsActive() bool {
	return i.Status == InvestmentStatusActive
}

// InvestmentFilter represents filter criteria for investment queries
type InvestmentFilter struct {
	ID            *uint             `json:"id,omitempty"`
	UUID          *uuid.UUID        `json:"uuid,omitempty"`
	AccountID     *uint             `json:"account_id,omitempty"`
	Status        *InvestmentStatus `json:"status,omitempty"`
	CreatedAfter  *time.Time        `json:"created_after,omitempty"`
	CreatedBefore *time.Time        `json:"created_before,omitempty"`
}

// AccountShare is an account's active investment total, used for pool allocation
type AccountShare struct {
	AccountID uint
	TierName  string
	Amount    decimal.Decimal
}
