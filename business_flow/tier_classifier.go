package businessflow

import (
	"github.com/amirphl/Susanoo/models"
	"github.com/shopspring/decimal"
)

// TierClassifier maps a total investment amount to a tier. It never mutates its table.
type TierClassifier struct {
	table *models.TierTable
}

// NewTierClassifier wraps a frozen tier table
func NewTierClassifier(table *models.TierTable) *TierClassifier {
	return &TierClassifier{table: table}
}

// Classify returns the highest tier whose threshold is at or below total, or models.NoTier
func (c *TierClassifier) Classify(total decimal.Decimal) models.Tier {
	return c.table.Classify(total)
}

// Tier looks up a stored tier name
func (c *TierClassifier) Tier(name string) (models.Tier, bool) {
	return c.table.ByName(name)
}

// Table exposes the underlying read-only table
func (c *TierClassifier) Table() *models.TierTable {
	return c.table
}
