// Package models contains domain entities for the distribution engine
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// JSONMap is a free-form JSON object stored in a single column
type JSONMap map[string]any

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(value any) error {
	return scanJSON(value, m)
}

// TierHistoryEntry is one step of an account's tier history
type TierHistoryEntry struct {
	FromTier        string          `json:"from_tier"`
	ToTier          string          `json:"to_tier"`
	TotalInvestment decimal.Decimal `json:"total_investment"`
	ChangedAt       time.Time       `json:"changed_at"`
}

// TierHistory is the append-only tier log kept on the account row
type TierHistory []TierHistoryEntry

// Value implements driver.Valuer
func (h TierHistory) Value() (driver.Value, error) {
	if h == nil {
		return "[]", nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (h *TierHistory) Scan(value any) error {
	return scanJSON(value, h)
}

func scanJSON(value any, dest any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported json column type %T", value)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
