package models

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// MaxReferralLevel is the deepest referrer level that can earn a multi-level commission
const MaxReferralLevel = 3

// Tier is a named investment bracket with its own profit and referral rate table.
// Rates are fractions (0.03 means 3%).
type Tier struct {
	Name                   string            `json:"name"`
	Rank                   int               `json:"rank"`
	Threshold              decimal.Decimal   `json:"threshold"`
	ReferralRates          []decimal.Decimal `json:"referral_rates"`
	MatrixRate             decimal.Decimal   `json:"matrix_rate"`
	ProfitRate             decimal.Decimal   `json:"profit_rate"`
	ReinvestmentBonusRate  decimal.Decimal   `json:"reinvestment_bonus_rate"`
	QuarterlyBonusEligible bool              `json:"quarterly_bonus_eligible"`
}

// NoTier is returned when an amount is below every threshold
var NoTier = Tier{}

// IsNone reports whether t is the NoTier sentinel
func (t Tier) IsNone() bool {
	return t.Name == ""
}

// RateForLevel returns the referral rate for a level and whether the tier is eligible for it
func (t Tier) RateForLevel(level int) (decimal.Decimal, bool) {
	if t.IsNone() || level < 1 || level > len(t.ReferralRates) || level > MaxReferralLevel {
		return decimal.Zero, false
	}
	rate := t.ReferralRates[level-1]
	if !rate.IsPositive() {
		return decimal.Zero, false
	}
	return rate, true
}

// Benefits returns the benefit snapshot cached on an account holding this tier
func (t Tier) Benefits() JSONMap {
	if t.IsNone() {
		return JSONMap{}
	}
	rates := make([]string, 0, len(t.ReferralRates))
	for _, r := range t.ReferralRates {
		rates = append(rates, r.String())
	}
	return JSONMap{
		"tier":                     t.Name,
		"profit_share_rate":        t.ProfitRate.String(),
		"referral_rates":           rates,
		"matrix_rate":              t.MatrixRate.String(),
		"reinvestment_bonus_rate":  t.ReinvestmentBonusRate.String(),
		"quarterly_bonus_eligible": t.QuarterlyBonusEligible,
	}
}

// TierTable is an immutable, threshold-ordered set of tiers
type TierTable struct {
	tiers []Tier
}

var ErrInvalidTierTable = errors.New("invalid tier table")

// NewTierTable validates and freezes a tier list. Tiers are sorted by threshold and
// ranks are reassigned from 1 (lowest) upward.
func NewTierTable(tiers []Tier) (*TierTable, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: no tiers", ErrInvalidTierTable)
	}

	sorted := make([]Tier, len(tiers))
	for i, t := range tiers {
		sorted[i] = t
		sorted[i].ReferralRates = append([]decimal.Decimal(nil), t.ReferralRates...)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Threshold.LessThan(sorted[j].Threshold)
	})

	one := decimal.NewFromInt(1)
	seen := make(map[string]bool, len(sorted))
	for i := range sorted {
		t := &sorted[i]
		if t.Name == "" {
			return nil, fmt.Errorf("%w: tier %d has no name", ErrInvalidTierTable, i)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("%w: duplicate tier %q", ErrInvalidTierTable, t.Name)
		}
		seen[t.Name] = true
		if t.Threshold.IsNegative() {
			return nil, fmt.Errorf("%w: tier %q has negative threshold", ErrInvalidTierTable, t.Name)
		}
		if i > 0 && t.Threshold.Equal(sorted[i-1].Threshold) {
			return nil, fmt.Errorf("%w: tiers %q and %q share a threshold", ErrInvalidTierTable, sorted[i-1].Name, t.Name)
		}
		if len(t.ReferralRates) > MaxReferralLevel {
			return nil, fmt.Errorf("%w: tier %q defines more than %d referral levels", ErrInvalidTierTable, t.Name, MaxReferralLevel)
		}
		rates := append([]decimal.Decimal{t.MatrixRate, t.ProfitRate, t.ReinvestmentBonusRate}, t.ReferralRates...)
		for _, r := range rates {
			if r.IsNegative() || r.GreaterThan(one) {
				return nil, fmt.Errorf("%w: tier %q has a rate outside [0,1]", ErrInvalidTierTable, t.Name)
			}
		}
		t.Rank = i + 1
	}

	return &TierTable{tiers: sorted}, nil
}

// Tiers returns a copy of the tiers ordered by threshold
func (tt *TierTable) Tiers() []Tier {
	out := make([]Tier, len(tt.tiers))
	copy(out, tt.tiers)
	return out
}

// ByName looks a tier up by name
func (tt *TierTable) ByName(name string) (Tier, bool) {
	if name == "" {
		return NoTier, false
	}
	for _, t := range tt.tiers {
		if t.Name == name {
			return t, true
		}
	}
	return NoTier, false
}

// Classify returns the highest tier whose threshold is not above total
func (tt *TierTable) Classify(total decimal.Decimal) Tier {
	result := NoTier
	for _, t := range tt.tiers {
		if t.Threshold.GreaterThan(total) {
			break
		}
		result = t
	}
	return result
}

// MaxRatePerLevel returns the highest referral rate any tier pays at each level
func (tt *TierTable) MaxRatePerLevel() []decimal.Decimal {
	out := make([]decimal.Decimal, MaxReferralLevel)
	for i := range out {
		out[i] = decimal.Zero
	}
	for _, t := range tt.tiers {
		for i, r := range t.ReferralRates {
			if r.GreaterThan(out[i]) {
				out[i] = r
			}
		}
	}
	return out
}

// QuarterlyBonusTierNames lists the tiers whose holders share the quarterly bonus pool
func (tt *TierTable) QuarterlyBonusTierNames() []string {
	var names []string
	for _, t := range tt.tiers {
		if t.QuarterlyBonusEligible {
			names = append(names, t.Name)
		}
	}
	return names
}

func pct(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// DefaultTiers is the tier schedule used when no override is configured
func DefaultTiers() []Tier {
	return []Tier{
		{
			Name:                  "bronze",
			Threshold:             decimal.NewFromInt(100),
			ReferralRates:         []decimal.Decimal{pct("0.03")},
			MatrixRate:            pct("0.01"),
			ProfitRate:            pct("0.05"),
			ReinvestmentBonusRate: pct("0.005"),
		},
		{
			Name:                  "silver",
			Threshold:             decimal.NewFromInt(1000),
			ReferralRates:         []decimal.Decimal{pct("0.04"), pct("0.02")},
			MatrixRate:            pct("0.015"),
			ProfitRate:            pct("0.07"),
			ReinvestmentBonusRate: pct("0.01"),
		},
		{
			Name:                   "gold",
			Threshold:              decimal.NewFromInt(5000),
			ReferralRates:          []decimal.Decimal{pct("0.05"), pct("0.03"), pct("0.01")},
			MatrixRate:             pct("0.02"),
			ProfitRate:             pct("0.09"),
			ReinvestmentBonusRate:  pct("0.015"),
			QuarterlyBonusEligible: true,
		},
		{
			Name:                   "platinum",
			Threshold:              decimal.NewFromInt(25000),
			ReferralRates:          []decimal.Decimal{pct("0.06"), pct("0.04"), pct("0.02")},
			MatrixRate:             pct("0.025"),
			ProfitRate:             pct("0.12"),
			ReinvestmentBonusRate:  pct("0.02"),
			QuarterlyBonusEligible: true,
		},
	}
}
