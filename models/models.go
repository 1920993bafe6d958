package models

// All returns every persisted model, in dependency order, for auto-migration
func All() []any {
	return []any{
		&Account{},
		&Investment{},
		&ReferralCommission{},
		&CommissionClawback{},
		&ProfitDistribution{},
		&ProfitAllocation{},
		&TierUpgradeRecord{},
		&ActivityLog{},
		&WorkUnit{},
	}
}
