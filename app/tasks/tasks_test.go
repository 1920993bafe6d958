package tasks

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIdentityKeys(t *testing.T) {
	day := time.Date(2024, 3, 31, 23, 0, 0, 0, time.FixedZone("UTC-2", -2*3600))

	tests := []struct {
		task Task
		want string
	}{
		{ProcessInvestmentCommissions{InvestmentID: 12}, "process_investment_commissions:12"},
		{ProcessWithdrawalClawback{InvestmentID: 12, WithdrawalReference: "wd-1"}, "process_withdrawal_clawback:12"},
		{SettlePendingCommissions{BatchSize: 5}, "settle_pending_commissions:pending"},
		{SettlePendingCommissions{BatchSize: 500, MaxAgeDays: 7}, "settle_pending_commissions:pending"},
		{DistributeAnnualProfit{TotalProfit: decimal.NewFromInt(1), DistributionDate: day}, "distribute_annual_profit:2024-04-01"},
		{DistributeQuarterlyBonus{DistributionDate: day}, "distribute_quarterly_bonus:2024-04-01"},
		{UpgradeAccountTier{AccountID: 7}, "upgrade_account_tier:7"},
		{SweepTierUpgrades{Since: day, BatchSize: 10}, "sweep_tier_upgrades:sweep"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.task.Identity().Key())
			assert.Equal(t, tt.task.Type(), tt.task.Identity().Type)
		})
	}
}

func TestPayload(t *testing.T) {
	withdrawnAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	payload := ProcessWithdrawalClawback{InvestmentID: 3, WithdrawalReference: "wd-9", WithdrawnAt: withdrawnAt}.Payload()

	assert.Equal(t, uint(3), payload["investment_id"])
	assert.Equal(t, "wd-9", payload["withdrawal_reference"])
	assert.Equal(t, "2024-05-01T12:00:00Z", payload["withdrawn_at"])
}

func TestRetryPolicy(t *testing.T) {
	p := CommissionRetryPolicy()

	assert.Equal(t, time.Duration(0), p.Delay(0))
	assert.Equal(t, 30*time.Second, p.Delay(1))
	assert.Equal(t, 60*time.Second, p.Delay(2))
	assert.Equal(t, 120*time.Second, p.Delay(3))
	assert.Equal(t, 120*time.Second, p.Delay(9))
	assert.Equal(t, 1, RetryPolicy{}.attempts())
	assert.Equal(t, time.Duration(0), RetryPolicy{MaxAttempts: 2}.Delay(1))

	assert.Equal(t, DistributionRetryPolicy().Delays, policyFor(TypeDistributeQuarterlyBonus, p, DistributionRetryPolicy()).Delays)
	assert.Equal(t, p.Delays, policyFor(TypeSweepTierUpgrades, p, DistributionRetryPolicy()).Delays)
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	ctx := t.Context()

	ok, err := l.Acquire(ctx, "k", time.Minute)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, _ = l.Acquire(ctx, "k", time.Minute)
	assert.False(t, ok)

	assert.NoError(t, l.Release(ctx, "k"))
	ok, _ = l.Acquire(ctx, "k", time.Minute)
	assert.True(t, ok)

	ok, _ = l.Acquire(ctx, "expired", -time.Second)
	assert.True(t, ok)
	ok, _ = l.Acquire(ctx, "expired", time.Minute)
	assert.True(t, ok, "an expired hold is taken over")
}
