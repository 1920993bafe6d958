package businessflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/Susanoo/app/services"
	businessflow "github.com/amirphl/Susanoo/business_flow"
	"github.com/amirphl/Susanoo/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClawbackPercentage(t *testing.T) {
	tests := []struct {
		months   int
		expected string
	}{
		{0, "50"},
		{1, "50"},
		{2, "25"},
		{3, "25"},
		{4, "0"},
		{12, "0"},
	}

	for _, tt := range tests {
		requireDecimal(t, tt.expected, businessflow.ClawbackPercentage(tt.months))
	}
}

// paidCommission processes and settles the commissions of a fresh investment made at createdAt
func paidCommission(t *testing.T, e *engine, createdAt time.Time, referrerTiers ...string) ([]*models.Account, *models.Investment) {
	t.Helper()
	ctx := context.Background()

	chain, err := e.fx.CreateReferralChain("", referrerTiers...)
	require.NoError(t, err)
	investment, err := e.fx.CreateTestInvestment(chain[0].ID, "1000", createdAt)
	require.NoError(t, err)

	_, err = e.commissionFlow.ProcessInvestment(ctx, investment.ID)
	require.NoError(t, err)
	_, err = e.settlementFlow.SettlePending(ctx, businessflow.SettlementRequest{BatchSize: 100, MaxAgeDays: 0})
	require.NoError(t, err)
	return chain, investment
}

func TestProcessWithdrawal_HalfAfterOneMonth(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	now := time.Now().UTC()

	chain, investment := paidCommission(t, e, now.AddDate(0, 0, -40), "bronze")
	requireDecimal(t, "30", e.account(t, chain[1].ID).AccumulatedEarnings)

	result, err := e.clawbackFlow.ProcessWithdrawal(ctx, businessflow.WithdrawalEvent{
		InvestmentID:        investment.ID,
		WithdrawalReference: "wd-1",
		WithdrawnAt:         now,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.MonthsElapsed)
	requireDecimal(t, "50", result.Percentage)
	require.Len(t, result.Clawbacks, 1)
	c := result.Clawbacks[0]
	requireDecimal(t, "30", c.OriginalAmount)
	requireDecimal(t, "15", c.ClawbackAmount)
	assert.Equal(t, "wd-1", c.WithdrawalReference)
	requireDecimal(t, "15", result.TotalClawedBack)

	referrer := e.account(t, chain[1].ID)
	requireDecimal(t, "15", referrer.AccumulatedEarnings)
	assert.False(t, referrer.HasDebt())

	stored, err := e.investments.ByID(ctx, investment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvestmentStatusInactive, stored.Status)
	require.NotNil(t, stored.WithdrawnAt)

	assert.Equal(t, 1, e.sink.count(services.EventCommissionClawedBack))
}

func TestProcessWithdrawal_QuarterWithinThreeMonths(t *testing.T) {
	e := newEngine(t)
	now := time.Now().UTC()

	chain, investment := paidCommission(t, e, now.AddDate(0, 0, -75), "silver", "silver")

	result, err := e.clawbackFlow.ProcessWithdrawal(context.Background(), businessflow.WithdrawalEvent{
		InvestmentID:        investment.ID,
		WithdrawalReference: "wd-2",
		WithdrawnAt:         now,
	})
	require.NoError(t, err)

	requireDecimal(t, "25", result.Percentage)
	assert.Equal(t, 2, result.MonthsElapsed)
	require.Len(t, result.Adjustments, 2)
	byAccount := map[uint]string{}
	for _, a := range result.Adjustments {
		byAccount[a.AccountID] = a.ClawedBack.String()
	}
	assert.Equal(t, "10", byAccount[chain[1].ID]) // 25% of 40
	assert.Equal(t, "5", byAccount[chain[2].ID])  // 25% of 20
	requireDecimal(t, "30", e.account(t, chain[1].ID).AccumulatedEarnings)
	requireDecimal(t, "15", e.account(t, chain[2].ID).AccumulatedEarnings)
}

func TestProcessWithdrawal_ConvertsShortfallToDebt(t *testing.T) {
	e := newEngine(t)
	now := time.Now().UTC()

	chain, investment := paidCommission(t, e, now.AddDate(0, 0, -10), "bronze")
	require.NoError(t, e.fx.SetEarnings(chain[1].ID, "5"))

	result, err := e.clawbackFlow.ProcessWithdrawal(context.Background(), businessflow.WithdrawalEvent{
		InvestmentID:        investment.ID,
		WithdrawalReference: "wd-3",
		WithdrawnAt:         now,
	})
	require.NoError(t, err)

	require.Len(t, result.Adjustments, 1)
	requireDecimal(t, "10", result.Adjustments[0].DebtRecorded)

	referrer := e.account(t, chain[1].ID)
	assert.True(t, referrer.AccumulatedEarnings.IsZero(), "earnings never stay negative")
	requireDecimal(t, "10", referrer.OutstandingDebt)
}

func TestProcessWithdrawal_NothingAfterThreeMonths(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	now := time.Now().UTC()

	chain, investment := paidCommission(t, e, now.AddDate(0, 0, -150), "bronze")

	result, err := e.clawbackFlow.ProcessWithdrawal(ctx, businessflow.WithdrawalEvent{
		InvestmentID:        investment.ID,
		WithdrawalReference: "wd-4",
		WithdrawnAt:         now,
	})
	require.NoError(t, err)

	assert.True(t, result.Percentage.IsZero())
	assert.Empty(t, result.Clawbacks)
	requireDecimal(t, "30", e.account(t, chain[1].ID).AccumulatedEarnings)

	stored, err := e.investments.ByID(ctx, investment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvestmentStatusInactive, stored.Status, "the withdrawal is still recorded")
}

func TestProcessWithdrawal_IgnoresPendingCommissions(t *testing.T) {
	e := newEngine(t)
	now := time.Now().UTC()

	chain, err := e.fx.CreateReferralChain("", "bronze")
	require.NoError(t, err)
	investment, err := e.fx.CreateTestInvestment(chain[0].ID, "1000", now.AddDate(0, 0, -3))
	require.NoError(t, err)
	_, err = e.commissionFlow.ProcessInvestment(context.Background(), investment.ID)
	require.NoError(t, err)

	result, err := e.clawbackFlow.ProcessWithdrawal(context.Background(), businessflow.WithdrawalEvent{
		InvestmentID:        investment.ID,
		WithdrawalReference: "wd-5",
		WithdrawnAt:         now,
	})
	require.NoError(t, err)

	assert.Empty(t, result.Clawbacks)
	requireDecimal(t, "30", e.account(t, chain[1].ID).AccumulatedEarnings)
}

func TestProcessWithdrawal_IsIdempotent(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	now := time.Now().UTC()

	chain, investment := paidCommission(t, e, now.AddDate(0, 0, -10), "bronze")
	event := businessflow.WithdrawalEvent{InvestmentID: investment.ID, WithdrawalReference: "wd-6", WithdrawnAt: now}

	first, err := e.clawbackFlow.ProcessWithdrawal(ctx, event)
	require.NoError(t, err)
	second, err := e.clawbackFlow.ProcessWithdrawal(ctx, event)
	require.NoError(t, err)

	assert.True(t, second.AlreadyProcessed)
	assert.Equal(t, first.CorrelationID, second.CorrelationID)
	requireDecimal(t, "15", second.TotalClawedBack)
	requireDecimal(t, "15", e.account(t, chain[1].ID).AccumulatedEarnings)
}

func TestProcessWithdrawal_Validation(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	now := time.Now().UTC()

	account, err := e.fx.CreateTestAccount("", nil)
	require.NoError(t, err)
	investment, err := e.fx.CreateTestInvestment(account.ID, "500", now)
	require.NoError(t, err)

	tests := []struct {
		name   string
		event  businessflow.WithdrawalEvent
		target error
	}{
		{"missing reference", businessflow.WithdrawalEvent{InvestmentID: investment.ID, WithdrawnAt: now}, businessflow.ErrWithdrawalReferenceRequired},
		{"missing timestamp", businessflow.WithdrawalEvent{InvestmentID: investment.ID, WithdrawalReference: "x"}, businessflow.ErrWithdrawalBeforeInvestment},
		{"before investment", businessflow.WithdrawalEvent{InvestmentID: investment.ID, WithdrawalReference: "x", WithdrawnAt: now.AddDate(0, 0, -1)}, businessflow.ErrWithdrawalBeforeInvestment},
		{"unknown investment", businessflow.WithdrawalEvent{InvestmentID: 98765, WithdrawalReference: "x", WithdrawnAt: now}, businessflow.ErrInvestmentNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.clawbackFlow.ProcessWithdrawal(ctx, tt.event)
			assert.ErrorIs(t, err, tt.target)
			assert.False(t, businessflow.IsRetryable(err))
		})
	}
}
