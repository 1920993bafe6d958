package businessflow_test

import (
	"context"
	"testing"
	"time"

	businessflow "github.com/amirphl/Susanoo/business_flow"
	"github.com/amirphl/Susanoo/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettlePending_Batches(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	now := time.Now().UTC()

	chain, err := e.fx.CreateReferralChain("", "gold", "gold", "gold")
	require.NoError(t, err)
	investment, err := e.fx.CreateTestInvestment(chain[0].ID, "1000", now.AddDate(0, 0, -30))
	require.NoError(t, err)

	for level := 1; level <= 3; level++ {
		_, err := e.fx.CreateTestCommission(investment, chain[level].ID, level, "10", models.CommissionStatusPending, now.AddDate(0, 0, -20))
		require.NoError(t, err)
	}
	fresh, err := e.fx.CreateTestCommission(investment, chain[1].ID, 1, "99", models.CommissionStatusPending, now.AddDate(0, 0, -1))
	require.Error(t, err, "one grant per investment, type, level and referrer")
	assert.Nil(t, fresh)

	req := businessflow.SettlementRequest{BatchSize: 2, MaxAgeDays: 7}

	first, err := e.settlementFlow.SettlePending(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, first.ProcessedCount)
	requireDecimal(t, "20", first.TotalAmount)

	second, err := e.settlementFlow.SettlePending(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, second.ProcessedCount)
	assert.NotContains(t, second.CommissionIDs, first.CommissionIDs[0])

	third, err := e.settlementFlow.SettlePending(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 0, third.ProcessedCount)
	assert.True(t, third.TotalAmount.IsZero())

	status := models.CommissionStatusPaid
	paid, err := e.commissions.Count(ctx, models.ReferralCommissionFilter{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, int64(3), paid)
}

func TestSettlePending_LeavesYoungCommissions(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	now := time.Now().UTC()

	chain, err := e.fx.CreateReferralChain("", "bronze")
	require.NoError(t, err)
	investment, err := e.fx.CreateTestInvestment(chain[0].ID, "1000", now.AddDate(0, 0, -2))
	require.NoError(t, err)
	young, err := e.fx.CreateTestCommission(investment, chain[1].ID, 1, "30", models.CommissionStatusPending, now.AddDate(0, 0, -2))
	require.NoError(t, err)

	result, err := e.settlementFlow.SettlePending(ctx, businessflow.SettlementRequest{BatchSize: 10, MaxAgeDays: 7})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ProcessedCount)

	stored, err := e.commissions.ByID(ctx, young.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPending())
	assert.Nil(t, stored.PaidAt)
}

func TestSettlePending_Validation(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	for _, req := range []businessflow.SettlementRequest{
		{BatchSize: 0, MaxAgeDays: 7},
		{BatchSize: 10001, MaxAgeDays: 7},
	} {
		_, err := e.settlementFlow.SettlePending(ctx, req)
		assert.ErrorIs(t, err, businessflow.ErrInvalidBatchSize)
	}

	_, err := e.settlementFlow.SettlePending(ctx, businessflow.SettlementRequest{BatchSize: 10, MaxAgeDays: -1})
	assert.ErrorIs(t, err, businessflow.ErrInvalidMaxAgeDays)
	assert.True(t, businessflow.IsValidationError(err))
}
