package businessflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/Susanoo/app/services"
	businessflow "github.com/amirphl/Susanoo/business_flow"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpgrade_PromotesAndRecords(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	account, err := e.fx.CreateTestAccount("", nil)
	require.NoError(t, err)
	_, err = e.fx.CreateTestInvestment(account.ID, "700", utils.UTCNow().AddDate(0, 0, -2))
	require.NoError(t, err)
	_, err = e.fx.CreateTestInvestment(account.ID, "800", utils.UTCNow().AddDate(0, 0, -1))
	require.NoError(t, err)

	result, err := e.tierFlow.Upgrade(ctx, account.ID, models.TierChangeReasonManual)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.False(t, result.IsDowngrade)
	assert.Equal(t, "", result.FromTier)
	assert.Equal(t, "silver", result.ToTier)
	requireDecimal(t, "1500", result.TotalInvestment)
	require.NotNil(t, result.Record)
	assert.Equal(t, "silver", result.Benefits["tier"])

	stored := e.account(t, account.ID)
	assert.Equal(t, "silver", stored.TierName)
	requireDecimal(t, "1500", stored.TotalInvestment)
	require.Len(t, stored.TierHistory, 1)
	assert.Equal(t, "silver", stored.TierHistory[0].ToTier)
	assert.Equal(t, "silver", stored.Benefits["tier"])

	records, err := e.upgrades.ByAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.TierChangeReasonManual, records[0].Reason)
	assert.Equal(t, 1, e.sink.count(services.EventTierUpgraded))

	again, err := e.tierFlow.Upgrade(ctx, account.ID, models.TierChangeReasonManual)
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Nil(t, again.Record)
	assert.Equal(t, 1, e.sink.count(services.EventTierUpgraded))
}

func TestUpgrade_DowngradeAfterWithdrawal(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	account, err := e.fx.CreateTestAccount("gold", nil)
	require.NoError(t, err)
	big, err := e.fx.CreateTestInvestment(account.ID, "5000", utils.UTCNow().AddDate(0, 0, -30))
	require.NoError(t, err)
	_, err = e.fx.CreateTestInvestment(account.ID, "200", utils.UTCNow().AddDate(0, 0, -10))
	require.NoError(t, err)

	changed, err := e.investments.MarkInactive(ctx, big.ID, utils.UTCNow())
	require.NoError(t, err)
	require.True(t, changed)

	result, err := e.tierFlow.Upgrade(ctx, account.ID, models.TierChangeReasonInvestment)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.True(t, result.IsDowngrade)
	assert.Equal(t, "gold", result.FromTier)
	assert.Equal(t, "bronze", result.ToTier)
	assert.True(t, result.Record.IsDowngrade)
}

func TestUpgrade_UnknownAccount(t *testing.T) {
	e := newEngine(t)

	_, err := e.tierFlow.Upgrade(context.Background(), 4242, models.TierChangeReasonManual)
	require.Error(t, err)
	assert.ErrorIs(t, err, businessflow.ErrAccountNotFound)
	assert.True(t, businessflow.IsNotFound(err))
	assert.False(t, businessflow.IsRetryable(err))
}

func TestSweepRecent(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	now := utils.UTCNow()

	recentSilver, err := e.fx.CreateTestAccount("bronze", nil)
	require.NoError(t, err)
	_, err = e.fx.CreateTestInvestment(recentSilver.ID, "1200", now.Add(-time.Hour))
	require.NoError(t, err)

	recentUnchanged, err := e.fx.CreateTestAccount("bronze", nil)
	require.NoError(t, err)
	_, err = e.fx.CreateTestInvestment(recentUnchanged.ID, "150", now.Add(-2*time.Hour))
	require.NoError(t, err)

	stale, err := e.fx.CreateTestAccount("", nil)
	require.NoError(t, err)
	_, err = e.fx.CreateTestInvestment(stale.ID, "30000", now.AddDate(0, 0, -5))
	require.NoError(t, err)

	sweep, err := e.tierFlow.SweepRecent(ctx, now.Add(-24*time.Hour), 100)
	require.NoError(t, err)
	assert.Equal(t, 2, sweep.Scanned)
	assert.Equal(t, 1, sweep.Changed)
	assert.Equal(t, 0, sweep.Failed)
	assert.Len(t, sweep.Results, 2)

	assert.Equal(t, "silver", e.account(t, recentSilver.ID).TierName)
	assert.Equal(t, "", e.account(t, stale.ID).TierName, "outside the window")

	limited, err := e.tierFlow.SweepRecent(ctx, now.AddDate(0, 0, -30), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, limited.Scanned)
}

func TestSweepRecent_InvalidBatchSize(t *testing.T) {
	e := newEngine(t)

	for _, size := range []int{0, -1, utils.MaxSettlementBatchSize + 1} {
		_, err := e.tierFlow.SweepRecent(context.Background(), utils.UTCNow(), size)
		assert.ErrorIs(t, err, businessflow.ErrInvalidBatchSize, "size %d", size)
		assert.True(t, businessflow.IsValidationError(err))
	}
}

func TestBenefits(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	derived, err := e.fx.CreateTestAccount("gold", nil)
	require.NoError(t, err)
	benefits, err := e.tierFlow.Benefits(ctx, derived.ID)
	require.NoError(t, err)
	assert.Equal(t, "gold", benefits["tier"])
	assert.Equal(t, true, benefits["quarterly_bonus_eligible"])

	cached, err := e.fx.CreateTestAccount("gold", nil)
	require.NoError(t, err)
	require.NoError(t, e.db.DB.Model(&models.Account{}).Where("id = ?", cached.ID).
		Update("benefits", models.JSONMap{"tier": "gold", "note": "grandfathered"}).Error)
	benefits, err = e.tierFlow.Benefits(ctx, cached.ID)
	require.NoError(t, err)
	assert.Equal(t, "grandfathered", benefits["note"])

	_, err = e.tierFlow.Benefits(ctx, 999)
	assert.True(t, businessflow.IsNotFound(err))
}
