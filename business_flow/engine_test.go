package businessflow_test

import (
	"context"
	"sync"
	"testing"

	"github.com/amirphl/Susanoo/app/services"
	businessflow "github.com/amirphl/Susanoo/business_flow"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/repository"
	testutil "github.com/amirphl/Susanoo/testing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMatrix struct {
	mu     sync.Mutex
	result *services.MatrixCommissionResult
	err    error
	calls  int
}

func (m *fakeMatrix) ComputeMatrixCommissions(_ context.Context, _ *models.Investment) (*services.MatrixCommissionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &services.MatrixCommissionResult{Success: true}, nil
	}
	return m.result, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []services.Event
}

func (s *recordingSink) Notify(_ context.Context, _ services.Recipient, event services.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) count(eventType services.EventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// engine wires every flow against one in-memory database
type engine struct {
	db *testutil.TestDB
	fx *testutil.TestFixtures

	accounts    repository.AccountRepository
	investments repository.InvestmentRepository
	commissions repository.ReferralCommissionRepository
	clawbackLog repository.CommissionClawbackRepository
	upgrades    repository.TierUpgradeRecordRepository
	activity    repository.ActivityLogRepository

	matrix *fakeMatrix
	sink   *recordingSink

	commissionFlow   businessflow.ReferralCommissionFlow
	clawbackFlow     businessflow.ClawbackFlow
	settlementFlow   businessflow.SettlementFlow
	distributionFlow businessflow.ProfitDistributionFlow
	tierFlow         businessflow.TierUpgradeFlow
}

func newEngine(t *testing.T) *engine {
	t.Helper()

	db, err := testutil.SetupMemoryDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.TeardownTestDB() })

	table, err := models.NewTierTable(models.DefaultTiers())
	require.NoError(t, err)
	classifier := businessflow.NewTierClassifier(table)
	logger := zap.NewNop()

	e := &engine{
		db:          db,
		fx:          testutil.NewTestFixtures(db),
		accounts:    repository.NewAccountRepository(db.DB),
		investments: repository.NewInvestmentRepository(db.DB),
		commissions: repository.NewReferralCommissionRepository(db.DB),
		clawbackLog: repository.NewCommissionClawbackRepository(db.DB),
		upgrades:    repository.NewTierUpgradeRecordRepository(db.DB),
		activity:    repository.NewActivityLogRepository(db.DB),
		matrix:      &fakeMatrix{},
		sink:        &recordingSink{},
	}
	distributions := repository.NewProfitDistributionRepository(db.DB)
	allocations := repository.NewProfitAllocationRepository(db.DB)

	e.commissionFlow = businessflow.NewReferralCommissionFlow(e.accounts, e.investments, e.commissions, e.activity, classifier, e.matrix, e.sink, logger, db.DB)
	e.clawbackFlow = businessflow.NewClawbackFlow(e.accounts, e.investments, e.commissions, e.clawbackLog, e.activity,
		businessflow.ClawbackPolicy{IncludeMatrix: true}, e.sink, logger, db.DB)
	e.settlementFlow = businessflow.NewSettlementFlow(e.commissions, logger, db.DB)
	e.distributionFlow = businessflow.NewProfitDistributionFlow(e.investments, distributions, allocations, e.activity, classifier,
		businessflow.DefaultDistributionPolicy(), e.sink, logger, db.DB)
	e.tierFlow = businessflow.NewTierUpgradeFlow(e.accounts, e.investments, e.upgrades, e.activity, classifier, e.sink, logger, db.DB)
	return e
}

func (e *engine) account(t *testing.T, id uint) *models.Account {
	t.Helper()
	account, err := e.fx.ReloadAccount(id)
	require.NoError(t, err)
	return account
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	require.True(t, dec(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}
