package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/Susanoo/app/services"
	businessflow "github.com/amirphl/Susanoo/business_flow"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/repository"
	testdb "github.com/amirphl/Susanoo/testing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errDatabaseDown = errors.New("database is down")

// scripted returns the queued errors in order, then succeeds
type scripted struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (s *scripted) next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	if len(s.errs) > 1 {
		s.errs = s.errs[1:]
	}
	return err
}

func (s *scripted) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeCommissions struct {
	scripted
	result *businessflow.CommissionResult
}

func (f *fakeCommissions) ProcessInvestment(_ context.Context, investmentID uint) (*businessflow.CommissionResult, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &businessflow.CommissionResult{InvestmentID: investmentID}, nil
}

type fakeSettlement struct {
	scripted
	// started and release, when set, hold the attempt open until the test lets it go
	started chan struct{}
	release chan struct{}
}

func (f *fakeSettlement) SettlePending(ctx context.Context, req businessflow.SettlementRequest) (*businessflow.SettlementResult, error) {
	if f.release != nil {
		close(f.started)
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.next(); err != nil {
		return nil, err
	}
	return &businessflow.SettlementResult{ProcessedCount: req.BatchSize}, nil
}

type fakeDistributions struct {
	businessflow.ProfitDistributionFlow
	scripted
	conflict error
	failures []businessflow.DistributionRequest
}

func (f *fakeDistributions) Validate(businessflow.DistributionRequest) error { return nil }

func (f *fakeDistributions) CheckConflict(context.Context, businessflow.DistributionRequest) error {
	return f.conflict
}

func (f *fakeDistributions) DistributeAnnual(_ context.Context, req businessflow.DistributionRequest) (*businessflow.DistributionResult, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	return &businessflow.DistributionResult{Distribution: &models.ProfitDistribution{
		Type:             req.Type,
		TotalDistributed: req.TotalProfit,
	}}, nil
}

func (f *fakeDistributions) RecordFailure(_ context.Context, req businessflow.DistributionRequest, _ error) (*models.ProfitDistribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, req)
	return &models.ProfitDistribution{Status: models.DistributionStatusFailed}, nil
}

type fakeTiers struct {
	businessflow.TierUpgradeFlow
	mu       sync.Mutex
	upgrades map[uint]models.TierChangeReason
}

func (f *fakeTiers) Upgrade(_ context.Context, accountID uint, reason models.TierChangeReason) (*businessflow.TierUpgradeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upgrades == nil {
		f.upgrades = make(map[uint]models.TierChangeReason)
	}
	f.upgrades[accountID] = reason
	return &businessflow.TierUpgradeResult{AccountID: accountID}, nil
}

type countingSink struct {
	mu     sync.Mutex
	events map[services.EventType]int
}

func (s *countingSink) Notify(_ context.Context, _ services.Recipient, event services.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.events == nil {
		s.events = make(map[services.EventType]int)
	}
	s.events[event.Type]++
	return nil
}

func (s *countingSink) count(t services.EventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[t]
}

type harness struct {
	dispatcher    *Dispatcher
	fx            *testdb.TestFixtures
	locker        *LocalLocker
	sink          *countingSink
	commissions   *fakeCommissions
	settlement    *fakeSettlement
	distributions *fakeDistributions
	tiers         *fakeTiers
	sleeps        []time.Duration
}

func newHarness(t *testing.T, chain bool) *harness {
	t.Helper()

	db, err := testdb.SetupMemoryDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.TeardownTestDB() })

	h := &harness{
		fx:            testdb.NewTestFixtures(db),
		locker:        NewLocalLocker(),
		sink:          &countingSink{},
		commissions:   &fakeCommissions{},
		settlement:    &fakeSettlement{},
		distributions: &fakeDistributions{},
		tiers:         &fakeTiers{},
	}

	cfg := DefaultConfig()
	cfg.PoolSize = 4
	cfg.ChainTierUpgrades = chain

	d, err := NewDispatcher(cfg, Flows{
		Commissions:   h.commissions,
		Settlement:    h.settlement,
		Distributions: h.distributions,
		Tiers:         h.tiers,
	},
		repository.NewAccountRepository(db.DB),
		repository.NewInvestmentRepository(db.DB),
		repository.NewWorkUnitRepository(db.DB),
		h.locker,
		h.sink,
		NewMetrics(prometheus.NewRegistry()),
		zap.NewNop(),
	)
	require.NoError(t, err)
	var mu sync.Mutex
	d.SetSleep(func(_ context.Context, delay time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		h.sleeps = append(h.sleeps, delay)
		return nil
	})
	t.Cleanup(d.Close)

	h.dispatcher = d
	return h
}

func (h *harness) investment(t *testing.T) (*models.Account, *models.Investment) {
	t.Helper()
	account, err := h.fx.CreateTestAccount("bronze", nil)
	require.NoError(t, err)
	investment, err := h.fx.CreateTestInvestment(account.ID, "500", time.Now())
	require.NoError(t, err)
	return account, investment
}

func (h *harness) attempts(taskType TaskType, outcome string) float64 {
	return testutil.ToFloat64(h.dispatcher.metrics.attempts.WithLabelValues(string(taskType), outcome))
}

func TestExecute_RetriesTransientErrors(t *testing.T) {
	h := newHarness(t, false)
	_, investment := h.investment(t)
	h.commissions.errs = []error{errDatabaseDown, errDatabaseDown, nil}
	h.commissions.result = &businessflow.CommissionResult{InvestmentID: investment.ID, TotalAmount: decimal.RequireFromString("15")}

	unit, err := h.dispatcher.Execute(context.Background(), ProcessInvestmentCommissions{InvestmentID: investment.ID})
	require.NoError(t, err)

	assert.Equal(t, models.WorkUnitStatusSucceeded, unit.Status)
	assert.Equal(t, 3, unit.Attempts)
	assert.Equal(t, 3, unit.MaxAttempts)
	assert.Equal(t, []time.Duration{30 * time.Second, 60 * time.Second}, h.sleeps)
	assert.Equal(t, 2, h.sink.count(services.EventWorkUnitAttemptFailed))
	assert.Equal(t, 0, h.sink.count(services.EventWorkUnitEscalated))

	assert.Equal(t, float64(2), h.attempts(TypeProcessInvestmentCommissions, outcomeRetried))
	assert.Equal(t, float64(1), h.attempts(TypeProcessInvestmentCommissions, outcomeSucceeded))
	assert.Equal(t, float64(15), testutil.ToFloat64(h.dispatcher.metrics.amounts.WithLabelValues("commission")))

	stored, err := h.dispatcher.WorkUnit(context.Background(), unit.UUID.String())
	require.NoError(t, err)
	assert.Equal(t, models.WorkUnitStatusSucceeded, stored.Status)
	assert.NotNil(t, stored.FinishedAt)
	assert.Equal(t, "15", stored.Result["total_amount"])
}

func TestExecute_EscalatesAfterLastAttempt(t *testing.T) {
	h := newHarness(t, false)
	h.settlement.errs = []error{errDatabaseDown}

	unit, err := h.dispatcher.Execute(context.Background(), SettlePendingCommissions{BatchSize: 100})
	require.NoError(t, err)

	assert.Equal(t, models.WorkUnitStatusFailed, unit.Status)
	assert.Equal(t, 3, unit.Attempts)
	assert.Equal(t, 3, h.settlement.count())
	require.NotNil(t, unit.LastError)
	assert.Contains(t, *unit.LastError, errDatabaseDown.Error())
	assert.Equal(t, 3, h.sink.count(services.EventWorkUnitAttemptFailed))
	assert.Equal(t, 1, h.sink.count(services.EventWorkUnitEscalated))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.dispatcher.metrics.escalations.WithLabelValues(string(TypeSettlePendingCommissions))))
}

func TestExecute_ValidationErrorsAreNotRetried(t *testing.T) {
	h := newHarness(t, false)
	_, investment := h.investment(t)
	h.commissions.errs = []error{fmt.Errorf("process: %w", businessflow.ErrInvestmentNotActive)}

	unit, err := h.dispatcher.Execute(context.Background(), ProcessInvestmentCommissions{InvestmentID: investment.ID})
	require.NoError(t, err)

	assert.Equal(t, models.WorkUnitStatusFailed, unit.Status)
	assert.Equal(t, 1, unit.Attempts)
	assert.Empty(t, h.sleeps)
	assert.Equal(t, 1, h.sink.count(services.EventWorkUnitEscalated))
}

func TestExecute_FailedDistributionIsRecorded(t *testing.T) {
	h := newHarness(t, false)
	h.distributions.errs = []error{errDatabaseDown}
	task := DistributeAnnualProfit{
		TotalProfit:      decimal.NewFromInt(1000),
		DistributionDate: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	}

	unit, err := h.dispatcher.Execute(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, models.WorkUnitStatusFailed, unit.Status)
	assert.Equal(t, []time.Duration{60 * time.Second, 120 * time.Second}, h.sleeps)
	require.Len(t, h.distributions.failures, 1)
	assert.Equal(t, models.DistributionTypeAnnual, h.distributions.failures[0].Type)
}

func TestAccept_RejectsBadTasks(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	_, err := h.dispatcher.Submit(ctx, SettlePendingCommissions{BatchSize: 0})
	assert.True(t, IsInvalidTask(err))

	_, err = h.dispatcher.Submit(ctx, SweepTierUpgrades{BatchSize: 10})
	assert.True(t, IsInvalidTask(err), "since is required")

	_, err = h.dispatcher.Submit(ctx, UpgradeAccountTier{AccountID: 1, Reason: "whim"})
	assert.True(t, IsInvalidTask(err))

	_, err = h.dispatcher.Submit(ctx, nil)
	assert.True(t, IsInvalidTask(err))

	_, err = h.dispatcher.Submit(ctx, ProcessInvestmentCommissions{InvestmentID: 9999})
	assert.True(t, businessflow.IsNotFound(err))

	_, err = h.dispatcher.Submit(ctx, UpgradeAccountTier{AccountID: 9999})
	assert.True(t, businessflow.IsNotFound(err))

	h.distributions.conflict = businessflow.NewBusinessError("DISTRIBUTION_ALREADY_EXISTS", "exists", businessflow.ErrDistributionAlreadyExists)
	_, err = h.dispatcher.Submit(ctx, DistributeAnnualProfit{TotalProfit: decimal.NewFromInt(1), DistributionDate: time.Now()})
	assert.True(t, businessflow.IsDistributionAlreadyExists(err))

	assert.Equal(t, 0, h.commissions.count())
	assert.Equal(t, 0, h.settlement.count())
}

func TestExecute_SkipsIdentityInFlight(t *testing.T) {
	h := newHarness(t, false)
	task := SettlePendingCommissions{BatchSize: 10}

	acquired, err := h.locker.Acquire(context.Background(), task.Identity().Key(), time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	unit, err := h.dispatcher.Execute(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, models.WorkUnitStatusSkipped, unit.Status)
	assert.Equal(t, 0, h.settlement.count())
	assert.Equal(t, float64(1), h.attempts(TypeSettlePendingCommissions, outcomeSkipped))
}

func TestSubmit_ChainsTierUpgrade(t *testing.T) {
	h := newHarness(t, true)
	account, investment := h.investment(t)
	h.commissions.result = &businessflow.CommissionResult{InvestmentID: investment.ID, AccountID: account.ID}

	unit, err := h.dispatcher.Submit(context.Background(), ProcessInvestmentCommissions{InvestmentID: investment.ID})
	require.NoError(t, err)
	assert.Equal(t, models.WorkUnitStatusPending, unit.Status)

	h.dispatcher.Wait()

	h.tiers.mu.Lock()
	reason, ok := h.tiers.upgrades[account.ID]
	h.tiers.mu.Unlock()
	require.True(t, ok)
	assert.Equal(t, models.TierChangeReasonInvestment, reason)

	stored, err := h.dispatcher.WorkUnit(context.Background(), unit.UUID.String())
	require.NoError(t, err)
	assert.Equal(t, models.WorkUnitStatusSucceeded, stored.Status)
}

func TestSubmit_AfterClose(t *testing.T) {
	h := newHarness(t, false)
	h.dispatcher.Close()

	_, err := h.dispatcher.Submit(context.Background(), SettlePendingCommissions{BatchSize: 1})
	assert.ErrorIs(t, err, ErrDispatcherClosed)
}

func TestWorkUnit_NotFound(t *testing.T) {
	h := newHarness(t, false)

	_, err := h.dispatcher.WorkUnit(context.Background(), "5b0f6c4e-8a4f-4d7b-9a43-6fbd1e2a9c11")
	assert.True(t, businessflow.IsNotFound(err))
}

func TestClose_LetsRunningAttemptFinish(t *testing.T) {
	h := newHarness(t, false)
	h.settlement.started = make(chan struct{})
	h.settlement.release = make(chan struct{})

	unit, err := h.dispatcher.Submit(context.Background(), SettlePendingCommissions{BatchSize: 10})
	require.NoError(t, err)
	<-h.settlement.started

	closed := make(chan struct{})
	go func() {
		h.dispatcher.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("close returned while an attempt was running")
	case <-time.After(50 * time.Millisecond):
	}
	close(h.settlement.release)
	<-closed

	stored, err := h.dispatcher.WorkUnit(context.Background(), unit.UUID.String())
	require.NoError(t, err)
	assert.Equal(t, models.WorkUnitStatusSucceeded, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.Nil(t, stored.LastError)
	assert.Equal(t, 0, h.sink.count(services.EventWorkUnitEscalated))
}

func TestClose_LeavesUnitInBackoffPending(t *testing.T) {
	h := newHarness(t, false)
	h.distributions.errs = []error{errDatabaseDown}
	waiting := make(chan struct{})
	var once sync.Once
	h.dispatcher.SetSleep(func(ctx context.Context, _ time.Duration) error {
		once.Do(func() { close(waiting) })
		<-ctx.Done()
		return ctx.Err()
	})

	unit, err := h.dispatcher.Submit(context.Background(), DistributeAnnualProfit{
		TotalProfit:      decimal.NewFromInt(1000),
		DistributionDate: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	<-waiting
	h.dispatcher.Close()

	stored, err := h.dispatcher.WorkUnit(context.Background(), unit.UUID.String())
	require.NoError(t, err)
	assert.Equal(t, models.WorkUnitStatusPending, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.Nil(t, stored.FinishedAt)
	require.NotNil(t, stored.LastError)
	assert.Contains(t, *stored.LastError, errDatabaseDown.Error())

	assert.Equal(t, 0, h.sink.count(services.EventWorkUnitEscalated))
	assert.Empty(t, h.distributions.failures)
	assert.Equal(t, float64(1), h.attempts(TypeDistributeAnnualProfit, outcomeDeferred))
	assert.Equal(t, float64(0), h.attempts(TypeDistributeAnnualProfit, outcomeFailed))
}

func TestClose_RacesWithSubmit(t *testing.T) {
	h := newHarness(t, false)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(batch int) {
			defer wg.Done()
			_, err := h.dispatcher.Submit(context.Background(), SettlePendingCommissions{BatchSize: batch})
			if err != nil {
				assert.ErrorIs(t, err, ErrDispatcherClosed)
			}
		}(i + 1)
	}
	h.dispatcher.Close()
	wg.Wait()

	_, err := h.dispatcher.Submit(context.Background(), SettlePendingCommissions{BatchSize: 1})
	assert.ErrorIs(t, err, ErrDispatcherClosed)
}
