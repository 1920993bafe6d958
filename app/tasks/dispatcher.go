package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amirphl/Susanoo/app/services"
	businessflow "github.com/amirphl/Susanoo/business_flow"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/repository"
	"github.com/amirphl/Susanoo/utils"
	"github.com/go-playground/validator/v10"
	"github.com/panjf2000/ants/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInvalidTask        = errors.New("invalid task")
	ErrDispatcherClosed   = errors.New("dispatcher is closed")
	ErrUnknownTaskVariant = errors.New("unknown task variant")
)

// IsInvalidTask reports whether err came from task field validation
func IsInvalidTask(err error) bool {
	return errors.Is(err, ErrInvalidTask)
}

// Flows are the engine operations the dispatcher runs
type Flows struct {
	Commissions   businessflow.ReferralCommissionFlow
	Clawbacks     businessflow.ClawbackFlow
	Settlement    businessflow.SettlementFlow
	Distributions businessflow.ProfitDistributionFlow
	Tiers         businessflow.TierUpgradeFlow
}

// Config tunes the dispatcher
type Config struct {
	PoolSize          int
	CommissionRetry   RetryPolicy
	DistributionRetry RetryPolicy
	LockTTL           time.Duration
	// ChainTierUpgrades queues an UpgradeAccountTier unit after commission and withdrawal units
	ChainTierUpgrades bool
}

// DefaultConfig returns the stock dispatcher settings
func DefaultConfig() Config {
	return Config{
		PoolSize:          16,
		CommissionRetry:   CommissionRetryPolicy(),
		DistributionRetry: DistributionRetryPolicy(),
		LockTTL:           utils.WorkUnitLockTTL,
		ChainTierUpgrades: true,
	}
}

// Dispatcher validates tasks, records them as work units and runs them on a bounded pool
// with retries. Exhausted or non-retryable units are escalated to administrators.
type Dispatcher struct {
	cfg            Config
	flows          Flows
	accountRepo    repository.AccountRepository
	investmentRepo repository.InvestmentRepository
	workUnitRepo   repository.WorkUnitRepository
	locker         Locker
	notifier       services.NotificationSink
	metrics        *Metrics
	logger         *zap.Logger
	validate       *validator.Validate
	pool           *ants.Pool
	sleep          func(ctx context.Context, d time.Duration) error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewDispatcher constructs a Dispatcher and its goroutine pool
func NewDispatcher(
	cfg Config,
	flows Flows,
	accountRepo repository.AccountRepository,
	investmentRepo repository.InvestmentRepository,
	workUnitRepo repository.WorkUnitRepository,
	locker Locker,
	notifier services.NotificationSink,
	metrics *Metrics,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultConfig().PoolSize
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = utils.WorkUnitLockTTL
	}
	if locker == nil {
		locker = NewLocalLocker()
	}

	pool, err := ants.NewPool(cfg.PoolSize, ants.WithPanicHandler(func(p any) {
		logger.Error("work unit panicked", zap.Any("panic", p))
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create work pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		cfg:            cfg,
		flows:          flows,
		accountRepo:    accountRepo,
		investmentRepo: investmentRepo,
		workUnitRepo:   workUnitRepo,
		locker:         locker,
		notifier:       notifier,
		metrics:        metrics,
		logger:         logger,
		validate:       validator.New(),
		pool:           pool,
		sleep:          sleepContext,
		ctx:            ctx,
		cancel:         cancel,
	}, nil
}

// SetSleep replaces the backoff wait; tests use it to skip delays
func (d *Dispatcher) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	d.sleep = sleep
}

// Submit checks the task synchronously, records a pending work unit and queues it.
// Validation, missing-reference and conflict errors are returned before anything is queued.
func (d *Dispatcher) Submit(ctx context.Context, task Task) (*models.WorkUnit, error) {
	if !d.track() {
		return nil, ErrDispatcherClosed
	}
	unit, err := d.accept(ctx, task)
	if err != nil {
		d.wg.Done()
		return nil, err
	}

	snapshot := *unit
	err = d.pool.Submit(func() {
		defer d.wg.Done()
		d.execute(d.ctx, &snapshot, task)
	})
	if err != nil {
		d.wg.Done()
		d.finish(ctx, unit, models.WorkUnitStatusFailed, nil, err)
		return nil, fmt.Errorf("failed to queue work unit: %w", err)
	}
	return unit, nil
}

// Execute checks and runs the task on the calling goroutine, returning the finished work unit
func (d *Dispatcher) Execute(ctx context.Context, task Task) (*models.WorkUnit, error) {
	unit, err := d.accept(ctx, task)
	if err != nil {
		return nil, err
	}
	d.execute(ctx, unit, task)
	return unit, nil
}

// WorkUnit loads a work unit by uuid
func (d *Dispatcher) WorkUnit(ctx context.Context, uuid string) (*models.WorkUnit, error) {
	unit, err := d.workUnitRepo.ByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, businessflow.NewBusinessErrorf("WORK_UNIT_NOT_FOUND", "Work unit %s not found", businessflow.ErrWorkUnitNotFound, uuid)
	}
	return unit, nil
}

// Wait blocks until every queued unit has finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close stops accepting units and interrupts backoff waits. Attempts already running are
// allowed to finish; units waiting for a retry are left pending.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
	d.pool.Release()
}

// track registers one more in-flight unit unless the dispatcher is closed
func (d *Dispatcher) track() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.wg.Add(1)
	return true
}

func (d *Dispatcher) accept(ctx context.Context, task Task) (*models.WorkUnit, error) {
	if task == nil {
		return nil, fmt.Errorf("%w: nil task", ErrInvalidTask)
	}
	if err := d.validate.Struct(task); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTask, task.Type(), err)
	}
	if err := d.precheck(ctx, task); err != nil {
		return nil, err
	}

	identity := task.Identity()
	now := utils.UTCNow()
	unit := &models.WorkUnit{
		TaskType:    string(task.Type()),
		IdentityKey: identity.Key(),
		Payload:     task.Payload(),
		Status:      models.WorkUnitStatusPending,
		MaxAttempts: d.policy(task).attempts(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := d.workUnitRepo.Save(ctx, unit); err != nil {
		return nil, fmt.Errorf("failed to record work unit: %w", err)
	}
	if d.metrics != nil {
		d.metrics.submitted.WithLabelValues(unit.TaskType).Inc()
	}
	return unit, nil
}

// precheck rejects tasks that cannot succeed, before any work unit exists
func (d *Dispatcher) precheck(ctx context.Context, task Task) error {
	switch t := task.(type) {
	case ProcessInvestmentCommissions:
		return d.requireInvestment(ctx, t.InvestmentID)
	case ProcessWithdrawalClawback:
		return d.requireInvestment(ctx, t.InvestmentID)
	case SettlePendingCommissions:
		return nil
	case DistributeAnnualProfit:
		req := annualRequest(t)
		if err := d.flows.Distributions.Validate(req); err != nil {
			return err
		}
		return d.flows.Distributions.CheckConflict(ctx, req)
	case DistributeQuarterlyBonus:
		req := quarterlyRequest(t)
		if err := d.flows.Distributions.Validate(req); err != nil {
			return err
		}
		return d.flows.Distributions.CheckConflict(ctx, req)
	case UpgradeAccountTier:
		account, err := d.accountRepo.ByID(ctx, t.AccountID)
		if err != nil {
			return err
		}
		if account == nil {
			return businessflow.NewBusinessErrorf("ACCOUNT_NOT_FOUND", "Account %d not found", businessflow.ErrAccountNotFound, t.AccountID)
		}
		return nil
	case SweepTierUpgrades:
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnknownTaskVariant, task)
	}
}

func (d *Dispatcher) requireInvestment(ctx context.Context, id uint) error {
	investment, err := d.investmentRepo.ByID(ctx, id)
	if err != nil {
		return err
	}
	if investment == nil {
		return businessflow.NewBusinessErrorf("INVESTMENT_NOT_FOUND", "Investment %d not found", businessflow.ErrInvestmentNotFound, id)
	}
	return nil
}

// run dispatches one attempt to the engine
func (d *Dispatcher) run(ctx context.Context, task Task) (any, error) {
	switch t := task.(type) {
	case ProcessInvestmentCommissions:
		return d.flows.Commissions.ProcessInvestment(ctx, t.InvestmentID)
	case ProcessWithdrawalClawback:
		return d.flows.Clawbacks.ProcessWithdrawal(ctx, businessflow.WithdrawalEvent{
			InvestmentID:        t.InvestmentID,
			WithdrawalReference: t.WithdrawalReference,
			WithdrawnAt:         t.WithdrawnAt,
		})
	case SettlePendingCommissions:
		return d.flows.Settlement.SettlePending(ctx, businessflow.SettlementRequest{
			BatchSize:  t.BatchSize,
			MaxAgeDays: t.MaxAgeDays,
		})
	case DistributeAnnualProfit:
		return d.flows.Distributions.DistributeAnnual(ctx, annualRequest(t))
	case DistributeQuarterlyBonus:
		return d.flows.Distributions.DistributeQuarterlyBonus(ctx, quarterlyRequest(t))
	case UpgradeAccountTier:
		reason := t.Reason
		if reason == "" {
			reason = models.TierChangeReasonManual
		}
		return d.flows.Tiers.Upgrade(ctx, t.AccountID, reason)
	case SweepTierUpgrades:
		return d.flows.Tiers.SweepRecent(ctx, t.Since, t.BatchSize)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownTaskVariant, task)
	}
}

func annualRequest(t DistributeAnnualProfit) businessflow.DistributionRequest {
	return businessflow.DistributionRequest{
		Type:             models.DistributionTypeAnnual,
		TotalProfit:      t.TotalProfit,
		DistributionDate: t.DistributionDate,
		Force:            t.Force,
		CreatedBy:        t.CreatedBy,
	}
}

func quarterlyRequest(t DistributeQuarterlyBonus) businessflow.DistributionRequest {
	return businessflow.DistributionRequest{
		Type:                models.DistributionTypeQuarterlyBonus,
		TotalProfit:         t.TotalProfit,
		BonusPoolPercentage: t.BonusPoolPercentage,
		DistributionDate:    t.DistributionDate,
		Force:               t.Force,
		CreatedBy:           t.CreatedBy,
	}
}

func (d *Dispatcher) policy(task Task) RetryPolicy {
	return policyFor(task.Type(), d.cfg.CommissionRetry, d.cfg.DistributionRetry)
}

// execute runs every attempt of a unit. The unit's effects are all-or-nothing per attempt,
// so a retry always starts from scratch. Cancelling ctx never interrupts an attempt: it only
// stops the unit from starting or from waiting for its next attempt, and leaves it pending.
func (d *Dispatcher) execute(ctx context.Context, unit *models.WorkUnit, task Task) {
	stop := ctx
	ctx = context.WithoutCancel(ctx)
	identity := task.Identity()
	logger := d.logger.With(
		zap.String("task_type", unit.TaskType),
		zap.Strings("entity_ids", identity.EntityIDs),
		zap.String("work_unit_uuid", unit.UUID.String()),
	)

	acquired, err := d.locker.Acquire(ctx, unit.IdentityKey, d.cfg.LockTTL)
	if err != nil {
		logger.Warn("work unit lock unavailable, running unguarded", zap.Error(err))
	} else if !acquired {
		logger.Info("identical work unit already in flight, skipping")
		d.observe(unit.TaskType, outcomeSkipped)
		d.finish(ctx, unit, models.WorkUnitStatusSkipped, nil, nil)
		return
	}
	defer func() {
		if err := d.locker.Release(context.Background(), unit.IdentityKey); err != nil {
			logger.Warn("failed to release work unit lock", zap.Error(err))
		}
	}()

	if d.metrics != nil {
		d.metrics.inFlight.Inc()
		defer d.metrics.inFlight.Dec()
		start := time.Now()
		defer func() {
			d.metrics.duration.WithLabelValues(unit.TaskType).Observe(time.Since(start).Seconds())
		}()
	}

	if stop.Err() != nil {
		d.park(unit, stop.Err(), logger)
		return
	}

	policy := d.policy(task)
	unit.Status = models.WorkUnitStatusRunning
	unit.StartedAt = utils.UTCNowPtr()

	var lastErr error
	for attempt := 1; attempt <= policy.attempts(); attempt++ {
		unit.Attempts = attempt
		d.save(ctx, unit, logger)

		result, err := d.run(ctx, task)
		if err == nil {
			d.observe(unit.TaskType, outcomeSucceeded)
			d.recordAmounts(result)
			d.finish(ctx, unit, models.WorkUnitStatusSucceeded, result, nil)
			logger.Info("work unit succeeded", zap.Int("attempt", attempt))
			d.chain(ctx, result, logger)
			return
		}

		lastErr = err
		retryable := businessflow.IsRetryable(err) && attempt < policy.attempts()
		logger.Warn("work unit attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", policy.attempts()),
			zap.Bool("will_retry", retryable),
			zap.Error(err),
		)
		d.notifyAttemptFailed(ctx, unit, identity, err)
		if !retryable {
			break
		}

		d.observe(unit.TaskType, outcomeRetried)
		errMsg := err.Error()
		unit.LastError = &errMsg
		if err := d.sleep(stop, policy.Delay(attempt)); err != nil {
			d.park(unit, err, logger)
			return
		}
	}

	d.observe(unit.TaskType, outcomeFailed)
	d.finish(ctx, unit, models.WorkUnitStatusFailed, nil, lastErr)
	d.escalate(ctx, unit, identity, task, lastErr, logger)
}

// park leaves a unit that was stopped before its next attempt; it stays pending
func (d *Dispatcher) park(unit *models.WorkUnit, cause error, logger *zap.Logger) {
	if unit.LastError == nil {
		msg := cause.Error()
		unit.LastError = &msg
	}
	unit.Status = models.WorkUnitStatusPending
	d.observe(unit.TaskType, outcomeDeferred)
	d.save(context.Background(), unit, logger)
	logger.Info("work unit stopped before its next attempt, left pending", zap.Int("attempts", unit.Attempts), zap.Error(cause))
}

func (d *Dispatcher) observe(taskType, outcome string) {
	if d.metrics != nil {
		d.metrics.attempts.WithLabelValues(taskType, outcome).Inc()
	}
}

func (d *Dispatcher) recordAmounts(result any) {
	if d.metrics == nil {
		return
	}
	add := func(kind string, amount decimal.Decimal) {
		if amount.IsPositive() {
			d.metrics.amounts.WithLabelValues(kind).Add(amount.InexactFloat64())
		}
	}
	switch r := result.(type) {
	case *businessflow.CommissionResult:
		if !r.AlreadyProcessed {
			add("commission", r.TotalAmount)
		}
	case *businessflow.ClawbackResult:
		if !r.AlreadyProcessed {
			add("clawback", r.TotalClawedBack)
		}
	case *businessflow.SettlementResult:
		add("settlement", r.TotalAmount)
	case *businessflow.DistributionResult:
		add(string(r.Distribution.Type), r.Distribution.TotalDistributed)
	}
}

// chain queues the tier reclassification that follows commission and withdrawal units
func (d *Dispatcher) chain(ctx context.Context, result any, logger *zap.Logger) {
	if !d.cfg.ChainTierUpgrades {
		return
	}
	var accountID uint
	switch r := result.(type) {
	case *businessflow.CommissionResult:
		accountID = r.AccountID
	case *businessflow.ClawbackResult:
		accountID = r.AccountID
	}
	if accountID == 0 {
		return
	}

	// Submit blocks while the pool is saturated and must not run on a worker
	follow := UpgradeAccountTier{AccountID: accountID, Reason: models.TierChangeReasonInvestment}
	if !d.track() {
		logger.Info("dispatcher closing, tier reclassification not queued", zap.Uint("account_id", accountID))
		return
	}
	go func() {
		defer d.wg.Done()
		if _, err := d.Submit(context.WithoutCancel(ctx), follow); err != nil {
			logger.Warn("failed to queue tier reclassification", zap.Uint("account_id", accountID), zap.Error(err))
		}
	}()
}

func (d *Dispatcher) save(ctx context.Context, unit *models.WorkUnit, logger *zap.Logger) {
	unit.UpdatedAt = utils.UTCNow()
	if err := d.workUnitRepo.Update(ctx, unit); err != nil {
		logger.Error("failed to update work unit", zap.Error(err))
	}
}

func (d *Dispatcher) finish(ctx context.Context, unit *models.WorkUnit, status models.WorkUnitStatus, result any, cause error) {
	unit.Status = status
	unit.FinishedAt = utils.UTCNowPtr()
	if cause != nil {
		msg := cause.Error()
		unit.LastError = &msg
	}
	if result != nil {
		encoded, err := toJSONMap(result)
		if err != nil {
			d.logger.Warn("failed to encode work unit result", zap.String("work_unit_uuid", unit.UUID.String()), zap.Error(err))
		}
		unit.Result = encoded
	}
	// ctx may already be cancelled on shutdown; the final state must still be stored
	d.save(context.WithoutCancel(ctx), unit, d.logger)
}

func (d *Dispatcher) notifyAttemptFailed(ctx context.Context, unit *models.WorkUnit, identity Identity, err error) {
	services.Deliver(ctx, d.notifier, d.logger, services.AdminRecipient(),
		services.NewEvent(services.EventWorkUnitAttemptFailed, fmt.Sprintf("%s attempt %d failed", unit.TaskType, unit.Attempts), map[string]any{
			"work_unit_uuid": unit.UUID.String(),
			"identity":       identity.Key(),
			"attempt":        unit.Attempts,
			"max_attempts":   unit.MaxAttempts,
			"error":          err.Error(),
		}))
}

// escalate reports a permanently failed unit with its full payload
func (d *Dispatcher) escalate(ctx context.Context, unit *models.WorkUnit, identity Identity, task Task, cause error, logger *zap.Logger) {
	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}
	logger.Error("work unit failed permanently",
		zap.Int("attempts", unit.Attempts),
		zap.Any("payload", unit.Payload),
		zap.String("error_kind", string(businessflow.KindOf(cause))),
		zap.Error(cause),
	)
	if d.metrics != nil {
		d.metrics.escalations.WithLabelValues(unit.TaskType).Inc()
	}

	ctx = context.WithoutCancel(ctx)
	if req, ok := distributionRequestOf(task); ok && !businessflow.IsDistributionAlreadyExists(cause) {
		if _, err := d.flows.Distributions.RecordFailure(ctx, req, cause); err != nil {
			logger.Error("failed to record failed distribution", zap.Error(err))
		}
	}

	services.Deliver(ctx, d.notifier, d.logger, services.AdminRecipient(),
		services.NewEvent(services.EventWorkUnitEscalated, fmt.Sprintf("CRITICAL: %s failed permanently", unit.TaskType), map[string]any{
			"work_unit_uuid": unit.UUID.String(),
			"task_type":      unit.TaskType,
			"identity":       identity.Key(),
			"entity_ids":     identity.EntityIDs,
			"attempts":       unit.Attempts,
			"payload":        unit.Payload,
			"error":          errMsg,
		}))
}

func distributionRequestOf(task Task) (businessflow.DistributionRequest, bool) {
	switch t := task.(type) {
	case DistributeAnnualProfit:
		return annualRequest(t), true
	case DistributeQuarterlyBonus:
		return quarterlyRequest(t), true
	}
	return businessflow.DistributionRequest{}, false
}

func toJSONMap(v any) (models.JSONMap, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out models.JSONMap
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
