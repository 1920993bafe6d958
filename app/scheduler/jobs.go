package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/Susanoo/app/tasks"
	"github.com/amirphl/Susanoo/utils"
	"github.com/go-co-op/gocron/v2"
	"github.com/shopspring/decimal"
)

// Job is one periodic engine operation
type Job interface {
	Name() string
	Schedule() gocron.JobDefinition
	// Task builds the work unit to submit for a run at now
	Task(now time.Time) tasks.Task
}

// SettlementJob settles one batch of aged pending commissions per run
type SettlementJob struct {
	interval   time.Duration
	batchSize  int
	maxAgeDays int
}

func NewSettlementJob(interval time.Duration, batchSize, maxAgeDays int) *SettlementJob {
	if batchSize <= 0 {
		batchSize = utils.DefaultSettlementBatchSize
	}
	if maxAgeDays < 0 {
		maxAgeDays = utils.DefaultSettlementMaxAgeDays
	}
	return &SettlementJob{interval: interval, batchSize: batchSize, maxAgeDays: maxAgeDays}
}

func (j *SettlementJob) Name() string {
	return "commission_settlement"
}

func (j *SettlementJob) Schedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

func (j *SettlementJob) Task(time.Time) tasks.Task {
	return tasks.SettlePendingCommissions{BatchSize: j.batchSize, MaxAgeDays: j.maxAgeDays}
}

// TierSweepJob reclassifies accounts with recent investment activity
type TierSweepJob struct {
	interval  time.Duration
	lookback  time.Duration
	batchSize int
}

func NewTierSweepJob(interval, lookback time.Duration, batchSize int) *TierSweepJob {
	if lookback <= 0 {
		lookback = interval
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &TierSweepJob{interval: interval, lookback: lookback, batchSize: batchSize}
}

func (j *TierSweepJob) Name() string {
	return "tier_upgrade_sweep"
}

func (j *TierSweepJob) Schedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

func (j *TierSweepJob) Task(now time.Time) tasks.Task {
	return tasks.SweepTierUpgrades{Since: now.Add(-j.lookback), BatchSize: j.batchSize}
}

// AnnualDistributionJob runs the annual profit pool on a cron schedule
type AnnualDistributionJob struct {
	cron   string
	profit decimal.Decimal
}

// NewAnnualDistributionJob returns nil when no profit figure is configured
func NewAnnualDistributionJob(cron, profit string) (*AnnualDistributionJob, error) {
	if strings.TrimSpace(profit) == "" || strings.TrimSpace(cron) == "" {
		return nil, nil
	}
	amount, err := decimal.NewFromString(profit)
	if err != nil {
		return nil, fmt.Errorf("invalid annual profit %q: %w", profit, err)
	}
	return &AnnualDistributionJob{cron: cron, profit: amount}, nil
}

func (j *AnnualDistributionJob) Name() string {
	return "annual_profit_distribution"
}

func (j *AnnualDistributionJob) Schedule() gocron.JobDefinition {
	return gocron.CronJob(j.cron, false)
}

func (j *AnnualDistributionJob) Task(now time.Time) tasks.Task {
	return tasks.DistributeAnnualProfit{
		TotalProfit:      j.profit,
		DistributionDate: utils.StartOfDay(now),
		CreatedBy:        utils.SystemActor,
	}
}

// QuarterlyBonusJob runs the quarterly bonus pool on a cron schedule
type QuarterlyBonusJob struct {
	cron       string
	profit     decimal.Decimal
	percentage decimal.Decimal
}

// NewQuarterlyBonusJob returns nil when no profit figure is configured
func NewQuarterlyBonusJob(cron, profit, percentage string) (*QuarterlyBonusJob, error) {
	if strings.TrimSpace(profit) == "" || strings.TrimSpace(cron) == "" {
		return nil, nil
	}
	amount, err := decimal.NewFromString(profit)
	if err != nil {
		return nil, fmt.Errorf("invalid quarterly profit %q: %w", profit, err)
	}
	pct, err := decimal.NewFromString(percentage)
	if err != nil {
		return nil, fmt.Errorf("invalid quarterly bonus percentage %q: %w", percentage, err)
	}
	return &QuarterlyBonusJob{cron: cron, profit: amount, percentage: pct}, nil
}

func (j *QuarterlyBonusJob) Name() string {
	return "quarterly_bonus_distribution"
}

func (j *QuarterlyBonusJob) Schedule() gocron.JobDefinition {
	return gocron.CronJob(j.cron, false)
}

func (j *QuarterlyBonusJob) Task(now time.Time) tasks.Task {
	return tasks.DistributeQuarterlyBonus{
		TotalProfit:         j.profit,
		BonusPoolPercentage: j.percentage,
		DistributionDate:    utils.StartOfDay(now),
		CreatedBy:           utils.SystemActor,
	}
}
