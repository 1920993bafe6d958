// Package scheduler submits the engine's periodic work units on a schedule
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/Susanoo/app/tasks"
	businessflow "github.com/amirphl/Susanoo/business_flow"
	"github.com/amirphl/Susanoo/config"
	"github.com/amirphl/Susanoo/models"
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Submitter queues work units; *tasks.Dispatcher satisfies it
type Submitter interface {
	Submit(ctx context.Context, task tasks.Task) (*models.WorkUnit, error)
}

// Manager owns the gocron scheduler and the engine jobs registered on it
type Manager struct {
	scheduler gocron.Scheduler
	submitter Submitter
	cfg       config.SchedulerConfig
	dist      config.DistributionConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewManager creates a job manager. Jobs are registered by Start.
func NewManager(submitter Submitter, cfg config.SchedulerConfig, dist config.DistributionConfig, logger *zap.Logger) (*Manager, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Manager{
		scheduler: s,
		submitter: submitter,
		cfg:       cfg,
		dist:      dist,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Jobs builds the job list from configuration
func (m *Manager) Jobs() ([]Job, error) {
	jobs := []Job{
		NewSettlementJob(m.cfg.SettlementInterval, m.dist.SettlementBatchSize, m.dist.SettlementMaxAgeDays),
		NewTierSweepJob(m.cfg.TierSweepInterval, m.cfg.TierSweepLookback, m.cfg.TierSweepBatchSize),
	}

	annual, err := NewAnnualDistributionJob(m.cfg.AnnualCron, m.cfg.AnnualProfit)
	if err != nil {
		return nil, err
	}
	if annual != nil {
		jobs = append(jobs, annual)
	}

	quarterly, err := NewQuarterlyBonusJob(m.cfg.QuarterlyCron, m.cfg.QuarterlyProfit, m.cfg.QuarterlyBonusPercentage)
	if err != nil {
		return nil, err
	}
	if quarterly != nil {
		jobs = append(jobs, quarterly)
	}
	return jobs, nil
}

// Start registers every job and starts the scheduler
func (m *Manager) Start() error {
	jobs, err := m.Jobs()
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if err := m.register(job); err != nil {
			return err
		}
	}
	m.scheduler.Start()
	m.logger.Info("scheduler started", zap.Int("jobs", len(jobs)))
	return nil
}

func (m *Manager) register(job Job) error {
	_, err := m.scheduler.NewJob(
		job.Schedule(),
		gocron.NewTask(func() { m.Run(job) }),
		gocron.WithName(job.Name()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", job.Name(), err)
	}
	return nil
}

// Run builds the job's task for the current instant and submits it
func (m *Manager) Run(job Job) {
	task := job.Task(m.now())
	logger := m.logger.With(zap.String("job", job.Name()), zap.String("task_type", string(task.Type())))

	unit, err := m.submitter.Submit(context.Background(), task)
	switch {
	case err == nil:
		logger.Info("scheduled work unit queued", zap.String("work_unit_uuid", unit.UUID.String()))
	case businessflow.IsDistributionAlreadyExists(err):
		logger.Info("scheduled distribution already processed, skipping")
	default:
		logger.Error("failed to queue scheduled work unit", zap.Error(err))
	}
}

// Stop shuts the scheduler down, waiting for running jobs
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		m.logger.Error("failed to shutdown scheduler", zap.Error(err))
	}
	m.logger.Info("scheduler stopped")
}
