// Package main provides the main entry point for the Susanoo distribution engine
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/Susanoo/app/handlers"
	"github.com/amirphl/Susanoo/app/router"
	"github.com/amirphl/Susanoo/app/scheduler"
	"github.com/amirphl/Susanoo/app/services"
	"github.com/amirphl/Susanoo/app/tasks"
	businessflow "github.com/amirphl/Susanoo/business_flow"
	"github.com/amirphl/Susanoo/config"
	"github.com/amirphl/Susanoo/logger"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router     router.Router
	dispatcher *tasks.Dispatcher
	scheduler  *scheduler.Manager
	stopFuncs  []func()
}

func main() {
	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	app, err := initializeApplication(cfg, zl)
	if err != nil {
		zl.Fatal("failed to initialize application", zap.Error(err))
	}

	app.router.SetupRoutes()

	if app.scheduler != nil {
		if err := app.scheduler.Start(); err != nil {
			zl.Fatal("failed to start scheduler", zap.Error(err))
		}
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			zl.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-sigChan
	zl.Info("shutting down gracefully")

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := app.router.Shutdown(); err != nil {
			zl.Error("error during server shutdown", zap.Error(err))
		}
		if app.scheduler != nil {
			app.scheduler.Stop()
		}
		// In-flight units finish their current attempt; pending backoffs are interrupted
		app.dispatcher.Close()
		for _, fn := range app.stopFuncs {
			fn()
		}
	}()

	select {
	case <-done:
		zl.Info("server stopped")
	case <-time.After(cfg.Server.ShutdownTimeout):
		zl.Warn("shutdown timed out")
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, zl *zap.Logger) (*gorm.DB, error) {
	logLevel := gormlogger.Error
	if cfg.SlowQueryLog {
		logLevel = gormlogger.Warn
	}
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(models.All()...); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	zl.Info("database connection established",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
		zap.Bool("auto_migrate", cfg.AutoMigrate),
	)
	return db, nil
}

// initializeCache connects to redis when it is the configured cache provider
func initializeCache(cfg config.CacheConfig, zl *zap.Logger) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	zl.Info("redis connection established", zap.Int("db", cfg.RedisDB))
	return rc, nil
}

// startCacheHealthMonitor periodically pings redis so a lost lock backend shows up in the logs.
// The returned function stops the monitor.
func startCacheHealthMonitor(client *redis.Client, interval time.Duration, zl *zap.Logger) func() {
	monitorCtx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					zl.Warn("redis healthcheck failed", zap.Error(err))
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeNotificationSink always logs events and additionally mails them when email is enabled
func initializeNotificationSink(cfg *config.ProductionConfig, zl *zap.Logger) services.NotificationSink {
	sinks := []services.NotificationSink{services.NewLogSink(zl)}
	if cfg.Email.Enabled {
		provider := services.NewSMTPEmailProvider(
			cfg.Email.Host,
			cfg.Email.Port,
			cfg.Email.Username,
			cfg.Email.Password,
			cfg.Email.FromEmail,
			cfg.Email.FromName,
		)
		sinks = append(sinks, services.NewEmailSink(provider, cfg.Admin.Emails, cfg.Admin.EscalationsPerMinute, zl))
	}
	return services.NewFanoutSink(sinks...)
}

func initializeMatrixCollaborator(cfg config.MatrixConfig) services.MatrixCommissionCollaborator {
	if cfg.BaseURL == "" {
		return services.NoopMatrixCollaborator{}
	}
	return services.NewHTTPMatrixClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig, zl *zap.Logger) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database, zl)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache, zl)
	if err != nil {
		return nil, err
	}
	var locker tasks.Locker = tasks.NewLocalLocker()
	if rc != nil {
		locker = tasks.NewRedisLocker(rc, cfg.Cache.RedisPrefix)
		stopFuncs = append(stopFuncs,
			startCacheHealthMonitor(rc, 30*time.Second, zl),
			func() { _ = rc.Close() },
		)
	}

	tierTable, err := cfg.Tiers.Table()
	if err != nil {
		return nil, err
	}
	annualPct, err := cfg.Distribution.AnnualPercentageDecimal()
	if err != nil {
		return nil, fmt.Errorf("invalid annual distribution percentage: %w", err)
	}

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(db)
	investmentRepo := repository.NewInvestmentRepository(db)
	commissionRepo := repository.NewReferralCommissionRepository(db)
	clawbackRepo := repository.NewCommissionClawbackRepository(db)
	distributionRepo := repository.NewProfitDistributionRepository(db)
	allocationRepo := repository.NewProfitAllocationRepository(db)
	upgradeRepo := repository.NewTierUpgradeRecordRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	workUnitRepo := repository.NewWorkUnitRepository(db)

	// Initialize services
	notifier := initializeNotificationSink(cfg, zl)
	matrix := initializeMatrixCollaborator(cfg.Matrix)

	// Initialize business flows
	classifier := businessflow.NewTierClassifier(tierTable)
	flows := tasks.Flows{
		Commissions: businessflow.NewReferralCommissionFlow(
			accountRepo, investmentRepo, commissionRepo, activityRepo,
			classifier, matrix, notifier, zl, db,
		),
		Clawbacks: businessflow.NewClawbackFlow(
			accountRepo, investmentRepo, commissionRepo, clawbackRepo, activityRepo,
			businessflow.ClawbackPolicy{IncludeMatrix: cfg.Distribution.ClawbackIncludesMatrix},
			notifier, zl, db,
		),
		Settlement: businessflow.NewSettlementFlow(commissionRepo, zl, db),
		Distributions: businessflow.NewProfitDistributionFlow(
			investmentRepo, distributionRepo, allocationRepo, activityRepo,
			classifier, businessflow.DistributionPolicy{AnnualPercentage: annualPct},
			notifier, zl, db,
		),
		Tiers: businessflow.NewTierUpgradeFlow(
			accountRepo, investmentRepo, upgradeRepo, activityRepo,
			classifier, notifier, zl, db,
		),
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	dispatcher, err := tasks.NewDispatcher(
		tasks.Config{
			PoolSize:          cfg.Tasks.PoolSize,
			CommissionRetry:   tasks.RetryPolicy{MaxAttempts: cfg.Tasks.MaxAttempts, Delays: cfg.Tasks.CommissionBackoff},
			DistributionRetry: tasks.RetryPolicy{MaxAttempts: cfg.Tasks.MaxAttempts, Delays: cfg.Tasks.DistributionBackoff},
			LockTTL:           cfg.Tasks.LockTTL,
			ChainTierUpgrades: cfg.Tasks.ChainTierUpgrades,
		},
		flows, accountRepo, investmentRepo, workUnitRepo,
		locker, notifier, tasks.NewMetrics(registry), zl,
	)
	if err != nil {
		return nil, err
	}

	var sched *scheduler.Manager
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.NewManager(dispatcher, cfg.Scheduler, cfg.Distribution, zl)
		if err != nil {
			return nil, err
		}
	}

	// Initialize handlers
	h := router.Handlers{
		Commissions:   handlers.NewCommissionHandler(dispatcher, cfg.Distribution.SettlementBatchSize, cfg.Distribution.SettlementMaxAgeDays, zl),
		Distributions: handlers.NewDistributionHandler(dispatcher, flows.Distributions, zl),
		Tiers:         handlers.NewTierHandler(dispatcher, flows.Tiers, cfg.Scheduler.TierSweepBatchSize, zl),
		WorkUnits:     handlers.NewWorkUnitHandler(dispatcher, zl),
	}

	return &Application{
		router:     router.NewFiberRouter(h, cfg, registry, zl),
		dispatcher: dispatcher,
		scheduler:  sched,
		stopFuncs:  stopFuncs,
	}, nil
}
