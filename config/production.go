// Package config provides configuration management and environment variable handling for the application
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/Susanoo/models"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database     DatabaseConfig     `json:"database"`
	Server       ServerConfig       `json:"server"`
	Security     SecurityConfig     `json:"security"`
	Logging      LoggingConfig      `json:"logging"`
	Metrics      MetricsConfig      `json:"metrics"`
	Cache        CacheConfig        `json:"cache"`
	Email        EmailConfig        `json:"email"`
	Admin        AdminConfig        `json:"admin"`
	Distribution DistributionConfig `json:"distribution"`
	Tiers        TiersConfig        `json:"tiers"`
	Scheduler    SchedulerConfig    `json:"scheduler"`
	Tasks        TasksConfig        `json:"tasks"`
	Matrix       MatrixConfig       `json:"matrix"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
	AutoMigrate     bool          `json:"auto_migrate"`
}

// DSN renders the postgres connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
	EnableMetrics   bool          `json:"enable_metrics"`
}

type SecurityConfig struct {
	RequireAPIKey  bool     `json:"require_api_key"`
	APIKeyHeader   string   `json:"api_key_header"`
	AllowedAPIKeys []string `json:"allowed_api_keys"`
}

type LoggingConfig struct {
	Level            string `json:"level"`  // debug, info, warn, error
	Format           string `json:"format"` // json, text
	Output           string `json:"output"` // stdout, file, both
	FilePath         string `json:"file_path"`
	MaxSize          int    `json:"max_size"` // MB
	MaxBackups       int    `json:"max_backups"`
	MaxAge           int    `json:"max_age"` // days
	Compress         bool   `json:"compress"`
	EnableCaller     bool   `json:"enable_caller"`
	EnableStacktrace bool   `json:"enable_stacktrace"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled     bool   `json:"enabled"`
	Provider    string `json:"provider"` // redis, memory
	RedisURL    string `json:"redis_url"`
	RedisDB     int    `json:"redis_db"`
	RedisPrefix string `json:"redis_prefix"`
}

type EmailConfig struct {
	Enabled   bool   `json:"enabled"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FromEmail string `json:"from_email"`
	FromName  string `json:"from_name"`
}

type AdminConfig struct {
	Emails []string `json:"emails"`
	// EscalationsPerMinute caps admin mail; zero means unlimited
	EscalationsPerMinute int `json:"escalations_per_minute"`
}

type DistributionConfig struct {
	AnnualPercentage       string `json:"annual_percentage"`
	ClawbackIncludesMatrix bool   `json:"clawback_includes_matrix"`
	SettlementBatchSize    int    `json:"settlement_batch_size"`
	SettlementMaxAgeDays   int    `json:"settlement_max_age_days"`
}

// AnnualPercentageDecimal parses the configured annual payout fraction
func (c DistributionConfig) AnnualPercentageDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(c.AnnualPercentage)
}

type TiersConfig struct {
	// JSON is an optional override of the default tier table
	JSON string `json:"json"`
}

// Table builds the frozen tier table, falling back to the default tiers
func (c TiersConfig) Table() (*models.TierTable, error) {
	tiers := models.DefaultTiers()
	if strings.TrimSpace(c.JSON) != "" {
		tiers = nil
		if err := json.Unmarshal([]byte(c.JSON), &tiers); err != nil {
			return nil, fmt.Errorf("%w: TIERS_JSON: %v", models.ErrInvalidTierTable, err)
		}
	}
	return models.NewTierTable(tiers)
}

type SchedulerConfig struct {
	Enabled            bool          `json:"enabled"`
	SettlementInterval time.Duration `json:"settlement_interval"`
	TierSweepInterval  time.Duration `json:"tier_sweep_interval"`
	TierSweepLookback  time.Duration `json:"tier_sweep_lookback"`
	TierSweepBatchSize int           `json:"tier_sweep_batch_size"`

	// Pool runs are only scheduled when a profit figure is configured
	AnnualCron               string `json:"annual_cron"`
	AnnualProfit             string `json:"annual_profit"`
	QuarterlyCron            string `json:"quarterly_cron"`
	QuarterlyProfit          string `json:"quarterly_profit"`
	QuarterlyBonusPercentage string `json:"quarterly_bonus_percentage"`
}

type TasksConfig struct {
	PoolSize            int             `json:"pool_size"`
	MaxAttempts         int             `json:"max_attempts"`
	CommissionBackoff   []time.Duration `json:"commission_backoff"`
	DistributionBackoff []time.Duration `json:"distribution_backoff"`
	LockTTL             time.Duration   `json:"lock_ttl"`
	ChainTierUpgrades   bool            `json:"chain_tier_upgrades"`
}

type MatrixConfig struct {
	BaseURL string        `json:"base_url"`
	APIKey  string        `json:"api_key"`
	Timeout time.Duration `json:"timeout"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Variables already in the environment win over .env
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "susanoo"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", false),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 1024*1024),
			EnableMetrics:   getEnvBool("SERVER_ENABLE_METRICS", true),
		},
		Security: SecurityConfig{
			RequireAPIKey:  getEnvBool("REQUIRE_API_KEY", true),
			APIKeyHeader:   getEnvString("API_KEY_HEADER", "X-API-Key"),
			AllowedAPIKeys: getEnvStringSlice("ALLOWED_API_KEYS", []string{}),
		},
		Logging: LoggingConfig{
			Level:            getEnvString("LOG_LEVEL", "info"),
			Format:           getEnvString("LOG_FORMAT", "json"),
			Output:           getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:         getEnvString("LOG_FILE_PATH", "/var/log/susanoo/app.log"),
			MaxSize:          getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:       getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:           getEnvInt("LOG_MAX_AGE", 30),
			Compress:         getEnvBool("LOG_COMPRESS", true),
			EnableCaller:     getEnvBool("LOG_ENABLE_CALLER", true),
			EnableStacktrace: getEnvBool("LOG_ENABLE_STACKTRACE", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:     getEnvBool("CACHE_ENABLED", true),
			Provider:    getEnvString("CACHE_PROVIDER", "redis"),
			RedisURL:    getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:     getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix: getEnvString("CACHE_REDIS_PREFIX", "susanoo:"),
		},
		Email: EmailConfig{
			Enabled:   getEnvBool("EMAIL_ENABLED", false),
			Host:      getEnvString("EMAIL_HOST", "smtp.gmail.com"),
			Port:      getEnvInt("EMAIL_PORT", 587),
			Username:  getEnvString("EMAIL_USERNAME", ""),
			Password:  getEnvString("EMAIL_PASSWORD", ""),
			FromEmail: getEnvString("EMAIL_FROM_EMAIL", "noreply@susanoo.local"),
			FromName:  getEnvString("EMAIL_FROM_NAME", "Susanoo"),
		},
		Admin: AdminConfig{
			Emails:               getEnvStringSlice("ADMIN_EMAILS", []string{}),
			EscalationsPerMinute: getEnvInt("ADMIN_ESCALATIONS_PER_MINUTE", 10),
		},
		Distribution: DistributionConfig{
			AnnualPercentage:       getEnvString("DISTRIBUTION_ANNUAL_PERCENTAGE", "0.60"),
			ClawbackIncludesMatrix: getEnvBool("CLAWBACK_INCLUDES_MATRIX", true),
			SettlementBatchSize:    getEnvInt("SETTLEMENT_BATCH_SIZE", 500),
			SettlementMaxAgeDays:   getEnvInt("SETTLEMENT_MAX_AGE_DAYS", 7),
		},
		Tiers: TiersConfig{
			JSON: getEnvString("TIERS_JSON", ""),
		},
		Scheduler: SchedulerConfig{
			Enabled:                  getEnvBool("SCHEDULER_ENABLED", true),
			SettlementInterval:       getEnvDuration("SCHEDULER_SETTLEMENT_INTERVAL", 1*time.Hour),
			TierSweepInterval:        getEnvDuration("SCHEDULER_TIER_SWEEP_INTERVAL", 6*time.Hour),
			TierSweepLookback:        getEnvDuration("SCHEDULER_TIER_SWEEP_LOOKBACK", 24*time.Hour),
			TierSweepBatchSize:       getEnvInt("SCHEDULER_TIER_SWEEP_BATCH_SIZE", 1000),
			AnnualCron:               getEnvString("SCHEDULER_ANNUAL_CRON", "0 2 1 1 *"),
			AnnualProfit:             getEnvString("SCHEDULER_ANNUAL_PROFIT", ""),
			QuarterlyCron:            getEnvString("SCHEDULER_QUARTERLY_CRON", "0 3 1 1,4,7,10 *"),
			QuarterlyProfit:          getEnvString("SCHEDULER_QUARTERLY_PROFIT", ""),
			QuarterlyBonusPercentage: getEnvString("SCHEDULER_QUARTERLY_BONUS_PERCENTAGE", "7.5"),
		},
		Tasks: TasksConfig{
			PoolSize:            getEnvInt("TASKS_POOL_SIZE", 16),
			MaxAttempts:         getEnvInt("TASKS_MAX_ATTEMPTS", 3),
			CommissionBackoff:   getEnvDurationSlice("TASKS_COMMISSION_BACKOFF", []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second}),
			DistributionBackoff: getEnvDurationSlice("TASKS_DISTRIBUTION_BACKOFF", []time.Duration{60 * time.Second, 120 * time.Second, 300 * time.Second}),
			LockTTL:             getEnvDuration("TASKS_LOCK_TTL", 30*time.Minute),
			ChainTierUpgrades:   getEnvBool("TASKS_CHAIN_TIER_UPGRADES", true),
		},
		Matrix: MatrixConfig{
			BaseURL: getEnvString("MATRIX_BASE_URL", ""),
			APIKey:  getEnvString("MATRIX_API_KEY", ""),
			Timeout: getEnvDuration("MATRIX_TIMEOUT", 30*time.Second),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// getEnvDurationSlice parses a comma separated list such as "30s,60s,120s".
// Any malformed entry falls back to the default list.
func getEnvDurationSlice(key string, defaultValue []time.Duration) []time.Duration {
	items := getEnvStringSlice(key, nil)
	if len(items) == 0 {
		return defaultValue
	}
	result := make([]time.Duration, 0, len(items))
	for _, item := range items {
		parsed, err := time.ParseDuration(item)
		if err != nil {
			return defaultValue
		}
		result = append(result, parsed)
	}
	return result
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}
	if cfg.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}

	// Validate security configuration
	if cfg.Security.RequireAPIKey && len(cfg.Security.AllowedAPIKeys) == 0 {
		errors = append(errors, "ALLOWED_API_KEYS is required when REQUIRE_API_KEY is enabled")
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, level := range validLevels {
			if cfg.Logging.Level == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}

	// Validate email configuration if enabled
	if cfg.Email.Enabled {
		if cfg.Email.Host == "" {
			errors = append(errors, "EMAIL_HOST is required when email is enabled")
		}
		if cfg.Email.FromEmail == "" {
			errors = append(errors, "EMAIL_FROM_EMAIL is required when email is enabled")
		}
		if len(cfg.Admin.Emails) == 0 {
			errors = append(errors, "ADMIN_EMAILS is required when email is enabled")
		}
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled {
		if cfg.Cache.Provider == "redis" && cfg.Cache.RedisURL == "" {
			errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled with redis provider")
		}
	}

	// Validate distribution configuration
	pct, err := cfg.Distribution.AnnualPercentageDecimal()
	if err != nil || !pct.IsPositive() || pct.GreaterThan(decimal.NewFromInt(1)) {
		errors = append(errors, "DISTRIBUTION_ANNUAL_PERCENTAGE must be a fraction within (0, 1]")
	}
	if cfg.Distribution.SettlementBatchSize <= 0 {
		errors = append(errors, "SETTLEMENT_BATCH_SIZE must be positive")
	}
	if cfg.Distribution.SettlementMaxAgeDays < 0 {
		errors = append(errors, "SETTLEMENT_MAX_AGE_DAYS must not be negative")
	}

	// Validate tier table
	if _, err := cfg.Tiers.Table(); err != nil {
		errors = append(errors, fmt.Sprintf("TIERS_JSON is invalid: %v", err))
	}

	// Validate scheduler configuration
	if cfg.Scheduler.Enabled {
		if cfg.Scheduler.SettlementInterval <= 0 {
			errors = append(errors, "SCHEDULER_SETTLEMENT_INTERVAL must be positive")
		}
		if cfg.Scheduler.TierSweepInterval <= 0 {
			errors = append(errors, "SCHEDULER_TIER_SWEEP_INTERVAL must be positive")
		}
		for key, value := range map[string]string{
			"SCHEDULER_ANNUAL_PROFIT":    cfg.Scheduler.AnnualProfit,
			"SCHEDULER_QUARTERLY_PROFIT": cfg.Scheduler.QuarterlyProfit,
		} {
			if value == "" {
				continue
			}
			if d, err := decimal.NewFromString(value); err != nil || d.IsNegative() {
				errors = append(errors, fmt.Sprintf("%s must be a non-negative amount", key))
			}
		}
	}

	// Validate task configuration
	if cfg.Tasks.PoolSize <= 0 {
		errors = append(errors, "TASKS_POOL_SIZE must be positive")
	}
	if cfg.Tasks.MaxAttempts <= 0 {
		errors = append(errors, "TASKS_MAX_ATTEMPTS must be positive")
	}

	// Return validation errors if any
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
