package config

import (
	"testing"
	"time"

	"github.com/amirphl/Susanoo/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *ProductionConfig {
	return &ProductionConfig{
		Database: DatabaseConfig{Host: "localhost", Port: 5432, Name: "susanoo", User: "postgres", Password: "secret"},
		Server:   ServerConfig{Port: 8080, ReadTimeout: time.Second, WriteTimeout: time.Second},
		Security: SecurityConfig{RequireAPIKey: true, AllowedAPIKeys: []string{"key"}},
		Logging:  LoggingConfig{Level: "info"},
		Distribution: DistributionConfig{
			AnnualPercentage:     "0.60",
			SettlementBatchSize:  500,
			SettlementMaxAgeDays: 7,
		},
		Scheduler: SchedulerConfig{
			Enabled:            true,
			SettlementInterval: time.Hour,
			TierSweepInterval:  time.Hour,
		},
		Tasks: TasksConfig{PoolSize: 4, MaxAttempts: 3},
	}
}

func TestValidateProductionConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ProductionConfig)
		wantErr string
	}{
		{"valid", func(*ProductionConfig) {}, ""},
		{"missing password", func(c *ProductionConfig) { c.Database.Password = "" }, "DB_PASSWORD is required"},
		{"api key required", func(c *ProductionConfig) { c.Security.AllowedAPIKeys = nil }, "ALLOWED_API_KEYS"},
		{"bad log level", func(c *ProductionConfig) { c.Logging.Level = "trace" }, "LOG_LEVEL"},
		{"annual percentage zero", func(c *ProductionConfig) { c.Distribution.AnnualPercentage = "0" }, "DISTRIBUTION_ANNUAL_PERCENTAGE"},
		{"annual percentage above one", func(c *ProductionConfig) { c.Distribution.AnnualPercentage = "1.2" }, "DISTRIBUTION_ANNUAL_PERCENTAGE"},
		{"annual percentage garbage", func(c *ProductionConfig) { c.Distribution.AnnualPercentage = "sixty" }, "DISTRIBUTION_ANNUAL_PERCENTAGE"},
		{"negative max age", func(c *ProductionConfig) { c.Distribution.SettlementMaxAgeDays = -1 }, "SETTLEMENT_MAX_AGE_DAYS"},
		{"bad tier json", func(c *ProductionConfig) { c.Tiers.JSON = "{" }, "TIERS_JSON"},
		{"negative scheduled profit", func(c *ProductionConfig) { c.Scheduler.AnnualProfit = "-5" }, "SCHEDULER_ANNUAL_PROFIT"},
		{"zero pool size", func(c *ProductionConfig) { c.Tasks.PoolSize = 0 }, "TASKS_POOL_SIZE"},
		{
			"email without admins",
			func(c *ProductionConfig) { c.Email = EmailConfig{Enabled: true, Host: "smtp", FromEmail: "a@b.c"} },
			"ADMIN_EMAILS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateProductionConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTiersConfig_Table(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		table, err := TiersConfig{}.Table()
		require.NoError(t, err)
		assert.Len(t, table.Tiers(), len(models.DefaultTiers()))
	})

	t.Run("override", func(t *testing.T) {
		raw := `[
			{"name":"basic","threshold":"50","referral_rates":["0.02"],"matrix_rate":"0","profit_rate":"0.04","reinvestment_bonus_rate":"0"},
			{"name":"premium","threshold":"500","referral_rates":["0.05","0.02"],"matrix_rate":"0.01","profit_rate":"0.08","reinvestment_bonus_rate":"0.01","quarterly_bonus_eligible":true}
		]`
		table, err := TiersConfig{JSON: raw}.Table()
		require.NoError(t, err)

		tier := table.Classify(models.DefaultTiers()[1].Threshold) // 1000
		assert.Equal(t, "premium", tier.Name)
		assert.Equal(t, []string{"premium"}, table.QuarterlyBonusTierNames())
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := TiersConfig{JSON: `[{"name":"x","threshold":"-1"}]`}.Table()
		assert.ErrorIs(t, err, models.ErrInvalidTierTable)

		_, err = TiersConfig{JSON: `not json`}.Table()
		assert.ErrorIs(t, err, models.ErrInvalidTierTable)
	})
}

func TestGetEnvDurationSlice(t *testing.T) {
	fallback := []time.Duration{time.Second}

	t.Setenv("TEST_BACKOFF", "30s, 1m ,2m")
	assert.Equal(t, []time.Duration{30 * time.Second, time.Minute, 2 * time.Minute}, getEnvDurationSlice("TEST_BACKOFF", fallback))

	t.Setenv("TEST_BACKOFF", "30s,soon")
	assert.Equal(t, fallback, getEnvDurationSlice("TEST_BACKOFF", fallback))

	t.Setenv("TEST_BACKOFF", "")
	assert.Equal(t, fallback, getEnvDurationSlice("TEST_BACKOFF", fallback))
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=n sslmode=disable TimeZone=UTC", cfg.DSN())
}
