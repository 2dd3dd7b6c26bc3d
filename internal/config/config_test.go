package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.Reconciliation.AmountTolerance.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, 2, cfg.Reconciliation.DayTolerance)
	assert.Equal(t, 30*time.Second, cfg.Reconciliation.LockTTL)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "0 3 * * *", cfg.Scheduler.Cron)
	assert.Empty(t, cfg.Redis.Address)
	assert.Empty(t, cfg.Admin.Email, "no admin is seeded unless configured")
}

func TestLoadConfig_ReconciliationOverrides(t *testing.T) {
	t.Setenv("RECONCILIATION_AMOUNT_TOLERANCE", "0.50")
	t.Setenv("RECONCILIATION_DAY_TOLERANCE", "5")
	t.Setenv("SCHEDULER_ENABLED", "true")
	t.Setenv("REDIS_ADDRESS", "redis:6379")

	cfg := LoadConfig()

	assert.True(t, cfg.Reconciliation.AmountTolerance.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, 5, cfg.Reconciliation.DayTolerance)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Address)
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("RECONCILIATION_AMOUNT_TOLERANCE", "-3")
	t.Setenv("RECONCILIATION_DAY_TOLERANCE", "two")
	t.Setenv("SCHEDULER_ENABLED", "maybe")

	cfg := LoadConfig()

	assert.True(t, cfg.Reconciliation.AmountTolerance.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, 2, cfg.Reconciliation.DayTolerance)
	assert.False(t, cfg.Scheduler.Enabled)
}
