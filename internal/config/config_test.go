package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "SQLite")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("SCHEDULER_RUN_INTERVAL", "15s")
	t.Setenv("SCHEDULER_ENABLED_JOBS", "expire_offers, ,rearm_promotions")
	t.Setenv("LOG_LEVEL", " DEBUG ")
	t.Setenv("OTEL_ENABLED", "off")
	t.Setenv("DB_SLOW_QUERY_THRESHOLD", "50ms")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.DBType)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 15*time.Second, cfg.Scheduler.RunInterval)
	assert.Equal(t, []string{"expire_offers", "rearm_promotions"}, cfg.Scheduler.EnabledJobs)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.False(t, cfg.Observability.OtelEnabled)
	assert.Equal(t, 50*time.Millisecond, cfg.Observability.SlowQueryThreshold)
}

func TestGetenvHelpersFallBack(t *testing.T) {
	t.Setenv("CLASSBOOK_TEST_BOOL", "maybe")
	t.Setenv("CLASSBOOK_TEST_DURATION", "-1s")

	assert.True(t, getenvBool("CLASSBOOK_TEST_BOOL", true))
	assert.Equal(t, time.Minute, getenvDuration("CLASSBOOK_TEST_DURATION", time.Minute))
	assert.Equal(t, int64(7), getenvInt64("CLASSBOOK_TEST_MISSING", 7))
}

func TestBookingConfigHolderDefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	holder, err := NewBookingConfigHolder(zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, DefaultBookingConfig(), holder.Get())
}

func TestBookingConfigHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("booking:\n  cancelGraceValue: 2\n  cancelGraceUnit: days\n  offerTTLMinutes: 30\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "booking.yml"), content, 0o600))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	holder, err := NewBookingConfigHolder(zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 2, cfg.CancelGraceValue)
	assert.Equal(t, "days", cfg.CancelGraceUnit)
	assert.Equal(t, 30*time.Minute, cfg.OfferTTL())
	assert.Equal(t, 30, cfg.PromoterPollSeconds)
}

func TestValidateBookingConfig(t *testing.T) {
	cfg := DefaultBookingConfig()
	cfg.CancelGraceUnit = "weeks"
	assert.Error(t, validateBookingConfig(cfg))

	cfg = DefaultBookingConfig()
	cfg.OfferTTLMinutes = 0
	assert.Error(t, validateBookingConfig(cfg))

	assert.NoError(t, validateBookingConfig(DefaultBookingConfig()))
}
