package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, int32(2), cfg.Store.MinConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 100, cfg.CRM.PageSize)
	assert.InDelta(t, 0.7, cfg.CRM.SimilarityThreshold, 0.001)
	assert.InDelta(t, 1500, cfg.CRM.DefaultDepositValue, 0.001)
	assert.InDelta(t, 5000, cfg.CRM.DefaultCashValue, 0.001)
	assert.Equal(t, 90, cfg.Ads.SinceDaysAgo)
	assert.InDelta(t, 80, cfg.Ads.WarnUsagePercent, 0.001)
	assert.InDelta(t, 95, cfg.Ads.HaltUsagePercent, 0.001)
	assert.False(t, cfg.Rollup.History)
	assert.Equal(t, "*/15 * * * *", cfg.Daemon.CRMSchedule)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: sqlite
  database_url: adsync.db
log:
  level: debug
  format: console
crm:
  pipeline_ids: [pipe-1, pipe-2]
rollup:
  history: true
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"pipe-1", "pipe-2"}, cfg.CRM.PipelineIDs)
	assert.True(t, cfg.Rollup.History)
	// Defaults still apply for unset values
	assert.Equal(t, 100, cfg.CRM.PageSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ADSYNC_STORE_DRIVER", "postgres")
	t.Setenv("ADSYNC_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("ADSYNC_ADS_HALT_USAGE_PERCENT", "90")

	cfg, err := Load()
	require.NoError(t, err)
	assert.InDelta(t, 90, cfg.Ads.HaltUsagePercent, 0.001)
}

// validBase returns a Config that passes store validation.
func validBase() *Config {
	return &Config{
		Store:  StoreConfig{Driver: "sqlite", DatabaseURL: "adsync.db"},
		Ads:    AdsConfig{WarnUsagePercent: 80, HaltUsagePercent: 95},
		Server: ServerConfig{Port: 8080},
	}
}

func TestValidateCRM(t *testing.T) {
	cfg := validBase()
	err := cfg.Validate("crm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crm.api_key is required")
	assert.Contains(t, err.Error(), "crm.location_id is required")

	cfg.CRM.APIKey = "key"
	cfg.CRM.LocationID = "loc-1"
	assert.NoError(t, cfg.Validate("crm"))
}

func TestValidateAds(t *testing.T) {
	cfg := validBase()
	err := cfg.Validate("ads")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ads.access_token is required")

	cfg.Ads.AccessToken = "tok"
	cfg.Ads.AccountID = "123"
	assert.NoError(t, cfg.Validate("ads"))

	cfg.Ads.HaltUsagePercent = 50
	err = cfg.Validate("ads")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "halt_usage_percent")
}

func TestValidateStoreDriver(t *testing.T) {
	cfg := validBase()
	cfg.Store.Driver = "mysql"
	err := cfg.Validate("rollup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestValidateServe(t *testing.T) {
	cfg := validBase()
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validBase()
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
