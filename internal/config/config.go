// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	CRM    CRMConfig    `yaml:"crm" mapstructure:"crm"`
	Ads    AdsConfig    `yaml:"ads" mapstructure:"ads"`
	Rollup RollupConfig `yaml:"rollup" mapstructure:"rollup"`
	Daemon DaemonConfig `yaml:"daemon" mapstructure:"daemon"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// Pool sizing for the postgres driver. Zero leaves pgxpool defaults.
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// CRMConfig holds CRM API credentials and sync behavior.
type CRMConfig struct {
	APIKey              string   `yaml:"api_key" mapstructure:"api_key"`
	LocationID          string   `yaml:"location_id" mapstructure:"location_id"`
	PipelineIDs         []string `yaml:"pipeline_ids" mapstructure:"pipeline_ids"`
	PageSize            int      `yaml:"page_size" mapstructure:"page_size"`
	RateLimitRPS        float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	SimilarityThreshold float64  `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	DefaultDepositValue float64  `yaml:"default_deposit_value" mapstructure:"default_deposit_value"`
	DefaultCashValue    float64  `yaml:"default_cash_value" mapstructure:"default_cash_value"`
}

// AdsConfig holds advertising provider credentials and traversal limits.
type AdsConfig struct {
	AccessToken      string  `yaml:"access_token" mapstructure:"access_token"`
	AccountID        string  `yaml:"account_id" mapstructure:"account_id"`
	RateLimitRPS     float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	SinceDaysAgo     int     `yaml:"since_days_ago" mapstructure:"since_days_ago"`
	WarnUsagePercent float64 `yaml:"warn_usage_percent" mapstructure:"warn_usage_percent"`
	HaltUsagePercent float64 `yaml:"halt_usage_percent" mapstructure:"halt_usage_percent"`
}

// RollupConfig configures roll-up aggregation.
type RollupConfig struct {
	// History appends a timestamped snapshot row on every recompute in
	// addition to replacing the live document.
	History bool `yaml:"history" mapstructure:"history"`
}

// DaemonConfig holds cron schedules for daemon mode.
type DaemonConfig struct {
	CRMSchedule    string `yaml:"crm_schedule" mapstructure:"crm_schedule"`
	AdsSchedule    string `yaml:"ads_schedule" mapstructure:"ads_schedule"`
	RollupSchedule string `yaml:"rollup_schedule" mapstructure:"rollup_schedule"`
}

// ServerConfig configures the status server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ADSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("crm.page_size", 100)
	v.SetDefault("crm.rate_limit_rps", 5)
	v.SetDefault("crm.similarity_threshold", 0.7)
	v.SetDefault("crm.default_deposit_value", 1500)
	v.SetDefault("crm.default_cash_value", 5000)
	v.SetDefault("ads.rate_limit_rps", 2)
	v.SetDefault("ads.since_days_ago", 90)
	v.SetDefault("ads.warn_usage_percent", 80)
	v.SetDefault("ads.halt_usage_percent", 95)
	v.SetDefault("rollup.history", false)
	v.SetDefault("daemon.crm_schedule", "*/15 * * * *")
	v.SetDefault("daemon.ads_schedule", "0 * * * *")
	v.SetDefault("daemon.rollup_schedule", "30 3 * * *")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields the given run mode requires, so a misconfigured
// invocation fails before any API call or store write happens.
func (c *Config) Validate(mode string) error {
	var problems []string

	requireStore := func() {
		if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}
	requireCRM := func() {
		requireStore()
		if c.CRM.APIKey == "" {
			problems = append(problems, "crm.api_key is required")
		}
		if c.CRM.LocationID == "" {
			problems = append(problems, "crm.location_id is required")
		}
	}
	requireAds := func() {
		requireStore()
		if c.Ads.AccessToken == "" {
			problems = append(problems, "ads.access_token is required")
		}
		if c.Ads.AccountID == "" {
			problems = append(problems, "ads.account_id is required")
		}
		if c.Ads.HaltUsagePercent < c.Ads.WarnUsagePercent {
			problems = append(problems, "ads.halt_usage_percent must be >= ads.warn_usage_percent")
		}
	}

	switch mode {
	case "crm":
		requireCRM()
	case "ads":
		requireAds()
	case "rollup", "backfill", "runs", "migrate":
		requireStore()
	case "daemon":
		requireCRM()
		requireAds()
	case "serve":
		requireStore()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
