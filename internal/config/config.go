package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"fiatbridge/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Rates    RatesConfig    `mapstructure:"rates"`
	Mint     MintConfig     `mapstructure:"mint"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the ledger.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// RatesConfig governs the external exchange-rate source and cache.
type RatesConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	ReferenceUnit  string        `mapstructure:"reference_unit"`
}

// UnitConfig declares one accepted fiat unit with its precision and fees.
type UnitConfig struct {
	Code       string  `mapstructure:"code"`
	Decimals   int     `mapstructure:"decimals"`
	MintFeePct float64 `mapstructure:"mint_fee_pct"`
	MeltFeePct float64 `mapstructure:"melt_fee_pct"`
}

// MintConfig lists the fiat units the bridge accepts on top of sat.
type MintConfig struct {
	Units []UnitConfig `mapstructure:"units"`
}

// MonitorConfig governs the rate snapshot daemon.
type MonitorConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// AlertingConfig defines rate-movement alert thresholds and routing.
type AlertingConfig struct {
	Enabled      bool           `mapstructure:"enabled"`
	ThresholdPct float64        `mapstructure:"threshold_pct"`
	Telegram     TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram alert channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxEntries int `mapstructure:"max_entries"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FIATBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fiatbridge")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("rates.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("rates.cache_ttl", "5m")
	v.SetDefault("rates.request_timeout", "10s")
	v.SetDefault("rates.user_agent", "fiatbridge/1.0")
	v.SetDefault("rates.reference_unit", "usd")

	v.SetDefault("monitor.interval", "5m")
	v.SetDefault("monitor.align_to_bucket", true)
	v.SetDefault("monitor.startup_delay", "0s")
	v.SetDefault("monitor.advisory_lock_key", int64(0x66696174))

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.threshold_pct", 2.0)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_entries", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Rates.CacheTTL <= 0 {
		return fmt.Errorf("rates.cache_ttl must be greater than zero")
	}
	if c.Rates.ReferenceUnit == "" {
		return fmt.Errorf("rates.reference_unit is required")
	}
	for _, u := range c.Mint.Units {
		if u.Code == "" {
			return fmt.Errorf("mint.units entries require a code")
		}
		if u.Decimals < 0 {
			return fmt.Errorf("mint unit %q: decimals cannot be negative", u.Code)
		}
		if u.MintFeePct < 0 || u.MeltFeePct < 0 {
			return fmt.Errorf("mint unit %q: fees cannot be negative", u.Code)
		}
	}
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be greater than zero")
	}
	if c.Alerting.ThresholdPct < 0 {
		return fmt.Errorf("alerting.threshold_pct cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	if c.Export.MaxEntries <= 0 {
		return fmt.Errorf("export.max_entries must be greater than zero")
	}
	return nil
}

// ResolveMaxEntries returns either the CLI override or config default.
func (c *Config) ResolveMaxEntries(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxEntries
}
