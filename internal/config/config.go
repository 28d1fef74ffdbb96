// Package config provides configuration management for the strangle trader.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "delta-strangler/internal/errors"
	"delta-strangler/internal/logging"
	"delta-strangler/pkg/utils"
)

// Config holds all application configuration.
type Config struct {
	Exchange      ExchangeConfig     `mapstructure:"exchange"`
	Strategy      StrategyConfig     `mapstructure:"strategy"`
	Risk          RiskConfig         `mapstructure:"risk"`
	Trading       TradingConfig      `mapstructure:"trading"`
	FX            FXConfig           `mapstructure:"fx"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Logging       logging.LogConfig  `mapstructure:"logging"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
	Credentials   Credentials        `mapstructure:"-"` // Loaded separately
	Phase         string             `mapstructure:"-"` // From PHASE env
}

// ExchangeConfig holds Delta Exchange connection settings.
type ExchangeConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	CandleTimeout     time.Duration `mapstructure:"candle_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxRetries        int           `mapstructure:"max_retries"`
}

// ScanRange is an inclusive range of OTM strike distances.
type ScanRange struct {
	Min   int    `mapstructure:"min"`
	Max   int    `mapstructure:"max"`
	Label string `mapstructure:"label"`
}

// StrategyConfig holds strike selection configuration.
type StrategyConfig struct {
	Underlying        string    `mapstructure:"underlying"`
	SpotSymbol        string    `mapstructure:"spot_symbol"`
	PositionLots      int       `mapstructure:"position_size_lots"`
	LotsPerUnit       int       `mapstructure:"lots_per_unit"`
	MinPremium        float64   `mapstructure:"min_premium"`
	MaxSpreadPercent  float64   `mapstructure:"max_spread_pct"`
	Primary           ScanRange `mapstructure:"primary"`
	Fallback          ScanRange `mapstructure:"fallback"`
	ExpiryCutoff      string    `mapstructure:"expiry_cutoff"`
	ChainDisplayWidth int       `mapstructure:"chain_display_width"`
}

// RiskConfig holds stop-loss and exit configuration.
type RiskConfig struct {
	SLMultiplier     float64       `mapstructure:"sl_multiplier"`
	HardCapINR       float64       `mapstructure:"hard_cap_inr"`
	EarlyExitPremium float64       `mapstructure:"early_exit_premium"`
	ExitTime         string        `mapstructure:"exit_time"`
	MonitorInterval  time.Duration `mapstructure:"monitor_interval"`
	ExitRetryDelay   time.Duration `mapstructure:"exit_retry_delay"`
	SettleDelay      time.Duration `mapstructure:"settle_delay"`
}

// TradingConfig holds trading-mode configuration.
type TradingConfig struct {
	Mode         string   `mapstructure:"mode"` // "dry_run", "live"
	LiveWeekdays []string `mapstructure:"live_weekdays"`
}

// FXConfig holds USD/INR conversion settings.
type FXConfig struct {
	URL          string        `mapstructure:"url"`
	FallbackRate float64       `mapstructure:"fallback_rate"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// StorageConfig holds persistence paths.
type StorageConfig struct {
	SnapshotPath string `mapstructure:"snapshot_path"`
	LedgerPath   string `mapstructure:"ledger_path"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// MetricsConfig holds the Prometheus listener configuration.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// Credentials holds API credentials.
type Credentials struct {
	Delta DeltaCredentials `mapstructure:"delta"`
}

// DeltaCredentials holds Delta Exchange API credentials.
type DeltaCredentials struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/delta-strangler"
	}
	return filepath.Join(home, ".config", "delta-strangler")
}

// Default returns the configuration built from defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	cfg.Phase = "ENTRY"
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("exchange.base_url", "https://api.india.delta.exchange")
	v.SetDefault("exchange.timeout", 10*time.Second)
	v.SetDefault("exchange.candle_timeout", 15*time.Second)
	v.SetDefault("exchange.requests_per_second", 5.0)
	v.SetDefault("exchange.burst", 5)
	v.SetDefault("exchange.max_retries", 3)

	v.SetDefault("strategy.underlying", "BTC")
	v.SetDefault("strategy.spot_symbol", "BTCUSD")
	v.SetDefault("strategy.position_size_lots", 1000)
	v.SetDefault("strategy.lots_per_unit", 1000)
	v.SetDefault("strategy.min_premium", 5.0)
	v.SetDefault("strategy.max_spread_pct", 30.0)
	v.SetDefault("strategy.primary.min", 13)
	v.SetDefault("strategy.primary.max", 15)
	v.SetDefault("strategy.primary.label", "PRIMARY")
	v.SetDefault("strategy.fallback.min", 10)
	v.SetDefault("strategy.fallback.max", 12)
	v.SetDefault("strategy.fallback.label", "FALLBACK")
	v.SetDefault("strategy.expiry_cutoff", "17:30")
	v.SetDefault("strategy.chain_display_width", 15)

	v.SetDefault("risk.sl_multiplier", 2.5)
	v.SetDefault("risk.hard_cap_inr", 10000.0)
	v.SetDefault("risk.early_exit_premium", 5.0)
	v.SetDefault("risk.exit_time", "17:15")
	v.SetDefault("risk.monitor_interval", 30*time.Second)
	v.SetDefault("risk.exit_retry_delay", 10*time.Second)
	v.SetDefault("risk.settle_delay", 5*time.Second)

	v.SetDefault("trading.mode", "dry_run")
	v.SetDefault("trading.live_weekdays", []string{"Saturday"})

	v.SetDefault("fx.url", "https://api.exchangerate-api.com/v4/latest/USD")
	v.SetDefault("fx.fallback_rate", 84.0)
	v.SetDefault("fx.timeout", 5*time.Second)

	v.SetDefault("storage.snapshot_path", "active_trade.json")
	v.SetDefault("storage.ledger_path", "trade_tracker.db")

	defaults := logging.DefaultLogConfig()
	v.SetDefault("logging.level", defaults.Level)
	v.SetDefault("logging.console", defaults.Console)
	v.SetDefault("logging.file", defaults.File)
	v.SetDefault("logging.dir", defaults.Dir)
	v.SetDefault("logging.max_size", defaults.MaxSize)
	v.SetDefault("logging.max_backups", defaults.MaxBackups)
	v.SetDefault("logging.max_age", defaults.MaxAge)

	v.SetDefault("notifications.enabled", false)
	v.SetDefault("metrics.listen_addr", "")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// .env files are optional; the working directory wins over the config dir.
	for _, p := range []string{".env", filepath.Join(configDir, ".env")} {
		if err := godotenv.Load(p); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading %s: %w", p, err)
		}
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrConfigInvalid, err)
	}

	return cfg, nil
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// First run: leave a template behind and carry on with defaults.
		if err := createTemplateConfig(configDir); err != nil {
			return err
		}
	}

	return v.Unmarshal(cfg)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DELTA_API_KEY"); v != "" {
		cfg.Credentials.Delta.APIKey = v
	}
	if v := os.Getenv("DELTA_API_SECRET"); v != "" {
		cfg.Credentials.Delta.APISecret = v
	}
	if v := os.Getenv("TRADING_MODE"); v != "" {
		cfg.Trading.Mode = v
	}

	cfg.Phase = strings.ToUpper(strings.TrimSpace(os.Getenv("PHASE")))
	if cfg.Phase == "" {
		cfg.Phase = "ENTRY"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Trading.Mode != "dry_run" && c.Trading.Mode != "live" {
		return fmt.Errorf("invalid trading mode: %s (must be 'dry_run' or 'live')", c.Trading.Mode)
	}
	if c.IsLive() && (c.Credentials.Delta.APIKey == "" || c.Credentials.Delta.APISecret == "") {
		return fmt.Errorf("live mode requires DELTA_API_KEY and DELTA_API_SECRET")
	}

	s := c.Strategy
	if s.PositionLots <= 0 || s.LotsPerUnit <= 0 {
		return fmt.Errorf("position_size_lots and lots_per_unit must be positive")
	}
	if s.MinPremium < 0 {
		return fmt.Errorf("min_premium must be non-negative")
	}
	if s.MaxSpreadPercent <= 0 || s.MaxSpreadPercent > 100 {
		return fmt.Errorf("max_spread_pct must be between 0 and 100")
	}
	for _, r := range []ScanRange{s.Primary, s.Fallback} {
		if r.Min < 1 || r.Max < r.Min {
			return fmt.Errorf("invalid scan range %s: %d-%d", r.Label, r.Min, r.Max)
		}
	}
	if _, err := utils.ParseTimeOfDay(s.ExpiryCutoff); err != nil {
		return fmt.Errorf("expiry_cutoff: %w", err)
	}

	r := c.Risk
	if r.SLMultiplier <= 1 {
		return fmt.Errorf("sl_multiplier must be greater than 1")
	}
	if r.HardCapINR <= 0 {
		return fmt.Errorf("hard_cap_inr must be positive")
	}
	if r.MonitorInterval <= 0 {
		return fmt.Errorf("monitor_interval must be positive")
	}
	if _, err := utils.ParseTimeOfDay(r.ExitTime); err != nil {
		return fmt.Errorf("exit_time: %w", err)
	}

	if c.FX.FallbackRate <= 0 {
		return fmt.Errorf("fx fallback_rate must be positive")
	}
	if c.Exchange.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive")
	}

	switch c.Phase {
	case "", "ENTRY", "EXIT":
	default:
		return fmt.Errorf("invalid PHASE %q (must be ENTRY or EXIT)", c.Phase)
	}

	return nil
}

// IsLive returns true if orders are sent to the exchange.
func (c *Config) IsLive() bool {
	return c.Trading.Mode == "live"
}

// PositionSizeUnits returns the position size per leg in underlying units (BTC).
func (c *Config) PositionSizeUnits() float64 {
	return float64(c.Strategy.PositionLots) / float64(c.Strategy.LotsPerUnit)
}

// ExitTimeOfDay returns the scheduled exit time.
func (c *Config) ExitTimeOfDay() utils.TimeOfDay {
	tod, err := utils.ParseTimeOfDay(c.Risk.ExitTime)
	if err != nil {
		return utils.TimeOfDay{Hour: 17, Minute: 15}
	}
	return tod
}

// ExpiryCutoffTimeOfDay returns the time after which the next day's expiry is traded.
func (c *Config) ExpiryCutoffTimeOfDay() utils.TimeOfDay {
	tod, err := utils.ParseTimeOfDay(c.Strategy.ExpiryCutoff)
	if err != nil {
		return utils.TimeOfDay{Hour: 17, Minute: 30}
	}
	return tod
}
