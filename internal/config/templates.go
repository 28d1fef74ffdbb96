package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Delta Strangler Configuration

[exchange]
base_url = "https://api.india.delta.exchange"
# Per-request timeout; candle history gets its own
timeout = "10s"
candle_timeout = "15s"
# Client-side rate limit
requests_per_second = 5.0
burst = 5
max_retries = 3

[strategy]
underlying = "BTC"
spot_symbol = "BTCUSD"
# 1000 lots = 1 BTC per leg
position_size_lots = 1000
lots_per_unit = 1000
# Minimum best bid (USD) for a leg to be tradable
min_premium = 5.0
# Maximum bid/ask spread as percentage of the ask
max_spread_pct = 30.0
# Daily expiry rolls to tomorrow at this IST time
expiry_cutoff = "17:30"
# Strikes shown either side of ATM in the chain view
chain_display_width = 15

[strategy.primary]
min = 13
max = 15
label = "PRIMARY"

[strategy.fallback]
min = 10
max = 12
label = "FALLBACK"

[risk]
# Soft stop-loss at entry combined premium x multiplier
sl_multiplier = 2.5
# Absolute loss cap in INR
hard_cap_inr = 10000.0
# Close early once combined premium decays below this (USD)
early_exit_premium = 5.0
# Scheduled exit time (IST)
exit_time = "17:15"
monitor_interval = "30s"
exit_retry_delay = "10s"
settle_delay = "5s"

[trading]
# Trading mode: "dry_run" or "live"
mode = "dry_run"
# Orders are only sent on these weekdays in live mode
live_weekdays = ["Saturday"]

[fx]
url = "https://api.exchangerate-api.com/v4/latest/USD"
fallback_rate = 84.0
timeout = "5s"

[storage]
snapshot_path = "active_trade.json"
ledger_path = "trade_tracker.db"

[logging]
level = "info"
console = true
file = true
dir = "live_trading_logs"

[notifications]
enabled = false

[notifications.webhook]
enabled = false
url = ""

[metrics]
# e.g. ":9102"; empty disables the listener
listen_addr = ""
`

const credentialsTemplate = `# Delta Strangler Credentials
# WARNING: Keep this file secure! Do not commit to version control.
# DELTA_API_KEY / DELTA_API_SECRET in the environment take precedence.

[delta]
api_key = ""
api_secret = ""
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	// Use restricted permissions for credentials file
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}

	return nil
}

// ConfigPath returns the config.toml path inside configDir.
func ConfigPath(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}
