package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "delta-strangler/internal/errors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DELTA_API_KEY", "DELTA_API_SECRET", "TRADING_MODE", "PHASE"} {
		t.Setenv(k, "")
	}
}

func TestLoad_CreatesTemplatesAndUsesDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Errorf("config template not written: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, "credentials.toml"))
	if err != nil {
		t.Fatalf("credentials template not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("credentials perms = %v, want 0600", info.Mode().Perm())
	}

	if cfg.Strategy.Primary.Min != 13 || cfg.Strategy.Primary.Max != 15 {
		t.Errorf("primary range = %d-%d, want 13-15", cfg.Strategy.Primary.Min, cfg.Strategy.Primary.Max)
	}
	if cfg.Strategy.Fallback.Min != 10 || cfg.Strategy.Fallback.Max != 12 {
		t.Errorf("fallback range = %d-%d, want 10-12", cfg.Strategy.Fallback.Min, cfg.Strategy.Fallback.Max)
	}
	if cfg.Risk.SLMultiplier != 2.5 {
		t.Errorf("sl multiplier = %v, want 2.5", cfg.Risk.SLMultiplier)
	}
	if cfg.Risk.MonitorInterval != 30*time.Second {
		t.Errorf("monitor interval = %v, want 30s", cfg.Risk.MonitorInterval)
	}
	if cfg.PositionSizeUnits() != 1.0 {
		t.Errorf("PositionSizeUnits() = %v, want 1", cfg.PositionSizeUnits())
	}
	if cfg.Phase != "ENTRY" {
		t.Errorf("Phase = %q, want ENTRY", cfg.Phase)
	}
	if cfg.IsLive() {
		t.Error("default mode should be dry_run")
	}
}

func TestLoad_TemplateRoundTrip(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	first, err := Load(dir)
	if err != nil {
		t.Fatalf("first Load() error = %v", err)
	}
	second, err := Load(dir)
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}

	if first.Risk != second.Risk {
		t.Errorf("risk config differs after template reload: %+v vs %+v", first.Risk, second.Risk)
	}
	if second.Exchange.Timeout != 10*time.Second {
		t.Errorf("exchange timeout = %v, want 10s", second.Exchange.Timeout)
	}
	if len(second.Trading.LiveWeekdays) != 1 || second.Trading.LiveWeekdays[0] != "Saturday" {
		t.Errorf("live weekdays = %v, want [Saturday]", second.Trading.LiveWeekdays)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	t.Setenv("DELTA_API_KEY", "key")
	t.Setenv("DELTA_API_SECRET", "secret")
	t.Setenv("TRADING_MODE", "live")
	t.Setenv("PHASE", "exit")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Credentials.Delta.APIKey != "key" || cfg.Credentials.Delta.APISecret != "secret" {
		t.Errorf("credentials not overridden: %+v", cfg.Credentials.Delta)
	}
	if !cfg.IsLive() {
		t.Error("TRADING_MODE=live should enable live mode")
	}
	if cfg.Phase != "EXIT" {
		t.Errorf("Phase = %q, want EXIT", cfg.Phase)
	}
}

func TestLoad_LiveWithoutCredentialsFails(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRADING_MODE", "live")

	_, err := Load(t.TempDir())
	if !errors.Is(err, apperrors.ErrConfigInvalid) {
		t.Errorf("Load() error = %v, want ErrConfigInvalid", err)
	}
}

func TestLoad_ReadsConfigFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	content := `
[risk]
sl_multiplier = 3.0
exit_time = "16:45"

[strategy.primary]
min = 8
max = 9
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Risk.SLMultiplier != 3.0 {
		t.Errorf("sl multiplier = %v, want 3.0", cfg.Risk.SLMultiplier)
	}
	if got := cfg.ExitTimeOfDay(); got.Hour != 16 || got.Minute != 45 {
		t.Errorf("ExitTimeOfDay() = %v, want 16:45", got)
	}
	if cfg.Strategy.Primary.Min != 8 || cfg.Strategy.Primary.Max != 9 {
		t.Errorf("primary range = %d-%d, want 8-9", cfg.Strategy.Primary.Min, cfg.Strategy.Primary.Max)
	}
	// Untouched keys keep their defaults.
	if cfg.Risk.HardCapINR != 10000 {
		t.Errorf("hard cap = %v, want default 10000", cfg.Risk.HardCapINR)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad mode", func(c *Config) { c.Trading.Mode = "paper" }, true},
		{"inverted range", func(c *Config) { c.Strategy.Primary.Min = 16 }, true},
		{"multiplier too low", func(c *Config) { c.Risk.SLMultiplier = 1 }, true},
		{"bad exit time", func(c *Config) { c.Risk.ExitTime = "25:00" }, true},
		{"zero fx fallback", func(c *Config) { c.FX.FallbackRate = 0 }, true},
		{"bad phase", func(c *Config) { c.Phase = "MONITOR" }, true},
		{"spread over 100", func(c *Config) { c.Strategy.MaxSpreadPercent = 150 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
