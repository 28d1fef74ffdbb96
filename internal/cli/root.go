// Package cli provides the command-line interface for the strangle trader.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"delta-strangler/internal/config"
	"delta-strangler/internal/logging"
	"delta-strangler/pkg/utils"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2025-03-15"
)

// NewRootCmd creates the root command for the CLI. Configuration is loaded
// from --config (or the default directory) before any subcommand runs.
func NewRootCmd(logger zerolog.Logger) *cobra.Command {
	app := &App{
		Logger: logger,
		Clock:  utils.SystemClock{},
	}

	rootCmd := &cobra.Command{
		Use:   "strangler",
		Short: "BTC daily short strangle on Delta Exchange India",
		Long: `strangler sells a far out-of-the-money BTC call and put on the daily
expiry and manages the position to a stop-loss, hard cap or timed exit.

The ENTRY phase scans the option chain for the most balanced pair; the EXIT
phase settles a dry-run position by reconstructing the intraday worst case.
Live mode sells both legs and monitors them until an exit fires.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return app.load(cmd)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/delta-strangler)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	addPhaseCommands(rootCmd, app)
	rootCmd.AddCommand(newChainCmd(app))
	rootCmd.AddCommand(newLedgerCmd(app))

	return rootCmd
}

// load reads the configuration and rebuilds the logger from it.
func (a *App) load(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("config")
	if dir == "" {
		dir = config.DefaultConfigDir()
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	a.Config = cfg
	a.ConfigDir = dir
	a.debug, _ = cmd.Flags().GetBool("debug")
	a.Logger = a.newLogger("")
	a.Logger.Debug().Str("config_dir", dir).Str("mode", cfg.Trading.Mode).Msg("Configuration loaded")
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("strangler v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the strangle configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				redacted := *app.Config
				redacted.Credentials = config.Credentials{}
				return output.JSON(redacted)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := config.ConfigPath(app.ConfigDir)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	s, r := cfg.Strategy, cfg.Risk

	output.Bold("Trading")
	output.Printf("  Mode:             %s\n", cfg.Trading.Mode)
	output.Printf("  Live Weekdays:    %v\n", cfg.Trading.LiveWeekdays)
	output.Printf("  Phase:            %s\n", cfg.Phase)
	output.Println()

	output.Bold("Strategy")
	output.Printf("  Underlying:       %s (%s)\n", s.Underlying, s.SpotSymbol)
	output.Printf("  Position:         %d lots (%g %s per leg)\n", s.PositionLots, cfg.PositionSizeUnits(), s.Underlying)
	output.Printf("  Min Premium:      $%.2f\n", s.MinPremium)
	output.Printf("  Max Spread:       %.0f%%\n", s.MaxSpreadPercent)
	output.Printf("  Scan Ranges:      %s %d-%d, %s %d-%d\n",
		s.Primary.Label, s.Primary.Min, s.Primary.Max, s.Fallback.Label, s.Fallback.Min, s.Fallback.Max)
	output.Printf("  Expiry Cutoff:    %s IST\n", s.ExpiryCutoff)
	output.Println()

	output.Bold("Risk")
	output.Printf("  Stop-Loss:        %gx entry premium\n", r.SLMultiplier)
	output.Printf("  Hard Cap:         %s\n", utils.FormatIndianCurrency(r.HardCapINR))
	output.Printf("  Early Exit Below: $%.2f\n", r.EarlyExitPremium)
	output.Printf("  Exit Time:        %s IST\n", r.ExitTime)
	output.Printf("  Monitor Interval: %s\n", r.MonitorInterval)
	output.Println()

	output.Bold("Storage")
	output.Printf("  Snapshot:         %s\n", cfg.Storage.SnapshotPath)
	output.Printf("  Ledger:           %s\n", cfg.Storage.LedgerPath)
	output.Printf("  Logs:             %s\n", cfg.Logging.Dir)
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Enabled:          %v\n", cfg.Notifications.Enabled)
	output.Printf("  Webhook:          %v\n", cfg.Notifications.Webhook.Enabled)
	if cfg.Metrics.ListenAddr != "" {
		output.Printf("  Metrics:          %s\n", cfg.Metrics.ListenAddr)
	}
	output.Printf("  Credentials:      %s\n", credentialStatus(cfg.Credentials))
}

func credentialStatus(c config.Credentials) string {
	if c.Delta.APIKey == "" {
		return "not configured"
	}
	return fmt.Sprintf("api key %s", logging.MaskCredential(c.Delta.APIKey))
}
