package cli

import (
	"fmt"

	"github.com/rs/zerolog"

	"delta-strangler/internal/broker"
	"delta-strangler/internal/config"
	"delta-strangler/internal/logging"
	"delta-strangler/internal/models"
	"delta-strangler/internal/notify"
	"delta-strangler/internal/store"
	"delta-strangler/internal/trading"
	"delta-strangler/pkg/utils"
)

// App holds the application dependencies. Exchange clients and stores are
// built per command so each phase writes to its own log file.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger
	Clock     utils.Clock

	debug bool
}

// newLogger builds a logger from the logging config. An empty path logs to
// the shared rotating file.
func (a *App) newLogger(path string) zerolog.Logger {
	logger := logging.NewLoggerWithConfig(a.Config.Logging, path)
	if a.debug {
		logging.SetDebugLevel()
		logger = logger.Level(zerolog.DebugLevel)
	}
	return logger
}

// phaseLogger returns a logger writing to a per-run file for phase.
func (a *App) phaseLogger(phase string) zerolog.Logger {
	path := logging.PhaseLogPath(a.Config.Logging.Dir, phase, a.Clock.Now().In(utils.IndiaLocation))
	return a.newLogger(path)
}

func (a *App) mode() models.TradingMode {
	if a.Config.IsLive() {
		return models.ModeLive
	}
	return models.ModeDryRun
}

// deltaClient creates the Delta Exchange REST client.
func (a *App) deltaClient(logger zerolog.Logger) *broker.DeltaClient {
	ex := a.Config.Exchange
	return broker.NewDeltaClient(broker.DeltaConfig{
		BaseURL:           ex.BaseURL,
		APIKey:            a.Config.Credentials.Delta.APIKey,
		APISecret:         a.Config.Credentials.Delta.APISecret,
		SpotSymbol:        a.Config.Strategy.SpotSymbol,
		Timeout:           ex.Timeout,
		CandleTimeout:     ex.CandleTimeout,
		RequestsPerSecond: ex.RequestsPerSecond,
		Burst:             ex.Burst,
		MaxRetries:        ex.MaxRetries,
		Logger:            logger,
	})
}

// exchange returns the order-capable exchange for the configured mode.
// Dry runs read real market data and simulate orders.
func (a *App) exchange(logger zerolog.Logger) broker.Exchange {
	client := a.deltaClient(logger)
	if a.Config.IsLive() {
		return client
	}
	return broker.NewPaperBroker(broker.PaperBrokerConfig{Data: client})
}

func (a *App) fxRates(logger zerolog.Logger) *broker.FXRates {
	return broker.NewFXRates(broker.FXConfig{
		URL:          a.Config.FX.URL,
		FallbackRate: a.Config.FX.FallbackRate,
		Timeout:      a.Config.FX.Timeout,
		Logger:       logger,
	})
}

func (a *App) snapshots() *store.FileSnapshotStore {
	return store.NewFileSnapshotStore(a.Config.Storage.SnapshotPath)
}

func (a *App) openLedger() (*store.SQLiteLedger, error) {
	ledger, err := store.NewSQLiteLedger(a.Config.Storage.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	return ledger, nil
}

// notifier fans out to the webhook, when configured, and the run log.
func (a *App) notifier(logger zerolog.Logger) *notify.MultiNotifier {
	n := notify.NewMultiNotifier(a.Config.Notifications)
	n.AddChannel(notify.NewLogChannel(logger))
	return n
}

func (a *App) scanner(logger zerolog.Logger) *trading.StrikeScanner {
	s := a.Config.Strategy
	return trading.NewStrikeScanner(trading.ScannerConfig{
		MinPremium:       s.MinPremium,
		MaxSpreadPercent: s.MaxSpreadPercent,
		Primary:          trading.ScanRange{Min: s.Primary.Min, Max: s.Primary.Max, Label: s.Primary.Label},
		Fallback:         trading.ScanRange{Min: s.Fallback.Min, Max: s.Fallback.Max, Label: s.Fallback.Label},
	}, logger)
}

func (a *App) riskParams() trading.RiskParams {
	return trading.RiskParams{
		SLMultiplier:     a.Config.Risk.SLMultiplier,
		HardCapINR:       a.Config.Risk.HardCapINR,
		EarlyExitPremium: a.Config.Risk.EarlyExitPremium,
		SizeUnits:        a.Config.PositionSizeUnits(),
	}
}

func (a *App) monitor(ex broker.Exchange, logger zerolog.Logger) *trading.PositionMonitor {
	return trading.NewPositionMonitor(trading.MonitorConfig{
		Risk:     a.riskParams(),
		SizeLots: a.Config.Strategy.PositionLots,
		ExitTime: a.Config.ExitTimeOfDay(),
		Interval: a.Config.Risk.MonitorInterval,
		Location: utils.IndiaLocation,
	}, ex, ex, a.Clock, logger)
}

func (a *App) evaluator(data trading.MarketReader, logger zerolog.Logger) *trading.ExitRiskEvaluator {
	return trading.NewExitRiskEvaluator(trading.ExitRiskConfig{
		SizeUnits:        a.Config.PositionSizeUnits(),
		EarlyExitPremium: a.Config.Risk.EarlyExitPremium,
		ExitTime:         a.Config.ExitTimeOfDay(),
		RetryDelay:       a.Config.Risk.ExitRetryDelay,
		Location:         utils.IndiaLocation,
	}, data, a.Clock, logger)
}

// entryPhase wires the entry phase. The returned ledger must be closed by the caller.
func (a *App) entryPhase(logger zerolog.Logger) (*trading.EntryPhase, *store.SQLiteLedger, error) {
	ledger, err := a.openLedger()
	if err != nil {
		return nil, nil, err
	}
	ex := a.exchange(logger)
	phase := trading.NewEntryPhase(trading.EntryConfig{
		Underlying:   a.Config.Strategy.Underlying,
		ExpiryCutoff: a.Config.ExpiryCutoffTimeOfDay(),
		Mode:         a.mode(),
		LiveWeekdays: a.Config.Trading.LiveWeekdays,
		SizeLots:     a.Config.Strategy.PositionLots,
		SizeUnits:    a.Config.PositionSizeUnits(),
		SettleDelay:  a.Config.Risk.SettleDelay,
		Location:     utils.IndiaLocation,
	}, trading.EntryDeps{
		Exchange:  ex,
		FX:        a.fxRates(logger),
		Scanner:   a.scanner(logger),
		Monitor:   a.monitor(ex, logger),
		Snapshots: a.snapshots(),
		Ledger:    ledger,
		Notifier:  a.notifier(logger),
		Clock:     a.Clock,
	}, logger)
	return phase, ledger, nil
}

// exitPhase wires the exit phase. The returned ledger must be closed by the caller.
func (a *App) exitPhase(logger zerolog.Logger) (*trading.ExitPhase, *store.SQLiteLedger, error) {
	ledger, err := a.openLedger()
	if err != nil {
		return nil, nil, err
	}
	phase := trading.NewExitPhase(trading.ExitConfig{
		SLMultiplier: a.Config.Risk.SLMultiplier,
		HardCapINR:   a.Config.Risk.HardCapINR,
		SizeUnits:    a.Config.PositionSizeUnits(),
		Location:     utils.IndiaLocation,
	}, trading.ExitDeps{
		Evaluator: a.evaluator(a.deltaClient(logger), logger),
		Snapshots: a.snapshots(),
		Ledger:    ledger,
		Notifier:  a.notifier(logger),
		Clock:     a.Clock,
	}, logger)
	return phase, ledger, nil
}
