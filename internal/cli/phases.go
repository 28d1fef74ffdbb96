package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"delta-strangler/internal/broker"
	apperrors "delta-strangler/internal/errors"
	"delta-strangler/internal/metrics"
	"delta-strangler/internal/models"
	"delta-strangler/internal/trading"
	"delta-strangler/pkg/utils"
)

func addPhaseCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the phase named by the PHASE environment variable",
		Long: `Run the ENTRY or EXIT phase, chosen by PHASE (default ENTRY).

Schedule ENTRY at 09:00 IST and EXIT at 17:15 IST.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch app.Config.Phase {
			case "EXIT":
				return runExit(cmd, app)
			default:
				return runEntry(cmd, app)
			}
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "entry",
		Short: "Select today's strangle and open it",
		Long: `Scan the option chain for the target expiry and select the most
balanced far OTM call/put pair.

Dry run saves the entry snapshot for the exit phase. Live mode sells both
legs on the configured weekdays and monitors them until an exit fires.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntry(cmd, app)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "exit",
		Short: "Settle today's dry-run strangle",
		Long: `Evaluate the saved entry snapshot against the intraday worst case,
record the trade in the ledger and clear the snapshot.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExit(cmd, app)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "monitor",
		Short: "Resume monitoring the active strangle",
		Long: `Poll the legs of the saved snapshot until a stop-loss, hard cap,
early exit, manual close or the scheduled exit fires.

Use this after an interrupted live entry. Interrupting the monitor leaves
both legs open.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(cmd, app)
		},
	})
}

func runEntry(cmd *cobra.Command, app *App) error {
	output := NewOutput(cmd)
	logger := app.phaseLogger("entry")

	phase, ledger, err := app.entryPhase(logger)
	if err != nil {
		return err
	}
	defer ledger.Close()

	if app.Config.IsLive() {
		defer stopMetrics(startMetrics(app, logger))
	}

	out, err := phase.Run(cmd.Context())
	if err != nil {
		logger.Error().Err(err).Msg("Entry phase failed")
		reportFailure(cmd.Context(), app, logger, "entry phase", err)
		if out != nil && out.OrdersPlaced {
			output.Error("Both legs were sold but the run did not finish; check open positions")
		}
		return err
	}

	if output.IsJSON() {
		return output.JSON(newEntryView(out))
	}
	renderEntry(output, out)
	return nil
}

func runExit(cmd *cobra.Command, app *App) error {
	output := NewOutput(cmd)
	logger := app.phaseLogger("exit")

	phase, ledger, err := app.exitPhase(logger)
	if err != nil {
		return err
	}
	defer ledger.Close()

	out, err := phase.Run(cmd.Context())
	switch {
	case errors.Is(err, apperrors.ErrNoSnapshot):
		logger.Info().Msg("No active trade, nothing to exit")
		output.Warning("No active trade, nothing to exit")
		return nil
	case errors.Is(err, apperrors.ErrStaleSnapshot):
		output.Warning("Discarded stale snapshot: %v", err)
		return nil
	case err != nil:
		logger.Error().Err(err).Msg("Exit phase failed")
		reportFailure(cmd.Context(), app, logger, "exit phase", err)
		return err
	}

	if output.IsJSON() {
		return output.JSON(map[string]interface{}{
			"decision": out.Decision,
			"trade":    out.Trade,
		})
	}
	renderDecision(output, out.Decision)
	renderTrade(output, out.Trade)
	return nil
}

func runMonitor(cmd *cobra.Command, app *App) error {
	ctx := cmd.Context()
	output := NewOutput(cmd)
	logger := app.phaseLogger("monitor")

	snapshots := app.snapshots()
	snap, err := snapshots.Load()
	if err != nil {
		if errors.Is(err, apperrors.ErrNoSnapshot) {
			output.Warning("No active trade to monitor")
			return nil
		}
		return err
	}
	if snap.IsStaleOn(app.Clock.Now().In(utils.IndiaLocation)) {
		logger.Warn().Str("snapshot_date", snap.Date).Msg("Snapshot is from an earlier day; the exit time has passed")
	}

	ex := app.exchange(logger)
	if paper, ok := ex.(*broker.PaperBroker); ok {
		if err := openPaperLegs(ctx, paper, snap, app.Config.Strategy.PositionLots); err != nil {
			return err
		}
	}

	ledger, err := app.openLedger()
	if err != nil {
		return err
	}
	defer ledger.Close()

	defer stopMetrics(startMetrics(app, logger))

	decision, err := app.monitor(ex, logger).RunLiveMonitor(ctx, snap)
	if err != nil {
		reportFailure(ctx, app, logger, "monitor", err)
		return err
	}
	if decision.Trigger == models.TriggerInterrupted {
		output.Warning("Monitoring interrupted; legs left open and snapshot kept")
		renderDecision(output, decision)
		return nil
	}

	trade, err := trading.RecordTrade(ctx, snap, decision, app.Config.PositionSizeUnits(), utils.IndiaLocation,
		ledger, snapshots, app.notifier(logger), logger)
	if err != nil {
		return err
	}
	if output.IsJSON() {
		return output.JSON(map[string]interface{}{"decision": decision, "trade": trade})
	}
	renderDecision(output, decision)
	renderTrade(output, trade)
	return nil
}

// reportFailure pushes a failed run to the notification channels. The send
// outlives a cancelled run context.
func reportFailure(ctx context.Context, app *App, logger zerolog.Logger, where string, err error) {
	if nerr := app.notifier(logger).SendError(context.WithoutCancel(ctx), err, where); nerr != nil {
		logger.Warn().Err(nerr).Msg("Failed to send error notification")
	}
}

// openPaperLegs recreates the short legs of a dry-run snapshot on the paper book.
func openPaperLegs(ctx context.Context, paper *broker.PaperBroker, snap *models.EntrySnapshot, lots int) error {
	for _, leg := range []models.OptionContract{snap.CallContract(), snap.PutContract()} {
		_, err := paper.PlaceOrder(ctx, models.OrderRequest{
			ProductID: leg.ProductID,
			Symbol:    leg.Symbol,
			Size:      lots,
			Side:      models.OrderSideSell,
			Type:      models.OrderTypeMarket,
		})
		if err != nil {
			return fmt.Errorf("opening paper leg %s: %w", leg.Symbol, err)
		}
	}
	return nil
}

type metricsServer interface {
	Shutdown(ctx context.Context) error
}

func startMetrics(app *App, logger zerolog.Logger) metricsServer {
	srv := metrics.Serve(app.Config.Metrics.ListenAddr)
	if srv == nil {
		return nil
	}
	logger.Info().Str("addr", app.Config.Metrics.ListenAddr).Msg("Serving metrics")
	return srv
}

func stopMetrics(srv metricsServer) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

// entryView is the JSON form of an entry outcome.
type entryView struct {
	Expiry       string                `json:"expiry"`
	Spot         float64               `json:"spot"`
	Skipped      bool                  `json:"skipped"`
	SkipReason   string                `json:"skip_reason,omitempty"`
	Range        string                `json:"range,omitempty"`
	Warnings     []string              `json:"warnings,omitempty"`
	Snapshot     *models.EntrySnapshot `json:"snapshot,omitempty"`
	OrdersPlaced bool                  `json:"orders_placed"`
	Decision     *models.ExitDecision  `json:"decision,omitempty"`
	Trade        *models.TradeRecord   `json:"trade,omitempty"`
}

func newEntryView(out *trading.EntryOutcome) entryView {
	v := entryView{
		Expiry:       out.Expiry.Format(models.DateLayout),
		Spot:         out.Spot,
		Skipped:      out.Skipped(),
		SkipReason:   out.SkipReason,
		OrdersPlaced: out.OrdersPlaced,
		Decision:     out.Decision,
		Trade:        out.Trade,
	}
	if !v.Skipped {
		v.Snapshot = out.Snapshot
	}
	if out.Scan != nil {
		v.Range = out.Scan.Range
		v.Warnings = out.Scan.Warnings
	}
	return v
}

func renderEntry(output *Output, out *trading.EntryOutcome) {
	output.Bold("Entry - expiry %s, spot %s", out.Expiry.Format(models.DateLayout), utils.FormatUSD(out.Spot))
	if out.Scan != nil {
		for _, w := range out.Scan.Warnings {
			output.Warning("  %s", w)
		}
	}
	if out.Skipped() {
		output.Warning("No trade: %s", out.SkipReason)
		return
	}

	snap := out.Snapshot
	output.Printf("  Mode:      %s\n", snap.Mode.Label())
	output.Printf("  Range:     %s\n", out.Scan.Range)
	output.Printf("  Call:      %s  bid %.2f  (%s)\n", snap.CallSymbol, snap.EntryCallPremium, FormatDistance(snap.CEDistance))
	output.Printf("  Put:       %s  bid %.2f  (%s)\n", snap.PutSymbol, snap.EntryPutPremium, FormatDistance(-snap.PEDistance))
	output.Printf("  Combined:  %.2f\n", snap.EntryCombinedPremium)
	output.Printf("  USD/INR:   %.2f\n", snap.USDToINRRate)

	if out.Decision != nil {
		output.Println()
		renderDecision(output, out.Decision)
	}
	if out.Trade != nil {
		renderTrade(output, out.Trade)
	}
}

func renderDecision(output *Output, d *models.ExitDecision) {
	output.Printf("Exit:        %s %s\n", output.Trigger(d.Trigger), output.Source(d.DataSource))
	output.Printf("  Reason:    %s\n", d.Reason)
	output.Printf("  Premium:   %.2f (call %.2f, put %.2f)\n", d.ExitCombinedPremium, d.ExitCallPremium, d.ExitPutPremium)
	if d.SLLevel > 0 {
		output.Printf("  SL Level:  %.2f\n", d.SLLevel)
	}
	if d.HardCapLevel > 0 {
		output.Printf("  Hard Cap:  %.2f\n", d.HardCapLevel)
	}
	if d.Peak != nil {
		if d.Peak.Available {
			output.Printf("  Peak:      %.2f at %s (%d minutes)\n", d.Peak.Combined, d.Peak.At.Format(models.ClockLayout), d.Peak.Samples)
		} else {
			output.Printf("  Peak:      unavailable (%s)\n", d.Peak.Reason)
		}
	}
	if d.RequiresManualReview {
		output.Warning("  Manual review required:")
		for _, w := range d.Warnings {
			output.Warning("    - %s", w)
		}
	}
}

func renderTrade(output *Output, t *models.TradeRecord) {
	if t == nil {
		return
	}
	output.Println()
	output.Bold("Trade recorded")
	output.Printf("  %s %s  %s -> %s (%s)\n", t.Date, t.Day, t.EntryTime, t.ExitTime, t.Duration)
	output.Printf("  Strikes:   %s / %s\n", FormatStrike(t.CallStrike), FormatStrike(t.PutStrike))
	output.Printf("  Premium:   %.2f -> %.2f\n", t.EntryCombined, t.ExitCombined)
	output.Printf("  P&L:       %s  %s  %s\n", output.PnL(t.PnLINR), FormatPnLUSD(t.PnLUSD), utils.FormatPercent(t.PnLPercent))
	if t.ManualReview {
		output.Warning("  Flagged for manual review (%s)", strings.ToLower(string(t.DataSource)))
	}
}
