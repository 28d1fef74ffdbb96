package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"delta-strangler/internal/broker"
	apperrors "delta-strangler/internal/errors"
	"delta-strangler/internal/logging"
	"delta-strangler/internal/models"
	"delta-strangler/internal/notify"
	"delta-strangler/internal/store"
	"delta-strangler/pkg/utils"
)

const settlementAsset = "USDT"

// EntryConfig holds the entry phase settings.
type EntryConfig struct {
	Underlying   string
	ExpiryCutoff utils.TimeOfDay
	Mode         models.TradingMode
	LiveWeekdays []string
	SizeLots     int
	SizeUnits    float64
	// SettleDelay is the pause between placing both legs and monitoring them.
	SettleDelay time.Duration
	Location    *time.Location
}

// EntryDeps are the collaborators of the entry phase.
type EntryDeps struct {
	Exchange  broker.Exchange
	FX        RateSource
	Scanner   *StrikeScanner
	Monitor   *PositionMonitor
	Snapshots store.SnapshotStore
	Ledger    store.Ledger
	Notifier  notify.Notifier
	Clock     utils.Clock
}

// EntryOutcome reports what the entry phase did.
type EntryOutcome struct {
	Expiry   time.Time
	Spot     float64
	Ladder   *models.StrikeLadder
	Scan     *ScanResult
	Snapshot *models.EntrySnapshot
	// OrdersPlaced is true once both legs were sold at the exchange.
	OrdersPlaced bool
	Decision     *models.ExitDecision
	Trade        *models.TradeRecord
	SkipReason   string
}

// Skipped returns true for a no-trade outcome.
func (o *EntryOutcome) Skipped() bool {
	return o.SkipReason != ""
}

// EntryPhase selects and opens the day's strangle.
type EntryPhase struct {
	cfg    EntryConfig
	deps   EntryDeps
	logger zerolog.Logger
}

// NewEntryPhase creates the entry phase.
func NewEntryPhase(cfg EntryConfig, deps EntryDeps, logger zerolog.Logger) *EntryPhase {
	if cfg.Location == nil {
		cfg.Location = utils.IndiaLocation
	}
	return &EntryPhase{
		cfg:    cfg,
		deps:   deps,
		logger: logging.WithPhase(logger, "entry"),
	}
}

// Run scans the chain for the target expiry and acts on the selected pair
// according to the trading mode. A no-trade day is a skipped outcome, not an error.
func (p *EntryPhase) Run(ctx context.Context) (*EntryOutcome, error) {
	now := p.deps.Clock.Now().In(p.cfg.Location)
	out := &EntryOutcome{Expiry: utils.TargetExpiry(now, p.cfg.ExpiryCutoff)}

	p.logger.Info().
		Str("mode", p.cfg.Mode.Label()).
		Str("expiry", out.Expiry.Format(models.DateLayout)).
		Str("weekday", now.Weekday().String()).
		Msg("Entry phase started")

	usdINR := p.deps.FX.USDINR(ctx)

	spot, err := p.deps.Exchange.SpotPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch spot price: %w", err)
	}
	out.Spot = spot

	chain, err := p.deps.Exchange.OptionChain(ctx, p.cfg.Underlying, out.Expiry)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoOptions) {
			return p.skip(ctx, out, fmt.Sprintf("no options listed for %s", out.Expiry.Format(models.DateLayout)))
		}
		return nil, fmt.Errorf("failed to fetch option chain: %w", err)
	}
	chain.SpotPrice = spot

	out.Ladder = models.NewStrikeLadder(chain)
	if out.Ladder == nil {
		return p.skip(ctx, out, "option chain has no strikes")
	}
	p.logger.Info().
		Float64("spot", spot).
		Float64("atm", out.Ladder.ATMStrike()).
		Int("strikes", len(out.Ladder.Strikes)).
		Float64("usd_inr", usdINR).
		Msg("Option chain loaded")

	out.Scan = p.deps.Scanner.SelectStrikes(out.Ladder)
	if out.Scan.Pair == nil {
		return p.skip(ctx, out, "no strike pair passed the liquidity and spread filters")
	}

	out.Snapshot = models.NewEntrySnapshot(*out.Scan.Pair, now, spot, out.Ladder.ATMStrike(), usdINR, p.cfg.Mode)

	switch {
	case p.cfg.Mode != models.ModeLive:
		if err := p.deps.Snapshots.Save(out.Snapshot); err != nil {
			return nil, fmt.Errorf("failed to save entry snapshot: %w", err)
		}
		p.logger.Info().Str("date", out.Snapshot.Date).Msg("Dry-run entry saved for the exit phase")
		p.warnNotify(p.deps.Notifier.SendEntry(ctx, out.Snapshot))
		return out, nil

	case !utils.IsOneOfWeekdays(now, p.cfg.LiveWeekdays):
		return p.skip(ctx, out, fmt.Sprintf("live orders are only placed on %v", p.cfg.LiveWeekdays))
	}

	if err := p.runLive(ctx, out); err != nil {
		return out, err
	}
	return out, nil
}

// runLive sells both legs, monitors them to a terminal transition and
// records the trade.
func (p *EntryPhase) runLive(ctx context.Context, out *EntryOutcome) error {
	snap := out.Snapshot

	if bal, err := p.deps.Exchange.WalletBalance(ctx, settlementAsset); err != nil {
		p.logger.Warn().Err(err).Msg("Wallet balance unavailable")
	} else {
		p.logger.Info().Float64("available", bal.Available).Str("asset", bal.Asset).Msg("Wallet balance")
	}

	if err := p.sell(ctx, snap.CallContract()); err != nil {
		return fmt.Errorf("call order failed: %w", err)
	}
	if err := p.sell(ctx, snap.PutContract()); err != nil {
		p.logger.Error().Err(err).Msg("Put order failed, rolling back call")
		if _, cerr := p.deps.Exchange.ClosePosition(ctx, snap.CallProductID, p.cfg.SizeLots); cerr != nil {
			p.logger.Error().Err(cerr).Str("symbol", snap.CallSymbol).Msg("Call rollback failed")
			return fmt.Errorf("put order failed and call rollback failed: %w", errors.Join(err, cerr))
		}
		return fmt.Errorf("put order failed, call rolled back: %w", err)
	}
	out.OrdersPlaced = true
	p.logger.Info().Msg("Both legs live")

	// Saved so a restarted monitor can resume the position.
	if err := p.deps.Snapshots.Save(snap); err != nil {
		p.logger.Error().Err(err).Msg("Failed to save entry snapshot")
	}
	p.warnNotify(p.deps.Notifier.SendEntry(ctx, snap))

	if err := p.deps.Clock.Sleep(ctx, p.cfg.SettleDelay); err != nil {
		p.logger.Warn().Msg("Interrupted before monitoring started")
	}

	decision, err := p.deps.Monitor.RunLiveMonitor(ctx, snap)
	if err != nil {
		return fmt.Errorf("live monitor failed: %w", err)
	}
	out.Decision = decision

	if decision.Trigger == models.TriggerInterrupted {
		p.logger.Warn().Msg("Monitor interrupted, snapshot kept for the monitor command")
		return nil
	}

	trade, err := RecordTrade(ctx, snap, decision, p.cfg.SizeUnits, p.cfg.Location, p.deps.Ledger, p.deps.Snapshots, p.deps.Notifier, p.logger)
	out.Trade = trade
	return err
}

func (p *EntryPhase) sell(ctx context.Context, leg models.OptionContract) error {
	res, err := p.deps.Exchange.PlaceOrder(ctx, models.OrderRequest{
		ProductID: leg.ProductID,
		Symbol:    leg.Symbol,
		Size:      p.cfg.SizeLots,
		Side:      models.OrderSideSell,
		Type:      models.OrderTypeMarket,
	})
	if err != nil {
		return err
	}
	p.logger.Info().Str("symbol", leg.Symbol).Str("order_id", res.OrderID).Int("lots", p.cfg.SizeLots).Msg("Leg sold")
	return nil
}

func (p *EntryPhase) skip(ctx context.Context, out *EntryOutcome, reason string) (*EntryOutcome, error) {
	out.SkipReason = reason
	p.logger.Info().Str("reason", reason).Msg("No trade today")
	p.warnNotify(p.deps.Notifier.SendSkip(ctx, reason))
	return out, nil
}

func (p *EntryPhase) warnNotify(err error) {
	if err != nil {
		p.logger.Warn().Err(err).Msg("Notification failed")
	}
}

// RecordTrade writes the ledger row for a completed strangle, clears the
// snapshot and sends the summary. Notification failures are only logged.
func RecordTrade(ctx context.Context, snap *models.EntrySnapshot, d *models.ExitDecision, sizeUnits float64, loc *time.Location,
	ledger store.Ledger, snapshots store.SnapshotStore, notifier notify.Notifier, logger zerolog.Logger) (*models.TradeRecord, error) {
	trade := BuildTradeRecord(snap, d, sizeUnits, loc)
	if err := ledger.SaveTrade(ctx, trade); err != nil {
		return trade, fmt.Errorf("failed to record trade: %w", err)
	}
	if err := snapshots.Delete(); err != nil {
		logger.Warn().Err(err).Msg("Failed to delete entry snapshot")
	}

	logger.Info().
		Str("trigger", string(trade.Trigger)).
		Float64("exit_combined", trade.ExitCombined).
		Float64("pnl_usd", trade.PnLUSD).
		Str("pnl_inr", utils.FormatIndianCurrency(trade.PnLINR)).
		Bool("manual_review", trade.ManualReview).
		Msg("Trade recorded")

	if err := notifier.SendTrade(ctx, trade, d.Warnings); err != nil {
		logger.Warn().Err(err).Msg("Notification failed")
	}
	return trade, nil
}
