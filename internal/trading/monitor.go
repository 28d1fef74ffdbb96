package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"delta-strangler/internal/logging"
	"delta-strangler/internal/metrics"
	"delta-strangler/internal/models"
	"delta-strangler/pkg/utils"
)

// ErrMonitorExhausted is returned when a bounded monitor runs out of ticks.
var ErrMonitorExhausted = errors.New("monitor stopped before a terminal transition")

// MonitorConfig holds the live monitor settings.
type MonitorConfig struct {
	Risk     RiskParams
	SizeLots int
	ExitTime utils.TimeOfDay
	Interval time.Duration
	// MaxTicks bounds the loop when positive.
	MaxTicks int
	Location *time.Location
}

// PositionMonitor polls an open strangle until one exit transition fires.
// Positions and quotes are read fresh on every tick.
type PositionMonitor struct {
	cfg       MonitorConfig
	quotes    QuoteSource
	positions PositionBook
	clock     utils.Clock
	logger    zerolog.Logger
}

// NewPositionMonitor creates a monitor.
func NewPositionMonitor(cfg MonitorConfig, quotes QuoteSource, positions PositionBook, clock utils.Clock, logger zerolog.Logger) *PositionMonitor {
	if cfg.Location == nil {
		cfg.Location = utils.IndiaLocation
	}
	return &PositionMonitor{
		cfg:       cfg,
		quotes:    quotes,
		positions: positions,
		clock:     clock,
		logger:    logging.WithComponent(logger, "monitor"),
	}
}

// tickState is the last observed premium of both legs.
type tickState struct {
	callAsk float64
	putAsk  float64
	seen    bool
}

// RunLiveMonitor blocks until TIME_EXIT, MANUAL_EXIT, SOFT_SL, HARD_CAP or
// EARLY_EXIT fires, checked in that order on each tick. Cancelling ctx
// returns an INTERRUPTED decision without closing the legs.
func (m *PositionMonitor) RunLiveMonitor(ctx context.Context, snap *models.EntrySnapshot) (*models.ExitDecision, error) {
	entryAt, err := snap.EntryAt(m.cfg.Location)
	if err != nil {
		return nil, err
	}
	th := m.cfg.Risk.Thresholds(snap.EntryCombinedPremium, snap.USDToINRRate)
	exitAt := m.cfg.ExitTime.On(entryAt)

	m.logger.Info().
		Str("call", snap.CallSymbol).
		Str("put", snap.PutSymbol).
		Float64("entry_combined", snap.EntryCombinedPremium).
		Float64("sl_level", th.SLLevel).
		Str("exit_at", exitAt.Format(time.RFC3339)).
		Dur("interval", m.cfg.Interval).
		Msg("Live monitoring started")

	var last tickState
	for tick := 1; m.cfg.MaxTicks <= 0 || tick <= m.cfg.MaxTicks; tick++ {
		if ctx.Err() != nil {
			return m.interrupted(snap, th, last), nil
		}

		if d := m.tick(ctx, snap, th, exitAt, &last); d != nil {
			logging.LogExitDecision(m.logger, string(d.Trigger), string(d.Breach), string(d.DataSource), d.ExitCombinedPremium, d.RequiresManualReview)
			return d, nil
		}

		if err := m.clock.Sleep(ctx, m.cfg.Interval); err != nil {
			return m.interrupted(snap, th, last), nil
		}
	}
	return nil, fmt.Errorf("%w after %d ticks", ErrMonitorExhausted, m.cfg.MaxTicks)
}

// tick performs one poll and returns a decision when a transition fires.
func (m *PositionMonitor) tick(ctx context.Context, snap *models.EntrySnapshot, th Thresholds, exitAt time.Time, last *tickState) *models.ExitDecision {
	now := m.clock.Now().In(m.cfg.Location)

	if !now.Before(exitAt) {
		metrics.RecordMonitorTick(string(models.TriggerTimeExit))
		d := m.decision(models.TriggerTimeExit, th, now, fmt.Sprintf("Time Exit (%s)", m.cfg.ExitTime))
		callAsk, putAsk, ok := m.fetchAsks(ctx, snap)
		if !ok {
			d.Warn("exit quotes unavailable at scheduled exit; missing legs priced at $0")
		}
		m.fill(d, callAsk, putAsk)
		m.closeBoth(ctx, snap, d)
		return d
	}

	callAsk, putAsk, ok := m.fetchAsks(ctx, snap)
	if !ok {
		metrics.RecordMonitorTick("fetch_error")
		m.logger.Warn().Msg("Price fetch failed, retrying next tick")
		return nil
	}
	*last = tickState{callAsk: callAsk, putAsk: putAsk, seen: true}
	combined := callAsk + putAsk
	metrics.CombinedPremium.Set(combined)

	if closed, err := m.legsClosed(ctx, snap); err != nil {
		m.logger.Warn().Err(err).Msg("Position check failed")
	} else if closed {
		metrics.RecordMonitorTick(string(models.TriggerManualExit))
		d := m.decision(models.TriggerManualExit, th, now, "Manual Exit - both legs closed at exchange")
		m.fill(d, callAsk, putAsk)
		return d
	}

	lossINR := m.cfg.Risk.LossINR(snap.EntryCombinedPremium, combined, snap.USDToINRRate)

	var d *models.ExitDecision
	switch {
	case combined >= th.SLLevel:
		d = m.decision(models.TriggerSoftSL, th, now, fmt.Sprintf("SL - Combined %gx", m.cfg.Risk.SLMultiplier))
	case lossINR >= m.cfg.Risk.HardCapINR:
		d = m.decision(models.TriggerHardCap, th, now, fmt.Sprintf("Hard Cap - %s", utils.FormatIndianCurrency(m.cfg.Risk.HardCapINR)))
	case combined < m.cfg.Risk.EarlyExitPremium:
		d = m.decision(models.TriggerEarlyExit, th, now, "Early Exit - Premium decayed")
	}
	if d != nil {
		metrics.RecordMonitorTick(string(d.Trigger))
		m.fill(d, callAsk, putAsk)
		m.closeBoth(ctx, snap, d)
		return d
	}

	metrics.RecordMonitorTick("holding")
	m.logger.Info().
		Float64("call", callAsk).
		Float64("put", putAsk).
		Float64("combined", combined).
		Float64("pnl_inr", -lossINR).
		Str("exit_at", exitAt.Format(models.ClockLayout)).
		Msg("Holding")
	return nil
}

func (m *PositionMonitor) decision(trigger models.ExitTrigger, th Thresholds, now time.Time, reason string) *models.ExitDecision {
	return &models.ExitDecision{
		Breach:        trigger.Breach(),
		Trigger:       trigger,
		DataSource:    models.SourceLive,
		VerdictSource: models.SourceLive,
		ExitTime:      now,
		Reason:        reason,
		SLLevel:       th.SLLevel,
		HardCapLevel:  th.HardCapLevel,
	}
}

func (m *PositionMonitor) fill(d *models.ExitDecision, callAsk, putAsk float64) {
	d.ExitCallPremium = callAsk
	d.ExitPutPremium = putAsk
	d.ExitCombinedPremium = callAsk + putAsk
}

// interrupted builds the best-effort decision for a cancelled monitor.
func (m *PositionMonitor) interrupted(snap *models.EntrySnapshot, th Thresholds, last tickState) *models.ExitDecision {
	metrics.RecordMonitorTick(string(models.TriggerInterrupted))
	d := m.decision(models.TriggerInterrupted, th, m.clock.Now().In(m.cfg.Location), "Interrupted - legs left open")
	m.fill(d, last.callAsk, last.putAsk)
	if !last.seen {
		d.DataSource = models.SourceUnavailable
	}
	d.Warn(fmt.Sprintf("monitor interrupted; %s and %s may still be open", snap.CallSymbol, snap.PutSymbol))
	m.logger.Warn().Str("call", snap.CallSymbol).Str("put", snap.PutSymbol).Msg("Monitor interrupted, positions not closed")
	return d
}

func (m *PositionMonitor) fetchAsks(ctx context.Context, snap *models.EntrySnapshot) (float64, float64, bool) {
	callQ, err := m.quotes.Quote(ctx, snap.CallSymbol)
	if err != nil {
		m.logger.Debug().Err(err).Str("symbol", snap.CallSymbol).Msg("Quote failed")
		return 0, 0, false
	}
	putQ, err := m.quotes.Quote(ctx, snap.PutSymbol)
	if err != nil {
		m.logger.Debug().Err(err).Str("symbol", snap.PutSymbol).Msg("Quote failed")
		return callQ.BestAsk, 0, false
	}
	return callQ.BestAsk, putQ.BestAsk, true
}

// legsClosed reports whether neither leg is open at the exchange.
func (m *PositionMonitor) legsClosed(ctx context.Context, snap *models.EntrySnapshot) (bool, error) {
	positions, err := m.positions.Positions(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range positions {
		if (p.ProductID == snap.CallProductID || p.ProductID == snap.PutProductID) && p.IsOpen() {
			return false, nil
		}
	}
	return true, nil
}

// closeBoth sends closing orders for both legs. Failures are recorded on the
// decision for manual follow-up.
func (m *PositionMonitor) closeBoth(ctx context.Context, snap *models.EntrySnapshot, d *models.ExitDecision) {
	for _, leg := range []models.OptionContract{snap.CallContract(), snap.PutContract()} {
		res, err := m.positions.ClosePosition(ctx, leg.ProductID, m.cfg.SizeLots)
		if err != nil {
			m.logger.Error().Err(err).Str("symbol", leg.Symbol).Msg("Failed to close leg")
			d.Warn(fmt.Sprintf("failed to close %s: %v", leg.Symbol, err))
			continue
		}
		if res.AlreadyClosed {
			m.logger.Info().Str("symbol", leg.Symbol).Msg("Leg already flat")
			continue
		}
		m.logger.Info().Str("symbol", leg.Symbol).Str("order_id", res.Order.OrderID).Msg("Leg closed")
	}
}
