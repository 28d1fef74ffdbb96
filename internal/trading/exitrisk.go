package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"delta-strangler/internal/logging"
	"delta-strangler/internal/metrics"
	"delta-strangler/internal/models"
	"delta-strangler/pkg/utils"
)

// ExitRiskConfig holds the evaluator settings that do not vary per call.
type ExitRiskConfig struct {
	SizeUnits        float64
	EarlyExitPremium float64
	ExitTime         utils.TimeOfDay
	// RetryDelay is the pause before re-fetching exit quotes that failed.
	RetryDelay time.Duration
	Location   *time.Location
}

// ExitRiskEvaluator decides how a strangle held until the scheduled exit
// actually ended. It checks for an intraday stop-loss through three data
// tiers and prices the time exit when none fired.
type ExitRiskEvaluator struct {
	cfg    ExitRiskConfig
	data   MarketReader
	peaks  *IntradayPeakFinder
	clock  utils.Clock
	logger zerolog.Logger
}

// NewExitRiskEvaluator creates an evaluator.
func NewExitRiskEvaluator(cfg ExitRiskConfig, data MarketReader, clock utils.Clock, logger zerolog.Logger) *ExitRiskEvaluator {
	if cfg.Location == nil {
		cfg.Location = utils.IndiaLocation
	}
	return &ExitRiskEvaluator{
		cfg:    cfg,
		data:   data,
		peaks:  NewIntradayPeakFinder(data, logger),
		clock:  clock,
		logger: logging.WithComponent(logger, "exit_risk"),
	}
}

// EvaluateExitRisk produces the exit decision for snap. A breach found by
// any tier ends the evaluation with the breach level as the exit premium.
// Without a breach the time exit is priced from live asks.
func (e *ExitRiskEvaluator) EvaluateExitRisk(ctx context.Context, snap *models.EntrySnapshot, slMultiplier, hardCapINR float64) (*models.ExitDecision, error) {
	entryAt, err := snap.EntryAt(e.cfg.Location)
	if err != nil {
		return nil, err
	}

	risk := RiskParams{
		SLMultiplier:     slMultiplier,
		HardCapINR:       hardCapINR,
		EarlyExitPremium: e.cfg.EarlyExitPremium,
		SizeUnits:        e.cfg.SizeUnits,
	}
	th := risk.Thresholds(snap.EntryCombinedPremium, snap.USDToINRRate)

	d := &models.ExitDecision{
		Breach:       models.BreachNone,
		SLLevel:      th.SLLevel,
		HardCapLevel: th.HardCapLevel,
	}

	e.logger.Info().
		Str("call", snap.CallSymbol).
		Str("put", snap.PutSymbol).
		Float64("entry_combined", snap.EntryCombinedPremium).
		Float64("sl_level", th.SLLevel).
		Float64("hard_cap_level", th.HardCapLevel).
		Msg("Evaluating exit risk")

	end := e.cfg.ExitTime.On(entryAt)
	if now := e.clock.Now().In(e.cfg.Location); now.Before(end) {
		end = now
	}

	if !e.checkBreach(ctx, snap, entryAt, end, th, slMultiplier, hardCapINR, d) {
		e.priceTimeExit(ctx, snap, risk, d)
	}

	metrics.RecordExitVerdict(string(d.Breach), string(d.VerdictSource))
	logging.LogExitDecision(e.logger, string(d.Trigger), string(d.Breach), string(d.DataSource), d.ExitCombinedPremium, d.RequiresManualReview)
	return d, nil
}

// checkBreach runs the candle, live-quote and spot-intrinsic tiers in order
// and reports whether a breach was found.
func (e *ExitRiskEvaluator) checkBreach(ctx context.Context, snap *models.EntrySnapshot, start, end time.Time, th Thresholds, slMultiplier, hardCapINR float64, d *models.ExitDecision) bool {
	peak := e.peaks.FindPeak(ctx, snap.CallSymbol, snap.PutSymbol, start, end)
	d.Peak = &peak
	if peak.Available {
		d.VerdictSource = models.SourceCandles
		at := peak.At.In(e.cfg.Location)
		switch {
		case peak.Combined >= th.SLLevel:
			e.attribute(d, snap, models.TriggerSoftSL, th.SLLevel, at,
				fmt.Sprintf("SL - Combined %gx (intraday @ %s)", slMultiplier, at.Format(models.ClockLayout)))
			return true
		case th.HardCapLevel > 0 && peak.Combined >= th.HardCapLevel:
			e.attribute(d, snap, models.TriggerHardCap, th.HardCapLevel, at,
				fmt.Sprintf("Hard Cap - %s (intraday @ %s)", utils.FormatIndianCurrency(hardCapINR), at.Format(models.ClockLayout)))
			return true
		}
		return false
	}

	e.logger.Warn().Str("reason", peak.Reason).Msg("Candle check unavailable, trying live quotes")
	if breached, ok := e.checkLive(ctx, snap, th, slMultiplier, d); ok {
		return breached
	}

	e.logger.Warn().Msg("Live quotes unavailable, estimating from spot intrinsic value")
	if breached, ok := e.checkIntrinsic(ctx, snap, th, slMultiplier, d); ok {
		return breached
	}

	d.VerdictSource = models.SourceUnavailable
	d.Warn("stop-loss could not be verified from candles, live quotes or spot; P&L may be unreliable")
	return false
}

// attribute records a candle breach at the threshold level, split across the
// legs by their share of the entry premium.
func (e *ExitRiskEvaluator) attribute(d *models.ExitDecision, snap *models.EntrySnapshot, trigger models.ExitTrigger, level float64, at time.Time, reason string) {
	ratio := snap.CallRatio()
	d.Breach = trigger.Breach()
	d.Trigger = trigger
	d.DataSource = models.SourceCandles
	d.ExitCombinedPremium = level
	d.ExitCallPremium = round2(level * ratio)
	d.ExitPutPremium = round2(level * (1 - ratio))
	d.ExitTime = at
	d.Reason = reason
}

// checkLive compares live asks against the stop-loss only. The second result
// is false when the tier could not produce a verdict.
func (e *ExitRiskEvaluator) checkLive(ctx context.Context, snap *models.EntrySnapshot, th Thresholds, slMultiplier float64, d *models.ExitDecision) (bool, bool) {
	callQ, err := e.data.Quote(ctx, snap.CallSymbol)
	if err != nil {
		e.logger.Warn().Err(err).Str("symbol", snap.CallSymbol).Msg("Live call quote unavailable")
		return false, false
	}
	putQ, err := e.data.Quote(ctx, snap.PutSymbol)
	if err != nil {
		e.logger.Warn().Err(err).Str("symbol", snap.PutSymbol).Msg("Live put quote unavailable")
		return false, false
	}

	callAsk, putAsk := callQ.BestAsk, putQ.BestAsk
	if callAsk == 0 && putAsk == 0 {
		e.logger.Warn().Msg("Live asks are zero for both legs, contracts likely delisted")
		return false, false
	}

	d.VerdictSource = models.SourceLiveFallback
	combined := callAsk + putAsk
	if combined < th.SLLevel {
		e.logger.Info().Float64("combined", combined).Msg("Live fallback clear of stop-loss")
		return false, true
	}

	now := e.clock.Now().In(e.cfg.Location)
	d.Breach = models.BreachSoftSL
	d.Trigger = models.TriggerSoftSL
	d.DataSource = models.SourceLiveFallback
	d.ExitCallPremium = callAsk
	d.ExitPutPremium = putAsk
	d.ExitCombinedPremium = combined
	d.ExitTime = now
	d.Reason = fmt.Sprintf("SL - Combined %gx (live fallback @ %s)", slMultiplier, now.Format(models.ClockLayout))
	return true, true
}

// checkIntrinsic estimates the premium from settlement spot and compares it
// against the stop-loss. Every outcome of this tier needs manual review.
func (e *ExitRiskEvaluator) checkIntrinsic(ctx context.Context, snap *models.EntrySnapshot, th Thresholds, slMultiplier float64, d *models.ExitDecision) (bool, bool) {
	spot, err := e.data.SpotPrice(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Spot price unavailable")
		return false, false
	}

	callVal := snap.CallContract().Intrinsic(spot)
	putVal := snap.PutContract().Intrinsic(spot)
	estimate := callVal + putVal
	d.VerdictSource = models.SourceSpotIntrinsicFallback

	e.logger.Info().
		Float64("spot", spot).
		Float64("call_intrinsic", callVal).
		Float64("put_intrinsic", putVal).
		Msg("Spot intrinsic estimate")

	if estimate < th.SLLevel {
		d.Warn(fmt.Sprintf("stop-loss checked against spot intrinsic $%.2f only; an intraday breach may be undetected", estimate))
		return false, true
	}

	now := e.clock.Now().In(e.cfg.Location)
	d.Breach = models.BreachSoftSL
	d.Trigger = models.TriggerSoftSL
	d.DataSource = models.SourceSpotIntrinsicFallback
	d.ExitCallPremium = round2(callVal)
	d.ExitPutPremium = round2(putVal)
	d.ExitCombinedPremium = round2(estimate)
	d.ExitTime = now
	d.Reason = fmt.Sprintf("SL - Combined %gx (estimated from spot $%.2f)", slMultiplier, spot)
	d.Warn("stop-loss breach estimated from settlement spot; ignores time value and any higher intraday spike")
	return true, true
}

// priceTimeExit fills the exit premium for a position that reached the
// scheduled exit without a breach.
func (e *ExitRiskEvaluator) priceTimeExit(ctx context.Context, snap *models.EntrySnapshot, risk RiskParams, d *models.ExitDecision) {
	callAsk, putAsk, ok := e.fetchAsks(ctx, snap)
	if !ok {
		e.logger.Warn().Dur("delay", e.cfg.RetryDelay).Msg("Exit quotes incomplete, retrying")
		if err := e.clock.Sleep(ctx, e.cfg.RetryDelay); err == nil {
			callAsk, putAsk, ok = e.fetchAsks(ctx, snap)
		}
	}
	if !ok {
		d.Warn("exit quotes unavailable after retry; missing legs priced at $0")
	}

	d.DataSource = models.SourceLive
	if callAsk == 0 && putAsk == 0 {
		e.zeroPremiumGuard(ctx, snap, d, &callAsk, &putAsk)
	}

	combined := callAsk + putAsk
	d.ExitCallPremium = round2(callAsk)
	d.ExitPutPremium = round2(putAsk)
	d.ExitCombinedPremium = round2(combined)
	d.ExitTime = e.clock.Now().In(e.cfg.Location)

	if d.Trigger != "" {
		return
	}
	if combined < risk.EarlyExitPremium {
		d.Trigger = models.TriggerEarlyExit
		d.Reason = "Early Exit - Premium decayed"
		return
	}
	d.Trigger = models.TriggerTimeExit
	d.Reason = fmt.Sprintf("Time Exit (%s)", e.cfg.ExitTime)
}

// zeroPremiumGuard replaces a $0/$0 live reading with the spot intrinsic
// estimate. Exactly zero is a clean expiry; anything else needs review.
func (e *ExitRiskEvaluator) zeroPremiumGuard(ctx context.Context, snap *models.EntrySnapshot, d *models.ExitDecision, callAsk, putAsk *float64) {
	spot, err := e.data.SpotPrice(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Exit premium is zero and spot is unavailable")
		d.DataSource = models.SourceUnavailable
		d.Warn("exit premium read $0 and settlement spot is unavailable; verify the exit manually")
		return
	}

	*callAsk = snap.CallContract().Intrinsic(spot)
	*putAsk = snap.PutContract().Intrinsic(spot)
	d.DataSource = models.SourceSpotIntrinsicFallback

	if *callAsk+*putAsk == 0 {
		e.logger.Info().Float64("spot", spot).Msg("Both legs expired out of the money")
		d.Trigger = models.TriggerTimeExit
		d.Reason = "Time Exit - Options Expired OTM (full premium kept)"
		return
	}
	d.Warn(fmt.Sprintf("live exit premium read $0 but spot $%.2f implies intrinsic $%.2f; possible undetected stop-loss",
		spot, *callAsk+*putAsk))
}

// fetchAsks returns the best ask of each leg. A failed leg reads as zero and
// clears ok.
func (e *ExitRiskEvaluator) fetchAsks(ctx context.Context, snap *models.EntrySnapshot) (float64, float64, bool) {
	ok := true
	ask := func(symbol string) float64 {
		q, err := e.data.Quote(ctx, symbol)
		if err != nil {
			e.logger.Warn().Err(err).Str("symbol", symbol).Msg("Exit quote unavailable")
			ok = false
			return 0
		}
		return q.BestAsk
	}
	callAsk := ask(snap.CallSymbol)
	putAsk := ask(snap.PutSymbol)
	return callAsk, putAsk, ok
}
