package models

import "time"

// Breach classifies which risk threshold, if any, was crossed.
type Breach string

const (
	BreachNone    Breach = "NONE"
	BreachSoftSL  Breach = "SOFT_SL"
	BreachHardCap Breach = "HARD_CAP"
)

// DataSource records where the exit figures came from.
type DataSource string

const (
	SourceCandles               DataSource = "CANDLES"
	SourceLiveFallback          DataSource = "LIVE_FALLBACK"
	SourceSpotIntrinsicFallback DataSource = "SPOT_INTRINSIC_FALLBACK"
	SourceLive                  DataSource = "LIVE"
	SourceUnavailable           DataSource = "UNAVAILABLE"
)

// IsEstimate returns true for sources that do not reflect traded prices.
func (d DataSource) IsEstimate() bool {
	return d == SourceSpotIntrinsicFallback || d == SourceUnavailable
}

// ExitTrigger is the transition that ended the position.
type ExitTrigger string

const (
	TriggerTimeExit    ExitTrigger = "TIME_EXIT"
	TriggerManualExit  ExitTrigger = "MANUAL_EXIT"
	TriggerSoftSL      ExitTrigger = "SOFT_SL"
	TriggerHardCap     ExitTrigger = "HARD_CAP"
	TriggerEarlyExit   ExitTrigger = "EARLY_EXIT"
	TriggerInterrupted ExitTrigger = "INTERRUPTED"
)

// Breach maps a trigger onto the breach classification.
func (t ExitTrigger) Breach() Breach {
	switch t {
	case TriggerSoftSL:
		return BreachSoftSL
	case TriggerHardCap:
		return BreachHardCap
	default:
		return BreachNone
	}
}

// PeakResult is the worst combined premium reconstructed from minute candles.
// When Available is false every other field except Reason is zero.
type PeakResult struct {
	Available bool
	Reason    string
	Combined  float64
	CallClose float64
	PutClose  float64
	At        time.Time
	Samples   int
}

// ExitDecision is the outcome of one exit evaluation or one monitoring session.
type ExitDecision struct {
	Breach       Breach
	Trigger      ExitTrigger
	DataSource   DataSource
	// VerdictSource is the tier that cleared or confirmed the breach check.
	VerdictSource DataSource

	ExitCallPremium     float64
	ExitPutPremium      float64
	ExitCombinedPremium float64
	ExitTime            time.Time
	Reason              string

	SLLevel      float64
	HardCapLevel float64
	Peak         *PeakResult

	// RequiresManualReview flags figures that are estimates or could hide an
	// undetected intraday stop-loss.
	RequiresManualReview bool
	Warnings             []string
}

// Breached returns true if a stop-loss or hard cap fired.
func (d *ExitDecision) Breached() bool {
	return d.Breach != BreachNone
}

// Warn records a manual-review warning.
func (d *ExitDecision) Warn(msg string) {
	d.RequiresManualReview = true
	d.Warnings = append(d.Warnings, msg)
}
