// Package trading provides strike selection, exit-risk evaluation, live
// position monitoring and the entry/exit phase orchestration for the daily
// short strangle.
package trading

import (
	"context"
	"time"

	"delta-strangler/internal/models"
)

// QuoteSource fetches the current quote of a contract.
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (*models.Quote, error)
}

// CandleSource fetches one-minute candles for a contract.
type CandleSource interface {
	Candles(ctx context.Context, symbol string, start, end time.Time) ([]models.Candle, error)
}

// SpotSource fetches the underlying spot price.
type SpotSource interface {
	SpotPrice(ctx context.Context) (float64, error)
}

// PositionBook is the authoritative position state at the exchange.
type PositionBook interface {
	Positions(ctx context.Context) ([]models.Position, error)
	ClosePosition(ctx context.Context, productID, size int) (*models.CloseResult, error)
}

// RateSource provides the USD to INR conversion rate.
type RateSource interface {
	USDINR(ctx context.Context) float64
}

// RiskParams are the exit thresholds applied to every position.
type RiskParams struct {
	SLMultiplier     float64
	HardCapINR       float64
	EarlyExitPremium float64
	// SizeUnits is the position size per leg in the underlying (BTC).
	SizeUnits float64
}

// Thresholds are the premium levels derived from an entry snapshot.
type Thresholds struct {
	SLLevel      float64
	HardCapLevel float64
}

// Thresholds computes the stop-loss and hard-cap premium levels for a
// position entered at entryCombined and converted at usdINR.
func (r RiskParams) Thresholds(entryCombined, usdINR float64) Thresholds {
	th := Thresholds{SLLevel: entryCombined * r.SLMultiplier}
	if usdINR > 0 && r.SizeUnits > 0 {
		th.HardCapLevel = r.HardCapINR/usdINR/r.SizeUnits + entryCombined
	}
	return th
}

// LossINR returns the open loss in INR at the current combined premium.
// Negative values are profits.
func (r RiskParams) LossINR(entryCombined, currentCombined, usdINR float64) float64 {
	return (currentCombined - entryCombined) * r.SizeUnits * usdINR
}

// MarketReader is the read-only market data the exit evaluator needs.
type MarketReader interface {
	QuoteSource
	CandleSource
	SpotSource
}
