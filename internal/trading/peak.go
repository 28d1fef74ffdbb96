package trading

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"delta-strangler/internal/logging"
	"delta-strangler/internal/models"
)

// IntradayPeakFinder reconstructs the worst combined premium of a strangle
// from one-minute candles of both legs.
type IntradayPeakFinder struct {
	candles CandleSource
	logger  zerolog.Logger
}

// NewIntradayPeakFinder creates a peak finder.
func NewIntradayPeakFinder(candles CandleSource, logger zerolog.Logger) *IntradayPeakFinder {
	return &IntradayPeakFinder{
		candles: candles,
		logger:  logging.WithComponent(logger, "peak_finder"),
	}
}

// FindPeak returns the minute in [start, end] at which call close plus put
// close was highest. Any fetch failure or an empty overlap yields an
// unavailable result, never a zero peak.
func (f *IntradayPeakFinder) FindPeak(ctx context.Context, callSymbol, putSymbol string, start, end time.Time) models.PeakResult {
	start = start.Truncate(time.Minute)
	end = end.Truncate(time.Minute)
	if end.Before(start) {
		return unavailable(fmt.Sprintf("empty window %s to %s", start.Format(time.RFC3339), end.Format(time.RFC3339)))
	}

	callCandles, err := f.candles.Candles(ctx, callSymbol, start, end)
	if err != nil {
		f.logger.Warn().Err(err).Str("symbol", callSymbol).Msg("Call candles unavailable")
		return unavailable(fmt.Sprintf("call candles: %v", err))
	}
	putCandles, err := f.candles.Candles(ctx, putSymbol, start, end)
	if err != nil {
		f.logger.Warn().Err(err).Str("symbol", putSymbol).Msg("Put candles unavailable")
		return unavailable(fmt.Sprintf("put candles: %v", err))
	}

	peak := PeakOf(callCandles, putCandles, start, end)
	if !peak.Available {
		f.logger.Warn().Str("reason", peak.Reason).Msg("No intraday peak")
		return peak
	}

	f.logger.Info().
		Float64("combined", peak.Combined).
		Float64("call", peak.CallClose).
		Float64("put", peak.PutClose).
		Str("at", peak.At.Format(models.ClockLayout)).
		Int("samples", peak.Samples).
		Msg("Intraday peak found")
	return peak
}

// PeakOf scans the minutes present in both candle sets within [start, end]
// and returns the maximum combined close. The earliest minute wins a tie.
func PeakOf(call, put []models.Candle, start, end time.Time) models.PeakResult {
	if len(call) == 0 || len(put) == 0 {
		return unavailable("no candles for one or both legs")
	}

	callByMinute := byMinute(call, start, end)
	putByMinute := byMinute(put, start, end)

	var minutes []int64
	for ts := range callByMinute {
		if _, ok := putByMinute[ts]; ok {
			minutes = append(minutes, ts)
		}
	}
	if len(minutes) == 0 {
		return unavailable("no overlapping minutes between legs")
	}
	sort.Slice(minutes, func(i, j int) bool { return minutes[i] < minutes[j] })

	peak := models.PeakResult{Available: true, Samples: len(minutes)}
	for i, ts := range minutes {
		c, p := callByMinute[ts], putByMinute[ts]
		if i == 0 || c+p > peak.Combined {
			peak.Combined = c + p
			peak.CallClose = c
			peak.PutClose = p
			peak.At = time.Unix(ts, 0).In(start.Location())
		}
	}
	return peak
}

func byMinute(candles []models.Candle, start, end time.Time) map[int64]float64 {
	out := make(map[int64]float64, len(candles))
	for _, c := range candles {
		t := c.Timestamp.Truncate(time.Minute)
		if !start.IsZero() && t.Before(start) {
			continue
		}
		if !end.IsZero() && t.After(end) {
			continue
		}
		out[t.Unix()] = c.Close
	}
	return out
}

func unavailable(reason string) models.PeakResult {
	return models.PeakResult{Reason: reason}
}
