package trading

import (
	"fmt"

	"github.com/rs/zerolog"

	"delta-strangler/internal/logging"
	"delta-strangler/internal/metrics"
	"delta-strangler/internal/models"
)

// ScanRange is an inclusive range of OTM distances scanned on both sides.
type ScanRange struct {
	Min   int
	Max   int
	Label string
}

// ScannerConfig holds the strike selection filters.
type ScannerConfig struct {
	MinPremium       float64
	MaxSpreadPercent float64
	Primary          ScanRange
	Fallback         ScanRange
}

// CandidateStatus is the verdict on one scanned pair.
type CandidateStatus string

const (
	CandidateAccepted   CandidateStatus = "accepted"
	CandidateMissing    CandidateStatus = "missing"
	CandidateIlliquid   CandidateStatus = "below_min_premium"
	CandidateWideSpread CandidateStatus = "wide_spread"
)

// Candidate is one scanned (call distance, put distance) pair.
type Candidate struct {
	Range      string
	CEDistance int
	PEDistance int
	CallStrike float64
	PutStrike  float64
	CallBid    float64
	PutBid     float64
	Imbalance  float64
	Status     CandidateStatus
}

// ScanResult is the outcome of strike selection. Pair is nil on a no-trade day.
type ScanResult struct {
	Pair       *models.StrikePair
	Range      string
	Candidates []Candidate
	Warnings   []string
}

// StrikeScanner selects the most balanced liquid strangle from a strike ladder.
type StrikeScanner struct {
	cfg    ScannerConfig
	logger zerolog.Logger
}

// NewStrikeScanner creates a scanner.
func NewStrikeScanner(cfg ScannerConfig, logger zerolog.Logger) *StrikeScanner {
	return &StrikeScanner{
		cfg:    cfg,
		logger: logging.WithComponent(logger, "scanner"),
	}
}

// SelectStrikes scans the primary range and then the fallback range.
// A nil Pair means neither range produced a tradable strangle.
func (s *StrikeScanner) SelectStrikes(ladder *models.StrikeLadder) *ScanResult {
	result := &ScanResult{}
	if ladder == nil {
		result.Warnings = append(result.Warnings, "option chain is empty")
		metrics.RecordScan("")
		return result
	}

	for _, r := range []ScanRange{s.cfg.Primary, s.cfg.Fallback} {
		pair, candidates, warning := s.Scan(ladder, r)
		result.Candidates = append(result.Candidates, candidates...)
		if warning != "" {
			result.Warnings = append(result.Warnings, warning)
		}
		if pair != nil {
			result.Pair = pair
			result.Range = r.Label
			break
		}
		s.logger.Info().Str("range", r.Label).Msg("No valid pair in range")
	}

	metrics.RecordScan(result.Range)
	return result
}

// Scan evaluates every pair in one range. Call distances form the outer loop
// and the first pair with the smallest imbalance wins.
func (s *StrikeScanner) Scan(ladder *models.StrikeLadder, r ScanRange) (*models.StrikePair, []Candidate, string) {
	maxCE, maxPE := ladder.CallsAvailable(), ladder.PutsAvailable()
	if maxCE < r.Min || maxPE < r.Min {
		warning := fmt.Sprintf("%s range skipped: need %d strikes each side of ATM, have %d calls and %d puts",
			r.Label, r.Min, maxCE, maxPE)
		s.logger.Warn().Str("range", r.Label).Int("calls", maxCE).Int("puts", maxPE).Msg("Not enough strikes for range")
		return nil, nil, warning
	}

	var (
		best       *models.StrikePair
		candidates []Candidate
	)
	for ce := r.Min; ce <= min(r.Max, maxCE); ce++ {
		for pe := r.Min; pe <= min(r.Max, maxPE); pe++ {
			call, callOK := ladder.CallAt(ce)
			put, putOK := ladder.PutAt(pe)

			c := Candidate{
				Range:      r.Label,
				CEDistance: ce,
				PEDistance: pe,
				CallStrike: call.Contract.StrikePrice,
				PutStrike:  put.Contract.StrikePrice,
				CallBid:    call.Quote.BestBid,
				PutBid:     put.Quote.BestBid,
			}
			c.Imbalance = abs(c.CallBid - c.PutBid)
			c.Status = s.classify(call, put, callOK && putOK)
			candidates = append(candidates, c)
			logging.LogScanCandidate(s.logger, ce, pe, c.CallBid, c.PutBid, string(c.Status))

			if c.Status != CandidateAccepted {
				continue
			}
			if best == nil || c.Imbalance < best.Imbalance {
				pair := models.NewStrikePair(call, put, ce, pe, r.Label)
				best = &pair
			}
		}
	}

	if best != nil {
		s.logger.Info().
			Str("range", r.Label).
			Str("call", best.Call.Symbol).
			Str("put", best.Put.Symbol).
			Float64("combined", best.CombinedPremium).
			Float64("imbalance", best.Imbalance).
			Msg("Strike pair selected")
	}
	return best, candidates, ""
}

func (s *StrikeScanner) classify(call, put models.ChainEntry, listed bool) CandidateStatus {
	if !listed {
		return CandidateMissing
	}
	if call.Quote.BestBid < s.cfg.MinPremium || put.Quote.BestBid < s.cfg.MinPremium {
		return CandidateIlliquid
	}
	if call.Quote.SpreadPercent() > s.cfg.MaxSpreadPercent || put.Quote.SpreadPercent() > s.cfg.MaxSpreadPercent {
		return CandidateWideSpread
	}
	return CandidateAccepted
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
