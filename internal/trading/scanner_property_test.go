package trading

import (
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"delta-strangler/internal/models"
)

func testScannerConfig() ScannerConfig {
	return ScannerConfig{
		MinPremium:       5,
		MaxSpreadPercent: 30,
		Primary:          ScanRange{Min: 13, Max: 15, Label: "primary"},
		Fallback:         ScanRange{Min: 10, Max: 12, Label: "fallback"},
	}
}

func newTestScanner() *StrikeScanner {
	return NewStrikeScanner(testScannerConfig(), zerolog.Nop())
}

func TestStrikeScanner_SelectsMinimalImbalance(t *testing.T) {
	// Calls decay 1.0 per strike from 20 at distance 13, puts 0.4 per strike
	// from 19. |call-put| is smallest at CE 14 / PE 13.
	chain := testChain(84000, 16, func(typ models.OptionType, dist int) float64 {
		if typ == models.OptionCall {
			return 20 - float64(dist-13)
		}
		return 19 - 0.4*float64(dist-13)
	})

	result := newTestScanner().SelectStrikes(models.NewStrikeLadder(chain))
	if result.Pair == nil {
		t.Fatal("expected a pair")
	}
	if result.Range != "primary" {
		t.Errorf("Range = %q, want primary", result.Range)
	}
	if result.Pair.CEDistance != 14 || result.Pair.PEDistance != 13 {
		t.Errorf("selected CE %d / PE %d, want 14 / 13", result.Pair.CEDistance, result.Pair.PEDistance)
	}
	if result.Pair.CombinedPremium != 38 {
		t.Errorf("CombinedPremium = %v, want 38", result.Pair.CombinedPremium)
	}
	if len(result.Candidates) != 9 {
		t.Errorf("scanned %d candidates, want 9", len(result.Candidates))
	}
}

func TestStrikeScanner_FirstMinimalPairWinsTies(t *testing.T) {
	chain := testChain(84000, 16, func(models.OptionType, int) float64 { return 8 })

	result := newTestScanner().SelectStrikes(models.NewStrikeLadder(chain))
	if result.Pair == nil {
		t.Fatal("expected a pair")
	}
	if result.Pair.CEDistance != 13 || result.Pair.PEDistance != 13 {
		t.Errorf("selected CE %d / PE %d, want the first scanned pair 13 / 13",
			result.Pair.CEDistance, result.Pair.PEDistance)
	}
}

func TestStrikeScanner_FallsBackToCloserRange(t *testing.T) {
	chain := testChain(84000, 16, func(_ models.OptionType, dist int) float64 {
		if dist >= 13 {
			return 2
		}
		return 7
	})

	result := newTestScanner().SelectStrikes(models.NewStrikeLadder(chain))
	if result.Pair == nil {
		t.Fatal("expected the fallback range to produce a pair")
	}
	if result.Range != "fallback" || result.Pair.ScanLabel != "fallback" {
		t.Errorf("Range = %q, label = %q, want fallback", result.Range, result.Pair.ScanLabel)
	}
	if result.Pair.CEDistance > 12 || result.Pair.PEDistance > 12 {
		t.Errorf("fallback pair outside 10-12: CE %d PE %d", result.Pair.CEDistance, result.Pair.PEDistance)
	}
	if len(result.Candidates) != 18 {
		t.Errorf("scanned %d candidates, want 9 primary + 9 fallback", len(result.Candidates))
	}
}

func TestStrikeScanner_NoTradeDay(t *testing.T) {
	chain := testChain(84000, 16, func(models.OptionType, int) float64 { return 1 })

	result := newTestScanner().SelectStrikes(models.NewStrikeLadder(chain))
	if result.Pair != nil {
		t.Fatalf("expected no pair, got CE %d PE %d", result.Pair.CEDistance, result.Pair.PEDistance)
	}
	if result.Range != "" {
		t.Errorf("Range = %q, want empty", result.Range)
	}
	for _, c := range result.Candidates {
		if c.Status != CandidateIlliquid {
			t.Errorf("candidate CE %d PE %d status %s, want %s", c.CEDistance, c.PEDistance, c.Status, CandidateIlliquid)
		}
	}
}

func TestStrikeScanner_SkipsRangeWithTooFewStrikes(t *testing.T) {
	chain := testChain(84000, 12, func(models.OptionType, int) float64 { return 9 })

	result := newTestScanner().SelectStrikes(models.NewStrikeLadder(chain))
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "primary") {
		t.Errorf("Warnings = %v, want one primary range warning", result.Warnings)
	}
	if result.Pair == nil || result.Range != "fallback" {
		t.Fatalf("expected fallback pair, got %+v", result)
	}
}

func TestStrikeScanner_ClipsPartialRange(t *testing.T) {
	// 14 strikes each side: the primary range scans distances 13-14 only.
	chain := testChain(84000, 14, func(models.OptionType, int) float64 { return 9 })

	result := newTestScanner().SelectStrikes(models.NewStrikeLadder(chain))
	if result.Pair == nil || result.Range != "primary" {
		t.Fatalf("expected primary pair, got %+v", result)
	}
	if len(result.Candidates) != 4 {
		t.Errorf("scanned %d candidates, want 4", len(result.Candidates))
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings %v", result.Warnings)
	}
}

func TestStrikeScanner_RejectsWideSpread(t *testing.T) {
	chain := testChain(84000, 16, func(models.OptionType, int) float64 { return 9 })
	// Widen every primary call except distance 15.
	for i, e := range chain.Entries {
		dist := int((e.Contract.StrikePrice - 84000) / 1000)
		if e.Contract.Type == models.OptionCall && dist >= 13 && dist < 15 {
			chain.Entries[i].Quote.BestAsk = 20
		}
	}

	result := newTestScanner().SelectStrikes(models.NewStrikeLadder(chain))
	if result.Pair == nil {
		t.Fatal("expected a pair")
	}
	if result.Pair.CEDistance != 15 {
		t.Errorf("CEDistance = %d, want 15", result.Pair.CEDistance)
	}

	wide := 0
	for _, c := range result.Candidates {
		if c.Status == CandidateWideSpread {
			wide++
		}
	}
	if wide != 6 {
		t.Errorf("%d wide-spread candidates, want 6", wide)
	}
}

func TestStrikeScanner_MissingContractIsNotSelected(t *testing.T) {
	chain := testChain(84000, 16, func(models.OptionType, int) float64 { return 9 })
	// Delist the put 13 strikes below ATM.
	kept := chain.Entries[:0]
	for _, e := range chain.Entries {
		if e.Contract.Type == models.OptionPut && e.Contract.StrikePrice == 71000 {
			continue
		}
		kept = append(kept, e)
	}
	chain.Entries = kept

	result := newTestScanner().SelectStrikes(models.NewStrikeLadder(chain))
	if result.Pair == nil {
		t.Fatal("expected a pair")
	}
	if result.Pair.PEDistance == 13 {
		t.Error("selected a put that is not listed")
	}
}

func TestStrikeScanner_EmptyLadder(t *testing.T) {
	result := newTestScanner().SelectStrikes(nil)
	if result.Pair != nil || len(result.Warnings) == 0 {
		t.Errorf("expected no pair with a warning, got %+v", result)
	}
}

// bidsChain maps 62 generated bids onto distances -15..15 for calls then puts.
func bidsChain(bids []float64) *models.OptionChain {
	return testChain(84000, 15, func(typ models.OptionType, dist int) float64 {
		i := dist + 15
		if typ == models.OptionPut {
			i += 31
		}
		return bids[i]
	})
}

// Property: a pair with either bid below the minimum premium is never selected.
func TestProperty_ScannerNeverSelectsIlliquid(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("selected legs meet the liquidity floor", prop.ForAll(
		func(bids []float64) bool {
			result := newTestScanner().SelectStrikes(models.NewStrikeLadder(bidsChain(bids)))
			if result.Pair == nil {
				for _, c := range result.Candidates {
					if c.Status == CandidateAccepted {
						return false
					}
				}
				return true
			}
			return result.Pair.CallQuote.BestBid >= 5 && result.Pair.PutQuote.BestBid >= 5
		},
		gen.SliceOfN(62, gen.Float64Range(0, 12)),
	))

	properties.TestingRun(t)
}

// Property: the selected pair has the smallest imbalance among accepted
// candidates of its range, and scanning the same chain twice agrees.
func TestProperty_ScannerDeterministicAndMinimal(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("same chain gives the same minimal pair", prop.ForAll(
		func(bids []float64) bool {
			ladder := models.NewStrikeLadder(bidsChain(bids))
			first := newTestScanner().SelectStrikes(ladder)
			second := newTestScanner().SelectStrikes(ladder)

			if (first.Pair == nil) != (second.Pair == nil) {
				return false
			}
			if first.Pair == nil {
				return true
			}
			if *first.Pair != *second.Pair {
				return false
			}
			for _, c := range first.Candidates {
				if c.Range == first.Range && c.Status == CandidateAccepted && c.Imbalance < first.Pair.Imbalance {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(62, gen.Float64Range(0, 12)),
	))

	properties.TestingRun(t)
}
