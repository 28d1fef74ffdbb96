package models

import (
	"math"
	"sort"
	"time"
)

// OptionType is the contract type of an option.
type OptionType string

const (
	OptionCall OptionType = "call_options"
	OptionPut  OptionType = "put_options"
)

// OptionContract identifies a listed option for a given expiry.
type OptionContract struct {
	Symbol      string
	StrikePrice float64
	Type        OptionType
	ProductID   int
}

// ChainEntry is a contract together with its quote in the option chain snapshot.
type ChainEntry struct {
	Contract OptionContract
	Quote    Quote
}

// OptionChain is the option chain snapshot for one expiry.
type OptionChain struct {
	Underlying string
	Expiry     time.Time
	SpotPrice  float64
	Entries    []ChainEntry
}

// StrikeLadder indexes an option chain by strike.
// Strikes is sorted ascending and ATMIndex points at the strike nearest spot.
type StrikeLadder struct {
	Strikes  []float64
	ATMIndex int
	Calls    map[float64]ChainEntry
	Puts     map[float64]ChainEntry
}

// NewStrikeLadder builds a ladder from the chain. Returns nil if the chain is empty.
func NewStrikeLadder(chain *OptionChain) *StrikeLadder {
	if chain == nil || len(chain.Entries) == 0 {
		return nil
	}

	ladder := &StrikeLadder{
		Calls: make(map[float64]ChainEntry),
		Puts:  make(map[float64]ChainEntry),
	}

	seen := make(map[float64]bool)
	for _, e := range chain.Entries {
		strike := e.Contract.StrikePrice
		switch e.Contract.Type {
		case OptionCall:
			ladder.Calls[strike] = e
		case OptionPut:
			ladder.Puts[strike] = e
		default:
			continue
		}
		if !seen[strike] {
			seen[strike] = true
			ladder.Strikes = append(ladder.Strikes, strike)
		}
	}
	if len(ladder.Strikes) == 0 {
		return nil
	}
	sort.Float64s(ladder.Strikes)

	// Lower strike wins a tie.
	best := math.Inf(1)
	for i, s := range ladder.Strikes {
		if d := math.Abs(s - chain.SpotPrice); d < best {
			best = d
			ladder.ATMIndex = i
		}
	}

	return ladder
}

// ATMStrike returns the at-the-money strike.
func (l *StrikeLadder) ATMStrike() float64 {
	return l.Strikes[l.ATMIndex]
}

// CallsAvailable returns the number of strikes above ATM.
func (l *StrikeLadder) CallsAvailable() int {
	return len(l.Strikes) - l.ATMIndex - 1
}

// PutsAvailable returns the number of strikes below ATM.
func (l *StrikeLadder) PutsAvailable() int {
	return l.ATMIndex
}

// CallAt returns the call entry n strikes above ATM.
func (l *StrikeLadder) CallAt(n int) (ChainEntry, bool) {
	i := l.ATMIndex + n
	if n < 0 || i >= len(l.Strikes) {
		return ChainEntry{}, false
	}
	e, ok := l.Calls[l.Strikes[i]]
	if !ok {
		e.Contract = OptionContract{StrikePrice: l.Strikes[i], Type: OptionCall}
	}
	return e, ok
}

// PutAt returns the put entry n strikes below ATM.
func (l *StrikeLadder) PutAt(n int) (ChainEntry, bool) {
	i := l.ATMIndex - n
	if n < 0 || i < 0 {
		return ChainEntry{}, false
	}
	e, ok := l.Puts[l.Strikes[i]]
	if !ok {
		e.Contract = OptionContract{StrikePrice: l.Strikes[i], Type: OptionPut}
	}
	return e, ok
}

// StrikePair is the strangle selected by the scanner.
// CombinedPremium is always CallQuote.BestBid + PutQuote.BestBid.
type StrikePair struct {
	Call            OptionContract
	Put             OptionContract
	CallQuote       Quote
	PutQuote        Quote
	CEDistance      int
	PEDistance      int
	CombinedPremium float64
	Imbalance       float64
	ScanLabel       string
}

// NewStrikePair creates a pair and derives its combined premium and imbalance.
func NewStrikePair(call, put ChainEntry, ceDist, peDist int, label string) StrikePair {
	return StrikePair{
		Call:            call.Contract,
		Put:             put.Contract,
		CallQuote:       call.Quote,
		PutQuote:        put.Quote,
		CEDistance:      ceDist,
		PEDistance:      peDist,
		CombinedPremium: call.Quote.BestBid + put.Quote.BestBid,
		Imbalance:       math.Abs(call.Quote.BestBid - put.Quote.BestBid),
		ScanLabel:       label,
	}
}

// Intrinsic returns the in-the-money value of the contract at the given spot.
func (c OptionContract) Intrinsic(spot float64) float64 {
	if c.Type == OptionPut {
		return math.Max(0, c.StrikePrice-spot)
	}
	return math.Max(0, spot-c.StrikePrice)
}
