package models

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the calendar date format used in snapshots and the ledger.
	DateLayout = "2006-01-02"
	// ClockLayout is the wall-clock format used for entry and exit times.
	ClockLayout = "15:04"
)

// EntrySnapshot is the frozen record of a placed or simulated strangle.
// It is written once at entry and consumed by the exit phase.
type EntrySnapshot struct {
	Date          string      `json:"date"`
	Day           string      `json:"day"`
	EntryTime     string      `json:"entry_time"`
	Mode          TradingMode `json:"mode"`
	SpotPrice     float64     `json:"spot_price"`
	ATMStrike     float64     `json:"atm_strike"`
	USDToINRRate  float64     `json:"usd_to_inr_rate"`
	CallSymbol    string      `json:"call_symbol"`
	PutSymbol     string      `json:"put_symbol"`
	CallProductID int         `json:"call_product_id"`
	PutProductID  int         `json:"put_product_id"`
	CallStrike    float64     `json:"call_strike"`
	PutStrike     float64     `json:"put_strike"`
	CEDistance    int         `json:"ce_distance"`
	PEDistance    int         `json:"pe_distance"`

	EntryCallPremium     float64 `json:"entry_call_premium"`
	EntryPutPremium      float64 `json:"entry_put_premium"`
	EntryCombinedPremium float64 `json:"entry_combined_premium"`
}

// NewEntrySnapshot freezes a selected pair at the given entry instant.
func NewEntrySnapshot(pair StrikePair, enteredAt time.Time, spot, atm, usdINR float64, mode TradingMode) *EntrySnapshot {
	return &EntrySnapshot{
		Date:                 enteredAt.Format(DateLayout),
		Day:                  enteredAt.Weekday().String(),
		EntryTime:            enteredAt.Format(ClockLayout),
		Mode:                 mode,
		SpotPrice:            spot,
		ATMStrike:            atm,
		USDToINRRate:         usdINR,
		CallSymbol:           pair.Call.Symbol,
		PutSymbol:            pair.Put.Symbol,
		CallProductID:        pair.Call.ProductID,
		PutProductID:         pair.Put.ProductID,
		CallStrike:           pair.Call.StrikePrice,
		PutStrike:            pair.Put.StrikePrice,
		CEDistance:           pair.CEDistance,
		PEDistance:           pair.PEDistance,
		EntryCallPremium:     pair.CallQuote.BestBid,
		EntryPutPremium:      pair.PutQuote.BestBid,
		EntryCombinedPremium: pair.CombinedPremium,
	}
}

// Validate checks that the snapshot carries everything the exit phase needs.
func (s *EntrySnapshot) Validate() error {
	if _, err := time.Parse(DateLayout, s.Date); err != nil {
		return fmt.Errorf("invalid snapshot date %q: %w", s.Date, err)
	}
	if _, err := time.Parse(ClockLayout, s.EntryTime); err != nil {
		return fmt.Errorf("invalid snapshot entry time %q: %w", s.EntryTime, err)
	}
	if s.CallSymbol == "" || s.PutSymbol == "" {
		return fmt.Errorf("snapshot is missing leg symbols")
	}
	if s.USDToINRRate <= 0 {
		return fmt.Errorf("snapshot exchange rate must be positive, got %v", s.USDToINRRate)
	}
	return nil
}

// EntryAt returns the entry instant in loc.
func (s *EntrySnapshot) EntryAt(loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+ClockLayout, s.Date+" "+s.EntryTime, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing entry time: %w", err)
	}
	return t, nil
}

// IsStaleOn reports whether the snapshot was taken on a different calendar day than t.
func (s *EntrySnapshot) IsStaleOn(t time.Time) bool {
	return s.Date != t.Format(DateLayout)
}

// CallContract returns the call leg.
func (s *EntrySnapshot) CallContract() OptionContract {
	return OptionContract{Symbol: s.CallSymbol, StrikePrice: s.CallStrike, Type: OptionCall, ProductID: s.CallProductID}
}

// PutContract returns the put leg.
func (s *EntrySnapshot) PutContract() OptionContract {
	return OptionContract{Symbol: s.PutSymbol, StrikePrice: s.PutStrike, Type: OptionPut, ProductID: s.PutProductID}
}

// CallRatio returns the call share of the entry premium, 0.5 when unknown.
func (s *EntrySnapshot) CallRatio() float64 {
	if s.EntryCombinedPremium == 0 {
		return 0.5
	}
	return s.EntryCallPremium / s.EntryCombinedPremium
}
