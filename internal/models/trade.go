package models

import "time"

// TradeRecord is one ledger row for a completed strangle.
type TradeRecord struct {
	ID         string
	Date       string
	Day        string
	EntryTime  string
	ExitTime   string
	Mode       TradingMode
	SpotPrice  float64
	ATMStrike  float64
	CallStrike float64
	PutStrike  float64
	CEDistance int
	PEDistance int

	EntryCall     float64
	EntryPut      float64
	EntryCombined float64
	ExitCall      float64
	ExitPut       float64
	ExitCombined  float64

	PnLUSD     float64
	PnLINR     float64
	PnLPercent float64

	ExitReason   string
	Trigger      ExitTrigger
	Breach       Breach
	DataSource   DataSource
	ManualReview bool
	Duration     string
	CreatedAt    time.Time

	// CumulativePnLINR is the running ledger total up to and including this row.
	// Populated on read.
	CumulativePnLINR float64
}

// IsProfit returns true when the trade closed at or above break-even.
func (t *TradeRecord) IsProfit() bool {
	return t.PnLUSD >= 0
}
