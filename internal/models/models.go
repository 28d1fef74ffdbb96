// Package models provides domain models for the strangle trader.
package models

import (
	"time"
)

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "market_order"
	OrderTypeLimit  OrderType = "limit_order"
)

// TradingMode represents whether orders reach the exchange.
type TradingMode string

const (
	ModeDryRun TradingMode = "dry_run"
	ModeLive   TradingMode = "live"
)

// Label returns the ledger label for the mode.
func (m TradingMode) Label() string {
	if m == ModeLive {
		return "LIVE"
	}
	return "DRY RUN"
}

// Quote is the best bid/ask of a single contract at a point in time.
// All prices are in USD.
type Quote struct {
	Symbol    string
	BestBid   float64
	BestAsk   float64
	Timestamp time.Time
}

// SpreadPercent returns (ask-bid)/ask as a percentage.
// A quote without an ask is treated as 100% wide.
func (q Quote) SpreadPercent() float64 {
	if q.BestAsk <= 0 {
		return 100
	}
	return (q.BestAsk - q.BestBid) / q.BestAsk * 100
}

// Candle is a one-minute bar for a single contract.
type Candle struct {
	Timestamp time.Time
	Close     float64
}

// Position is an open position as reported by the exchange.
type Position struct {
	ProductID int
	Symbol    string
	Size      int
}

// IsOpen returns true when the position carries a non-zero size.
func (p Position) IsOpen() bool {
	return p.Size != 0
}

// Balance represents the settlement-asset wallet balance.
type Balance struct {
	Asset     string
	Balance   float64
	Available float64
}
