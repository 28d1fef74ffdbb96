// Package store provides persistence for the entry snapshot and the trade ledger.
package store

import (
	"context"

	"delta-strangler/internal/models"
)

// SnapshotStore persists the single active entry snapshot between phases.
type SnapshotStore interface {
	Save(snap *models.EntrySnapshot) error
	// Load returns errors.ErrNoSnapshot when there is no active trade.
	Load() (*models.EntrySnapshot, error)
	Delete() error
}

// Ledger records completed trades.
type Ledger interface {
	SaveTrade(ctx context.Context, trade *models.TradeRecord) error
	ListTrades(ctx context.Context, filter TradeFilter) ([]models.TradeRecord, error)
	Summarize(ctx context.Context, filter TradeFilter) (*Summary, error)
	Close() error
}

// TradeFilter represents filters for querying trades.
// Dates are inclusive and formatted as models.DateLayout.
type TradeFilter struct {
	Mode         models.TradingMode
	StartDate    string
	EndDate      string
	ManualReview *bool
	Limit        int
}

// Summary aggregates ledger rows.
type Summary struct {
	Trades       int
	Wins         int
	Losses       int
	ManualReview int
	TotalUSD     float64
	TotalINR     float64
	BestINR      float64
	WorstINR     float64
}

// WinRate returns the percentage of winning trades.
func (s *Summary) WinRate() float64 {
	if s.Trades == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Trades) * 100
}
