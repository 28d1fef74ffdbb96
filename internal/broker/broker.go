// Package broker provides exchange integration interfaces and implementations.
package broker

import (
	"context"
	"time"

	"delta-strangler/internal/models"
)

// MarketData defines the public market-data capabilities of an exchange.
type MarketData interface {
	// SpotPrice returns the current price of the underlying.
	SpotPrice(ctx context.Context) (float64, error)
	// OptionChain returns every listed call and put for the expiry with quotes.
	OptionChain(ctx context.Context, underlying string, expiry time.Time) (*models.OptionChain, error)
	// Quote returns the best bid/ask for a single contract.
	Quote(ctx context.Context, symbol string) (*models.Quote, error)
	// Candles returns one-minute candles in [start, end]. An empty result is
	// reported as errors.ErrDataUnavailable.
	Candles(ctx context.Context, symbol string, start, end time.Time) ([]models.Candle, error)
}

// Account defines the authenticated trading capabilities of an exchange.
type Account interface {
	Positions(ctx context.Context) ([]models.Position, error)
	PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResult, error)
	// ClosePosition flattens the product. Closing a flat product succeeds
	// with AlreadyClosed set.
	ClosePosition(ctx context.Context, productID, size int) (*models.CloseResult, error)
	WalletBalance(ctx context.Context, asset string) (*models.Balance, error)
}

// Exchange is the full exchange surface.
type Exchange interface {
	MarketData
	Account
}

// closeSide returns the order side that flattens a position of the given size.
func closeSide(size int) models.OrderSide {
	if size > 0 {
		return models.OrderSideSell
	}
	return models.OrderSideBuy
}

// findPosition returns the position for productID, if any.
func findPosition(positions []models.Position, productID int) (models.Position, bool) {
	for _, p := range positions {
		if p.ProductID == productID {
			return p, true
		}
	}
	return models.Position{}, false
}
