package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"delta-strangler/internal/models"
)

// PaperBroker implements Exchange for dry-run trading. Market data comes from
// a real source; orders and positions are simulated in memory.
type PaperBroker struct {
	// Real exchange for market data
	data MarketData

	// Simulated state
	positions map[int]*models.Position
	balance   models.Balance

	orderCounter int

	mu sync.RWMutex
}

// PaperBrokerConfig holds configuration for paper broker.
type PaperBrokerConfig struct {
	Data           MarketData
	InitialBalance float64
}

// NewPaperBroker creates a new paper trading broker.
func NewPaperBroker(cfg PaperBrokerConfig) *PaperBroker {
	initialBalance := cfg.InitialBalance
	if initialBalance == 0 {
		initialBalance = 10000 // USDT
	}

	return &PaperBroker{
		data:      cfg.Data,
		positions: make(map[int]*models.Position),
		balance: models.Balance{
			Asset:     "USDT",
			Balance:   initialBalance,
			Available: initialBalance,
		},
	}
}

// SpotPrice fetches the underlying price from the data source.
func (p *PaperBroker) SpotPrice(ctx context.Context) (float64, error) {
	if p.data == nil {
		return 0, fmt.Errorf("no data source configured")
	}
	return p.data.SpotPrice(ctx)
}

// OptionChain fetches the option chain from the data source.
func (p *PaperBroker) OptionChain(ctx context.Context, underlying string, expiry time.Time) (*models.OptionChain, error) {
	if p.data == nil {
		return nil, fmt.Errorf("no data source configured")
	}
	return p.data.OptionChain(ctx, underlying, expiry)
}

// Quote fetches a live quote from the data source.
func (p *PaperBroker) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	if p.data == nil {
		return nil, fmt.Errorf("no data source configured")
	}
	return p.data.Quote(ctx, symbol)
}

// Candles fetches minute candles from the data source.
func (p *PaperBroker) Candles(ctx context.Context, symbol string, start, end time.Time) ([]models.Candle, error) {
	if p.data == nil {
		return nil, fmt.Errorf("no data source configured")
	}
	return p.data.Candles(ctx, symbol, start, end)
}

// Positions returns simulated open positions.
func (p *PaperBroker) Positions(ctx context.Context) ([]models.Position, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	positions := make([]models.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		if pos.IsOpen() {
			positions = append(positions, *pos)
		}
	}
	return positions, nil
}

// PlaceOrder simulates a fill at market.
func (p *PaperBroker) PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResult, error) {
	if req.Size <= 0 {
		return nil, fmt.Errorf("order size must be positive, got %d", req.Size)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.orderCounter++
	orderID := fmt.Sprintf("PAPER_%d_%d", time.Now().Unix(), p.orderCounter)

	pos, ok := p.positions[req.ProductID]
	if !ok {
		pos = &models.Position{ProductID: req.ProductID, Symbol: req.Symbol}
		p.positions[req.ProductID] = pos
	}
	if req.Side == models.OrderSideBuy {
		pos.Size += req.Size
	} else {
		pos.Size -= req.Size
	}

	return &models.OrderResult{OrderID: orderID, Status: "closed"}, nil
}

// ClosePosition flattens a simulated position. A flat product is already closed.
func (p *PaperBroker) ClosePosition(ctx context.Context, productID, size int) (*models.CloseResult, error) {
	p.mu.RLock()
	pos, ok := p.positions[productID]
	var current models.Position
	if ok {
		current = *pos
	}
	p.mu.RUnlock()

	if !ok || !current.IsOpen() {
		return &models.CloseResult{ProductID: productID, AlreadyClosed: true}, nil
	}

	qty := abs(current.Size)
	if size > 0 && size < qty {
		qty = size
	}
	order, err := p.PlaceOrder(ctx, models.OrderRequest{
		ProductID: productID,
		Symbol:    current.Symbol,
		Size:      qty,
		Side:      closeSide(current.Size),
		Type:      models.OrderTypeMarket,
	})
	if err != nil {
		return nil, err
	}
	return &models.CloseResult{ProductID: productID, Order: order}, nil
}

// WalletBalance returns the simulated balance.
func (p *PaperBroker) WalletBalance(ctx context.Context, asset string) (*models.Balance, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if asset != p.balance.Asset {
		return nil, fmt.Errorf("paper wallet holds %s only", p.balance.Asset)
	}
	b := p.balance
	return &b, nil
}
