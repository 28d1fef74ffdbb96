package broker

import (
	"context"
	"testing"
	"time"

	"delta-strangler/internal/models"
)

type stubData struct {
	spot float64
}

func (s stubData) SpotPrice(ctx context.Context) (float64, error) { return s.spot, nil }
func (s stubData) OptionChain(ctx context.Context, u string, e time.Time) (*models.OptionChain, error) {
	return &models.OptionChain{Underlying: u, Expiry: e, SpotPrice: s.spot}, nil
}
func (s stubData) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	return &models.Quote{Symbol: symbol, BestBid: 1, BestAsk: 2}, nil
}
func (s stubData) Candles(ctx context.Context, symbol string, start, end time.Time) ([]models.Candle, error) {
	return nil, nil
}

func TestPaperBroker_SellAndClose(t *testing.T) {
	ctx := context.Background()
	p := NewPaperBroker(PaperBrokerConfig{Data: stubData{spot: 65000}})

	for _, pid := range []int{101, 102} {
		if _, err := p.PlaceOrder(ctx, models.OrderRequest{ProductID: pid, Size: 1000, Side: models.OrderSideSell}); err != nil {
			t.Fatalf("PlaceOrder(%d) error = %v", pid, err)
		}
	}

	positions, _ := p.Positions(ctx)
	if len(positions) != 2 {
		t.Fatalf("positions = %d, want 2", len(positions))
	}
	for _, pos := range positions {
		if pos.Size != -1000 {
			t.Errorf("position %d size = %d, want -1000", pos.ProductID, pos.Size)
		}
	}

	res, err := p.ClosePosition(ctx, 101, 1000)
	if err != nil || res.AlreadyClosed {
		t.Fatalf("ClosePosition(101) = %+v, %v", res, err)
	}
	res, err = p.ClosePosition(ctx, 101, 1000)
	if err != nil || !res.AlreadyClosed {
		t.Errorf("second close should be already closed, got %+v, %v", res, err)
	}

	positions, _ = p.Positions(ctx)
	if len(positions) != 1 || positions[0].ProductID != 102 {
		t.Errorf("open positions = %+v, want only 102", positions)
	}
}

func TestPaperBroker_DelegatesMarketData(t *testing.T) {
	p := NewPaperBroker(PaperBrokerConfig{Data: stubData{spot: 64000}})
	spot, err := p.SpotPrice(context.Background())
	if err != nil || spot != 64000 {
		t.Errorf("SpotPrice() = %v, %v", spot, err)
	}

	empty := NewPaperBroker(PaperBrokerConfig{})
	if _, err := empty.Quote(context.Background(), "X"); err == nil {
		t.Error("expected error without a data source")
	}
}

func TestPaperBroker_WalletBalance(t *testing.T) {
	p := NewPaperBroker(PaperBrokerConfig{InitialBalance: 2500})
	bal, err := p.WalletBalance(context.Background(), "USDT")
	if err != nil || bal.Available != 2500 {
		t.Errorf("WalletBalance() = %+v, %v", bal, err)
	}
	if _, err := p.WalletBalance(context.Background(), "BTC"); err == nil {
		t.Error("expected error for unknown asset")
	}
}
