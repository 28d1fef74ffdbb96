package trading

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "delta-strangler/internal/errors"
	"delta-strangler/internal/models"
	"delta-strangler/internal/notify"
	"delta-strangler/pkg/utils"
)

var errUnreachable = errors.New("connection refused")

// quoteResp is one scripted reply to a quote request.
type quoteResp struct {
	ask float64
	bid float64
	err error
}

// fakeExchange is a scripted exchange. Quote replies are consumed in order
// per symbol and the last one repeats.
type fakeExchange struct {
	mu sync.Mutex

	spot    float64
	spotErr error

	chain    *models.OptionChain
	chainErr error

	quotes     map[string][]quoteResp
	quoteCalls map[string]int

	candles    map[string][]models.Candle
	candleErrs map[string]error

	positions    map[int]int
	positionsErr error
	orderErrs    map[int]error
	orders       []models.OrderRequest
	closes       []int
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		quotes:     make(map[string][]quoteResp),
		quoteCalls: make(map[string]int),
		candles:    make(map[string][]models.Candle),
		candleErrs: make(map[string]error),
		positions:  make(map[int]int),
		orderErrs:  make(map[int]error),
	}
}

func (f *fakeExchange) SpotPrice(ctx context.Context) (float64, error) {
	return f.spot, f.spotErr
}

func (f *fakeExchange) OptionChain(ctx context.Context, underlying string, expiry time.Time) (*models.OptionChain, error) {
	if f.chainErr != nil {
		return nil, f.chainErr
	}
	return f.chain, nil
}

func (f *fakeExchange) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	script, ok := f.quotes[symbol]
	if !ok || len(script) == 0 {
		return nil, apperrors.NewDataError("quote", symbol, "not listed", apperrors.ErrSymbolNotFound)
	}
	i := f.quoteCalls[symbol]
	f.quoteCalls[symbol]++
	if i >= len(script) {
		i = len(script) - 1
	}
	r := script[i]
	if r.err != nil {
		return nil, r.err
	}
	return &models.Quote{Symbol: symbol, BestBid: r.bid, BestAsk: r.ask}, nil
}

func (f *fakeExchange) Candles(ctx context.Context, symbol string, start, end time.Time) ([]models.Candle, error) {
	if err := f.candleErrs[symbol]; err != nil {
		return nil, err
	}
	c := f.candles[symbol]
	if len(c) == 0 {
		return nil, apperrors.NewDataError("candles", symbol, "no candles", nil)
	}
	return c, nil
}

func (f *fakeExchange) Positions(ctx context.Context) ([]models.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.positionsErr != nil {
		return nil, f.positionsErr
	}
	var out []models.Position
	for id, size := range f.positions {
		out = append(out, models.Position{ProductID: id, Size: size})
	}
	return out, nil
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.orderErrs[req.ProductID]; err != nil {
		return nil, err
	}
	f.orders = append(f.orders, req)
	if req.Side == models.OrderSideSell {
		f.positions[req.ProductID] -= req.Size
	} else {
		f.positions[req.ProductID] += req.Size
	}
	return &models.OrderResult{OrderID: fmt.Sprintf("ORD-%d", len(f.orders)), Status: "closed"}, nil
}

func (f *fakeExchange) ClosePosition(ctx context.Context, productID, size int) (*models.CloseResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closes = append(f.closes, productID)
	if f.positions[productID] == 0 {
		return &models.CloseResult{ProductID: productID, AlreadyClosed: true}, nil
	}
	f.positions[productID] = 0
	return &models.CloseResult{ProductID: productID, Order: &models.OrderResult{OrderID: "CLOSE", Status: "closed"}}, nil
}

func (f *fakeExchange) WalletBalance(ctx context.Context, asset string) (*models.Balance, error) {
	return &models.Balance{Asset: asset, Balance: 1000, Available: 1000}, nil
}

// fakeClock advances only when slept on.
type fakeClock struct {
	now   time.Time
	slept []time.Duration
	// cancelAfter cancels the run context after this many sleeps when positive.
	cancelAfter int
	cancel      context.CancelFunc
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	if c.cancelAfter > 0 && len(c.slept) >= c.cancelAfter && c.cancel != nil {
		c.cancel()
		return context.Canceled
	}
	return nil
}

type fixedRate float64

func (r fixedRate) USDINR(ctx context.Context) float64 {
	return float64(r)
}

// recordingNotifier captures what would have been sent.
type recordingNotifier struct {
	entries []*models.EntrySnapshot
	trades  []*models.TradeRecord
	skips   []string
}

func (n *recordingNotifier) Send(ctx context.Context, msg notify.Notification) error { return nil }

func (n *recordingNotifier) SendTrade(ctx context.Context, trade *models.TradeRecord, warnings []string) error {
	n.trades = append(n.trades, trade)
	return nil
}

func (n *recordingNotifier) SendEntry(ctx context.Context, snap *models.EntrySnapshot) error {
	n.entries = append(n.entries, snap)
	return nil
}

func (n *recordingNotifier) SendSkip(ctx context.Context, reason string) error {
	n.skips = append(n.skips, reason)
	return nil
}

func (n *recordingNotifier) SendError(ctx context.Context, err error, errContext string) error { return nil }

// ist returns a wall-clock instant in IST.
func ist(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, utils.IndiaLocation)
}

// testSnapshot is a dry-run strangle entered at 09:00 IST on Saturday 2025-03-15.
func testSnapshot() *models.EntrySnapshot {
	return &models.EntrySnapshot{
		Date:                 "2025-03-15",
		Day:                  "Saturday",
		EntryTime:            "09:00",
		Mode:                 models.ModeDryRun,
		SpotPrice:            84000,
		ATMStrike:            84000,
		USDToINRRate:         84,
		CallSymbol:           "C-BTC-87000-150325",
		PutSymbol:            "P-BTC-81000-150325",
		CallProductID:        101,
		PutProductID:         202,
		CallStrike:           87000,
		PutStrike:            81000,
		CEDistance:           15,
		PEDistance:           15,
		EntryCallPremium:     6,
		EntryPutPremium:      4,
		EntryCombinedPremium: 10,
	}
}

// candlesAt builds minute candles starting at start with the given closes.
func candlesAt(start time.Time, closes ...float64) []models.Candle {
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{Timestamp: start.Add(time.Duration(i) * time.Minute), Close: c}
	}
	return out
}

// testChain builds a chain with strikes every 1000 around atm. bid returns
// the best bid of each contract and the ask is bid*1.1.
func testChain(atm float64, each int, bid func(typ models.OptionType, dist int) float64) *models.OptionChain {
	chain := &models.OptionChain{Underlying: "BTC", SpotPrice: atm}
	for i := -each; i <= each; i++ {
		strike := atm + float64(i)*1000
		for _, typ := range []models.OptionType{models.OptionCall, models.OptionPut} {
			dist, prefix, id := i, "C", int(strike/1000)*2
			if typ == models.OptionPut {
				dist, prefix, id = -i, "P", id+1
			}
			b := bid(typ, dist)
			chain.Entries = append(chain.Entries, models.ChainEntry{
				Contract: models.OptionContract{
					Symbol:      fmt.Sprintf("%s-BTC-%.0f-150325", prefix, strike),
					StrikePrice: strike,
					Type:        typ,
					ProductID:   id,
				},
				Quote: models.Quote{BestBid: b, BestAsk: b * 1.1},
			})
		}
	}
	return chain
}
