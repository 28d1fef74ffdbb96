package broker

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	apperrors "delta-strangler/internal/errors"
	"delta-strangler/internal/logging"
	"delta-strangler/internal/metrics"
	"delta-strangler/internal/models"
	"delta-strangler/pkg/utils"
)

// DeltaClient implements Exchange against the Delta Exchange India REST API.
type DeltaClient struct {
	baseURL       string
	apiKey        string
	apiSecret     string
	spotSymbol    string
	timeout       time.Duration
	candleTimeout time.Duration
	httpClient    *http.Client
	limiter       *rate.Limiter
	retry         utils.RetryConfig
	logger        zerolog.Logger
	now           func() time.Time
}

// DeltaConfig holds configuration for the Delta client.
type DeltaConfig struct {
	BaseURL           string
	APIKey            string
	APISecret         string
	SpotSymbol        string
	Timeout           time.Duration
	CandleTimeout     time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	HTTPClient        *http.Client
	Logger            zerolog.Logger
}

// NewDeltaClient creates a new Delta Exchange client.
func NewDeltaClient(cfg DeltaConfig) *DeltaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.india.delta.exchange"
	}
	if cfg.SpotSymbol == "" {
		cfg.SpotSymbol = "BTCUSD"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CandleTimeout <= 0 {
		cfg.CandleTimeout = 15 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	retry := utils.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}
	retry.Retryable = apperrors.IsRetryable

	return &DeltaClient{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		apiSecret:     cfg.APISecret,
		spotSymbol:    cfg.SpotSymbol,
		timeout:       cfg.Timeout,
		candleTimeout: cfg.CandleTimeout,
		httpClient:    cfg.HTTPClient,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		retry:         retry,
		logger:        logging.WithComponent(cfg.Logger, "delta"),
		now:           time.Now,
	}
}

// envelope is the common Delta response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    string          `json:"code"`
		Context json.RawMessage `json:"context"`
	} `json:"error"`
}

// flexFloat accepts a JSON number, a numeric string, or null.
type flexFloat struct {
	decimal.Decimal
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		f.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("parsing price %q: %w", s, err)
	}
	f.Decimal = d
	return nil
}

// Float returns the value as float64.
func (f flexFloat) Float() float64 {
	v, _ := f.Decimal.Float64()
	return v
}

type tickerResult struct {
	Symbol       string    `json:"symbol"`
	ProductID    int       `json:"product_id"`
	ContractType string    `json:"contract_type"`
	StrikePrice  flexFloat `json:"strike_price"`
	SpotPrice    flexFloat `json:"spot_price"`
	MarkPrice    flexFloat `json:"mark_price"`
	Timestamp    int64     `json:"timestamp"` // microseconds
	Quotes       struct {
		BestBid flexFloat `json:"best_bid"`
		BestAsk flexFloat `json:"best_ask"`
	} `json:"quotes"`
}

func (t tickerResult) quote() models.Quote {
	q := models.Quote{
		Symbol:  t.Symbol,
		BestBid: t.Quotes.BestBid.Float(),
		BestAsk: t.Quotes.BestAsk.Float(),
	}
	if t.Timestamp > 0 {
		q.Timestamp = time.UnixMicro(t.Timestamp)
	}
	return q
}

type candleResult struct {
	Time  int64     `json:"time"`
	Close flexFloat `json:"close"`
}

type positionResult struct {
	ProductID     int    `json:"product_id"`
	ProductSymbol string `json:"product_symbol"`
	Size          int    `json:"size"`
}

type orderResult struct {
	ID    int64  `json:"id"`
	State string `json:"state"`
}

type balanceResult struct {
	AssetSymbol      string    `json:"asset_symbol"`
	Balance          flexFloat `json:"balance"`
	AvailableBalance flexFloat `json:"available_balance"`
}

// SpotPrice returns the index price of the underlying.
func (d *DeltaClient) SpotPrice(ctx context.Context) (float64, error) {
	var t tickerResult
	if err := d.getWithRetry(ctx, "/v2/tickers/"+d.spotSymbol, nil, false, d.timeout, &t); err != nil {
		return 0, fmt.Errorf("failed to get spot price: %w", err)
	}
	spot := t.SpotPrice.Float()
	if spot <= 0 {
		spot = t.MarkPrice.Float()
	}
	if spot <= 0 {
		return 0, apperrors.NewDataError("spot", d.spotSymbol, "no spot price in ticker", nil)
	}
	return spot, nil
}

// OptionChain returns every call and put of the underlying for the expiry date.
func (d *DeltaClient) OptionChain(ctx context.Context, underlying string, expiry time.Time) (*models.OptionChain, error) {
	params := url.Values{}
	params.Set("contract_types", string(models.OptionCall)+","+string(models.OptionPut))
	params.Set("underlying_asset_symbols", underlying)
	params.Set("expiry_date", expiry.Format("02-01-2006"))

	var tickers []tickerResult
	if err := d.getWithRetry(ctx, "/v2/tickers", params, false, d.timeout, &tickers); err != nil {
		return nil, fmt.Errorf("failed to get option chain: %w", err)
	}
	if len(tickers) == 0 {
		return nil, apperrors.Wrapf(apperrors.ErrNoOptions, "%s %s", underlying, expiry.Format(models.DateLayout))
	}

	chain := &models.OptionChain{
		Underlying: underlying,
		Expiry:     expiry,
		Entries:    make([]models.ChainEntry, 0, len(tickers)),
	}
	for _, t := range tickers {
		typ := models.OptionType(t.ContractType)
		if typ != models.OptionCall && typ != models.OptionPut {
			continue
		}
		if chain.SpotPrice == 0 {
			chain.SpotPrice = t.SpotPrice.Float()
		}
		chain.Entries = append(chain.Entries, models.ChainEntry{
			Contract: models.OptionContract{
				Symbol:      t.Symbol,
				StrikePrice: t.StrikePrice.Float(),
				Type:        typ,
				ProductID:   t.ProductID,
			},
			Quote: t.quote(),
		})
	}

	return chain, nil
}

// Quote returns the best bid/ask for a contract. Delisted contracts return an error.
func (d *DeltaClient) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	var t tickerResult
	if err := d.getWithRetry(ctx, "/v2/tickers/"+url.PathEscape(symbol), nil, false, d.timeout, &t); err != nil {
		return nil, apperrors.NewDataError("quote", symbol, "ticker fetch failed", err)
	}
	q := t.quote()
	q.Symbol = symbol
	return &q, nil
}

// Candles returns one-minute closes between start and end.
func (d *DeltaClient) Candles(ctx context.Context, symbol string, start, end time.Time) ([]models.Candle, error) {
	params := url.Values{}
	params.Set("resolution", "1m")
	params.Set("symbol", symbol)
	params.Set("start", strconv.FormatInt(start.Unix(), 10))
	params.Set("end", strconv.FormatInt(end.Unix(), 10))

	var rows []candleResult
	if err := d.getWithRetry(ctx, "/v2/history/candles", params, false, d.candleTimeout, &rows); err != nil {
		return nil, apperrors.NewDataError("candles", symbol, "candle fetch failed", err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NewDataError("candles", symbol,
			fmt.Sprintf("no candles between %s and %s", start.Format("15:04"), end.Format("15:04")), nil)
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, r := range rows {
		if r.Time == 0 {
			continue
		}
		candles = append(candles, models.Candle{
			Timestamp: time.Unix(r.Time, 0),
			Close:     r.Close.Float(),
		})
	}
	return candles, nil
}

// Positions returns the open positions of the account.
func (d *DeltaClient) Positions(ctx context.Context) ([]models.Position, error) {
	var rows []positionResult
	if err := d.getWithRetry(ctx, "/v2/positions", nil, true, d.timeout, &rows); err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}
	positions := make([]models.Position, 0, len(rows))
	for _, r := range rows {
		positions = append(positions, models.Position{
			ProductID: r.ProductID,
			Symbol:    r.ProductSymbol,
			Size:      r.Size,
		})
	}
	return positions, nil
}

// PlaceOrder places an order. Orders are never retried.
func (d *DeltaClient) PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResult, error) {
	if req.Size <= 0 {
		return nil, apperrors.NewValidationError("size", req.Size, "must be positive")
	}
	if req.Type == "" {
		req.Type = models.OrderTypeMarket
	}

	body := map[string]interface{}{
		"product_id": req.ProductID,
		"size":       req.Size,
		"side":       string(req.Side),
		"order_type": string(req.Type),
	}
	if req.Type == models.OrderTypeLimit && req.LimitPrice > 0 {
		body["limit_price"] = decimal.NewFromFloat(req.LimitPrice).String()
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding order: %w", err)
	}

	var res orderResult
	err = d.do(ctx, http.MethodPost, "/v2/orders", nil, payload, true, d.timeout, &res)
	metrics.RecordOrder(string(req.Side), err)
	if err != nil {
		return nil, apperrors.NewOrderError(req.ProductID, req.Symbol, string(req.Side), "order rejected", err)
	}

	result := &models.OrderResult{OrderID: strconv.FormatInt(res.ID, 10), Status: res.State}
	logging.LogOrder(d.logger, result.OrderID, req.Symbol, string(req.Side), req.Size)
	return result, nil
}

// ClosePosition flattens productID with a market order on the opposite side.
func (d *DeltaClient) ClosePosition(ctx context.Context, productID, size int) (*models.CloseResult, error) {
	positions, err := d.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not fetch positions: %w", err)
	}
	pos, ok := findPosition(positions, productID)
	if !ok || !pos.IsOpen() {
		return &models.CloseResult{ProductID: productID, AlreadyClosed: true}, nil
	}

	qty := abs(pos.Size)
	if size > 0 && size < qty {
		qty = size
	}
	order, err := d.PlaceOrder(ctx, models.OrderRequest{
		ProductID: productID,
		Symbol:    pos.Symbol,
		Size:      qty,
		Side:      closeSide(pos.Size),
		Type:      models.OrderTypeMarket,
	})
	if err != nil {
		return nil, err
	}
	return &models.CloseResult{ProductID: productID, Order: order}, nil
}

// WalletBalance returns the balance of asset.
func (d *DeltaClient) WalletBalance(ctx context.Context, asset string) (*models.Balance, error) {
	var rows []balanceResult
	if err := d.getWithRetry(ctx, "/v2/wallet/balances", nil, true, d.timeout, &rows); err != nil {
		return nil, fmt.Errorf("failed to get wallet balance: %w", err)
	}
	for _, r := range rows {
		if r.AssetSymbol == asset {
			return &models.Balance{
				Asset:     asset,
				Balance:   r.Balance.Float(),
				Available: r.AvailableBalance.Float(),
			}, nil
		}
	}
	return nil, apperrors.Wrapf(apperrors.ErrSymbolNotFound, "wallet asset %s", asset)
}

func (d *DeltaClient) getWithRetry(ctx context.Context, path string, params url.Values, signed bool, timeout time.Duration, out interface{}) error {
	_, err := utils.RetryWithResult(ctx, d.retry, func() (struct{}, error) {
		return struct{}{}, d.do(ctx, http.MethodGet, path, params, nil, signed, timeout, out)
	})
	return err
}

func (d *DeltaClient) do(ctx context.Context, method, path string, params url.Values, body []byte, signed bool, timeout time.Duration, out interface{}) (err error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return apperrors.Wrap(apperrors.ErrTimeout, err.Error())
	}

	start := time.Now()
	defer func() {
		label := endpointLabel(path)
		metrics.RecordAPICall(label, time.Since(start), err)
		logging.LogAPICall(d.logger, method, label, time.Since(start), err)
	}()

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	query := ""
	if len(params) > 0 {
		query = "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(reqCtx, method, d.baseURL+path+query, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "delta-strangler")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if signed {
		if d.apiKey == "" || d.apiSecret == "" {
			return apperrors.ErrNotAuthenticated
		}
		ts := strconv.FormatInt(d.now().Unix(), 10)
		req.Header.Set("api-key", d.apiKey)
		req.Header.Set("timestamp", ts)
		req.Header.Set("signature", d.sign(method, ts, path+query, string(body)))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return apperrors.Wrap(apperrors.ErrConnectionFailed, err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, raw)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if !env.Success && env.Error != nil {
		return apperrors.NewBrokerError(env.Error.Code, string(env.Error.Context), apperrors.ErrOrderRejected)
	}
	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decoding result: %w", err)
	}
	return nil
}

// sign returns hex(HMAC-SHA256(secret, method+timestamp+path+body)).
func (d *DeltaClient) sign(method, ts, pathWithQuery, body string) string {
	mac := hmac.New(sha256.New, []byte(d.apiSecret))
	mac.Write([]byte(method + ts + pathWithQuery + body))
	return hex.EncodeToString(mac.Sum(nil))
}

func statusError(code int, body []byte) error {
	msg := logging.Redact(strings.TrimSpace(string(body)))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	switch {
	case code == http.StatusTooManyRequests:
		return apperrors.NewBrokerError("429", msg, apperrors.ErrRateLimited)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return apperrors.NewBrokerError(strconv.Itoa(code), msg, apperrors.ErrNotAuthenticated)
	case code == http.StatusNotFound:
		return apperrors.NewBrokerError("404", msg, apperrors.ErrSymbolNotFound)
	case code >= 500:
		return apperrors.NewBrokerError("5xx", fmt.Sprintf("HTTP %d: %s", code, msg), nil)
	default:
		return apperrors.NewBrokerError(strconv.Itoa(code), msg, nil)
	}
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if apperrors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.Wrap(apperrors.ErrTimeout, err.Error())
	}
	if apperrors.Is(err, context.Canceled) {
		return err
	}
	return apperrors.Wrap(apperrors.ErrConnectionFailed, err.Error())
}

// endpointLabel collapses per-symbol paths for metric labels.
func endpointLabel(path string) string {
	if strings.HasPrefix(path, "/v2/tickers/") {
		return "/v2/tickers/{symbol}"
	}
	return path
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
