package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"delta-strangler/internal/logging"
)

// FXRates fetches the USD to INR conversion rate.
type FXRates struct {
	url      string
	fallback float64
	timeout  time.Duration
	client   *http.Client
	logger   zerolog.Logger
}

// FXConfig holds configuration for the rate fetcher.
type FXConfig struct {
	URL          string
	FallbackRate float64
	Timeout      time.Duration
	HTTPClient   *http.Client
	Logger       zerolog.Logger
}

// NewFXRates creates a rate fetcher.
func NewFXRates(cfg FXConfig) *FXRates {
	if cfg.FallbackRate <= 0 {
		cfg.FallbackRate = 84.0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &FXRates{
		url:      cfg.URL,
		fallback: cfg.FallbackRate,
		timeout:  cfg.Timeout,
		client:   cfg.HTTPClient,
		logger:   logging.WithComponent(cfg.Logger, "fx"),
	}
}

// USDINR returns the current rate, or the fallback rate if the fetch fails.
func (f *FXRates) USDINR(ctx context.Context) float64 {
	rate, err := f.fetch(ctx)
	if err != nil {
		f.logger.Warn().Err(err).Float64("fallback", f.fallback).Msg("USD/INR fetch failed, using fallback rate")
		return f.fallback
	}
	return rate
}

func (f *FXRates) fetch(ctx context.Context) (float64, error) {
	if f.url == "" {
		return 0, fmt.Errorf("no rate endpoint configured")
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var body struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decoding rates: %w", err)
	}
	rate := body.Rates["INR"]
	if rate <= 0 {
		return 0, fmt.Errorf("no INR rate in response")
	}
	return rate, nil
}
