package errors

import (
	"fmt"
	"testing"
)

func TestDataError_MatchesDataUnavailable(t *testing.T) {
	bare := NewDataError("candles", "C-BTC-1", "no candles", nil)
	if !Is(bare, ErrDataUnavailable) {
		t.Error("bare DataError should match ErrDataUnavailable")
	}

	cause := NewBrokerError("5xx", "HTTP 502", nil)
	wrapped := NewDataError("quote", "P-BTC-1", "ticker fetch failed", cause)
	if !Is(wrapped, ErrDataUnavailable) {
		t.Error("DataError with cause should still match ErrDataUnavailable")
	}
	var be *BrokerError
	if !As(wrapped, &be) || be.Code != "5xx" {
		t.Errorf("DataError should expose its BrokerError cause, got %v", be)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", Wrap(ErrRateLimited, "tickers"), true},
		{"timeout", fmt.Errorf("x: %w", ErrTimeout), true},
		{"connection", ErrConnectionFailed, true},
		{"server error", NewBrokerError("5xx", "HTTP 503", nil), true},
		{"429", NewBrokerError("429", "slow down", ErrRateLimited), true},
		{"not found", NewBrokerError("404", "gone", ErrSymbolNotFound), false},
		{"bad request", NewBrokerError("400", "bad", nil), false},
		{"data unavailable", NewDataError("candles", "X", "empty", nil), false},
		{"wrapped server error", NewDataError("candles", "X", "failed", NewBrokerError("5xx", "", nil)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWrap_Nil(t *testing.T) {
	if Wrap(nil, "ctx") != nil || Wrapf(nil, "ctx %d", 1) != nil {
		t.Error("wrapping nil should return nil")
	}
}
