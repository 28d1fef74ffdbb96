package broker

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestFXRates_USDINR(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   float64
	}{
		{"ok", http.StatusOK, `{"base":"USD","rates":{"INR":83.25,"EUR":0.92}}`, 83.25},
		{"server error", http.StatusInternalServerError, ``, 84.0},
		{"missing INR", http.StatusOK, `{"rates":{"EUR":0.92}}`, 84.0},
		{"garbage", http.StatusOK, `not json`, 84.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			fx := NewFXRates(FXConfig{URL: srv.URL, Logger: zerolog.Nop()})
			if got := fx.USDINR(context.Background()); got != tt.want {
				t.Errorf("USDINR() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFXRates_NoURLUsesFallback(t *testing.T) {
	fx := NewFXRates(FXConfig{FallbackRate: 85.5, Logger: zerolog.Nop()})
	if got := fx.USDINR(context.Background()); got != 85.5 {
		t.Errorf("USDINR() = %v, want 85.5", got)
	}
}
