package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("writing metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestRecordAPICall(t *testing.T) {
	before := counterValue(t, ExchangeAPICalls.WithLabelValues("/v2/tickers", "error"))
	RecordAPICall("/v2/tickers", 20*time.Millisecond, errors.New("boom"))
	after := counterValue(t, ExchangeAPICalls.WithLabelValues("/v2/tickers", "error"))
	if after-before != 1 {
		t.Errorf("error counter delta = %v, want 1", after-before)
	}
}

func TestRecordScan_EmptyTierIsNone(t *testing.T) {
	before := counterValue(t, ScanOutcomes.WithLabelValues("none"))
	RecordScan("")
	if got := counterValue(t, ScanOutcomes.WithLabelValues("none")) - before; got != 1 {
		t.Errorf("none counter delta = %v, want 1", got)
	}
}

func TestInit_Idempotent(t *testing.T) {
	Init()
	Init()
}

func TestServe_EmptyAddr(t *testing.T) {
	if srv := Serve(""); srv != nil {
		t.Error("Serve(\"\") should not start a listener")
	}
}
