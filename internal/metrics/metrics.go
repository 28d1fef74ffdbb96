// Package metrics exposes Prometheus instrumentation for the strangle trader.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Exchange metrics
	ExchangeAPICalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strangler_exchange_api_calls_total",
			Help: "Total number of exchange API calls",
		},
		[]string{"endpoint", "status"}, // status: success|error
	)

	ExchangeAPILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strangler_exchange_api_latency_seconds",
			Help:    "Exchange API latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"endpoint"},
	)

	// Strategy metrics
	ScanOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strangler_scan_outcomes_total",
			Help: "Strike scans by outcome",
		},
		[]string{"tier"}, // PRIMARY|FALLBACK|none
	)

	ExitVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strangler_exit_verdicts_total",
			Help: "Exit evaluations by breach and verdict source",
		},
		[]string{"breach", "source"},
	)

	MonitorTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strangler_monitor_ticks_total",
			Help: "Position monitor ticks by result",
		},
		[]string{"result"}, // hold|fetch_error|<trigger>
	)

	OrdersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strangler_orders_total",
			Help: "Orders sent to the exchange",
		},
		[]string{"side", "status"},
	)

	CombinedPremium = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "strangler_combined_premium_usd",
			Help: "Last observed combined premium of the open strangle",
		},
	)

	registerOnce sync.Once
)

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ExchangeAPICalls)
		prometheus.MustRegister(ExchangeAPILatency)
		prometheus.MustRegister(ScanOutcomes)
		prometheus.MustRegister(ExitVerdicts)
		prometheus.MustRegister(MonitorTicks)
		prometheus.MustRegister(OrdersPlaced)
		prometheus.MustRegister(CombinedPremium)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPICall records an exchange API call
func RecordAPICall(endpoint string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ExchangeAPICalls.WithLabelValues(endpoint, status).Inc()
	ExchangeAPILatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordScan records the scan range that produced a pair, or "none".
func RecordScan(tier string) {
	if tier == "" {
		tier = "none"
	}
	ScanOutcomes.WithLabelValues(tier).Inc()
}

// RecordExitVerdict records an exit evaluation.
func RecordExitVerdict(breach, source string) {
	ExitVerdicts.WithLabelValues(breach, source).Inc()
}

// RecordMonitorTick records one monitor iteration.
func RecordMonitorTick(result string) {
	MonitorTicks.WithLabelValues(result).Inc()
}

// RecordOrder records an order placement attempt.
func RecordOrder(side string, err error) {
	status := "accepted"
	if err != nil {
		status = "rejected"
	}
	OrdersPlaced.WithLabelValues(side, status).Inc()
}

// Serve starts the metrics listener in the background. An empty addr is a no-op.
func Serve(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	Init()
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
