package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GatewayMetrics holds the counters exported on /metrics.
type GatewayMetrics struct {
	checks       *prometheus.CounterVec
	mints        *prometheus.CounterVec
	mintDuration prometheus.Histogram
	payouts      *prometheus.CounterVec
	reservations prometheus.Gauge
	swept        prometheus.Counter
	chainQueries *prometheus.CounterVec
}

var (
	gatewayMetricsOnce sync.Once
	gatewayRegistry    *GatewayMetrics
)

// Gateway returns the lazily-initialised metrics registry.
func Gateway() *GatewayMetrics {
	gatewayMetricsOnce.Do(func() {
		gatewayRegistry = &GatewayMetrics{
			checks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tlg",
				Subsystem: "payment",
				Name:      "checks_total",
				Help:      "Payment checks segmented by outcome.",
			}, []string{"result"}),
			mints: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tlg",
				Subsystem: "mint",
				Name:      "runs_total",
				Help:      "Minting process runs segmented by outcome.",
			}, []string{"outcome"}),
			mintDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "tlg",
				Subsystem: "mint",
				Name:      "duration_seconds",
				Help:      "Wall time of minting process runs.",
				Buckets:   []float64{5, 15, 30, 60, 120, 300, 600},
			}),
			payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tlg",
				Subsystem: "referral",
				Name:      "settlements_total",
				Help:      "Commission settlements segmented by outcome.",
			}, []string{"outcome"}),
			reservations: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "tlg",
				Subsystem: "reservation",
				Name:      "active",
				Help:      "Wallet reservations seen by the last sweep.",
			}),
			swept: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "tlg",
				Subsystem: "reservation",
				Name:      "swept_total",
				Help:      "Stale wallet reservations released by the sweeper.",
			}),
			chainQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tlg",
				Subsystem: "chain",
				Name:      "queries_total",
				Help:      "Blockchain RPC calls segmented by method and outcome.",
			}, []string{"method", "outcome"}),
		}
		prometheus.MustRegister(
			gatewayRegistry.checks,
			gatewayRegistry.mints,
			gatewayRegistry.mintDuration,
			gatewayRegistry.payouts,
			gatewayRegistry.reservations,
			gatewayRegistry.swept,
			gatewayRegistry.chainQueries,
		)
	})
	return gatewayRegistry
}

// RecordCheck counts one payment check outcome.
func (m *GatewayMetrics) RecordCheck(result string) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(result).Inc()
}

// RecordMint counts one minting run and its duration.
func (m *GatewayMetrics) RecordMint(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.mints.WithLabelValues(outcome).Inc()
	m.mintDuration.Observe(elapsed.Seconds())
}

// RecordSettlement counts one commission settlement outcome.
func (m *GatewayMetrics) RecordSettlement(outcome string) {
	if m == nil {
		return
	}
	m.payouts.WithLabelValues(outcome).Inc()
}

// SetReservations sets the active reservation gauge.
func (m *GatewayMetrics) SetReservations(n int) {
	if m == nil {
		return
	}
	m.reservations.Set(float64(n))
}

// RecordSweep counts released stale reservations.
func (m *GatewayMetrics) RecordSweep(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.swept.Add(float64(n))
}

// RecordChainQuery counts one RPC call.
func (m *GatewayMetrics) RecordChainQuery(method string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.chainQueries.WithLabelValues(method, outcome).Inc()
}
