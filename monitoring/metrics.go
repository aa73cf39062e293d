// Package monitoring exposes the service's Prometheus collectors.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing, which keeps tests off the global registry.
type Metrics struct {
	peeksTotal   *prometheus.CounterVec
	peekDuration *prometheus.HistogramVec
	fetchTotal   *prometheus.CounterVec
	cacheEvents  *prometheus.CounterVec
}

// NewMetrics registers the collectors on the default registry.
// activePages feeds the browser gauge; it may be nil.
func NewMetrics(activePages func() int) *Metrics {
	m := &Metrics{
		peeksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricepeek_peeks_total",
			Help: "Completed peeks by outcome and pass.",
		}, []string{"outcome", "pass"}),
		peekDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pricepeek_peek_duration_seconds",
			Help:    "End-to-end peek duration.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 22, 45},
		}, []string{"pass"}),
		fetchTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricepeek_fetch_total",
			Help: "Document fetches by transport and status.",
		}, []string{"transport", "status"}),
		cacheEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricepeek_cache_events_total",
			Help: "Response cache activity.",
		}, []string{"event"}),
	}

	if activePages != nil {
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pricepeek_browser_pages_active",
			Help: "Browser tabs currently rendering.",
		}, func() float64 {
			return float64(activePages())
		})
	}

	return m
}

// ObservePeek records one completed peek. outcome is "price_found",
// "no_price" or "error"; pass is the winning pass or "cache".
func (m *Metrics) ObservePeek(outcome, pass string, d time.Duration) {
	if m == nil {
		return
	}
	m.peeksTotal.WithLabelValues(outcome, pass).Inc()
	m.peekDuration.WithLabelValues(pass).Observe(d.Seconds())
}

// ObserveFetch records the outcome of one ladder walk.
func (m *Metrics) ObserveFetch(transport string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	if transport == "" {
		transport = "none"
	}
	m.fetchTotal.WithLabelValues(transport, status).Inc()
}

// CacheEvent records cache activity: "hit", "miss", "bypass" or "store".
func (m *Metrics) CacheEvent(event string) {
	if m == nil {
		return
	}
	m.cacheEvents.WithLabelValues(event).Inc()
}
