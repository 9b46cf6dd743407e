// Package metrics holds the Prometheus collectors for the proxy. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all collectors.
type Metrics struct {
	CacheLookups     *prometheus.CounterVec   // labels: indicator, result
	UpstreamRequests *prometheus.CounterVec   // labels: function, outcome
	UpstreamDuration *prometheus.HistogramVec // labels: function
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockproxy_cache_lookups_total",
			Help: "Indicator cache lookups by result (hit|miss)",
		}, []string{"indicator", "result"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockproxy_upstream_requests_total",
			Help: "Provider requests by function and outcome",
		}, []string{"function", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockproxy_upstream_request_duration_seconds",
			Help:    "Provider request latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"function"}),
	}
	reg.MustRegister(m.CacheLookups, m.UpstreamRequests, m.UpstreamDuration)
	return m
}

// CacheHit records a cache hit for indicator.
func (m *Metrics) CacheHit(indicator string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(indicator, "hit").Inc()
}

// CacheMiss records a cache miss for indicator.
func (m *Metrics) CacheMiss(indicator string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(indicator, "miss").Inc()
}

// Upstream records one provider call.
func (m *Metrics) Upstream(function, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(function, outcome).Inc()
	m.UpstreamDuration.WithLabelValues(function).Observe(d.Seconds())
}
