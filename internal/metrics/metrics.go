// Package metrics exposes the engine's counters and latency histogram as
// Prometheus collectors: counter/gauge vectors labeled by venue and symbol
// and a latency histogram labeled by route and status class, registered
// against a caller-supplied Registerer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector the engine and transport report
// to, labeled by venue/symbol where that distinction matters.
type Metrics struct {
	OrdersReceived  *prometheus.CounterVec
	OrdersMatched   *prometheus.CounterVec
	OrdersCancelled *prometheus.CounterVec
	OrdersRejected  *prometheus.CounterVec
	TradesExecuted  *prometheus.CounterVec
	OrdersResting   *prometheus.GaugeVec
	RequestLatency  *prometheus.HistogramVec
}

// NewMetrics registers and returns a fresh set of collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	labels := []string{"venue", "symbol"}

	return &Metrics{
		OrdersReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disorderbook",
			Name:      "orders_received_total",
			Help:      "Orders accepted for matching, by venue/symbol.",
		}, labels),
		OrdersMatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disorderbook",
			Name:      "orders_matched_total",
			Help:      "Orders that received at least one fill, by venue/symbol.",
		}, labels),
		OrdersCancelled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disorderbook",
			Name:      "orders_cancelled_total",
			Help:      "Orders cancelled, by venue/symbol.",
		}, labels),
		OrdersRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disorderbook",
			Name:      "orders_rejected_total",
			Help:      "Orders rejected at validation, by venue/symbol.",
		}, labels),
		TradesExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disorderbook",
			Name:      "trades_executed_total",
			Help:      "Crosses executed, by venue/symbol.",
		}, labels),
		OrdersResting: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "disorderbook",
			Name:      "orders_resting",
			Help:      "Total open quantity resting on a ladder (summed order qty, not a count of orders), by venue/symbol/side.",
		}, []string{"venue", "symbol", "side"}),
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "disorderbook",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and status class.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
