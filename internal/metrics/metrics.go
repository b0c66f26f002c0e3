// Package metrics provides Prometheus instrumentation for the chat panel: the
// number of connected web panels and the outcome and latency of every exchange.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PanelsConnected tracks the current number of open web panels.
	PanelsConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatpanel_panels_connected",
		Help: "Current number of connected web panels",
	})

	// ExchangesTotal counts finished exchanges, labeled by outcome:
	// "success" or "failure".
	ExchangesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatpanel_exchanges_total",
		Help: "Total number of finished chat exchanges",
	}, []string{"outcome"})

	// ExchangeLatency records the round trip of successful exchanges in seconds.
	ExchangeLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatpanel_exchange_latency_seconds",
		Help:    "Round-trip latency of successful chat exchanges in seconds",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	})

	// SubmissionsRejected counts submissions dropped before a request was sent,
	// labeled by reason: "empty" or "busy".
	SubmissionsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatpanel_submissions_rejected_total",
		Help: "Submissions rejected without sending a request",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(
		PanelsConnected,
		ExchangesTotal,
		ExchangeLatency,
		SubmissionsRejected,
	)
}

// Exchanges records exchange outcomes. It satisfies panel.Observer.
type Exchanges struct{}

// ObserveExchange records one finished exchange.
func (Exchanges) ObserveExchange(elapsed time.Duration, err error) {
	if err != nil {
		ExchangesTotal.WithLabelValues("failure").Inc()
		return
	}
	ExchangesTotal.WithLabelValues("success").Inc()
	ExchangeLatency.Observe(elapsed.Seconds())
}

// ObserveRejection counts one submission dropped for reason.
func (Exchanges) ObserveRejection(reason string) {
	SubmissionsRejected.WithLabelValues(reason).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
