// Package telemetry exposes the Prometheus counters and gauges
// SPEC_FULL.md §4.I names for observing a running marketfeed process.
// Grounded on sawpanic-cryptorun's internal/interfaces/http.MetricsRegistry:
// same NewXxxVec-then-MustRegister construction, a package-level registry
// struct with one field per metric, and WithLabelValues call sites at the
// components that observe them.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric a marketfeed process exports.
type Registry struct {
	FramesParsed  *prometheus.CounterVec
	Reconnects    *prometheus.CounterVec
	PairsRemoved  *prometheus.CounterVec
	QueueDepth    prometheus.Gauge
	StreamRetries *prometheus.GaugeVec
}

// NewRegistry builds and registers the marketfeed_* metric family against
// reg. Pass prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer for a process-wide one.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		FramesParsed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketfeed_frames_parsed_total",
				Help: "Total number of websocket frames successfully parsed into normalized events, by exchange.",
			},
			[]string{"exchange"},
		),
		Reconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketfeed_reconnects_total",
				Help: "Total number of stream reconnect attempts, by exchange and disconnect reason.",
			},
			[]string{"exchange", "reason"},
		),
		PairsRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketfeed_pairs_removed_total",
				Help: "Total number of pairs pruned from a subscription after the venue rejected them, by exchange.",
			},
			[]string{"exchange"},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "marketfeed_dispatcher_queue_depth",
				Help: "Current number of buffered events waiting on the dispatcher's shared sink channel.",
			},
		),
		StreamRetries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketfeed_stream_retry_count",
				Help: "Current retry count of each live stream, by exchange.",
			},
			[]string{"exchange"},
		),
	}

	reg.MustRegister(
		r.FramesParsed,
		r.Reconnects,
		r.PairsRemoved,
		r.QueueDepth,
		r.StreamRetries,
	)

	return r
}

// RecordFrameParsed increments the parsed-frame counter for ex.
func (r *Registry) RecordFrameParsed(exchange string) {
	r.FramesParsed.WithLabelValues(exchange).Inc()
}

// RecordReconnect increments the reconnect counter for ex/reason.
func (r *Registry) RecordReconnect(exchange, reason string) {
	r.Reconnects.WithLabelValues(exchange, reason).Inc()
}

// RecordPairRemoved increments the pairs-removed counter for ex.
func (r *Registry) RecordPairRemoved(exchange string) {
	r.PairsRemoved.WithLabelValues(exchange).Inc()
}

// SetQueueDepth reports the dispatcher sink's current buffered length.
func (r *Registry) SetQueueDepth(depth int) {
	r.QueueDepth.Set(float64(depth))
}

// SetStreamRetryCount reports a stream's current retry count.
func (r *Registry) SetStreamRetryCount(exchange string, count uint64) {
	r.StreamRetries.WithLabelValues(exchange).Set(float64(count))
}

// Handler returns the HTTP handler that exposes the default Prometheus
// registry's metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
