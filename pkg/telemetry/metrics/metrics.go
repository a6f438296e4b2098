// Package metrics provides Prometheus metrics for the gateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/config"
)

// RequestMetrics tracks metrics for proxied inference requests.
//
// Metrics:
//   - crosspartition_gateway_requests_total: request count by transport, model, outcome
//   - crosspartition_gateway_request_duration_seconds: end-to-end duration histogram
//   - crosspartition_gateway_payload_bytes: request/response payload sizes
//   - crosspartition_gateway_transport_fallbacks_total: cross-transport fallback count
//   - crosspartition_gateway_invoke_attempts: attempts per request histogram
type RequestMetrics struct {
	registry *prometheus.Registry

	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	payloadBytes       *prometheus.HistogramVec
	transportFallbacks *prometheus.CounterVec
	invokeAttempts     prometheus.Histogram
}

// NewRequestMetrics creates and registers request metrics. If registry is
// nil a fresh registry is created; the registry is exposed via Handler.
func NewRequestMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	rm := &RequestMetrics{
		registry: registry,

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of proxied inference requests",
			},
			[]string{"transport", "model", "outcome"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "End-to-end duration of proxied requests in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"transport"},
		),

		payloadBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "payload_bytes",
				Help:      "Size of request and response payloads in bytes",
				Buckets:   prometheus.ExponentialBuckets(256, 4, 10), // 256B to ~64MB
			},
			[]string{"direction"},
		),

		transportFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "transport_fallbacks_total",
				Help:      "Number of cross-transport fallback retries",
			},
			[]string{"from", "to"},
		),

		invokeAttempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "invoke_attempts",
				Help:      "Number of upstream invocation attempts per request",
				Buckets:   []float64{1, 2, 3, 4, 5},
			},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.payloadBytes,
		rm.transportFallbacks,
		rm.invokeAttempts,
	)

	return rm
}

// RecordRequest records metrics for one completed request. outcome is
// "success" or the error kind.
func (rm *RequestMetrics) RecordRequest(transport, model, outcome string, duration time.Duration, requestBytes, responseBytes int64, attempts int) {
	rm.requestsTotal.WithLabelValues(transport, model, outcome).Inc()
	rm.requestDuration.WithLabelValues(transport).Observe(duration.Seconds())
	if requestBytes > 0 {
		rm.payloadBytes.WithLabelValues("request").Observe(float64(requestBytes))
	}
	if responseBytes > 0 {
		rm.payloadBytes.WithLabelValues("response").Observe(float64(responseBytes))
	}
	if attempts > 0 {
		rm.invokeAttempts.Observe(float64(attempts))
	}
}

// RecordFallback records a cross-transport fallback retry.
func (rm *RequestMetrics) RecordFallback(from, to string) {
	rm.transportFallbacks.WithLabelValues(from, to).Inc()
}

// Handler returns an HTTP handler serving the registry in Prometheus
// exposition format.
func (rm *RequestMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(rm.registry, promhttp.HandlerOpts{})
}
