// Package metrics provides Prometheus metrics for conversions and for the
// HTTP server:
//   - fshconv_rows_total: Counter of input rows by outcome (emitted, skipped)
//   - fshconv_designations_total: Counter of emitted designations by language
//   - fshconv_conversions_total: Counter of conversions by mode and status
//   - fshconv_conversion_duration_seconds: Histogram of conversion time
//   - http_request_total, http_request_duration_seconds, http_request_in_flight
//
// All metrics are registered with the Prometheus default registry during
// package initialization.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fshconv_rows_total",
			Help: "Input rows processed, by outcome",
		},
		[]string{"outcome"},
	)

	DesignationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fshconv_designations_total",
			Help: "Designations emitted, by language tag",
		},
		[]string{"language"},
	)

	ConversionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fshconv_conversions_total",
			Help: "Conversions run, by mode and status",
		},
		[]string{"mode", "status"},
	)

	ConversionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fshconv_conversion_duration_seconds",
			Help:    "Conversion latency",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"mode"},
	)

	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Number of rate limiter buckets currently tracked",
		},
	)
)

func init() {
	prometheus.MustRegister(RowsTotal)
	prometheus.MustRegister(DesignationsTotal)
	prometheus.MustRegister(ConversionsTotal)
	prometheus.MustRegister(ConversionDuration)
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
}

// WriteTextfile dumps the default registry in the node_exporter textfile
// format, for batch runs that exit before anything could scrape them.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
