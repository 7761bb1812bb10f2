package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	// APIRequestsTotal tracks outbound calls to the pricing backend by operation and outcome.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askprice_api_requests_total",
			Help: "Total number of pricing backend requests (by op and outcome).",
		},
		[]string{"op", "outcome"},
	)

	// APIRequestDuration measures the latency of outbound backend calls.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askprice_api_request_duration_seconds",
			Help:    "Duration of pricing backend requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"op"},
	)

	// PollAttempts records how many result fetches an inquiry needed.
	PollAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askprice_poll_attempts",
			Help:    "Result fetch attempts per inquiry.",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
	)

	// InstrumentsTotal counts processed instruments by term and outcome.
	InstrumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askprice_instruments_total",
			Help: "Instruments processed (by term and outcome).",
		},
		[]string{"term", "outcome"},
	)

	// TermsTotal counts finished terms by outcome.
	TermsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askprice_terms_total",
			Help: "Terms finished (by outcome).",
		},
		[]string{"outcome"},
	)

	// TermDuration measures wall time per term.
	TermDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askprice_term_duration_seconds",
			Help:    "Duration of a term run in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"term"},
	)

	// ResultCacheTotal counts result cache lookups.
	ResultCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askprice_result_cache_total",
			Help: "Result cache lookups (hit, miss, error).",
		},
		[]string{"result"},
	)

	// ArchiveRowsTotal counts rows written to the quote archive.
	ArchiveRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "askprice_archive_rows_total",
			Help: "Quote rows written to the archive.",
		},
	)

	// EventPublishErrors tracks event forwarding failures by transport and subject.
	EventPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askprice_event_publish_errors_total",
			Help: "Number of event publish failures by transport and subject.",
		},
		[]string{"transport", "subject"},
	)
)

// ObserveAPI is an httpclient observer feeding the request counter and histogram.
func ObserveAPI(op, outcome string, latency time.Duration) {
	APIRequestsTotal.WithLabelValues(op, outcome).Inc()
	APIRequestDuration.WithLabelValues(op).Observe(latency.Seconds())
}

// ObserveDuration records elapsed time since start into a HistogramVec or SummaryVec.
func ObserveDuration(v any, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()
	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	}
}

// IncInstrument counts one orchestrated instrument.
func IncInstrument(term, outcome string) {
	InstrumentsTotal.WithLabelValues(term, outcome).Inc()
}

// IncTerm counts one finished term.
func IncTerm(outcome string) {
	TermsTotal.WithLabelValues(outcome).Inc()
}

// IncCache counts one result cache lookup.
func IncCache(result string) {
	ResultCacheTotal.WithLabelValues(result).Inc()
}

// IncPublishError increments the publish error counter.
func IncPublishError(transport, subject string) {
	EventPublishErrors.WithLabelValues(transport, subject).Inc()
}

// Push sends the default registry to a Prometheus Pushgateway. Batch runs call it once on exit.
func Push(ctx context.Context, url, job string) error {
	return push.New(url, job).
		Gatherer(prometheus.DefaultGatherer).
		PushContext(ctx)
}
