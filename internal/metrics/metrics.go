package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPCollector exposes Prometheus metrics for inbound HTTP requests and
// audit ledger activity.
type HTTPCollector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	ledgerAppends   *prometheus.CounterVec
	verifyRuns      *prometheus.CounterVec
}

// NewHTTPCollector constructs a collector with default histograms/counters.
func NewHTTPCollector() (*HTTPCollector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "finguard",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finguard",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	ledgerAppends := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finguard",
		Subsystem: "ledger",
		Name:      "records_appended_total",
		Help:      "Total number of audit records appended to the ledger.",
	}, []string{"action_type"})

	verifyRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finguard",
		Subsystem: "ledger",
		Name:      "verifications_total",
		Help:      "Total number of chain verification runs by outcome.",
	}, []string{"result"})

	for _, c := range []prometheus.Collector{requestDuration, requestTotal, ledgerAppends, verifyRuns} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	collector := &HTTPCollector{
		registry:        registry,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		ledgerAppends:   ledgerAppends,
		verifyRuns:      verifyRuns,
	}

	return collector, nil
}

// RecordLedgerAppend counts one committed audit record.
func (c *HTTPCollector) RecordLedgerAppend(actionType string) {
	c.ledgerAppends.WithLabelValues(actionType).Inc()
}

// RecordVerification counts one chain verification run.
func (c *HTTPCollector) RecordVerification(valid bool) {
	result := "valid"
	if !valid {
		result = "invalid"
	}
	c.verifyRuns.WithLabelValues(result).Inc()
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *HTTPCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *HTTPCollector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
