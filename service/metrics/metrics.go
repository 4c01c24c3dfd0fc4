package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec
	relayRetries          *prometheus.CounterVec

	// Submission Metrics
	submissionsTotal       *prometheus.CounterVec
	policyRejectionsTotal  *prometheus.CounterVec
	rateLimitDeniedTotal   prometheus.Counter
	confirmationsTotal     *prometheus.CounterVec
	confirmationWaitNumber *prometheus.HistogramVec

	// Ledger Metrics
	ledgerRecords prometheus.Gauge

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		relayRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_retries_total",
				Help: "Total number of relay submission retries against alternate endpoints",
			},
			[]string{"endpoint"},
		),

		// Submission Metrics
		submissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "submissions_total",
				Help: "Total number of submission requests by outcome",
			},
			[]string{"outcome"},
		),
		policyRejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "policy_rejections_total",
				Help: "Total number of transactions rejected by the tip policy",
			},
			[]string{"reason"},
		),
		rateLimitDeniedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limit_denied_total",
				Help: "Total number of requests denied by the admission window",
			},
		),
		confirmationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confirmations_total",
				Help: "Total number of confirmation outcomes for submitted transactions",
			},
			[]string{"status"},
		),
		confirmationWaitNumber: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "confirmation_wait_seconds",
				Help:    "Time between submission and terminal confirmation status",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),

		// Ledger Metrics
		ledgerRecords: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ledger_records",
				Help: "Number of transaction records currently held in the ledger",
			},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRelayRetry records a submission retry against an alternate endpoint.
func (m *Metrics) RecordRelayRetry(endpoint string) {
	m.relayRetries.WithLabelValues(endpoint).Inc()
}

// Submission metric helpers

// RecordSubmission records a submission request outcome
// (accepted, rate_limited, decode_failed, policy_rejected, relay_failed).
func (m *Metrics) RecordSubmission(outcome string) {
	m.submissionsTotal.WithLabelValues(outcome).Inc()
}

// RecordPolicyRejection records a tip policy rejection by reason
// (no_tip, tip_too_low).
func (m *Metrics) RecordPolicyRejection(reason string) {
	m.policyRejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordRateLimitDenied records a request denied by the admission window.
func (m *Metrics) RecordRateLimitDenied() {
	m.rateLimitDeniedTotal.Inc()
}

// RecordConfirmation records a terminal confirmation status and the wait time.
func (m *Metrics) RecordConfirmation(status string, waitSeconds float64) {
	m.confirmationsTotal.WithLabelValues(status).Inc()
	m.confirmationWaitNumber.WithLabelValues(status).Observe(waitSeconds)
}

// Ledger metric helpers

// SetLedgerRecords records the current ledger size.
func (m *Metrics) SetLedgerRecords(n int) {
	m.ledgerRecords.Set(float64(n))
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// statusCodeToString converts an HTTP status code to its class label
// (2xx, 4xx, 5xx) to keep metric cardinality bounded.
func statusCodeToString(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
