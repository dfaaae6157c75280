// Package observability exposes Prometheus metrics for chat submissions,
// outbound chat API calls and Key Vault lookups.
package observability

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"azchat/internal/pkg/llmclient"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeInvalid = "invalid"
)

var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "azchat",
			Name:      "submissions_total",
			Help:      "Form submissions by outcome",
		},
		[]string{"outcome"},
	)

	upstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "azchat",
			Name:      "upstream_requests_total",
			Help:      "Outbound chat API requests by backend, model and status",
		},
		[]string{"backend", "model", "status"},
	)

	upstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "azchat",
			Name:      "upstream_request_duration_seconds",
			Help:      "Outbound chat API request latency",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"backend", "model"},
	)

	vaultLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "azchat",
			Name:      "keyvault_lookups_total",
			Help:      "Key Vault secret lookups by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordSubmission counts one POST /submit.
func RecordSubmission(outcome string) {
	submissionsTotal.WithLabelValues(outcome).Inc()
}

// RecordVaultLookup counts one Key Vault secret fetch.
func RecordVaultLookup(outcome string) {
	vaultLookupsTotal.WithLabelValues(outcome).Inc()
}

// RecordUpstream counts one chat API call. status is the HTTP status code,
// or 0 when no response was received.
func RecordUpstream(backend, model string, status int, seconds float64) {
	label := "network_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	upstreamRequestsTotal.WithLabelValues(backend, model, label).Inc()
	upstreamRequestDuration.WithLabelValues(backend, model).Observe(seconds)
}

// NewPrometheusHooks returns llmclient hooks that record every attempt.
func NewPrometheusHooks() llmclient.Hooks {
	return llmclient.Hooks{
		OnRequestEnd: func(_ context.Context, info llmclient.ResponseInfo) {
			RecordUpstream(info.Provider, info.Model, info.StatusCode, info.Duration.Seconds())
		},
	}
}
