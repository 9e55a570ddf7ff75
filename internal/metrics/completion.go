package metrics

import "github.com/prometheus/client_golang/prometheus"

// Completion Prometheus metrics.
var (
	CompletionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "completion_requests_total",
			Help:      "Total number of text completion requests",
		},
		[]string{"provider", "model", "status"},
	)

	CompletionRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "completion_request_duration_seconds",
			Help:      "Text completion request duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"provider", "model"},
	)

	CompletionTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "completion_tokens_total",
			Help:      "Total completion tokens consumed",
		},
		[]string{"provider", "model", "type"}, // "prompt" / "completion"
	)

	CompletionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "completion_errors_total",
			Help:      "Total text completion errors",
		},
		[]string{"provider", "model", "error_type"},
	)
)

var completionMetricsRegistered bool

// RegisterCompletionMetrics registers Prometheus completion metrics. Must be called once from main.
func RegisterCompletionMetrics() {
	if completionMetricsRegistered {
		return
	}
	prometheus.MustRegister(CompletionRequestsTotal)
	prometheus.MustRegister(CompletionRequestDuration)
	prometheus.MustRegister(CompletionTokensTotal)
	prometheus.MustRegister(CompletionErrorsTotal)
	completionMetricsRegistered = true
}

// ObserveCompletion records one finished completion request.
// errType is empty on success.
func ObserveCompletion(provider, model string, seconds float64, promptTokens, completionTokens int, errType string) {
	if errType != "" {
		CompletionRequestsTotal.WithLabelValues(provider, model, "error").Inc()
		CompletionErrorsTotal.WithLabelValues(provider, model, errType).Inc()
		return
	}
	CompletionRequestsTotal.WithLabelValues(provider, model, "success").Inc()
	CompletionRequestDuration.WithLabelValues(provider, model).Observe(seconds)
	if promptTokens > 0 {
		CompletionTokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		CompletionTokensTotal.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}
