package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "pipeline_runs_total",
			Help:      "Total pipeline runs by final state",
		},
		[]string{"state"},
	)

	PipelineItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "pipeline_items_total",
			Help:      "Total keywords processed by outcome",
		},
		[]string{"status"},
	)

	PipelineRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "Pipeline run duration in seconds",
			Buckets:   []float64{1, 5, 15, 60, 180, 600, 1800, 3600},
		},
	)

	RetrievalChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "retrieval_chunks_total",
			Help:      "Total document chunks indexed for retrieval",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(PipelineRunsTotal)
	prometheus.MustRegister(PipelineItemsTotal)
	prometheus.MustRegister(PipelineRunDuration)
	prometheus.MustRegister(RetrievalChunksTotal)
	pipelineMetricsRegistered = true
}
