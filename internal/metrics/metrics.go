// Package metrics exposes tuning results to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/iris-knn/internal/learning"
)

const namespace = "knn"

// Metrics records finished evaluations. It implements learning.EvaluationSink.
type Metrics struct {
	registry    *prometheus.Registry
	evaluations *prometheus.CounterVec
	quality     *prometheus.GaugeVec
}

// New creates Metrics registered on their own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Finished hyperparameter evaluations.",
			}, []string{"dataset", "distance", "outcome"}),
		quality: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "evaluation_quality",
				Help:      "Quality of the last successful evaluation of each hyperparameter.",
			}, []string{"dataset", "k", "distance"}),
	}
	m.registry.MustRegister(m.evaluations, m.quality)
	return m
}

// RecordEvaluation counts ev and, when it succeeded, sets its quality.
func (m *Metrics) RecordEvaluation(_ context.Context, ev learning.Evaluation) error {
	if !ev.Succeeded() {
		m.evaluations.WithLabelValues(ev.Dataset, ev.Distance, "failed").Inc()
		return nil
	}
	m.evaluations.WithLabelValues(ev.Dataset, ev.Distance, "succeeded").Inc()
	m.quality.WithLabelValues(ev.Dataset, strconv.Itoa(ev.K), ev.Distance).Set(*ev.Quality)
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
