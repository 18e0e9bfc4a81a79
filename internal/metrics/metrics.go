// Package metrics holds the Prometheus collectors exported by the server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "budgetai"

// Metrics groups the application's collectors.
type Metrics struct {
	SplitsCalculated     prometheus.Counter
	SplitRejections      *prometheus.CounterVec
	ParticipantsPerSplit prometheus.Histogram
	ReceiptsProcessed    *prometheus.CounterVec
	BudgetPlans          *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers all collectors with a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers all collectors with reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SplitsCalculated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "splits_calculated_total",
			Help:      "Number of expense splits calculated successfully.",
		}),
		SplitRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "split_rejections_total",
			Help:      "Number of split requests rejected by validation, by reason.",
		}, []string{"reason"}),
		ParticipantsPerSplit: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "split_participants",
			Help:      "Number of participants per calculated split.",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 20},
		}),
		ReceiptsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipts_processed_total",
			Help:      "Number of uploaded receipts, by outcome.",
		}, []string{"outcome"}),
		BudgetPlans: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_plans_total",
			Help:      "Number of budget plan requests, by mode and outcome.",
		}, []string{"mode", "outcome"}),
		gatherer: reg,
	}
}

// Handler serves the registered collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
