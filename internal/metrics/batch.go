// Package metrics exposes Prometheus collectors for batch processing outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeSuccess     = "success"
	OutcomeEmpty       = "empty"
	OutcomeBadArchive  = "bad_archive"
	OutcomeNoDocuments = "no_documents"
	OutcomeTooMany     = "too_many_archives"
	OutcomeError       = "error"
)

// BatchMetrics records batch outcomes. It satisfies service.Observer.
type BatchMetrics struct {
	batches   *prometheus.CounterVec
	documents prometheus.Counter
	groups    prometheus.Histogram
	bytes     prometheus.Histogram
}

// NewBatchMetrics registers the batch collectors on reg.
func NewBatchMetrics(reg prometheus.Registerer) (*BatchMetrics, error) {
	m := &BatchMetrics{
		batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certgrouper_batches_total",
				Help: "Batches processed, by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		documents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "certgrouper_documents_total",
			Help: "Certificates filed into course folders.",
		}),
		groups: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "certgrouper_batch_groups",
			Help:    "Course folders produced per batch.",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		bytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "certgrouper_output_archive_bytes",
			Help:    "Size of grouped output archives.",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 8),
		}),
	}

	for _, c := range []prometheus.Collector{m.batches, m.documents, m.groups, m.bytes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveBatch records one batch run. documents, groups and size are only counted on success.
func (m *BatchMetrics) ObserveBatch(operation, outcome string, documents, groups, size int) {
	m.batches.WithLabelValues(operation, outcome).Inc()
	if outcome != OutcomeSuccess {
		return
	}
	m.documents.Add(float64(documents))
	m.groups.Observe(float64(groups))
	if size > 0 {
		m.bytes.Observe(float64(size))
	}
}
