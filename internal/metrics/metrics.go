// Package metrics exposes Prometheus collectors for statement extraction.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "statement_extractor"

// Recorder counts pipeline activity. A nil *Recorder is valid and records nothing.
type Recorder struct {
	pages             prometheus.Counter
	transactions      prometheus.Counter
	inference         *prometheus.CounterVec
	rejected          *prometheus.CounterVec
	documentDuration  prometheus.Histogram
	archiveFailures   prometheus.Counter
	warehouseFailures prometheus.Counter
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(Namespace, "pipeline", "pages_processed_total"),
			Help: "Count of statement pages processed",
		}),
		transactions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(Namespace, "pipeline", "transactions_extracted_total"),
			Help: "Count of transactions recognized on processed pages",
		}),
		inference: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(Namespace, "inference", "pages_total"),
			Help: "Count of per-page model inferences by outcome",
		}, []string{"outcome"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(Namespace, "pipeline", "documents_rejected_total"),
			Help: "Count of documents that could not be parsed",
		}, []string{"reason"}),
		documentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    prometheus.BuildFQName(Namespace, "pipeline", "document_duration_seconds"),
			Help:    "Time to process one document end to end",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		archiveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(Namespace, "archive", "failures_total"),
			Help: "Count of statements that could not be archived",
		}),
		warehouseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(Namespace, "warehouse", "failures_total"),
			Help: "Count of failed warehouse exports",
		}),
	}

	reg.MustRegister(
		r.pages,
		r.transactions,
		r.inference,
		r.rejected,
		r.documentDuration,
		r.archiveFailures,
		r.warehouseFailures,
	)
	return r
}

// PageProcessed records one finished page.
func (r *Recorder) PageProcessed(transactions int, inferenceOutcome string) {
	if r == nil {
		return
	}
	r.pages.Inc()
	r.transactions.Add(float64(transactions))
	r.inference.WithLabelValues(inferenceOutcome).Inc()
}

// DocumentRejected records a document that failed to parse.
func (r *Recorder) DocumentRejected(reason string) {
	if r == nil {
		return
	}
	r.rejected.WithLabelValues(reason).Inc()
}

// ObserveDocument records the processing time of one document.
func (r *Recorder) ObserveDocument(d time.Duration) {
	if r == nil {
		return
	}
	r.documentDuration.Observe(d.Seconds())
}

// ArchiveFailed records a failed archive upload.
func (r *Recorder) ArchiveFailed() {
	if r == nil {
		return
	}
	r.archiveFailures.Inc()
}

// WarehouseFailed records a failed warehouse export.
func (r *Recorder) WarehouseFailed() {
	if r == nil {
		return
	}
	r.warehouseFailures.Inc()
}
