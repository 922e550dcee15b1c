// Package metrics exposes Prometheus collectors for scans, the queue and the
// report.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every docqueue collector plus the Go runtime collectors.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		DocumentsQueued, ScanErrors,
		ScansTotal, ScanDuration,
		ReportRecords, QueueSize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// DocumentsQueued counts documents put on the queue by scanners.
var DocumentsQueued = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "docqueue_documents_queued_total",
		Help: "Documents put on the extraction queue.",
	},
)

// ScanErrors counts entries skipped because of an error.
var ScanErrors = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "docqueue_scan_errors_total",
		Help: "Entries skipped during a scan because of an error.",
	},
	[]string{"stage"}, // walk | stat | identity
)

// ScansTotal counts finished background scans.
var ScansTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "docqueue_scans_total",
		Help: "Background scans by final status.",
	},
	[]string{"status"}, // completed | failed | cancelled
)

// ScanDuration observes background scan wall time.
var ScanDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "docqueue_scan_duration_seconds",
		Help:    "Background scan duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 4, 10),
	},
)

// ReportRecords counts extraction outcomes recorded in the report.
var ReportRecords = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "docqueue_report_records_total",
		Help: "Extraction outcomes recorded in the report.",
	},
	[]string{"status"},
)

// QueueSize is the last observed queue length.
var QueueSize = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "docqueue_queue_size",
		Help: "Documents waiting on the queue when last observed.",
	},
	[]string{"queue"},
)

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
