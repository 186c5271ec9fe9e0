// Package metrics defines prometheus metric types and provides convenience
// methods to add accounting to various parts of the pipeline.
//
// When defining new operations or metrics, these are helpful values to track:
//  - things coming into or go out of the system: requests, files, tests, api calls.
//  - the success or error status of any of the above.
//  - the distribution of processing latency.
package metrics

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsIngestedCount counts raw audit records accepted by the
	// assembler, labeled by record type.
	RecordsIngestedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditinfo_records_ingested_total",
			Help: "Number of raw audit records ingested, by record type.",
		}, []string{"record_type"})

	// RecordsDroppedCount counts records that could not be ingested,
	// labeled by the reason (bad_preamble, pool_exhausted).
	RecordsDroppedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditinfo_records_dropped_total",
			Help: "Number of raw audit records dropped before grouping, by reason.",
		}, []string{"reason"})

	// GroupsEmittedCount counts completed RecordGroups handed to a
	// listener, labeled by the reason the group closed (terminator,
	// serial_change, flush).
	GroupsEmittedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditinfo_groups_emitted_total",
			Help: "Number of record groups emitted, by close reason.",
		}, []string{"reason"})

	// GroupSizeHistogram tracks the number of messages per emitted group.
	GroupSizeHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "auditinfo_group_size_histogram",
			Help:    "Number of records per completed group.",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10, 12, 16, 20, 32, 64},
		})

	// PoolExhaustedCount counts buffer allocation failures, labeled by
	// tier (small, large).
	PoolExhaustedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditinfo_pool_exhausted_total",
			Help: "Number of times a buffer pool tier refused an allocation.",
		}, []string{"tier"})

	// ScanErrorCount counts structural field-scan errors, labeled by
	// dialect (default, selinux).
	ScanErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditinfo_scan_errors_total",
			Help: "Number of structural parse errors hit while scanning a record body.",
		}, []string{"dialect"})

	// HexDecodeErrorCount counts hex-decode failures encountered while
	// reconstructing argv in group.ConcatValues.
	HexDecodeErrorCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auditinfo_hex_decode_errors_total",
			Help: "Number of hex-decode failures while expanding a field value.",
		})

	// SinkWriteLatencyHistogram tracks how long it takes to marshal and
	// write one completed group to the output sink.
	SinkWriteLatencyHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "auditinfo_sink_write_latency_seconds",
			Help: "Latency of writing one completed group to the sink.",
			Buckets: []float64{
				0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05,
				0.1, 0.25, 0.5, 1, 2.5, 5,
			},
		})

	// NewFileCount counts the number of archive files written.
	//
	// Provides metrics:
	//   auditinfo_new_file_total
	// Example usage:
	//   metrics.NewFileCount.Inc()
	NewFileCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auditinfo_new_file_total",
			Help: "Number of archive files created.",
		},
	)

	// GroupEventsCounter counts notifications sent on the eventsocket,
	// labeled by event kind.
	GroupEventsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditinfo_group_events_total",
			Help: "Number of group event notifications sent over the eventsocket.",
		}, []string{"kind"})

	// ErrorCount measures the number of errors.
	// Provides metrics:
	//    auditinfo_error_total
	// Example usage:
	//    metrics.ErrorCount.With(prometheus.Labels{"type": "foobar"}).Inc()
	ErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditinfo_error_total",
			Help: "The total number of errors encountered.",
		}, []string{"type"})
)

// init() prints a log message to let the user know that the package has been
// loaded and the metrics registered. The metrics are auto-registered, which
// means they are registered as soon as this package is loaded, and the exact
// time this occurs (and whether this occurs at all in a given context) can be
// opaque.
func init() {
	log.Println("Prometheus metrics in audit-info.metrics are registered.")
}
