// Package metrics exposes Prometheus counters and histograms for the
// operations reversion cares about: commits, blob writes, clean runs, and
// verify findings. The CLI serves these over HTTP when run with
// --metrics-addr. Grounded on
// kubernetes-csi-external-snapshotter's pkg/metrics (a registry of
// per-operation counters/histograms served over HTTP), adapted from its
// k8s component-base wrapper down to client_golang's own registration
// API, which is what that wrapper calls through to.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const subsystem = "reversion"

// Registry wraps a Prometheus registry and the metrics reversion reports
// against it. A nil *Registry is safe to call methods on; every method is
// a no-op, so callers that never opted into a metrics endpoint don't need
// to branch before reporting.
type Registry struct {
	reg *prometheus.Registry

	commits       *prometheus.CounterVec
	commitLatency *prometheus.HistogramVec
	blobPuts      *prometheus.CounterVec
	blobBytes     prometheus.Counter
	cleanRemovals *prometheus.CounterVec
	verifyFindings *prometheus.CounterVec
}

// NewRegistry builds a fresh Registry with every metric registered.
func NewRegistry() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.commits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "commits_total",
		Help:      "Total number of commits, labeled by result.",
	}, []string{"result"})

	r.commitLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: subsystem,
		Name:      "commit_duration_seconds",
		Help:      "Time spent creating a snapshot from a working directory.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"result"})

	r.blobPuts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "blob_puts_total",
		Help:      "Total number of blob store writes, labeled by whether the blob already existed.",
	}, []string{"dedup"})

	r.blobBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "blob_bytes_written_total",
		Help:      "Total bytes actually written to the blob store (excludes deduplicated puts).",
	})

	r.cleanRemovals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "clean_removed_total",
		Help:      "Total number of versions removed by retention cleanup, labeled by timeline.",
	}, []string{"timeline"})

	r.verifyFindings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "verify_findings_total",
		Help:      "Total number of defects surfaced by a verify run, labeled by category.",
	}, []string{"category"})

	r.reg.MustRegister(r.commits, r.commitLatency, r.blobPuts, r.blobBytes, r.cleanRemovals, r.verifyFindings)
	return r
}

// Handler returns the http.Handler that serves this registry's metrics in
// the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveCommit records the outcome and duration of a commit attempt.
// result is "created", "noop" (nothing modified), or "error".
func (r *Registry) ObserveCommit(result string, seconds float64) {
	if r == nil {
		return
	}
	r.commits.WithLabelValues(result).Inc()
	r.commitLatency.WithLabelValues(result).Observe(seconds)
}

// ObserveBlobPut records one blob store write, and how many bytes were
// actually written (zero when deduped).
func (r *Registry) ObserveBlobPut(deduped bool, bytesWritten int64) {
	if r == nil {
		return
	}
	label := "new"
	if deduped {
		label = "deduped"
	}
	r.blobPuts.WithLabelValues(label).Inc()
	if !deduped {
		r.blobBytes.Add(float64(bytesWritten))
	}
}

// ObserveClean records how many versions a retention run removed from a
// given timeline.
func (r *Registry) ObserveClean(timelineID string, removed int) {
	if r == nil || removed == 0 {
		return
	}
	r.cleanRemovals.WithLabelValues(timelineID).Add(float64(removed))
}

// ObserveVerifyFinding records one verify defect in the given category.
// cmd/reversion reports "blob" for a missing, corrupt or size-mismatched
// blob and "orphan" for an unreferenced blob file.
func (r *Registry) ObserveVerifyFinding(category string) {
	if r == nil {
		return
	}
	r.verifyFindings.WithLabelValues(category).Inc()
}
