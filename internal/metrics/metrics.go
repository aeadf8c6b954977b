// Package metrics holds the Prometheus collectors the application updates.
//
// Collectors are registered on a caller-supplied registry rather than the
// global default, so tests can build as many instances as they like.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	ClipsCreated          *prometheus.CounterVec
	ClipsDeleted          prometheus.Counter
	UploadURLsIssued      prometheus.Counter
	StorageDeleteFailures prometheus.Counter
	OrphansSwept          prometheus.Counter
	HTTPRequests          *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		ClipsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cliplet_clips_created_total",
			Help: "Clips created, by type.",
		}, []string{"type"}),
		ClipsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cliplet_clips_deleted_total",
			Help: "Clips deleted.",
		}),
		UploadURLsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cliplet_upload_urls_issued_total",
			Help: "Presigned upload URLs handed out.",
		}),
		StorageDeleteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cliplet_storage_delete_failures_total",
			Help: "Bucket deletes that failed during clip deletion and were skipped.",
		}),
		OrphansSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cliplet_orphan_objects_swept_total",
			Help: "Unreferenced bucket objects removed by the orphan sweep.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cliplet_http_requests_total",
			Help: "HTTP requests served, by method and status code.",
		}, []string{"method", "status"}),
		registry: reg,
	}

	reg.MustRegister(
		m.ClipsCreated,
		m.ClipsDeleted,
		m.UploadURLsIssued,
		m.StorageDeleteFailures,
		m.OrphansSwept,
		m.HTTPRequests,
	)
	return m
}

// NewNop returns collectors on a private registry, for tests and tools that
// do not expose /metrics.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
