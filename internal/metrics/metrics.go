// Package metrics exposes Prometheus counters for the service. A nil
// *Recorder is valid and records nothing, so tests can skip wiring it.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "careercoach"

// Recorder owns a private registry so tests can build as many as they like
// without duplicate-registration panics.
type Recorder struct {
	registry *prometheus.Registry

	identityResolutions *prometheus.CounterVec
	profileUpdates      *prometheus.CounterVec
	insightGenerations  *prometheus.CounterVec
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		identityResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_resolutions_total",
			Help:      "Identity resolutions by outcome (found, linked, created, conflict, error).",
		}, []string{"outcome"}),
		profileUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_updates_total",
			Help:      "Profile update transactions by result.",
		}, []string{"result"}),
		insightGenerations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insight_generations_total",
			Help:      "Industry insight generator calls by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.identityResolutions,
		r.profileUpdates,
		r.insightGenerations,
		r.httpRequests,
		r.httpDuration,
	)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) IdentityResolved(outcome string) {
	if r == nil {
		return
	}
	r.identityResolutions.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ProfileUpdated(result string) {
	if r == nil {
		return
	}
	r.profileUpdates.WithLabelValues(result).Inc()
}

func (r *Recorder) InsightGenerated(result string) {
	if r == nil {
		return
	}
	r.insightGenerations.WithLabelValues(result).Inc()
}

// HTTPRequest records one finished request. route is the router pattern,
// not the raw path, to keep label cardinality bounded.
func (r *Recorder) HTTPRequest(method, route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
