// Package metrics exposes Prometheus collectors for the estimate pipeline
// and its HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "carprice"

// Recorder owns a private registry so tests can create as many as they like.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	Registry *prometheus.Registry

	estimates       *prometheus.CounterVec
	estimateSeconds *prometheus.HistogramVec
	requests        *prometheus.CounterVec
	requestSeconds  *prometheus.HistogramVec
}

func New() *Recorder {
	r := &Recorder{
		Registry: prometheus.NewRegistry(),
		estimates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimates_total",
			Help:      "Estimate requests by outcome and the last stage reached.",
		}, []string{"outcome", "stage"}),
		estimateSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "estimate_duration_seconds",
			Help:      "Time spent processing one estimate request.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, path and status code.",
		}, []string{"method", "path", "status"}),
		requestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	r.Registry.MustRegister(
		r.estimates,
		r.estimateSeconds,
		r.requests,
		r.requestSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// ObserveEstimate records one pipeline run ending at stage.
func (r *Recorder) ObserveEstimate(stage string, failed bool, elapsed time.Duration) {
	if r == nil {
		return
	}
	outcome := "completed"
	if failed {
		outcome = "failed"
	}
	r.estimates.WithLabelValues(outcome, stage).Inc()
	r.estimateSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (r *Recorder) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.requestSeconds.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{Registry: r.Registry})
}
