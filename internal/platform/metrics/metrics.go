package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the delivery service.
// All methods are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	requestsTotal     prometheus.Counter
	errorsTotal       prometheus.Counter
	manifestsServed   prometheus.Counter
	segmentsServed    prometheus.Counter
	accessDecisions   *prometheus.CounterVec
	tierResults       *prometheus.CounterVec
	jobsTotal         *prometheus.CounterVec
	jobsQueued        prometheus.Gauge
	resources         prometheus.Gauge
	auditDroppedTotal prometheus.Counter
}

// New creates and registers Prometheus metrics for the service.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "embed_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "embed_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	manifestsServed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "embed_manifests_served_total",
		Help: "Total number of manifests served",
	})
	segmentsServed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "embed_segments_served_total",
		Help: "Total number of segment responses started",
	})
	accessDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "embed_access_decisions_total",
		Help: "Domain access gate decisions by reason",
	}, []string{"reason"})
	tierResults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "embed_transcode_tiers_total",
		Help: "Transcoded ladder tiers by quality and outcome",
	}, []string{"quality", "outcome"})
	jobsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "embed_transcode_jobs_total",
		Help: "Finished transcode jobs by outcome",
	}, []string{"outcome"})
	jobsQueued := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "embed_transcode_jobs_queued",
		Help: "Transcode jobs waiting for a worker",
	})
	resources := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "embed_resources",
		Help: "Number of stored resources",
	})
	auditDroppedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "embed_access_audit_dropped_total",
		Help: "Access audit events dropped because the buffer was full",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		manifestsServed,
		segmentsServed,
		accessDecisions,
		tierResults,
		jobsTotal,
		jobsQueued,
		resources,
		auditDroppedTotal,
	)

	return &Metrics{
		registry:          registry,
		requestsTotal:     requestsTotal,
		errorsTotal:       errorsTotal,
		manifestsServed:   manifestsServed,
		segmentsServed:    segmentsServed,
		accessDecisions:   accessDecisions,
		tierResults:       tierResults,
		jobsTotal:         jobsTotal,
		jobsQueued:        jobsQueued,
		resources:         resources,
		auditDroppedTotal: auditDroppedTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	if m == nil {
		return
	}
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	if m == nil {
		return
	}
	m.errorsTotal.Inc()
}

// IncManifestsServed increments the manifests served counter.
func (m *Metrics) IncManifestsServed() {
	if m == nil {
		return
	}
	m.manifestsServed.Inc()
}

// IncSegmentsServed increments the segments served counter.
func (m *Metrics) IncSegmentsServed() {
	if m == nil {
		return
	}
	m.segmentsServed.Inc()
}

// ObserveAccessDecision counts one gate decision.
func (m *Metrics) ObserveAccessDecision(reason string) {
	if m == nil {
		return
	}
	m.accessDecisions.WithLabelValues(reason).Inc()
}

// ObserveTier counts one ladder tier outcome ("ok" or "failed").
func (m *Metrics) ObserveTier(quality, outcome string) {
	if m == nil {
		return
	}
	m.tierResults.WithLabelValues(quality, outcome).Inc()
}

// ObserveJob counts one finished transcode job.
func (m *Metrics) ObserveJob(outcome string) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(outcome).Inc()
}

// SetJobsQueued sets the queued jobs gauge.
func (m *Metrics) SetJobsQueued(n int) {
	if m == nil {
		return
	}
	m.jobsQueued.Set(float64(n))
}

// SetResources sets the stored resources gauge.
func (m *Metrics) SetResources(n int) {
	if m == nil {
		return
	}
	m.resources.Set(float64(n))
}

// IncAuditDropped increments the dropped audit events counter.
func (m *Metrics) IncAuditDropped() {
	if m == nil {
		return
	}
	m.auditDroppedTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
