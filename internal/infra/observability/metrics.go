package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/astroflora/driver-ai-router/internal/domain"
)

// Metrics holds all Prometheus metrics for the router.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	attemptDuration *prometheus.HistogramVec
	attempts        *prometheus.CounterVec
	healthCache     *prometheus.CounterVec
	messages        *prometheus.CounterVec
	classifications *prometheus.CounterVec
	probes          *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// router metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "router_request_duration_seconds",
				Help:    "Duration of router operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		attemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "router_dispatch_attempt_duration_seconds",
				Help:    "Duration of single backend attempts by body shape.",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
			},
			[]string{"shape"},
		),
		attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_dispatch_attempts_total",
				Help: "Backend attempts by outcome.",
			},
			[]string{"outcome"},
		),
		healthCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_health_cache_lookups_total",
				Help: "Health cache lookups during dispatch (skip = known unhealthy).",
			},
			[]string{"result"},
		),
		messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_messages_total",
				Help: "Messages answered by source.",
			},
			[]string{"source"},
		),
		classifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_classifications_total",
				Help: "Messages classified by kind.",
			},
			[]string{"kind"},
		),
		probes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_health_probes_total",
				Help: "Backend health probes by result.",
			},
			[]string{"status"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordAttempt records one backend attempt.
func (m *Metrics) RecordAttempt(a domain.DispatchAttempt) {
	m.attempts.WithLabelValues(a.Outcome.String()).Inc()
	m.attemptDuration.WithLabelValues(a.Endpoint.BodyShape.String()).
		Observe(float64(a.DurationMs) / 1000)
}

// IncrHealthSkip counts a candidate skipped because it is cached unhealthy.
func (m *Metrics) IncrHealthSkip() {
	m.healthCache.WithLabelValues("skip").Inc()
}

// IncrHealthPass counts a candidate the health cache let through.
func (m *Metrics) IncrHealthPass() {
	m.healthCache.WithLabelValues("pass").Inc()
}

// IncrMessage counts an answered message by its source.
func (m *Metrics) IncrMessage(source domain.Source) {
	m.messages.WithLabelValues(string(source)).Inc()
}

// IncrClassification counts a classified message.
func (m *Metrics) IncrClassification(kind domain.Kind) {
	m.classifications.WithLabelValues(kind.String()).Inc()
}

// IncrProbe counts a health probe result ("healthy" or "unhealthy").
func (m *Metrics) IncrProbe(status string) {
	m.probes.WithLabelValues(status).Inc()
}

// Snapshot returns router counters suitable for the GET /v1/metrics/router
// endpoint.
func (m *Metrics) Snapshot() *domain.RouterMetrics {
	backend := getCounterValue(m.messages, string(domain.SourceBackend))
	fallback := getCounterValue(m.messages, string(domain.SourceFallback))
	skips := getCounterValue(m.healthCache, "skip")
	passes := getCounterValue(m.healthCache, "pass")

	outcomes := make(map[string]int64, 5)
	for _, o := range []domain.Outcome{
		domain.OutcomeSuccess,
		domain.OutcomeTimeout,
		domain.OutcomeNetworkError,
		domain.OutcomeBadStatus,
		domain.OutcomeMalformedBody,
	} {
		outcomes[o.String()] = int64(getCounterValue(m.attempts, o.String()))
	}

	total := backend + fallback
	fallbackRate := float64(0)
	if total > 0 {
		fallbackRate = fallback / total
	}
	skipRate := float64(0)
	if skips+passes > 0 {
		skipRate = skips / (skips + passes)
	}

	return &domain.RouterMetrics{
		TotalMessages:   int64(total),
		BackendAnswers:  int64(backend),
		FallbackAnswers: int64(fallback),
		FallbackRate:    fallbackRate,
		AttemptOutcomes: outcomes,
		HealthCacheHits: int64(skips),
		HealthSkipRate:  skipRate,
		Period:          "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
