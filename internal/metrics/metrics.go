package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the service.
// Each instance owns its registry so tests can create several.
type Metrics struct {
	registry *prometheus.Registry

	EnrollmentsTotal     *prometheus.CounterVec
	VerificationsTotal   *prometheus.CounterVec
	VerificationDuration *prometheus.HistogramVec
	EncoderDuration      prometheus.Histogram
	EncoderErrorsTotal   prometheus.Counter
	PersistTotal         *prometheus.CounterVec
	PersistDuration      *prometheus.HistogramVec
	EnrolledUsers        prometheus.Gauge
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		EnrollmentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faceauth_enrollments_total",
				Help: "Total number of face enrollment attempts",
			},
			[]string{"result"},
		),
		VerificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faceauth_verifications_total",
				Help: "Total number of face verifications",
			},
			[]string{"event", "result"},
		),
		VerificationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "faceauth_verification_duration_seconds",
				Help:    "Time taken to verify a face",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"event"},
		),
		EncoderDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "faceauth_encoder_duration_seconds",
				Help:    "Latency of face encoder calls",
				Buckets: prometheus.DefBuckets,
			},
		),
		EncoderErrorsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "faceauth_encoder_errors_total",
				Help: "Total number of failed face encoder calls",
			},
		),
		PersistTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faceauth_template_persist_total",
				Help: "Total number of template snapshot writes",
			},
			[]string{"backend", "result"},
		),
		PersistDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "faceauth_template_persist_duration_seconds",
				Help:    "Time taken to write a template snapshot",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		EnrolledUsers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "faceauth_enrolled_users",
				Help: "Current number of enrolled identities",
			},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordEnrollment(result string) {
	m.EnrollmentsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordVerification(event, result string, duration time.Duration) {
	m.VerificationsTotal.WithLabelValues(event, result).Inc()
	m.VerificationDuration.WithLabelValues(event).Observe(duration.Seconds())
}

func (m *Metrics) RecordEncoderCall(duration time.Duration, err error) {
	m.EncoderDuration.Observe(duration.Seconds())
	if err != nil {
		m.EncoderErrorsTotal.Inc()
	}
}

func (m *Metrics) RecordPersist(backend string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.PersistTotal.WithLabelValues(backend, result).Inc()
	m.PersistDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

func (m *Metrics) SetEnrolledUsers(n int) {
	m.EnrolledUsers.Set(float64(n))
}
