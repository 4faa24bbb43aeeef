package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the vCon gateway.
type Metrics struct {
	Created            prometheus.Counter
	Signed             prometheus.Counter
	Tagged             prometheus.Counter
	ValidationFailures prometheus.Counter
	Verifications      *prometheus.CounterVec
	EventFailures      *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
}

// New creates the gateway metrics on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Created: factory.NewCounter(prometheus.CounterOpts{
			Name: "vcon_documents_created_total",
			Help: "Total number of vCon documents stored",
		}),
		Signed: factory.NewCounter(prometheus.CounterOpts{
			Name: "vcon_documents_signed_total",
			Help: "Total number of vCon documents signed",
		}),
		Tagged: factory.NewCounter(prometheus.CounterOpts{
			Name: "vcon_documents_tagged_total",
			Help: "Total number of tags added to stored documents",
		}),
		ValidationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "vcon_validation_failures_total",
			Help: "Documents rejected by validation",
		}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vcon_verifications_total",
			Help: "Signature verifications by result",
		}, []string{"result"}), // result: "valid", "invalid", "unsigned", "missing"
		EventFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vcon_event_publish_failures_total",
			Help: "Lifecycle events that could not be handed to the publisher",
		}, []string{"type"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vcon_operation_duration_seconds",
			Help:    "Duration of gateway operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementCreated() {
	if m != nil {
		m.Created.Inc()
	}
}

func (m *Metrics) IncrementSigned() {
	if m != nil {
		m.Signed.Inc()
	}
}

func (m *Metrics) IncrementTagged() {
	if m != nil {
		m.Tagged.Inc()
	}
}

func (m *Metrics) IncrementValidationFailure() {
	if m != nil {
		m.ValidationFailures.Inc()
	}
}

// RecordVerification counts one verification outcome.
func (m *Metrics) RecordVerification(result string) {
	if m != nil {
		m.Verifications.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncrementEventFailure(eventType string) {
	if m != nil {
		m.EventFailures.WithLabelValues(eventType).Inc()
	}
}

// ObserveOperation records the duration of op since start.
func (m *Metrics) ObserveOperation(op string, start time.Time) {
	if m != nil {
		m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
