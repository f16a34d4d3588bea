// Package metrics holds the Prometheus collectors for the gateway.
//
// A nil *Metrics is valid and records nothing, so components can be built without a registry.
//
// Metrics:
//   - gateway_invocations_total{provider,method,result} - completed invocations by result
//   - gateway_invocation_duration_seconds{provider,method} - handler execution time
//   - gateway_invocations_in_flight - invocations currently executing
//   - gateway_result_store_entries - outcomes currently held
//   - gateway_result_store_evictions_total{reason} - outcomes dropped without being read
//   - gateway_result_lookups_total{found} - result retrievals
//   - gateway_events_published_total{result} - outcome notifications
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gateway"

// Metrics bundles every gateway collector.
type Metrics struct {
	InvocationsTotal   *prometheus.CounterVec
	InvocationDuration *prometheus.HistogramVec
	InFlight           prometheus.Gauge
	StoreEntries       prometheus.Gauge
	StoreEvictions     *prometheus.CounterVec
	ResultLookups      *prometheus.CounterVec
	EventsPublished    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		InvocationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Total number of completed invocations",
			},
			[]string{"provider", "method", "result"}, // result: "ok", "resolution", "argument", "execution"
		),
		InvocationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invocation_duration_seconds",
				Help:      "Duration of invocations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider", "method"},
		),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "invocations_in_flight",
			Help:      "Number of invocations currently executing",
		}),
		StoreEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "result_store_entries",
			Help:      "Number of outcomes held in the result store",
		}),
		StoreEvictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "result_store_evictions_total",
				Help:      "Total number of outcomes dropped before being read",
			},
			[]string{"reason"},
		),
		ResultLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "result_lookups_total",
				Help:      "Total number of result retrievals",
			},
			[]string{"found"},
		),
		EventsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Total number of outcome notifications",
			},
			[]string{"result"}, // "ok" or "error"
		),
	}
}

// ObserveInvocation records one completed invocation. kind is empty on success.
func (m *Metrics) ObserveInvocation(provider, method, kind string, d time.Duration) {
	if m == nil {
		return
	}
	result := kind
	if result == "" {
		result = "ok"
	}
	m.InvocationsTotal.WithLabelValues(provider, method, result).Inc()
	m.InvocationDuration.WithLabelValues(provider, method).Observe(d.Seconds())
}

// InvocationStarted increments the in-flight gauge.
func (m *Metrics) InvocationStarted() {
	if m == nil {
		return
	}
	m.InFlight.Inc()
}

// InvocationFinished decrements the in-flight gauge.
func (m *Metrics) InvocationFinished() {
	if m == nil {
		return
	}
	m.InFlight.Dec()
}

// SetStoreEntries sets the result store size.
func (m *Metrics) SetStoreEntries(n int) {
	if m == nil {
		return
	}
	m.StoreEntries.Set(float64(n))
}

// StoreEvicted counts an eviction.
func (m *Metrics) StoreEvicted(reason string) {
	if m == nil {
		return
	}
	m.StoreEvictions.WithLabelValues(reason).Inc()
}

// ResultLookup counts a retrieval.
func (m *Metrics) ResultLookup(found bool) {
	if m == nil {
		return
	}
	label := "false"
	if found {
		label = "true"
	}
	m.ResultLookups.WithLabelValues(label).Inc()
}

// EventPublished counts a notification.
func (m *Metrics) EventPublished(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.EventsPublished.WithLabelValues(result).Inc()
}
