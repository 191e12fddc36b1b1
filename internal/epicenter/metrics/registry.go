package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry encapsulates all metrics and provides a clean interface
// for recording metrics without global state
type Registry struct {
	registry *prometheus.Registry

	// Registration metrics
	listenTotal         *prometheus.CounterVec
	listenersRegistered *prometheus.GaugeVec
	hasListenersTotal   *prometheus.CounterVec

	// Delivery metrics
	dispatchTotal     *prometheus.CounterVec
	dispatchDuration  *prometheus.HistogramVec
	broadcastTotal    *prometheus.CounterVec
	broadcastDuration *prometheus.HistogramVec

	// System health metrics
	systemInfo *prometheus.GaugeVec
	startTime  prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	registry := prometheus.NewRegistry()

	r := &Registry{
		registry: registry,

		listenTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "epicenter_listen_total",
				Help: "Total number of listener registrations",
			},
			[]string{"dispatcher", "event", "status"}, // status: success, error
		),

		listenersRegistered: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "epicenter_listeners_registered",
				Help: "Number of listeners currently registered per event type",
			},
			[]string{"dispatcher", "event"},
		),

		hasListenersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "epicenter_has_listeners_total",
				Help: "Total number of listener lookups",
			},
			[]string{"dispatcher", "event", "status"}, // status: found, missing, error
		),

		dispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "epicenter_dispatch_total",
				Help: "Total number of dispatch operations",
			},
			[]string{"dispatcher", "event", "status"}, // status: success, error
		),

		dispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "epicenter_dispatch_duration_seconds",
				Help:    "Time spent delivering an event to its listeners",
				Buckets: []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"dispatcher", "event"},
		),

		broadcastTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "epicenter_broadcast_total",
				Help: "Total number of broadcast operations",
			},
			[]string{"dispatcher", "event", "status"}, // status: success, error
		),

		broadcastDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "epicenter_broadcast_duration_seconds",
				Help:    "Time spent fanning an event out to its listeners",
				Buckets: []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"dispatcher", "event"},
		),

		systemInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "epicenter_system_info",
				Help: "System information (value is always 1, labels contain info)",
			},
			[]string{"version", "build_time"},
		),

		startTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "epicenter_start_time_seconds",
				Help: "Unix timestamp when the application started",
			},
		),
	}

	// add default Go metrics (memory, GC, goroutines, etc.)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry.MustRegister(
		r.listenTotal,
		r.listenersRegistered,
		r.hasListenersTotal,
		r.dispatchTotal,
		r.dispatchDuration,
		r.broadcastTotal,
		r.broadcastDuration,
		r.systemInfo,
		r.startTime,
	)

	r.startTime.SetToCurrentTime()

	return r
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          r.registry,
	})
}

// Gatherer exposes the underlying registry, mostly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordListen records a listener registration
func (r *Registry) RecordListen(dispatcher, event string, err error) {
	r.listenTotal.WithLabelValues(dispatcher, event, status(err)).Inc()
	if err == nil {
		r.listenersRegistered.WithLabelValues(dispatcher, event).Inc()
	}
}

// RecordHasListeners records a listener lookup and its outcome
func (r *Registry) RecordHasListeners(dispatcher, event string, found bool, err error) {
	s := "missing"
	switch {
	case err != nil:
		s = "error"
	case found:
		s = "found"
	}

	r.hasListenersTotal.WithLabelValues(dispatcher, event, s).Inc()
}

// RecordDispatch records a dispatch operation
func (r *Registry) RecordDispatch(dispatcher, event string, duration time.Duration, err error) {
	r.dispatchTotal.WithLabelValues(dispatcher, event, status(err)).Inc()
	r.dispatchDuration.WithLabelValues(dispatcher, event).Observe(duration.Seconds())
}

// RecordBroadcast records a broadcast operation
func (r *Registry) RecordBroadcast(dispatcher, event string, duration time.Duration, err error) {
	r.broadcastTotal.WithLabelValues(dispatcher, event, status(err)).Inc()
	r.broadcastDuration.WithLabelValues(dispatcher, event).Observe(duration.Seconds())
}

// SetSystemInfo sets system information metrics
func (r *Registry) SetSystemInfo(version, buildTime string) {
	r.systemInfo.WithLabelValues(version, buildTime).Set(1)
}

func status(err error) string {
	if err != nil {
		return "error"
	}

	return "success"
}
