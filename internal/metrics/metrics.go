// v0
// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/patonw/elevator-sim/internal/bus"
	"github.com/patonw/elevator-sim/internal/circuitbreaker"
	"github.com/patonw/elevator-sim/internal/event"
)

const namespace = "elevatorsim"

// Metrics owns a private registry with bus, domain and HTTP collectors.
type Metrics struct {
	registry *prometheus.Registry

	fired      *prometheus.CounterVec
	dispatched *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	workers    *prometheus.GaugeVec
	workerWork *prometheus.HistogramVec
	events     *prometheus.CounterVec
	clock      prometheus.Gauge

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_events_fired_total",
			Help:      "Events accepted into a partition queue.",
		}, []string{"topic"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_events_dispatched_total",
			Help:      "Events delivered to every subscriber of a partition.",
		}, []string{"topic"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_events_dropped_total",
			Help:      "Events discarded because the bus was closed.",
		}, []string{"topic"}),
		workers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bus_overload_workers",
			Help:      "Extra dispatch workers currently running.",
		}, []string{"topic"}),
		workerWork: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bus_overload_worker_events",
			Help:      "Events handled by an extra worker before it exited.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"topic"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domain_events_total",
			Help:      "Domain events observed on the bus by kind.",
		}, []string{"kind"}),
		clock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clock_tick",
			Help:      "Latest simulation tick.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.fired,
		m.dispatched,
		m.dropped,
		m.workers,
		m.workerWork,
		m.events,
		m.clock,
		m.httpRequestsTotal,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Bus observer callbacks.

func (m *Metrics) Fired(topic event.Topic)      { m.fired.WithLabelValues(topic.String()).Inc() }
func (m *Metrics) Dispatched(topic event.Topic) { m.dispatched.WithLabelValues(topic.String()).Inc() }
func (m *Metrics) Dropped(topic event.Topic)    { m.dropped.WithLabelValues(topic.String()).Inc() }

func (m *Metrics) WorkerStarted(topic event.Topic) {
	m.workers.WithLabelValues(topic.String()).Inc()
}

func (m *Metrics) WorkerStopped(topic event.Topic, handled int) {
	m.workers.WithLabelValues(topic.String()).Dec()
	m.workerWork.WithLabelValues(topic.String()).Observe(float64(handled))
}

var _ bus.Observer = (*Metrics)(nil)

// React counts domain events by kind and tracks the clock.
func (m *Metrics) React(_ event.Bus, ev event.Event) {
	if tick, ok := ev.(event.ClockTick); ok {
		m.clock.Set(float64(tick.Value))
		return
	}
	m.events.WithLabelValues(string(ev.Kind())).Inc()
}

// StatusSource reports per-partition state.
type StatusSource interface {
	Status() []bus.PartitionStatus
}

// TrackBus exports backlog and health gauges read from src at scrape time.
func (m *Metrics) TrackBus(src StatusSource) {
	m.registry.MustRegister(&busCollector{
		src: src,
		backlog: prometheus.NewDesc(prometheus.BuildFQName(namespace, "bus", "backlog"),
			"Events queued on a partition.", []string{"topic"}, nil),
		capacity: prometheus.NewDesc(prometheus.BuildFQName(namespace, "bus", "capacity"),
			"Queue capacity of a partition.", []string{"topic"}, nil),
		health: prometheus.NewDesc(prometheus.BuildFQName(namespace, "bus", "health"),
			"Partition health (0 good, 1 degraded, 2 critical).", []string{"topic"}, nil),
	})
}

// TrackBreaker exports the state of a circuit breaker (0 closed, 1 open, 2 half open).
func (m *Metrics) TrackBreaker(name string, b *circuitbreaker.Breaker) {
	if b == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "circuit_breaker_state",
		Help:        "Circuit breaker state (0 closed, 1 open, 2 half open).",
		ConstLabels: prometheus.Labels{"target": name},
	}, func() float64 { return float64(b.State()) }))
}

type busCollector struct {
	src      StatusSource
	backlog  *prometheus.Desc
	capacity *prometheus.Desc
	health   *prometheus.Desc
}

func (c *busCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.backlog
	ch <- c.capacity
	ch <- c.health
}

func (c *busCollector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.src.Status() {
		ch <- prometheus.MustNewConstMetric(c.backlog, prometheus.GaugeValue, float64(s.Backlog), s.Topic)
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Capacity), s.Topic)
		ch <- prometheus.MustNewConstMetric(c.health, prometheus.GaugeValue, healthValue(s.Health), s.Topic)
	}
}

func healthValue(h string) float64 {
	for _, v := range []event.Health{event.Good, event.Degraded, event.Critical} {
		if v.String() == h {
			return float64(v)
		}
	}
	return -1
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler records request count and latency under route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}
