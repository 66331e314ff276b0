package router

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/stagerouter/internal/router/dispatch"
)

// Metrics holds the Prometheus collectors a Router updates. A Router
// without metrics skips all of this.
type Metrics struct {
	eventsPublished  *prometheus.CounterVec
	eventsDropped    prometheus.Counter
	eventsCancelled  prometheus.Counter
	committedSkipped prometheus.Counter
	invocations      *prometheus.CounterVec
	failures         *prometheus.CounterVec
	queueDepth       prometheus.Gauge
	handlerEntries   prometheus.Gauge
	dispatchDuration prometheus.Histogram
}

// NewMetrics creates unregistered collectors under namespace. An empty
// namespace defaults to "stagerouter".
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "stagerouter"
	}
	return &Metrics{
		eventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Total number of events dispatched, by commit result",
			},
			[]string{"committed"},
		),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Queued events dropped because their model was unregistered",
		}),
		eventsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "cancelled_total",
			Help:      "Events cancelled during the preview phase",
		}),
		committedSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "committed_skipped_total",
			Help:      "Events whose committed phase was skipped because nothing committed",
		}),
		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "handlers",
				Name:      "invocations_total",
				Help:      "Total handler invocations",
			},
			[]string{"stage"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "handlers",
				Name:      "failures_total",
				Help:      "Handler failures by stage and kind (error, panic)",
			},
			[]string{"stage", "kind"},
		),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Pending items in the publish queue",
		}),
		handlerEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "handlers",
			Name:      "entries",
			Help:      "Handler entries across all dispatch tables",
		}),
		dispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of the three-phase dispatch of one event",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Collectors returns every collector.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.eventsPublished,
		m.eventsDropped,
		m.eventsCancelled,
		m.committedSkipped,
		m.invocations,
		m.failures,
		m.queueDepth,
		m.handlerEntries,
		m.dispatchDuration,
	}
}

// Register registers every collector with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) observeInvocation(inv Invocation) {
	st := inv.Stage.String()
	m.invocations.WithLabelValues(st).Inc()
	switch {
	case inv.Result.Panicked:
		m.failures.WithLabelValues(st, "panic").Inc()
	case inv.Result.Error != nil:
		m.failures.WithLabelValues(st, "error").Inc()
	}
}

func (m *Metrics) observeOutcome(out dispatch.Outcome) {
	switch {
	case out.Cancelled:
		m.eventsCancelled.Inc()
	case !out.Committed:
		m.committedSkipped.Inc()
	}
	committed := "false"
	if out.Committed {
		committed = "true"
	}
	m.eventsPublished.WithLabelValues(committed).Inc()
	m.dispatchDuration.Observe(out.Duration.Seconds())
}
