// Package metrics exposes prometheus metrics for streams and the mailboxes
// backing iterators.
package metrics

import (
	"github.com/gokit/rxkit"
	"github.com/gokit/rxkit/mailbox"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the metrics recorded by instrumented streams and queues.
// It implements prometheus.Collector and must be registered to be exported.
type Collector struct {
	signals *prometheus.CounterVec
	active  *prometheus.GaugeVec
	depth   *prometheus.GaugeVec
	dropped *prometheus.CounterVec
}

var _ prometheus.Collector = &Collector{}

// NewCollector returns a new Collector whose metrics are prefixed by namespace.
func NewCollector(namespace string) *Collector {
	return &Collector{
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "signals_total",
			Help:      "Signals observed on instrumented streams.",
		}, []string{"stream", "signal"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "active_runs",
			Help:      "Runs of instrumented streams which have not terminated.",
		}, []string{"stream"}),
		depth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Items waiting in instrumented queues.",
		}, []string{"queue"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "dropped_total",
			Help:      "Items dropped by instrumented queues.",
		}, []string{"queue"}),
	}
}

// Describe implements the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.signals.Describe(ch)
	c.active.Describe(ch)
	c.depth.Describe(ch)
	c.dropped.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.signals.Collect(ch)
	c.active.Collect(ch)
	c.depth.Collect(ch)
	c.dropped.Collect(ch)
}

// Signals returns the counter of signal kind seen on the named stream.
// Kinds are "subscribe", "request", "next", "error", "complete" and "cancel".
func (c *Collector) Signals(stream string, kind string) prometheus.Counter {
	return c.signals.WithLabelValues(stream, kind)
}

// Active returns the gauge of live runs of the named stream.
func (c *Collector) Active(stream string) prometheus.Gauge {
	return c.active.WithLabelValues(stream)
}

// Depth returns the gauge of items waiting in the named queue.
func (c *Collector) Depth(queue string) prometheus.Gauge {
	return c.depth.WithLabelValues(queue)
}

// Dropped returns the counter of items dropped by the named queue.
func (c *Collector) Dropped(queue string) prometheus.Counter {
	return c.dropped.WithLabelValues(queue)
}

//***********************************
//  Instrument
//***********************************

// Instrument returns a stream recording every signal of s under name.
func Instrument[T any](s rxkit.Stream[T], c *Collector, name string) rxkit.Stream[T] {
	subscribed := c.Signals(name, "subscribe")
	requested := c.Signals(name, "request")
	nexts := c.Signals(name, "next")
	errs := c.Signals(name, "error")
	completes := c.Signals(name, "complete")
	cancels := c.Signals(name, "cancel")
	active := c.Active(name)

	return s.Tap(rxkit.Hooks[T]{
		OnSubscribe: func() {
			subscribed.Inc()
			active.Inc()
		},
		OnRequest: func(_ int64) {
			requested.Inc()
		},
		OnNext: func(_ T) {
			nexts.Inc()
		},
		OnError: func(_ error) {
			errs.Inc()
			active.Dec()
		},
		OnComplete: func() {
			completes.Inc()
			active.Dec()
		},
		OnCancel: func() {
			cancels.Inc()
			active.Dec()
		},
	})
}

//***********************************
//  QueueInvoker
//***********************************

// QueueInvoker returns a mailbox.Invoker tracking the depth and drops of
// the named queue, use it as the Invoker of an rxkit.IteratorConfig.
// Depth is only exact for unbounded queues, items evicted by DropOld are
// counted as dropped but stay in the depth.
func QueueInvoker[T any](c *Collector, name string) mailbox.Invoker[T] {
	return &queueInvoker[T]{depth: c.Depth(name), dropped: c.Dropped(name)}
}

type queueInvoker[T any] struct {
	depth   prometheus.Gauge
	dropped prometheus.Counter
}

func (q *queueInvoker[T]) InvokedFull()  {}
func (q *queueInvoker[T]) InvokedEmpty() {}

func (q *queueInvoker[T]) InvokedDropped(_ T) {
	q.dropped.Inc()
}

func (q *queueInvoker[T]) InvokedReceived(_ T) {
	q.depth.Inc()
}

func (q *queueInvoker[T]) InvokedDispatched(_ T) {
	q.depth.Dec()
}
