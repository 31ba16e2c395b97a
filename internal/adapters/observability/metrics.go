package observability

import (
	"fmt"
	"strings"
	"time"

	"github.com/eleven-am/tabq/internal/domain"
	"github.com/eleven-am/tabq/internal/ports"
	metrics "github.com/hashicorp/go-metrics"
)

const (
	MetricEnqueued         = "enqueued"
	MetricDequeued         = "dequeued"
	MetricPeeked           = "peeked"
	MetricLeased           = "leased"
	MetricCompleted        = "completed"
	MetricReleased         = "released"
	MetricReclaimed        = "reclaimed"
	MetricLockSkipped      = "lock_skipped"
	MetricEmpty            = "empty"
	MetricEnqueueLatency   = "enqueue_latency"
	MetricDequeueLatency   = "dequeue_latency"
	MetricTakeLeaseLatency = "take_lease_latency"
	MetricDepth            = "depth"
)

// Metrics records queue activity into an in-memory go-metrics sink.
type Metrics struct {
	service string
	metrics *metrics.Metrics
	sink    *metrics.InmemSink
}

var _ ports.QueueMetrics = (*Metrics)(nil)

func NewMetrics(cfg domain.MetricsConfig) (*Metrics, error) {
	conf := metrics.DefaultConfig(cfg.ServiceName)
	conf.EnableHostname = false
	conf.EnableRuntimeMetrics = false

	if cfg.Disabled {
		m, err := metrics.New(conf, &metrics.BlackholeSink{})
		if err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}
		return &Metrics{service: cfg.ServiceName, metrics: m}, nil
	}

	interval, retain := cfg.Interval, cfg.Retain
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if retain < interval {
		retain = interval
	}

	sink := metrics.NewInmemSink(interval, retain)
	m, err := metrics.New(conf, sink)
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	return &Metrics{service: cfg.ServiceName, metrics: m, sink: sink}, nil
}

func (m *Metrics) IncrCounter(name string, value float32) {
	m.metrics.IncrCounter([]string{name}, value)
}

func (m *Metrics) MeasureSince(name string, start time.Time) {
	m.metrics.MeasureSince([]string{name}, start)
}

func (m *Metrics) SetGauge(name string, value float32) {
	m.metrics.SetGauge([]string{name}, value)
}

// Counter sums a counter over the retained intervals. It returns zero when
// metrics are disabled.
func (m *Metrics) Counter(name string) float64 {
	if m.sink == nil {
		return 0
	}

	key := m.flatten(name)
	var total float64
	for _, interval := range m.sink.Data() {
		if counter, ok := interval.Counters[key]; ok {
			total += counter.Sum
		}
	}
	return total
}

// Gauge returns the most recent value of a gauge.
func (m *Metrics) Gauge(name string) (float32, bool) {
	if m.sink == nil {
		return 0, false
	}

	key := m.flatten(name)
	data := m.sink.Data()
	for i := len(data) - 1; i >= 0; i-- {
		if gauge, ok := data[i].Gauges[key]; ok {
			return gauge.Value, true
		}
	}
	return 0, false
}

func (m *Metrics) flatten(name string) string {
	if m.service == "" {
		return name
	}
	return strings.Join([]string{m.service, name}, ".")
}

// Noop discards everything.
type Noop struct{}

func (Noop) IncrCounter(string, float32)    {}
func (Noop) MeasureSince(string, time.Time) {}
func (Noop) SetGauge(string, float32)       {}
