// Package prometheus adapts dispatch.Metrics to Prometheus
// instrumentation, grounded on the teacher's own
// observability/prometheus/metrics_exporter.go: the same
// histogram/counter/gauge vector shapes, retargeted from the
// teacher's runner/priority labels to the dispatcher's pool/queue
// labels.
package prometheus

import (
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/fathomlabs/taskdispatch"
)

// ExporterOptions configures the histogram buckets used for task
// duration. A nil Buckets falls back to prometheus.DefBuckets.
type ExporterOptions struct {
	DurationBuckets []float64
}

// Exporter is a dispatch.Metrics implementation backed by Prometheus
// vectors, registered under a single namespace.
type Exporter struct {
	taskDurationSeconds *prom.HistogramVec
	taskPanicTotal      *prom.CounterVec
	taskRejectedTotal   *prom.CounterVec
	queueDepth          *prom.GaugeVec
}

var _ dispatch.Metrics = (*Exporter)(nil)

// NewExporter creates and registers an Exporter's vectors against reg.
func NewExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*Exporter, error) {
	buckets := opts.DurationBuckets
	if buckets == nil {
		buckets = prom.DefBuckets
	}

	e := &Exporter{
		taskDurationSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task execution duration in seconds.",
			Buckets:   buckets,
		}, []string{"pool", "queue"}),
		taskPanicTotal: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "task_panic_total",
			Help:      "Number of tasks that panicked during execution.",
		}, []string{"pool", "queue"}),
		taskRejectedTotal: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "task_rejected_total",
			Help:      "Number of posts rejected without running.",
		}, []string{"pool", "reason"}),
		queueDepth: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Current resident task count per queue.",
		}, []string{"pool", "queue"}),
	}

	for _, c := range []prom.Collector{e.taskDurationSeconds, e.taskPanicTotal, e.taskRejectedTotal, e.queueDepth} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func queueLabel(queueID int) string {
	if queueID < 0 {
		return "all"
	}
	return strconv.Itoa(queueID)
}

func (e *Exporter) RecordTaskDuration(pool string, queueID int, duration time.Duration) {
	e.taskDurationSeconds.WithLabelValues(pool, queueLabel(queueID)).Observe(duration.Seconds())
}

func (e *Exporter) RecordTaskPanic(pool string, queueID int) {
	e.taskPanicTotal.WithLabelValues(pool, queueLabel(queueID)).Inc()
}

func (e *Exporter) RecordQueueDepth(pool string, queueID int, depth int) {
	e.queueDepth.WithLabelValues(pool, queueLabel(queueID)).Set(float64(depth))
}

func (e *Exporter) RecordTaskRejected(pool string, reason string) {
	e.taskRejectedTotal.WithLabelValues(pool, reason).Inc()
}
