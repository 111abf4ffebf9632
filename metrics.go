package dispatch

import "time"

// Metrics collects observability data about dispatcher activity.
// Implementations can forward to Prometheus (see metrics/prometheus),
// StatsD, or anything else. All methods must be cheap and
// non-blocking: they run on the hot path of enqueue/start/finish.
type Metrics interface {
	// RecordTaskDuration records how long a task ran for, in the
	// named pool ("coro" or "io").
	RecordTaskDuration(pool string, queueID int, duration time.Duration)
	// RecordTaskPanic records that a task panicked.
	RecordTaskPanic(pool string, queueID int)
	// RecordQueueDepth records a queue's current resident task count.
	RecordQueueDepth(pool string, queueID int, depth int)
	// RecordTaskRejected records a post rejected outside of task
	// execution (e.g. after terminate, or an invalid argument).
	RecordTaskRejected(pool string, reason string)
}

// NilMetrics discards everything. It is the dispatcher's default.
type NilMetrics struct{}

func (NilMetrics) RecordTaskDuration(string, int, time.Duration) {}
func (NilMetrics) RecordTaskPanic(string, int)                   {}
func (NilMetrics) RecordQueueDepth(string, int, int)              {}
func (NilMetrics) RecordTaskRejected(string, string)              {}
