package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/gammazero/deque"
)

// queueStats holds atomically-maintained counters surfaced by
// TaskDispatcher.Stats.
type queueStats struct {
	mu        sync.Mutex
	posted    uint64
	completed uint64
	rejected  uint64
}

// QueueStatistics is the snapshot returned by TaskDispatcher.Stats.
type QueueStatistics struct {
	Posted    uint64
	Completed uint64
	Rejected  uint64
	Resident  int
}

func (s *queueStats) snapshot(resident int) QueueStatistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return QueueStatistics{Posted: s.posted, Completed: s.completed, Rejected: s.rejected, Resident: resident}
}

func (s *queueStats) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posted, s.completed, s.rejected = 0, 0, 0
}

func (s *queueStats) recordPosted() {
	s.mu.Lock()
	s.posted++
	s.mu.Unlock()
}

func (s *queueStats) recordCompleted() {
	s.mu.Lock()
	s.completed++
	s.mu.Unlock()
}

func (s *queueStats) recordRejected() {
	s.mu.Lock()
	s.rejected++
	s.mu.Unlock()
}

// queue is one worker's dual-priority FIFO: a high-priority section
// dequeued before the normal-priority section, each itself FIFO.
// Implementation uses two gammazero/deque.Deque[*taskHandle] ring
// buffers under one mutex, real third-party dependency grounded on
// webriots-corio's sema.go use of the same deque for a waiter queue.
//
// Workers park on signal when both sections are empty; enqueue wakes
// a parked worker with a non-blocking send, following the teacher's
// task_scheduler.go signal-channel idiom (buffered capacity 1, send
// under select/default so a queue that already has a pending wakeup
// never blocks the poster).
type queue struct {
	mu     sync.Mutex
	high   deque.Deque[*taskHandle]
	normal deque.Deque[*taskHandle]
	signal chan struct{}

	shutdown  bool
	stats     queueStats
	executing atomic.Int32 // tasks dequeued but not yet finished/requeued, so size() counts a running task
}

func newQueue(signalCapacity int) *queue {
	if signalCapacity < 1 {
		signalCapacity = 1
	}
	return &queue{signal: make(chan struct{}, signalCapacity)}
}

// enqueue adds t to the high or normal section depending on
// highPriority, and wakes a parked worker. It reports false if the
// queue has been shut down, in which case the caller owns t again.
func (q *queue) enqueue(t *taskHandle, highPriority bool) bool {
	q.mu.Lock()
	if q.shutdown {
		q.mu.Unlock()
		return false
	}
	if highPriority {
		q.high.PushBack(t)
	} else {
		q.normal.PushBack(t)
	}
	q.stats.recordPosted()
	q.mu.Unlock()

	q.wake()
	return true
}

// requeue puts a suspended coroutine task back at the tail of its own
// priority class, used by the worker run-loop after a yield.
func (q *queue) requeue(t *taskHandle, highPriority bool) bool {
	return q.enqueue(t, highPriority)
}

func (q *queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// dequeue pops the next task, checking the high section before the
// normal section, and marks it as executing so size() keeps counting
// it until finishExecuting is called. It reports false if nothing is
// available.
func (q *queue) dequeue() (*taskHandle, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var t *taskHandle
	switch {
	case q.high.Len() > 0:
		t = q.high.PopFront()
	case q.normal.Len() > 0:
		t = q.normal.PopFront()
	default:
		return nil, false
	}
	q.executing.Add(1)
	return t, true
}

// finishExecuting marks a previously dequeued task as no longer
// occupying the "currently executing" slot, whether because it
// finished for good or because it was just requeued (in which case
// its presence in a deque already counts it).
func (q *queue) finishExecuting() { q.executing.Add(-1) }

// size returns the combined resident count across both sections plus
// whatever task the owning worker currently has dequeued and running,
// matching the original spec's "size includes the currently executing
// task" rule.
func (q *queue) size() int {
	q.mu.Lock()
	n := q.high.Len() + q.normal.Len()
	q.mu.Unlock()
	return n + int(q.executing.Load())
}

func (q *queue) empty() bool { return q.size() == 0 }

// close marks the queue shut down, rejecting further enqueues, and
// abandons every task still resident (queued, or a coroutine
// suspended and waiting to be resumed) by cancelling its coroutine
// (if it has one) and resolving its future with ErrTerminated, via
// taskHandle.abandon. It does not touch a task the owning worker is
// currently executing; the worker itself is responsible for
// abandoning that one if it comes back suspended after cancellation.
func (q *queue) close() {
	q.mu.Lock()
	q.shutdown = true
	var abandoned []*taskHandle
	for q.high.Len() > 0 {
		abandoned = append(abandoned, q.high.PopFront())
	}
	for q.normal.Len() > 0 {
		abandoned = append(abandoned, q.normal.PopFront())
	}
	q.mu.Unlock()

	q.wake()
	for _, t := range abandoned {
		t.abandon()
	}
}

func (q *queue) statsSnapshot() QueueStatistics {
	return q.stats.snapshot(q.size())
}
