package dispatch

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fathomlabs/taskdispatch/internal/stackalloc"
)

// core is the dispatcher's engine: the two worker pools, queue
// selection, and the drain/terminate lifecycle. TaskDispatcher (in
// dispatcher.go) is a thin facade over it, matching the teacher's
// split between an internal scheduler core and the type users
// actually hold.
type core struct {
	coroQueues []*queue
	ioQueues   []*queue

	coroWorkers []*worker
	ioWorkers   []*worker

	// taskAlloc backs every posted taskHandle with a fixed-capacity
	// slab (falling back to the heap once exhausted), avoiding a heap
	// allocation per posted task in the common case. Nil
	// (TaskSlabCapacity <= 0) means every taskHandle is heap-allocated
	// directly, matching the pre-slab behavior.
	taskAlloc *stackalloc.Allocator[taskHandle]

	rrHint atomic.Uint64

	draining   atomic.Bool
	terminated atomic.Bool

	wg sync.WaitGroup

	logger       Logger
	panicHandler PanicHandler
	metrics      Metrics
}

func newCore(cfg DispatcherConfig, logger Logger, panicHandler PanicHandler, metrics Metrics) *core {
	numCoro := cfg.NumCoroutineThreads
	if numCoro <= 0 {
		numCoro = runtime.NumCPU()
	}
	numIo := cfg.NumIoThreads
	if numIo <= 0 {
		numIo = 5
	}

	c := &core{logger: logger, panicHandler: panicHandler, metrics: metrics}
	if cfg.TaskSlabCapacity > 0 {
		c.taskAlloc = stackalloc.New[taskHandle](cfg.TaskSlabCapacity, cfg.TaskHeapFallbackBudget)
	}

	c.coroQueues = make([]*queue, numCoro)
	c.coroWorkers = make([]*worker, numCoro)
	for i := 0; i < numCoro; i++ {
		c.coroQueues[i] = newQueue(cfg.QueueSignalCapacity)
		c.coroWorkers[i] = newWorker(i, KindCoro, c.coroQueues[i], c)
	}

	c.ioQueues = make([]*queue, numIo)
	c.ioWorkers = make([]*worker, numIo)
	for i := 0; i < numIo; i++ {
		c.ioQueues[i] = newQueue(cfg.QueueSignalCapacity)
		c.ioWorkers[i] = newWorker(i, KindIo, c.ioQueues[i], c)
	}

	pin := cfg.PinCoroutineThreadsToCores && numCoro <= runtime.NumCPU()
	c.wg.Add(numCoro + numIo)
	for i, w := range c.coroWorkers {
		w.start(pin, i)
	}
	for _, w := range c.ioWorkers {
		w.start(false, 0)
	}

	return c
}

// selectQueue implements the auto-select rule: the queue in pools
// with the smallest resident size, ties broken by round robin. It is
// called by resolveQueueIndex when the requested id is Any.
func selectQueue(queues []*queue, rrHint *atomic.Uint64) int {
	bestSize := queues[0].size()
	for i := 1; i < len(queues); i++ {
		if s := queues[i].size(); s < bestSize {
			bestSize = s
		}
	}
	var tied []int
	for i, q := range queues {
		if q.size() == bestSize {
			tied = append(tied, i)
		}
	}
	if len(tied) == 1 {
		return tied[0]
	}
	n := rrHint.Add(1)
	return tied[int(n)%len(tied)]
}

// resolveQueueIndex validates and/or auto-selects a queue index for a
// post into queues, returning InvalidArgument for an out-of-range
// explicit id.
func resolveQueueIndex(queues []*queue, queueID int, rrHint *atomic.Uint64) (int, error) {
	switch {
	case queueID == int(Any):
		return selectQueue(queues, rrHint), nil
	case queueID >= 0 && queueID < len(queues):
		return queueID, nil
	default:
		return 0, ErrInvalidArgument
	}
}

func (c *core) postCoro(queueID int, highPriority bool, h *taskHandle) error {
	if c.terminated.Load() {
		c.metrics.RecordTaskRejected("coro", "terminated")
		return ErrInvalidState
	}
	if c.draining.Load() {
		c.metrics.RecordTaskRejected("coro", "draining")
		return ErrInvalidState
	}
	idx, err := resolveQueueIndex(c.coroQueues, queueID, &c.rrHint)
	if err != nil {
		c.metrics.RecordTaskRejected("coro", "invalid_argument")
		return err
	}
	h.queueID = idx
	h.highPriority = highPriority
	if !c.coroQueues[idx].enqueue(h, highPriority) {
		c.metrics.RecordTaskRejected("coro", "queue_closed")
		return ErrInvalidState
	}
	return nil
}

func (c *core) postIo(queueID int, highPriority bool, h *taskHandle) error {
	if c.terminated.Load() {
		c.metrics.RecordTaskRejected("io", "terminated")
		return ErrInvalidState
	}
	if c.draining.Load() {
		c.metrics.RecordTaskRejected("io", "draining")
		return ErrInvalidState
	}
	idx, err := resolveQueueIndex(c.ioQueues, queueID, &c.rrHint)
	if err != nil {
		c.metrics.RecordTaskRejected("io", "invalid_argument")
		return err
	}
	h.queueID = idx
	h.highPriority = highPriority
	if !c.ioQueues[idx].enqueue(h, highPriority) {
		c.metrics.RecordTaskRejected("io", "queue_closed")
		return ErrInvalidState
	}
	return nil
}

// drain stops accepting external posts and blocks until every queue
// is empty and no task is mid-execution. It never stops the worker
// pools; Terminate (or Close) is what does that.
func (c *core) drain() {
	c.draining.Store(true)
	for c.pending() > 0 {
		time.Sleep(time.Millisecond)
	}
}

func (c *core) pending() int64 {
	var total int64
	for _, q := range c.coroQueues {
		total += int64(q.size())
	}
	for _, q := range c.ioQueues {
		total += int64(q.size())
	}
	return total
}

// terminate abandons pending work and stops every worker immediately.
// It is idempotent: calling it more than once, or concurrently, is
// safe and only the first caller's cancellation takes effect; every
// caller returns only once all workers have exited.
func (c *core) terminate() {
	if !c.terminated.CompareAndSwap(false, true) {
		c.wg.Wait()
		return
	}
	c.draining.Store(true)
	for _, q := range c.coroQueues {
		q.close()
	}
	for _, q := range c.ioQueues {
		q.close()
	}
	for _, w := range c.coroWorkers {
		w.cancel()
	}
	for _, w := range c.ioWorkers {
		w.cancel()
	}
	c.wg.Wait()
}

func (c *core) wait() { c.wg.Wait() }

func (c *core) resetStats() {
	for _, q := range c.coroQueues {
		q.stats.reset()
	}
	for _, q := range c.ioQueues {
		q.stats.reset()
	}
}

func (c *core) size(t QueueType, queueID int) (int, error) {
	switch t {
	case TypeAll:
		return c.sumAll(c.coroQueues) + c.sumAll(c.ioQueues), nil
	case TypeCoro:
		return c.sizeOf(c.coroQueues, queueID)
	case TypeIo:
		return c.sizeOf(c.ioQueues, queueID)
	default:
		return 0, ErrInvalidArgument
	}
}

func (c *core) sizeOf(queues []*queue, queueID int) (int, error) {
	if queueID == int(All) {
		return c.sumAll(queues), nil
	}
	if queueID < 0 || queueID >= len(queues) {
		return 0, ErrInvalidArgument
	}
	return queues[queueID].size(), nil
}

func (c *core) sumAll(queues []*queue) int {
	total := 0
	for _, q := range queues {
		total += q.size()
	}
	return total
}

func (c *core) empty(t QueueType, queueID int) (bool, error) {
	n, err := c.size(t, queueID)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

func (c *core) stats(t QueueType, queueID int) (QueueStatistics, error) {
	switch t {
	case TypeCoro:
		return c.statsOf(c.coroQueues, queueID)
	case TypeIo:
		return c.statsOf(c.ioQueues, queueID)
	case TypeAll:
		a, err := c.statsOf(c.coroQueues, int(All))
		if err != nil {
			return QueueStatistics{}, err
		}
		b, err := c.statsOf(c.ioQueues, int(All))
		if err != nil {
			return QueueStatistics{}, err
		}
		return QueueStatistics{
			Posted:    a.Posted + b.Posted,
			Completed: a.Completed + b.Completed,
			Rejected:  a.Rejected + b.Rejected,
			Resident:  a.Resident + b.Resident,
		}, nil
	default:
		return QueueStatistics{}, ErrInvalidArgument
	}
}

func (c *core) statsOf(queues []*queue, queueID int) (QueueStatistics, error) {
	if queueID == int(All) {
		var agg QueueStatistics
		for _, q := range queues {
			s := q.statsSnapshot()
			agg.Posted += s.Posted
			agg.Completed += s.Completed
			agg.Rejected += s.Rejected
			agg.Resident += s.Resident
		}
		return agg, nil
	}
	if queueID < 0 || queueID >= len(queues) {
		return QueueStatistics{}, ErrInvalidArgument
	}
	return queues[queueID].statsSnapshot(), nil
}
