package dispatch

import "sync/atomic"

// TaskDispatcher is a pair of thread pools — one running cooperative
// stackful coroutines, one running blocking-capable I/O callables —
// fronted by per-worker priority queues. It is the facade over core;
// every TaskDispatcher returned by NewTaskDispatcher is fully
// independent, so a process can run any number of them side by side.
type TaskDispatcher struct {
	core   *core
	closed atomic.Bool
}

// Option configures a TaskDispatcher at construction time.
type Option func(*DispatcherConfig, *dispatcherDeps)

type dispatcherDeps struct {
	logger       Logger
	panicHandler PanicHandler
	metrics      Metrics
}

// WithConfig overrides the whole DispatcherConfig, e.g. one loaded via
// LoadConfig.
func WithConfig(cfg DispatcherConfig) Option {
	return func(c *DispatcherConfig, _ *dispatcherDeps) { *c = cfg }
}

// WithNumCoroutineThreads sets the coroutine pool size. n <= 0 means
// one worker per logical core.
func WithNumCoroutineThreads(n int) Option {
	return func(c *DispatcherConfig, _ *dispatcherDeps) { c.NumCoroutineThreads = n }
}

// WithNumIoThreads sets the I/O pool size.
func WithNumIoThreads(n int) Option {
	return func(c *DispatcherConfig, _ *dispatcherDeps) { c.NumIoThreads = n }
}

// WithPinCoroutineThreadsToCores requests CPU affinity pinning for
// coroutine workers, honored only when the pool size fits within
// runtime.NumCPU().
func WithPinCoroutineThreadsToCores(pin bool) Option {
	return func(c *DispatcherConfig, _ *dispatcherDeps) { c.PinCoroutineThreadsToCores = pin }
}

// WithLogger overrides the dispatcher's Logger. The default is
// NoOpLogger.
func WithLogger(l Logger) Option {
	return func(_ *DispatcherConfig, d *dispatcherDeps) { d.logger = l }
}

// WithPanicHandler overrides the dispatcher's PanicHandler. The
// default is a DefaultPanicHandler bound to the dispatcher's Logger.
func WithPanicHandler(h PanicHandler) Option {
	return func(_ *DispatcherConfig, d *dispatcherDeps) { d.panicHandler = h }
}

// WithMetrics overrides the dispatcher's Metrics sink. The default is
// NilMetrics.
func WithMetrics(m Metrics) Option {
	return func(_ *DispatcherConfig, d *dispatcherDeps) { d.metrics = m }
}

// NewTaskDispatcher creates a dispatcher and starts its worker pools.
// Defaults match the original library: one coroutine thread per
// logical core, five I/O threads, no CPU pinning.
func NewTaskDispatcher(opts ...Option) (*TaskDispatcher, error) {
	cfg := DefaultDispatcherConfig()
	deps := dispatcherDeps{}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}
	if deps.logger == nil {
		deps.logger = NewNoOpLogger()
	}
	if deps.panicHandler == nil {
		deps.panicHandler = NewDefaultPanicHandler(deps.logger)
	}
	if deps.metrics == nil {
		deps.metrics = NilMetrics{}
	}

	c := newCore(cfg, deps.logger, deps.panicHandler, deps.metrics)
	return &TaskDispatcher{core: c}, nil
}

// Post enqueues a coroutine task onto an auto-selected coroutine
// queue at normal priority. The returned Context is not chainable; use
// PostFirst for a chain head.
func Post[R any](d *TaskDispatcher, fn CoroFunc[R], args ...any) (*Context[R], error) {
	return postCoro(d, int(Any), false, false, fn, args)
}

// PostOn enqueues a coroutine task onto a specific queue (or Any),
// with the given priority. The returned Context is not chainable; use
// PostFirstOn for a chain head.
func PostOn[R any](d *TaskDispatcher, queueID int, highPriority bool, fn CoroFunc[R], args ...any) (*Context[R], error) {
	return postCoro(d, queueID, highPriority, false, fn, args)
}

// PostFirst enqueues a coroutine task as the head of a continuation
// chain, onto an auto-selected coroutine queue at normal priority.
func PostFirst[R any](d *TaskDispatcher, fn CoroFunc[R], args ...any) (*Context[R], error) {
	return postCoro(d, int(Any), false, true, fn, args)
}

// PostFirstOn enqueues a coroutine task as the head of a continuation
// chain, onto a specific queue (or Any), with the given priority.
func PostFirstOn[R any](d *TaskDispatcher, queueID int, highPriority bool, fn CoroFunc[R], args ...any) (*Context[R], error) {
	return postCoro(d, queueID, highPriority, true, fn, args)
}

// PostSameOn enqueues a coroutine task onto the same coroutine queue
// the calling coroutine is running on, at the given priority. This is
// the Go rendering of the original's Same sentinel: it is only valid
// from inside a running coroutine (S is the caller's own result type,
// only used to read its home queue via ctx.QueueID(); it need not
// match R, the new task's result type).
func PostSameOn[R, S any](ctx *CoroContext[S], d *TaskDispatcher, highPriority bool, fn CoroFunc[R], args ...any) (*Context[R], error) {
	return postCoro(d, ctx.QueueID(), highPriority, false, fn, args)
}

func postCoro[R any](d *TaskDispatcher, queueID int, highPriority, chainable bool, fn CoroFunc[R], args []any) (*Context[R], error) {
	h, f, err := newCoroTaskHandle(d.core.taskAlloc, fn, args)
	if err != nil {
		return nil, err
	}
	if err := d.core.postCoro(queueID, highPriority, h); err != nil {
		h.discard(err)
		return nil, err
	}
	return &Context[R]{f: f, chainable: chainable, d: d}, nil
}

// PostAsyncIo enqueues an I/O task onto an auto-selected I/O queue at
// normal priority, returning its Future.
func PostAsyncIo[R any](d *TaskDispatcher, fn IoFunc[R], args ...any) (Future[R], error) {
	return postIo(d, int(Any), false, fn, args)
}

// PostAsyncIoOn enqueues an I/O task onto a specific queue (or Any),
// with the given priority.
func PostAsyncIoOn[R any](d *TaskDispatcher, queueID int, highPriority bool, fn IoFunc[R], args ...any) (Future[R], error) {
	return postIo(d, queueID, highPriority, fn, args)
}

func postIo[R any](d *TaskDispatcher, queueID int, highPriority bool, fn IoFunc[R], args []any) (Future[R], error) {
	h, f, err := newIoTaskHandle(d.core.taskAlloc, fn, args)
	if err != nil {
		return Future[R]{}, err
	}
	if err := d.core.postIo(queueID, highPriority, h); err != nil {
		h.discard(err)
		return Future[R]{}, err
	}
	return Future[R]{f: f}, nil
}

// Drain stops accepting new posts and blocks until every queue is
// empty and no task is executing. Worker pools stay running; call
// Terminate or Close afterward to stop them.
func (d *TaskDispatcher) Drain() { d.core.drain() }

// Terminate abandons any pending or suspended work (resolving their
// futures with ErrTerminated), signals every worker, and blocks until
// all of them have exited. It is idempotent and safe to call
// concurrently.
func (d *TaskDispatcher) Terminate() { d.core.terminate() }

// Close drains then terminates the dispatcher, and waits for every
// worker goroutine to exit. It is the idiomatic `defer`-friendly
// substitute for the original's destructor, which performed an
// implicit drain-then-terminate. Close is idempotent.
func (d *TaskDispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	d.core.drain()
	d.core.terminate()
	d.core.wait()
	return nil
}

// Size returns the resident task count for the selected pool/queue.
// t=TypeAll ignores queueID; queueID=All sums across the selected
// pool.
func (d *TaskDispatcher) Size(t QueueType, queueID int) (int, error) {
	return d.core.size(t, queueID)
}

// Empty reports whether Size would return 0 for the same arguments.
func (d *TaskDispatcher) Empty(t QueueType, queueID int) (bool, error) {
	return d.core.empty(t, queueID)
}

// Stats returns posted/completed/rejected counters and current
// residency for the selected pool/queue.
func (d *TaskDispatcher) Stats(t QueueType, queueID int) (QueueStatistics, error) {
	return d.core.stats(t, queueID)
}

// ResetStats zeroes every queue's posted/completed/rejected counters.
func (d *TaskDispatcher) ResetStats() { d.core.resetStats() }
