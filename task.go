package dispatch

import (
	"sync/atomic"

	"github.com/fathomlabs/taskdispatch/internal/stackalloc"
	"github.com/webriots/coro"
)

// TaskID uniquely identifies a posted task within a process, used for
// logging, metrics, and panic reports. It is never reused.
type TaskID uint64

var nextTaskID atomic.Uint64

func newTaskID() TaskID {
	return TaskID(nextTaskID.Add(1))
}

// CoroFunc is the body of a resumable coroutine task. It returns a
// status code: 0 for success, non-zero to resolve the task with a
// UserError carrying that code (unless the body already resolved ctx
// itself, in which case the explicit resolution wins).
type CoroFunc[R any] func(ctx *CoroContext[R], args ...any) int

// IoFunc is the body of a one-shot I/O task. Same status contract as
// CoroFunc.
type IoFunc[R any] func(promise IoPromise[R], args ...any) int

// coroRunner and ioRunner type-erase the result type R so a
// *taskHandle can live in a single non-generic queue regardless of
// what any individual task returns. The generic bridging happens
// entirely inside the closures built by newCoroTaskHandle and
// newIoTaskHandle below; nothing outside this file needs to know R.
type coroRunner interface {
	// resume runs the coroutine until its next yield or completion.
	// It reports true if the coroutine yielded (more work remains)
	// and false if it ran to completion.
	resume() bool
	cancel()
}

type ioRunner interface {
	// run executes the I/O callable to completion.
	run()
}

// taskHandle is the non-generic unit of work carried through queues
// and workers, corresponding to the original spec's Task entity.
type taskHandle struct {
	id           TaskID
	kind         TaskKind
	queueID      int
	highPriority bool
	state        atomic.Int32

	coro coroRunner // non-nil for KindCoro
	io   ioRunner   // non-nil for KindIo

	// execNanos accumulates active run time across every resume (a
	// coroutine that yields several times is timed cumulatively, not
	// just on its final resume), read once at completion for
	// Metrics.RecordTaskDuration.
	execNanos atomic.Int64

	// resolveErr and release type-erase the generic future[R] and
	// allocator cell backing this handle, so the non-generic abandon/
	// fail paths below don't need to know R. resolveErr sets this
	// task's future to an error; release returns the handle's backing
	// memory (slab slot or heap cell) once the task will never be
	// touched again.
	resolveErr func(error)
	release    func()
}

func (t *taskHandle) getState() taskState { return taskState(t.state.Load()) }
func (t *taskHandle) setState(s taskState) { t.state.Store(int32(s)) }

// abandon resolves this task's future with ErrTerminated, cancelling
// its coroutine first if it has one, and releases the handle. It is
// called on tasks still sitting in a queue (or suspended, never
// resumed again) when the dispatcher is terminated, matching the
// contract that terminate abandons pending work rather than silently
// dropping it.
func (t *taskHandle) abandon() { t.discard(ErrTerminated) }

// discard is abandon's implementation, generalized to take the error
// to resolve with so postCoro/postIo can reuse it for a task whose
// handle was constructed but never successfully enqueued.
func (t *taskHandle) discard(err error) {
	if t.coro != nil {
		t.coro.cancel()
	}
	t.resolveErr(err)
	t.release()
}

// fail resolves this task's future with err and releases the handle,
// without touching its coroutine resources. Used when a task's
// callable panics mid-execution: by the time recoverTask's defer
// catches the panic, resume/run has already unwound on its own.
func (t *taskHandle) fail(err error) {
	t.resolveErr(err)
	t.release()
}

// coroTaskRunner adapts a webriots/coro stackful coroutine to the
// coroRunner interface. The coroutine's I/O type parameters are both
// struct{} because resume/yield never exchange data in this
// dispatcher: control transfer is all that Yield needs, and the
// task's actual result flows through the future instead, matching
// how the original spec keeps the coroutine protocol (yield/resume)
// separate from the promise/future result channel.
type coroTaskRunner[R any] struct {
	resumeFn func(struct{}) (struct{}, bool)
	cancelFn func()
}

func (r *coroTaskRunner[R]) resume() bool {
	_, more := r.resumeFn(struct{}{})
	return more
}

func (r *coroTaskRunner[R]) cancel() { r.cancelFn() }

// newCoroTaskHandle builds a taskHandle wrapping fn as a stackful
// coroutine (grounded on webriots-corio/task.go's use of
// coro.New), returning the handle alongside the Future backing its
// result. alloc backs the handle's memory: a nil alloc heap-allocates
// directly, matching the pre-slab behavior; a non-nil alloc draws from
// its slab, falling back to alloc's own heap-fallback budget, and can
// return ResourceExhausted if both are exhausted.
func newCoroTaskHandle[R any](alloc *stackalloc.Allocator[taskHandle], fn CoroFunc[R], args []any) (*taskHandle, *future[R], error) {
	f := newFuture[R]()

	h, release, err := allocTaskHandle(alloc, taskHandle{id: newTaskID(), kind: KindCoro})
	if err != nil {
		return nil, nil, err
	}

	resume, cancel := coro.New(func(yield func(struct{}) struct{}, suspend func() struct{}) (z struct{}) {
		ctx := &CoroContext[R]{yield: func() { suspend() }, f: f, homeQueue: func() int { return h.queueID }}
		status := fn(ctx, args...)
		if !f.isResolved() {
			if status != 0 {
				f.setError(newUserError(status))
			} else {
				var zero R
				f.set(zero)
			}
		}
		return
	})

	h.coro = &coroTaskRunner[R]{resumeFn: resume, cancelFn: cancel}
	h.resolveErr = func(err error) { f.setError(err) }
	h.release = release
	h.setState(stateQueued)
	return h, f, nil
}

// allocTaskHandle constructs a taskHandle from alloc (or the heap, if
// alloc is nil), returning the handle alongside a release func that
// returns its backing memory exactly once.
func allocTaskHandle(alloc *stackalloc.Allocator[taskHandle], zero taskHandle) (*taskHandle, func(), error) {
	if alloc == nil {
		h := zero
		return &h, func() {}, nil
	}
	cell, err := alloc.Construct(zero)
	if err != nil {
		return nil, nil, &DispatchError{Kind: ResourceExhausted, msg: err.Error()}
	}
	return cell.Get(), func() { alloc.Destroy(cell) }, nil
}

// ioTaskRunner adapts a one-shot IoFunc to the ioRunner interface.
type ioTaskRunner[R any] struct {
	fn   IoFunc[R]
	args []any
	f    *future[R]
}

func (r *ioTaskRunner[R]) run() {
	status := r.fn(IoPromise[R]{f: r.f}, r.args...)
	if !r.f.isResolved() {
		if status != 0 {
			r.f.setError(newUserError(status))
		} else {
			var zero R
			r.f.set(zero)
		}
	}
}

// newIoTaskHandle builds a taskHandle wrapping fn as a one-shot I/O
// callable, returning the handle alongside the Future backing its
// result. See newCoroTaskHandle for alloc's contract.
func newIoTaskHandle[R any](alloc *stackalloc.Allocator[taskHandle], fn IoFunc[R], args []any) (*taskHandle, *future[R], error) {
	f := newFuture[R]()

	h, release, err := allocTaskHandle(alloc, taskHandle{id: newTaskID(), kind: KindIo})
	if err != nil {
		return nil, nil, err
	}

	h.io = &ioTaskRunner[R]{fn: fn, args: args, f: f}
	h.resolveErr = func(err error) { f.setError(err) }
	h.release = release
	h.setState(stateQueued)
	return h, f, nil
}
