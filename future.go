package dispatch

import (
	"context"
	"sync"
)

// future is the shared result cell behind both Future[R] (the
// caller-facing read side) and the producer-side Set/SetError calls
// issued from inside a running task. Resolution is single-assignment:
// the first of set/setError wins, matching the promise/future
// contract in the original spec. Waiters block on a channel close
// rather than a mutex+cond, which composes cleanly with
// context.Context cancellation in Get.
type future[R any] struct {
	done chan struct{}
	once sync.Once

	value R
	err   error

	mu        sync.Mutex
	onResolve []func(R, error)
}

func newFuture[R any]() *future[R] {
	return &future[R]{done: make(chan struct{})}
}

func (f *future[R]) resolve(v R, err error) {
	f.once.Do(func() {
		f.value, f.err = v, err

		f.mu.Lock()
		conts := f.onResolve
		f.onResolve = nil
		close(f.done)
		f.mu.Unlock()

		for _, c := range conts {
			c(v, err)
		}
	})
}

func (f *future[R]) set(v R)         { f.resolve(v, nil) }
func (f *future[R]) setError(e error) { var zero R; f.resolve(zero, e) }

func (f *future[R]) isResolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// addContinuation registers fn to run once the future resolves. If it
// is already resolved, fn runs inline on the calling goroutine
// immediately (matching the "finally always runs" contract even when
// attached after the fact).
func (f *future[R]) addContinuation(fn func(R, error)) {
	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		fn(f.value, f.err)
		return
	default:
	}
	f.onResolve = append(f.onResolve, fn)
	f.mu.Unlock()
}

// Future is the read-only caller handle for an IoTask's result, or a
// CoroTask's result as returned by Context.Future. Get blocks until the result is
// available or ctx is done, whichever comes first.
type Future[R any] struct {
	f *future[R]
}

// Get waits for the task to finish, honoring ctx's deadline/cancel.
func (fut Future[R]) Get(ctx context.Context) (R, error) {
	select {
	case <-fut.f.done:
		return fut.f.value, fut.f.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// TryGet returns immediately, reporting whether the task had already
// finished.
func (fut Future[R]) TryGet() (value R, err error, ready bool) {
	select {
	case <-fut.f.done:
		return fut.f.value, fut.f.err, true
	default:
		var zero R
		return zero, nil, false
	}
}

// Done returns a channel closed once the result is available, for use
// in select statements alongside other events.
func (fut Future[R]) Done() <-chan struct{} { return fut.f.done }

// IoPromise is the producer-side handle passed to an IoFunc. The
// callable must resolve it with exactly one of Set or SetError before
// returning; if it returns a non-zero status without having resolved
// the promise, the worker resolves it with a UserError carrying that
// status.
type IoPromise[R any] struct {
	f *future[R]
}

// Set resolves the promise successfully.
func (p IoPromise[R]) Set(value R) { p.f.set(value) }

// SetError resolves the promise with an error.
func (p IoPromise[R]) SetError(err error) { p.f.setError(err) }
