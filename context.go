package dispatch

// CoroContext is the executor-facing handle passed to a CoroFunc body.
// It plays the dual role the original spec's coroutine context and
// promise play together: Yield suspends the coroutine cooperatively
// (control returns to the owning worker, which may run other queued
// tasks before resuming this one), while Set/SetError resolve the
// task's result exactly like an IoPromise does for I/O tasks.
type CoroContext[R any] struct {
	yield     func()
	f         *future[R]
	homeQueue func() int
}

// Yield suspends the running coroutine, returning control to its
// owning worker. The worker requeues this task at the tail of its own
// priority class and resumes it on a later pass through the run loop.
// Yield always resumes on the same worker goroutine it suspended on.
func (c *CoroContext[R]) Yield() { c.yield() }

// QueueID returns the coroutine queue this task is running on. Pass
// it to PostOn (or PostSameOn) to post a child task onto the same
// worker as its poster, the Go rendering of the Same sentinel, which
// is only meaningful from inside a running coroutine.
func (c *CoroContext[R]) QueueID() int { return c.homeQueue() }

// Set resolves the task's result successfully. Calling it more than
// once, or after SetError, has no effect beyond the first call.
func (c *CoroContext[R]) Set(value R) { c.f.set(value) }

// SetError resolves the task's result with an error.
func (c *CoroContext[R]) SetError(err error) { c.f.setError(err) }

// Context is the caller-facing handle returned by Post and PostFirst.
// Only a Context obtained via PostFirst (or through ThenOn/OnErrorOn/
// FinallyOn chained from one) is chainable; attaching a continuation
// to a non-chainable Context returns ErrInvalidState, mirroring the
// original's postFirst-vs-post distinction.
type Context[R any] struct {
	f         *future[R]
	chainable bool
	d         *TaskDispatcher
}

// Future returns the read-only result handle for this task.
func (ctx *Context[R]) Future() Future[R] { return Future[R]{f: ctx.f} }

// ThenOn attaches fn as the next Task in ctx's chain: once ctx's own
// task finishes successfully, fn is posted onto queueID (or Any) at
// highPriority, receiving ctx's value as args[0]. The returned
// Context[S] wraps fn's task and is itself chainable, so a chain of
// arbitrary length can be built one call at a time; its Future is the
// chain's new terminal future.
//
// If ctx's task finishes with an error instead, fn is never posted:
// that error becomes the returned Context's terminal error directly,
// implementing the "first unhandled error short-circuits the rest of
// the chain" rule. Go methods cannot introduce a new type parameter
// (S here, distinct from ctx's own R), so this has to be a free
// function rather than a Context[R] method — the same workaround
// PostSameOn already uses for a similar constraint.
func ThenOn[R, S any](ctx *Context[R], queueID int, highPriority bool, fn CoroFunc[S]) (*Context[S], error) {
	if !ctx.chainable {
		return nil, ErrInvalidState
	}
	next := newFuture[S]()
	ctx.f.addContinuation(func(v R, err error) {
		if err != nil {
			next.setError(err)
			return
		}
		succ, postErr := postCoro(ctx.d, queueID, highPriority, true, fn, []any{v})
		if postErr != nil {
			next.setError(postErr)
			return
		}
		succ.f.addContinuation(func(sv S, serr error) { next.resolve(sv, serr) })
	})
	return &Context[S]{f: next, chainable: true, d: ctx.d}, nil
}

// Then is ThenOn posting onto an auto-selected queue at normal
// priority.
func Then[R, S any](ctx *Context[R], fn CoroFunc[S]) (*Context[S], error) {
	return ThenOn(ctx, int(Any), false, fn)
}

// OnErrorOn attaches fn as an error-handling Task: it is posted onto
// queueID at highPriority, receiving ctx's error as args[0], only if
// ctx's task finishes with an error — consuming that error, so the
// chain continues with fn's own result rather than short-circuiting.
// A successful ctx passes its value straight through the returned
// Context without posting anything.
func OnErrorOn[R any](ctx *Context[R], queueID int, highPriority bool, fn CoroFunc[R]) (*Context[R], error) {
	if !ctx.chainable {
		return nil, ErrInvalidState
	}
	next := newFuture[R]()
	ctx.f.addContinuation(func(v R, err error) {
		if err == nil {
			next.resolve(v, nil)
			return
		}
		succ, postErr := postCoro(ctx.d, queueID, highPriority, true, fn, []any{err})
		if postErr != nil {
			next.setError(postErr)
			return
		}
		succ.f.addContinuation(func(sv R, serr error) { next.resolve(sv, serr) })
	})
	return &Context[R]{f: next, chainable: true, d: ctx.d}, nil
}

// OnError is OnErrorOn posting onto an auto-selected queue at normal
// priority.
func OnError[R any](ctx *Context[R], fn CoroFunc[R]) (*Context[R], error) {
	return OnErrorOn(ctx, int(Any), false, fn)
}

// FinallyOn attaches fn as a Task that always runs once ctx's task
// finishes, posted onto queueID at highPriority regardless of
// outcome; fn receives ctx's value and error as args[0] and args[1].
// Unlike ThenOn/OnErrorOn, fn's own result is discarded: the returned
// Context carries ctx's original value/error unchanged, so a Finally
// handler can observe the outcome (for cleanup, logging) but never
// alters what the rest of the chain sees.
func FinallyOn[R any](ctx *Context[R], queueID int, highPriority bool, fn CoroFunc[R]) (*Context[R], error) {
	if !ctx.chainable {
		return nil, ErrInvalidState
	}
	next := newFuture[R]()
	ctx.f.addContinuation(func(v R, err error) {
		succ, postErr := postCoro(ctx.d, queueID, highPriority, false, fn, []any{v, err})
		if postErr != nil {
			next.resolve(v, err)
			return
		}
		succ.f.addContinuation(func(_ R, _ error) { next.resolve(v, err) })
	})
	return &Context[R]{f: next, chainable: true, d: ctx.d}, nil
}

// Finally is FinallyOn posting onto an auto-selected queue at normal
// priority.
func Finally[R any](ctx *Context[R], fn CoroFunc[R]) (*Context[R], error) {
	return FinallyOn(ctx, int(Any), false, fn)
}
