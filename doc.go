// Package dispatch implements a parallel task dispatcher that runs
// cooperative coroutines and blocking I/O tasks side by side.
//
// The dispatcher owns two thread pools: one running short,
// non-blocking coroutines that yield voluntarily, and one running
// blocking or long-running I/O tasks. Each worker owns a queue with a
// high-priority and a normal-priority section; posting a unit of work
// selects a queue (explicitly or by load), enqueues it, and returns a
// Context or Future the caller can use to observe completion and chain
// further work.
//
// # Quick start
//
//	d, err := dispatch.NewTaskDispatcher()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer d.Close()
//
//	ctx, err := dispatch.Post(d, func(c *dispatch.CoroContext[int], _ ...any) int {
//		c.Set(42)
//		return 0
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	v, err := ctx.Future().Get(context.Background())
//
// # Key concepts
//
// CoroTask: a resumable stackful coroutine that may suspend itself via
// Yield and is always resumed on the worker it started on.
//
// IoTask: a one-shot callable run to completion on a dedicated I/O
// worker; never suspends.
//
// Context/Future/Promise: the caller-visible handle to a posted task
// and the single-assignment result cell shared between producer and
// consumers.
//
// Drain stops accepting new external posts and waits for everything
// queued to finish; Terminate abandons pending work and stops every
// worker immediately. Both are idempotent from the caller's
// perspective, and safe to call concurrently (see
// (*TaskDispatcher).Drain and (*TaskDispatcher).Terminate).
package dispatch
