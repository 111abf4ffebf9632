package dispatch

import (
	"context"
	"time"

	"github.com/fathomlabs/taskdispatch/internal/affinity"
)

// worker drives one queue's run loop: a coroutine worker resumes and
// requeues yielding tasks cooperatively, an I/O worker runs each task
// to completion before moving on. Both loops run until ctx is
// cancelled (Terminate); an empty or closed queue only parks them, and
// Drain does not stop them.
type worker struct {
	index int
	kind  TaskKind
	q     *queue
	core  *core

	ctx    context.Context
	cancel context.CancelFunc
}

func newWorker(index int, kind TaskKind, q *queue, c *core) *worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &worker{index: index, kind: kind, q: q, core: c, ctx: ctx, cancel: cancel}
}

func (w *worker) start(pin bool, cpu int) {
	go func() {
		if pin {
			if err := affinity.Pin(cpu); err != nil {
				w.core.logger.Warn("failed to pin worker to cpu",
					F("worker_kind", w.kind.String()), F("worker_index", w.index), F("cpu", cpu), F("error", err.Error()))
			}
		}
		defer w.core.wg.Done()
		w.loop()
	}()
}

func (w *worker) loop() {
	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		t, ok := w.q.dequeue()
		if !ok {
			select {
			case <-w.q.signal:
				continue
			case <-w.ctx.Done():
				return
			}
		}

		if w.kind == KindCoro {
			w.execCoro(t)
		} else {
			w.execIo(t)
		}
	}
}

func (w *worker) execCoro(t *taskHandle) {
	t.setState(stateRunning)

	start := time.Now()
	var more bool
	panicked := recoverTask(w.core.panicHandler, t.id, t.kind, w.index, func() {
		more = t.coro.resume()
	})
	t.execNanos.Add(int64(time.Since(start)))
	w.core.metrics.RecordQueueDepth("coro", t.queueID, w.q.size())

	if panicked {
		// The callable panicked mid-resume: its future would hang
		// forever without this, since nothing else will ever resolve
		// it. resume() has already unwound on its own by the time
		// recoverTask's defer catches the panic, so there is no live
		// suspended coroutine left to cancel here.
		w.core.metrics.RecordTaskPanic("coro", t.queueID)
		t.fail(ErrTaskPanicked)
		w.q.finishExecuting()
		return
	}

	if more {
		t.setState(stateSuspended)
		select {
		case <-w.ctx.Done():
			// Terminated while this coroutine was suspended: it is
			// never resumed again, so abandon it rather than leave
			// its future unresolved forever.
			t.abandon()
		default:
			// Resume must always happen on this same worker, so
			// requeueing onto our own queue (rather than the pool at
			// large) is what keeps a coroutine pinned to its home
			// worker across yields.
			if !w.q.requeue(t, t.highPriority) {
				t.abandon()
			}
		}
		w.q.finishExecuting()
		return
	}

	t.setState(stateFinished)
	w.q.stats.recordCompleted()
	w.core.metrics.RecordTaskDuration("coro", t.queueID, time.Duration(t.execNanos.Load()))
	w.q.finishExecuting()
	t.release()
}

func (w *worker) execIo(t *taskHandle) {
	t.setState(stateRunning)

	start := time.Now()
	panicked := recoverTask(w.core.panicHandler, t.id, t.kind, w.index, func() {
		t.io.run()
	})
	elapsed := time.Since(start)
	w.core.metrics.RecordQueueDepth("io", t.queueID, w.q.size())

	if panicked {
		w.core.metrics.RecordTaskPanic("io", t.queueID)
		t.fail(ErrTaskPanicked)
	} else {
		t.setState(stateFinished)
		w.q.stats.recordCompleted()
		w.core.metrics.RecordTaskDuration("io", t.queueID, elapsed)
		t.release()
	}
	w.q.finishExecuting()
}
