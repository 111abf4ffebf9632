package dispatch

import (
	"fmt"
	"runtime/debug"
)

// PanicHandler is invoked by a worker when a task's callable panics.
// Implementations should be safe to call concurrently from any
// worker.
type PanicHandler interface {
	HandlePanic(taskID TaskID, kind TaskKind, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs panics via the dispatcher's Logger.
type DefaultPanicHandler struct {
	Logger Logger
}

// NewDefaultPanicHandler creates a DefaultPanicHandler logging through l.
// A nil l falls back to NoOpLogger.
func NewDefaultPanicHandler(l Logger) *DefaultPanicHandler {
	if l == nil {
		l = NewNoOpLogger()
	}
	return &DefaultPanicHandler{Logger: l}
}

func (h *DefaultPanicHandler) HandlePanic(taskID TaskID, kind TaskKind, workerID int, panicInfo any, stackTrace []byte) {
	h.Logger.Error("task panicked",
		F("task_id", taskID),
		F("kind", kind.String()),
		F("worker_id", workerID),
		F("panic", fmt.Sprint(panicInfo)),
		F("stack", string(stackTrace)),
	)
}

// recoverTask runs fn, recovering any panic and routing it to h. It
// reports whether a panic occurred.
func recoverTask(h PanicHandler, taskID TaskID, kind TaskKind, workerID int, fn func()) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			if h != nil {
				h.HandlePanic(taskID, kind, workerID, r, debug.Stack())
			}
		}
	}()
	fn()
	return false
}
