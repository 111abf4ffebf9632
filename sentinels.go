package dispatch

import "strconv"

// QueueID identifies a target queue for a post, or one of the
// sentinels below. Explicit ids are small non-negative integers into
// the coroutine or I/O pool, depending on which post variant is used.
type QueueID int

const (
	// Any auto-selects a queue: the coroutine or I/O queue with the
	// smallest resident size at the moment of selection, ties broken
	// by round robin. Valid at post time for both pools.
	Any QueueID = -1

	// Same means "this worker". Only meaningful from inside a running
	// coroutine; invalid at the top level.
	Same QueueID = -2

	// All aggregates across every queue of the selected pool (or both
	// pools, when QueueType is TypeAll). Valid only for size/empty/stats.
	All QueueID = -3
)

func (q QueueID) String() string {
	switch q {
	case Any:
		return "Any"
	case Same:
		return "Same"
	case All:
		return "All"
	default:
		return "#" + strconv.Itoa(int(q))
	}
}

// QueueType selects which pool size/empty/stats queries operate on.
type QueueType int

const (
	// TypeAll aggregates across both pools; queueId is ignored.
	TypeAll QueueType = iota
	// TypeCoro selects the coroutine pool.
	TypeCoro
	// TypeIo selects the I/O pool.
	TypeIo
)

func (t QueueType) String() string {
	switch t {
	case TypeAll:
		return "All"
	case TypeCoro:
		return "Coro"
	case TypeIo:
		return "Io"
	default:
		return "Unknown"
	}
}

// TaskKind distinguishes a resumable coroutine from a one-shot I/O
// callable.
type TaskKind int

const (
	KindCoro TaskKind = iota
	KindIo
)

func (k TaskKind) String() string {
	if k == KindIo {
		return "Io"
	}
	return "Coro"
}

// taskState tracks a task through its lifecycle. CoroTasks pass
// through Suspended zero or more times; IoTasks never do.
type taskState int32

const (
	stateQueued taskState = iota
	stateRunning
	stateSuspended
	stateFinished
)
