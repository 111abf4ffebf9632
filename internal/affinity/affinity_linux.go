//go:build linux

// Package affinity pins the calling goroutine's underlying OS thread
// to a specific CPU, used by coroutine workers when
// PinCoroutineThreadsToCores is enabled. Real pinning is only
// available on Linux; see affinity_other.go for the no-op fallback
// used on every other platform, following the build-tag split the
// teacher pack uses for platform-specific syscalls
// (tangzhangming-nova's internal/jit/*_windows.go).
package affinity

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Pin locks the calling goroutine to its current OS thread and
// restricts that thread to the given CPU index. Callers must invoke
// Pin from the goroutine they want pinned (a worker's run loop),
// since thread affinity is a property of the OS thread, not the
// goroutine.
func Pin(cpu int) error {
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: SchedSetaffinity(cpu=%d): %w", cpu, err)
	}
	return nil
}

// Available reports whether Pin can meaningfully pin threads on this
// platform.
func Available() bool { return true }
