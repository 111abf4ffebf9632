//go:build !linux

package affinity

// Pin is a no-op on platforms without SchedSetaffinity support. It
// deliberately returns nil rather than an error so callers can enable
// PinCoroutineThreadsToCores uniformly across platforms and simply
// get no pinning where the OS doesn't support it.
func Pin(cpu int) error { return nil }

// Available reports whether Pin can meaningfully pin threads on this
// platform.
func Available() bool { return false }
