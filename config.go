package dispatch

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// DispatcherConfig holds the construction parameters for a
// TaskDispatcher. It can be built programmatically via Option values
// or loaded from a TOML file (see LoadConfig), following the same
// load-a-struct-from-TOML shape as tangzhangming-nova's package
// manager config (internal/pkg/config.go).
type DispatcherConfig struct {
	// NumCoroutineThreads is the number of coroutine workers. Values
	// <= 0 mean "one per logical core".
	NumCoroutineThreads int `toml:"num_coroutine_threads"`
	// NumIoThreads is the number of I/O workers.
	NumIoThreads int `toml:"num_io_threads"`
	// PinCoroutineThreadsToCores requests CPU pinning for coroutine
	// workers, honored only when NumCoroutineThreads <= runtime.NumCPU().
	PinCoroutineThreadsToCores bool `toml:"pin_coroutine_threads_to_cores"`
	// QueueSignalCapacity sizes each queue's wakeup channel.
	QueueSignalCapacity int `toml:"queue_signal_capacity"`
	// TaskSlabCapacity sizes the fixed-capacity taskHandle slab shared
	// by both pools; posts beyond this many resident handles fall back
	// to a heap allocation instead of failing outright. 0 disables the
	// slab entirely (every taskHandle goes straight to the heap).
	TaskSlabCapacity int `toml:"task_slab_capacity"`
	// TaskHeapFallbackBudget caps how many taskHandles may be
	// outstanding on the heap-fallback path at once. <= 0 means
	// unbounded, matching the original's behavior where overflow
	// allocation only fails on real OOM.
	TaskHeapFallbackBudget int64 `toml:"task_heap_fallback_budget"`
}

// DefaultDispatcherConfig returns the Quantum-compatible defaults:
// one coroutine thread per core, 5 I/O threads, no pinning.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		NumCoroutineThreads:        0,
		NumIoThreads:               5,
		PinCoroutineThreadsToCores: false,
		QueueSignalCapacity:        1,
		TaskSlabCapacity:           4096,
		TaskHeapFallbackBudget:     0,
	}
}

// LoadConfig reads a DispatcherConfig from a TOML file at path,
// starting from DefaultDispatcherConfig so omitted fields keep their
// defaults.
func LoadConfig(path string) (DispatcherConfig, error) {
	cfg := DefaultDispatcherConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("dispatch: read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("dispatch: parse config: %w", err)
	}
	return cfg, nil
}
