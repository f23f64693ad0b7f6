package dispatch

import (
	"sync"

	"github.com/themaluxis/MUM/registry"
)

// DefaultFailureThreshold is how many consecutive adapter failures a
// plugin absorbs before it is marked errored.
const DefaultFailureThreshold = 3

// HealthTracker counts consecutive adapter failures per plugin and flips
// the plugin into the error state once the threshold is reached. Any
// success resets the count. Gate failures such as an unknown plugin or a
// capability mismatch are caller mistakes and do not count against the
// adapter.
type HealthTracker struct {
	reg       *registry.Registry
	threshold int

	mu       sync.Mutex
	failures map[string]int
}

// NewHealthTracker creates a tracker over the registry. A threshold below
// one falls back to the default.
func NewHealthTracker(reg *registry.Registry, threshold int) *HealthTracker {
	if threshold < 1 {
		threshold = DefaultFailureThreshold
	}
	return &HealthTracker{
		reg:       reg,
		threshold: threshold,
		failures:  make(map[string]int),
	}
}

// Record observes the outcome of one dispatch for the plugin. It returns
// true when this observation pushed the plugin into the error state.
func (h *HealthTracker) Record(pluginID string, err error) bool {
	if err == nil {
		h.mu.Lock()
		delete(h.failures, pluginID)
		h.mu.Unlock()
		return false
	}
	if kind, ok := KindOf(err); ok && kind != AdapterFailure {
		return false
	}

	h.mu.Lock()
	h.failures[pluginID]++
	tripped := h.failures[pluginID] >= h.threshold
	if tripped {
		delete(h.failures, pluginID)
	}
	h.mu.Unlock()

	if !tripped {
		return false
	}
	if _, markErr := h.reg.MarkError(pluginID, err.Error()); markErr != nil {
		return false
	}
	return true
}

// Failures reports the current consecutive failure count for a plugin.
func (h *HealthTracker) Failures(pluginID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failures[pluginID]
}
