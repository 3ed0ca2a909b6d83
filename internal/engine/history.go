package engine

import (
	"github.com/roach88/fieldrules/internal/rules"
	"github.com/roach88/fieldrules/internal/value"
)

// stateHistory tracks the states Observe has already dispatched from, keyed by
// the canonical hash of the working values together with the snapshot.
//
// Rules are pure, so revisiting a state means the derived writes oscillate
// (a → b → a) and no further round can settle. This is caught before the
// round limit so the error names the real cause.
type stateHistory struct {
	seen map[string]int
}

func newStateHistory() *stateHistory {
	return &stateHistory{seen: make(map[string]int)}
}

// Visit records the state at round and reports the round it was first seen,
// if any. States that cannot be hashed are never reported as repeats.
func (h *stateHistory) Visit(working rules.Values, snap *Snapshot, round int) (int, bool) {
	key, err := value.Hash(map[string]any{
		"values":   map[string]any(working),
		"snapshot": snap.values,
	})
	if err != nil {
		return 0, false
	}
	if first, ok := h.seen[key]; ok {
		return first, true
	}
	h.seen[key] = round
	return 0, false
}

// Len returns the number of distinct states seen.
func (h *stateHistory) Len() int { return len(h.seen) }
