package testutil

import (
	"sync"

	"github.com/roach88/fieldrules/internal/rules"
)

// OptionsRecorder collects option lists published for one field.
type OptionsRecorder struct {
	mu    sync.Mutex
	calls [][]rules.Option
}

// Callback returns a function suitable for engine.RegisterOptionFilterCallback.
func (r *OptionsRecorder) Callback() func([]rules.Option) {
	return func(opts []rules.Option) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, opts)
	}
}

// Calls returns the number of callback invocations.
func (r *OptionsRecorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// Last returns the most recent option list, or nil if none was published.
func (r *OptionsRecorder) Last() []rules.Option {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}
