// Package testutil provides host-side doubles for engine tests: a value sink
// that records writes and an option-callback recorder.
package testutil

import (
	"sync"

	"github.com/roach88/fieldrules/internal/rules"
)

// Write is one SetValue call.
type Write struct {
	Field string
	Value any
}

// RecordingSink is a ValueSink that keeps every write in order and applies it
// to a field state, like a host form-state manager would.
//
// Thread-safety: all methods are safe for concurrent use.
type RecordingSink struct {
	mu     sync.Mutex
	writes []Write
	state  rules.Values
}

// NewRecordingSink creates a sink whose state starts as a copy of initial.
func NewRecordingSink(initial rules.Values) *RecordingSink {
	return &RecordingSink{state: initial.Clone()}
}

// SetValue records the write and applies it to the state.
func (s *RecordingSink) SetValue(field string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, Write{Field: field, Value: v})
	s.state[field] = v
}

// Set applies a host-side edit without recording it as an engine write.
func (s *RecordingSink) Set(field string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[field] = v
}

// Writes returns a copy of the writes in order.
func (s *RecordingSink) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write(nil), s.writes...)
}

// Fields returns the written field names in order, with repeats.
func (s *RecordingSink) Fields() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.writes))
	for i, w := range s.writes {
		out[i] = w.Field
	}
	return out
}

// Values returns a copy of the current state.
func (s *RecordingSink) Values() rules.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Reset forgets recorded writes; the state is kept.
func (s *RecordingSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = nil
}
