package engine

import (
	"github.com/roach88/fieldrules/internal/rules"
	"github.com/roach88/fieldrules/internal/value"
)

// Snapshot is the change detector of one engine: the last value the host
// reported for each field. Values compare with value.Equal, so 1, 1.0 and
// json.Number("1") are the same value, and maps or lists compare by content.
//
// The snapshot only moves when the host reports a value. Engine writes do not
// update it.
type Snapshot struct {
	watched []string
	values  map[string]any
}

// NewSnapshot creates an empty snapshot over the given watched fields.
func NewSnapshot(watched []string) *Snapshot {
	return &Snapshot{
		watched: append([]string(nil), watched...),
		values:  make(map[string]any),
	}
}

// Record stores v for field and reports whether it differs from the previous
// value. A field never seen before counts as changed.
func (s *Snapshot) Record(field string, v any) bool {
	prev, seen := s.values[field]
	s.values[field] = v
	return !seen || !value.Equal(prev, v)
}

// Diff returns the watched fields present in observed whose value differs
// from the snapshot, in watched order. It does not record anything.
func (s *Snapshot) Diff(observed rules.Values) []string {
	var changed []string
	for _, f := range s.watched {
		v, ok := observed[f]
		if !ok {
			continue
		}
		prev, seen := s.values[f]
		if !seen || !value.Equal(prev, v) {
			changed = append(changed, f)
		}
	}
	return changed
}

// Changed is Diff followed by recording the changed fields.
func (s *Snapshot) Changed(observed rules.Values) []string {
	changed := s.Diff(observed)
	for _, f := range changed {
		s.values[f] = observed[f]
	}
	return changed
}

// Prime records every watched field present in values without reporting
// changes. Hosts call it after initialization so the first real edit is
// compared against the initialized state.
func (s *Snapshot) Prime(values rules.Values) {
	for _, f := range s.watched {
		if v, ok := values[f]; ok {
			s.values[f] = v
		}
	}
}

// Value returns the recorded value of field.
func (s *Snapshot) Value(field string) (any, bool) {
	v, ok := s.values[field]
	return v, ok
}

// Len returns the number of recorded fields.
func (s *Snapshot) Len() int { return len(s.values) }

// Reset forgets every recorded value.
func (s *Snapshot) Reset() {
	clear(s.values)
}
