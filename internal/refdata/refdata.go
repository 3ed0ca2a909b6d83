// Package refdata loads the read-only reference data a rule set is built
// over: the parent record and the external collections.
//
// Fetching reference data is the host's job and happens outside the engine.
// This package gives the CLI and the scenario harness two concrete sources:
// YAML snapshot files and a read-only SQLite database.
package refdata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fieldrules/internal/rules"
)

// Snapshot is a point-in-time copy of parent and external data.
type Snapshot struct {
	Parent   rules.Values   `yaml:"parent" json:"parent"`
	External rules.External `yaml:"external" json:"external"`
}

// Merge returns a snapshot with other's parent fields and collections
// layered over s.
func (s *Snapshot) Merge(other *Snapshot) *Snapshot {
	out := &Snapshot{Parent: s.Parent.Clone(), External: rules.External{}}
	for k, v := range s.External {
		out.External[k] = v
	}
	if other == nil {
		return out
	}
	for k, v := range other.Parent {
		out.Parent[k] = v
	}
	for k, v := range other.External {
		out.External[k] = v
	}
	return out
}

// LoadYAML reads a snapshot file. Unknown top-level keys are rejected.
func LoadYAML(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference data: %w", err)
	}
	snap, err := DecodeYAML(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

// DecodeYAML decodes a snapshot document.
func DecodeYAML(r io.Reader) (*Snapshot, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var snap Snapshot
	if err := dec.Decode(&snap); err != nil {
		if errors.Is(err, io.EOF) {
			return &Snapshot{Parent: rules.Values{}, External: rules.External{}}, nil
		}
		return nil, fmt.Errorf("parse reference data: %w", err)
	}
	if snap.Parent == nil {
		snap.Parent = rules.Values{}
	}
	if snap.External == nil {
		snap.External = rules.External{}
	}
	return &snap, nil
}
