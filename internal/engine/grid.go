package engine

import (
	"maps"
	"slices"

	"github.com/roach88/fieldrules/internal/rules"
)

// Grid keeps one Engine per row of an editable grid, all sharing one RuleSet
// and one logical clock. Row engines are created on first use and released
// when the host removes the row.
//
// Grid is not safe for concurrent use.
type Grid struct {
	rs      *rules.RuleSet
	opts    []Option
	clock   *Clock
	session string
	rows    map[string]*Engine
}

// NewGrid creates a grid over rs. opts apply to every row engine; the grid
// draws one session id from the configured generator and names each row
// "<grid session>/<row id>".
func NewGrid(rs *rules.RuleSet, opts ...Option) *Grid {
	probe := &Engine{sessionGen: UUIDv7Generator{}}
	for _, opt := range opts {
		opt(probe)
	}
	session := probe.session
	if session == "" {
		session = probe.sessionGen.Generate()
	}
	return &Grid{
		rs:      rs,
		opts:    slices.Clone(opts),
		clock:   NewClock(),
		session: session,
		rows:    make(map[string]*Engine),
	}
}

// Session returns the grid's session id.
func (g *Grid) Session() string { return g.session }

// Row returns the engine of row id, creating it on first use.
func (g *Grid) Row(id string) *Engine {
	if e, ok := g.rows[id]; ok {
		return e
	}
	opts := append(slices.Clone(g.opts), WithClock(g.clock), WithSessionID(g.session+"/"+id))
	e := New(g.rs, opts...)
	g.rows[id] = e
	return e
}

// Release closes and drops the engine of row id. It reports whether the row
// existed.
func (g *Grid) Release(id string) bool {
	e, ok := g.rows[id]
	if !ok {
		return false
	}
	e.Close()
	delete(g.rows, id)
	return true
}

// Rows returns the ids of live rows, sorted.
func (g *Grid) Rows() []string {
	return slices.Sorted(maps.Keys(g.rows))
}

// Len returns the number of live rows.
func (g *Grid) Len() int { return len(g.rows) }

// Close releases every row.
func (g *Grid) Close() {
	for id := range g.rows {
		g.Release(id)
	}
}
