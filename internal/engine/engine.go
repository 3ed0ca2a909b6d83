package engine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/fieldrules/internal/rules"
)

// ValueSink is the host's single write operation into form state. The engine
// never reads or writes host state any other way.
type ValueSink interface {
	SetValue(field string, v any)
}

// SinkFunc adapts a function to ValueSink.
type SinkFunc func(field string, v any)

// SetValue calls f(field, v).
func (f SinkFunc) SetValue(field string, v any) { f(field, v) }

var discardSink = SinkFunc(func(string, any) {})

// OptionsCallback receives the narrowed option list of a FilterOptions target.
type OptionsCallback func(options []rules.Option)

// ErrorPolicy decides what a pass does when a rule fails.
type ErrorPolicy int

const (
	// AbortPass skips the remaining rules of the pass and returns the error.
	AbortPass ErrorPolicy = iota
	// ContinuePass logs the error, records it in PassResult.Errors and runs
	// the remaining rules.
	ContinuePass
)

func (p ErrorPolicy) String() string {
	switch p {
	case AbortPass:
		return "abort"
	case ContinuePass:
		return "continue"
	default:
		return fmt.Sprintf("ErrorPolicy(%d)", int(p))
	}
}

// Engine evaluates one RuleSet for one form instance or grid row.
//
// INVARIANTS:
//   - rules run in RuleSet declaration order
//   - the snapshot and callback table belong to this engine only
//   - writes go through the ValueSink and never re-enter dispatch
type Engine struct {
	rs        *rules.RuleSet
	snapshot  *Snapshot
	callbacks map[string]OptionsCallback
	clock     *Clock

	sessionGen SessionGenerator
	session    string
	logger     *slog.Logger
	log        *slog.Logger

	verbose bool
	policy  ErrorPolicy
	settle  int
	closed  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithVerbose logs every rule's inputs and result at debug level.
func WithVerbose(v bool) Option {
	return func(e *Engine) { e.verbose = v }
}

// WithErrorPolicy sets the rule failure policy. Default: AbortPass.
func WithErrorPolicy(p ErrorPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithSessionGenerator sets the session id source. Default: UUIDv7Generator.
func WithSessionGenerator(g SessionGenerator) Option {
	return func(e *Engine) { e.sessionGen = g }
}

// WithSessionID fixes the session id, bypassing the generator.
func WithSessionID(id string) Option {
	return func(e *Engine) { e.session = id }
}

// WithClock shares a logical clock between engines.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithSettle lets Observe re-observe derived fields for up to n extra rounds.
// Default: 0, no cascading.
func WithSettle(n int) Option {
	return func(e *Engine) { e.settle = max(n, 0) }
}

// New creates an engine over rs. A nil rs behaves as an empty rule set.
func New(rs *rules.RuleSet, opts ...Option) *Engine {
	if rs == nil {
		rs = rules.MustRuleSet(nil, nil, nil)
	}
	e := &Engine{
		rs:         rs,
		snapshot:   NewSnapshot(rs.WatchedFields()),
		callbacks:  make(map[string]OptionsCallback),
		clock:      NewClock(),
		sessionGen: UUIDv7Generator{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.session == "" {
		e.session = e.sessionGen.Generate()
	}
	e.log = e.logger.With("session", e.session)
	return e
}

// Session returns the engine's session id.
func (e *Engine) Session() string { return e.session }

// RuleSet returns the engine's rule set.
func (e *Engine) RuleSet() *rules.RuleSet { return e.rs }

// Snapshot exposes the change detector.
func (e *Engine) Snapshot() *Snapshot { return e.snapshot }

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock { return e.clock }

// WatchedFields returns the fields the host must observe.
func (e *Engine) WatchedFields() []string { return e.rs.WatchedFields() }

// Prime seeds the snapshot with values without running any rule.
func (e *Engine) Prime(values rules.Values) {
	e.snapshot.Prime(values)
}

// ExecuteRules handles one committed change of field to v. all is the host's
// current field state; it is not modified.
//
// An unchanged value returns a Skipped result and applies nothing. Otherwise
// every rule triggered by field runs in declaration order. Under AbortPass the
// first rule error stops the pass and is returned along with the partial
// result.
func (e *Engine) ExecuteRules(field string, v any, all rules.Values, sink ValueSink) (*PassResult, error) {
	if e.closed {
		return nil, ErrClosed
	}
	res := &PassResult{Seq: e.clock.Next(), Field: field}
	if !e.snapshot.Record(field, v) {
		res.Skipped = true
		e.log.Debug("pass skipped: value unchanged", "field", field, "seq", res.Seq)
		return res, nil
	}
	working := all.Clone()
	working[field] = v
	err := e.run(res, e.rs.RulesFor(field), working, sink)
	return res, err
}

// ExecuteInitializationRules applies every rule once, in declaration order,
// against initial. It neither reads nor writes the snapshot, so it can run
// before the host reports any value and is idempotent for pure rules.
func (e *Engine) ExecuteInitializationRules(initial rules.Values, sink ValueSink) (*PassResult, error) {
	if e.closed {
		return nil, ErrClosed
	}
	res := &PassResult{Seq: e.clock.Next(), Init: true}
	err := e.run(res, e.rs.Rules(), initial.Clone(), sink)
	return res, err
}

// RegisterOptionFilterCallback routes the options computed for field's
// FilterOptions rules to cb, replacing any earlier registration.
func (e *Engine) RegisterOptionFilterCallback(field string, cb OptionsCallback) error {
	if e.closed {
		return ErrClosed
	}
	if field == "" {
		return fmt.Errorf("register option callback: empty field name")
	}
	if cb == nil {
		return fmt.Errorf("register option callback for %q: nil callback", field)
	}
	e.callbacks[field] = cb
	return nil
}

// UnregisterOptionFilterCallback removes the callback for field and reports
// whether one was registered.
func (e *Engine) UnregisterOptionFilterCallback(field string) bool {
	_, ok := e.callbacks[field]
	delete(e.callbacks, field)
	return ok
}

// Close drops every callback and the snapshot. Later calls return ErrClosed.
// Close is idempotent.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	clear(e.callbacks)
	e.snapshot.Reset()
	e.log.Debug("engine closed")
}
