package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/fieldrules/internal/rules"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeRuleFailed indicates a rule function returned an error.
	ErrCodeRuleFailed ErrorCode = "RULE_FAILED"

	// ErrCodeRulePanicked indicates a rule function panicked.
	ErrCodeRulePanicked ErrorCode = "RULE_PANICKED"

	// ErrCodePassLimit indicates Observe did not settle within its bound.
	ErrCodePassLimit ErrorCode = "PASS_LIMIT"

	// ErrCodeOscillation indicates Observe revisited an earlier field state.
	ErrCodeOscillation ErrorCode = "OSCILLATION"
)

// ErrClosed is returned by an engine after Close.
var ErrClosed = errors.New("engine closed")

// RuleError wraps the failure of one rule during a pass.
type RuleError struct {
	Code    ErrorCode
	Session string
	RuleID  string
	Kind    rules.Kind
	// Field is the trigger field of the pass ("" for initialization).
	Field  string
	Target string
	Err    error
}

func (e *RuleError) Error() string {
	field := e.Field
	if field == "" {
		field = "<init>"
	}
	return fmt.Sprintf("%s: rule %s (%s %s, trigger=%s, session=%s): %v",
		e.Code, e.RuleID, e.Kind, e.Target, field, e.Session, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }

// PassLimitError is returned by Observe when re-observing derived fields does
// not reach a fixed point.
type PassLimitError struct {
	Code    ErrorCode
	Session string
	Rounds  int
	Limit   int
	// Pending lists the watched fields still changing when Observe gave up.
	Pending []string
}

func (e *PassLimitError) Error() string {
	if e.Code == ErrCodeOscillation {
		return fmt.Sprintf("%s: field state repeated after %d rounds (session=%s, pending=%s)",
			e.Code, e.Rounds, e.Session, strings.Join(e.Pending, ","))
	}
	return fmt.Sprintf("%s: no fixed point after %d rounds > %d limit (session=%s, pending=%s)",
		e.Code, e.Rounds, e.Limit, e.Session, strings.Join(e.Pending, ","))
}

// IsRuleError returns true if err is or wraps a RuleError.
func IsRuleError(err error) bool {
	var re *RuleError
	return errors.As(err, &re)
}

// IsPassLimitError returns true if err is or wraps a PassLimitError, including
// oscillation.
func IsPassLimitError(err error) bool {
	var pe *PassLimitError
	return errors.As(err, &pe)
}

// IsOscillation returns true if err reports a repeated field state.
func IsOscillation(err error) bool {
	var pe *PassLimitError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeOscillation
	}
	return false
}
