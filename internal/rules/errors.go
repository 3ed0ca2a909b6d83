package rules

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError describes one configuration problem in a rule list.
type ValidationError struct {
	RuleIndex int    `json:"rule_index"`
	RuleID    string `json:"rule_id,omitempty"`
	Field     string `json:"field"`
	Message   string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("rules[%d] (%s): %s: %s", e.RuleIndex, e.RuleID, e.Field, e.Message)
	}
	return fmt.Sprintf("rules[%d]: %s: %s", e.RuleIndex, e.Field, e.Message)
}

// ConfigError is returned by NewRuleSet when the rule list is invalid.
// It carries every problem found, not just the first.
type ConfigError struct {
	Problems []ValidationError
}

func (e *ConfigError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid rule set: " + e.Problems[0].Error()
	}
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return fmt.Sprintf("invalid rule set (%d problems): %s", len(e.Problems), strings.Join(msgs, "; "))
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
