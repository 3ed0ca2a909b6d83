package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fieldrules/internal/compiler"
)

// ValidationIssue is one problem found in a rules directory.
type ValidationIssue struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// RuleSetSummary describes one compiled rule set.
type RuleSetSummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Rules       int      `json:"rules"`
	Watched     []string `json:"watched"`
	Cycles      []string `json:"cycles,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	RuleSets []RuleSetSummary  `json:"rulesets"`
	Errors   []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <rules-dir>",
		Short: "Compile every rule set in a directory",
		Long: `Compile the CUE rule files in a directory and report every problem
with its source position: malformed rules, CEL errors, self-triggering
rules and duplicate rule ids.

Multi-step field cycles (a -> b -> a) are reported as warnings; they do
not fail validation.

Exit codes:
  0 - All rule sets valid
  1 - One or more rule sets invalid
  2 - Command error (directory not found, no CUE files, ...)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, rulesDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	logger := newLogger(opts, formatter.GetErrWriter())

	env, err := newEnv()
	if err != nil {
		return err
	}

	loaded, loadErrs := compiler.LoadDir(rulesDir, env, compiler.LoadModeCollectAll)
	if loaded == nil {
		return outputLoadError(formatter, loadErrs[0])
	}
	logger.Debug("rules loaded", "dir", rulesDir, "files", loaded.FileCount, "rulesets", len(loaded.RuleSets))

	result := ValidationResult{Valid: len(loadErrs) == 0, RuleSets: []RuleSetSummary{}}
	var warnings []string
	for _, def := range loaded.RuleSets {
		summary := summarize(def)
		for _, c := range summary.Cycles {
			warnings = append(warnings, fmt.Sprintf("ruleset %s: %s", def.Name, c))
		}
		result.RuleSets = append(result.RuleSets, summary)
	}
	for _, err := range loadErrs {
		result.Errors = append(result.Errors, toIssue(err))
	}

	if formatter.IsJSON() {
		resp := CLIResponse{Status: "ok", Data: result, Warnings: warnings}
		if !result.Valid {
			resp.Status = "error"
			resp.Error = &CLIError{Code: result.Errors[0].Code, Message: result.Errors[0].Message}
		}
		if err := formatter.Encode(resp); err != nil {
			return err
		}
	} else {
		printValidation(formatter, result, warnings)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}
	return nil
}

func summarize(def *compiler.Definition) RuleSetSummary {
	s := RuleSetSummary{
		Name:        def.Name,
		Description: def.Description,
		Rules:       len(def.Rules),
		Watched:     []string{},
	}
	rs, err := def.Build(nil, nil)
	if err != nil {
		return s
	}
	s.Watched = rs.WatchedFields()
	for _, c := range rs.Cycles() {
		s.Cycles = append(s.Cycles, c.Message)
	}
	return s
}

func toIssue(err error) ValidationIssue {
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		issue := ValidationIssue{Code: ce.Code, Field: ce.Field, Message: ce.Message, Line: ce.Line()}
		if ce.Pos.IsValid() {
			issue.File = ce.Pos.Filename()
		}
		return issue
	}
	var le *compiler.LoadError
	if errors.As(err, &le) {
		return ValidationIssue{Code: le.Code, Message: le.Message}
	}
	return ValidationIssue{Code: compiler.ErrCodeGeneric, Message: err.Error()}
}

// outputLoadError reports a directory-level failure (exit code 2).
func outputLoadError(formatter *OutputFormatter, err error) error {
	issue := toIssue(err)
	_ = formatter.Error(issue.Code, issue.Message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", issue.Code, issue.Message))
}

func printValidation(f *OutputFormatter, result ValidationResult, warnings []string) {
	for _, rs := range result.RuleSets {
		f.Printf("ruleset %s: %d rule(s), watches %v\n", rs.Name, rs.Rules, rs.Watched)
	}
	for _, w := range warnings {
		f.Printf("warning: %s\n", w)
	}

	if result.Valid {
		f.Printf("✓ All rule sets valid\n")
		return
	}

	f.Printf("✗ Validation failed\n\n")
	for _, issue := range result.Errors {
		if issue.Line > 0 {
			f.Printf("%s:%d\n", issue.File, issue.Line)
		}
		f.Printf("  %s: %s: %s\n\n", issue.Code, issue.Field, issue.Message)
	}
}
