package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fieldrules/internal/compiler"
)

// WatchedResult lists the fields a rule set reacts to.
type WatchedResult struct {
	RuleSet string   `json:"ruleset"`
	Watched []string `json:"watched"`
	Edges   []string `json:"edges,omitempty"`
}

// WatchedOptions holds flags for the watched command.
type WatchedOptions struct {
	*RootOptions
	Edges bool
}

// NewWatchedCommand creates the watched command.
func NewWatchedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watched <rules-dir> <ruleset>",
		Short: "Print the fields a rule set watches",
		Long: `Print the trigger fields of a rule set, one per line, sorted. Hosts
subscribe to changes of exactly these fields.

With --edges, also print the trigger -> target field dependencies.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatched(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Edges, "edges", false, "also print field dependency edges")
	return cmd
}

func runWatched(opts *WatchedOptions, rulesDir, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	env, err := newEnv()
	if err != nil {
		return err
	}

	loaded, loadErrs := compiler.LoadDir(rulesDir, env, compiler.LoadModeCollectAll)
	if loaded == nil {
		return outputLoadError(formatter, loadErrs[0])
	}

	def, err := loaded.Lookup(name)
	if err != nil {
		// the set may have failed to compile
		for _, le := range loadErrs {
			var ce *compiler.CompileError
			if errors.As(le, &ce) && strings.HasPrefix(ce.Field, "ruleset."+name+".") {
				issue := toIssue(le)
				_ = formatter.Error(issue.Code, le.Error(), nil)
				return NewExitError(ExitFailure, fmt.Sprintf("ruleset %s is invalid", name))
			}
		}
		issue := toIssue(err)
		_ = formatter.Error(issue.Code, issue.Message, nil)
		return NewExitError(ExitCommandError, issue.Message)
	}

	rs, err := def.Build(nil, nil)
	if err != nil {
		_ = formatter.Error(compiler.ErrCodeRuleConfig, err.Error(), nil)
		return NewExitError(ExitFailure, err.Error())
	}

	result := WatchedResult{RuleSet: def.Name, Watched: rs.WatchedFields()}
	if opts.Edges {
		result.Edges = rs.Edges()
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	for _, f := range result.Watched {
		formatter.Printf("%s\n", f)
	}
	if opts.Edges {
		formatter.Printf("\n")
		for _, e := range result.Edges {
			formatter.Printf("%s\n", e)
		}
	}
	return nil
}
