package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/fieldrules/internal/expr"
)

// LoadMode controls how errors are handled during loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult holds the rule sets compiled from a directory or source.
type LoadResult struct {
	// RuleSets in declaration order.
	RuleSets  []*Definition
	CUEValue  cue.Value
	FileCount int
}

// Lookup returns the named rule set.
func (r *LoadResult) Lookup(name string) (*Definition, error) {
	for _, d := range r.RuleSets {
		if d.Name == name {
			return d, nil
		}
	}
	names := make([]string, len(r.RuleSets))
	for i, d := range r.RuleSets {
		names[i] = d.Name
	}
	return nil, &CompileError{
		Code:    ErrCodeUnknownName,
		Field:   "ruleset",
		Message: fmt.Sprintf("rule set %q not found (have %v)", name, names),
	}
}

// LoadDir loads and compiles every rule set in the CUE files of dir.
//
// Directory problems return a nil result. Compile errors are returned along
// with whatever compiled successfully before (FailFast) or around (CollectAll)
// them.
func LoadDir(dir string, env *expr.Env, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("rules directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing rules directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	res, errs := compileAll(v, env, mode)
	res.FileCount = len(cueFiles)
	return res, errs
}

// CompileString compiles rule sets from CUE source text.
func CompileString(src string, env *expr.Env, mode LoadMode) (*LoadResult, []error) {
	v := cuecontext.New().CompileString(src)
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}
	return compileAll(v, env, mode)
}

func compileAll(v cue.Value, env *expr.Env, mode LoadMode) (*LoadResult, []error) {
	res := &LoadResult{CUEValue: v}
	var errs []error

	setsVal := v.LookupPath(cue.ParsePath("ruleset"))
	if !setsVal.Exists() {
		return res, []error{&LoadError{Code: ErrCodeGeneric, Message: "no rule sets found"}}
	}
	iter, err := setsVal.Fields()
	if err != nil {
		return res, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating rule sets: %v", err)}}
	}
	for iter.Next() {
		def, err := CompileRuleSet(iter.Value(), env)
		if err != nil {
			errs = append(errs, withContext(err, "ruleset."+iter.Label()))
			if mode == LoadModeFailFast {
				return res, errs
			}
			continue
		}
		res.RuleSets = append(res.RuleSets, def)
	}
	if len(res.RuleSets) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no rule sets found"})
	}
	return res, errs
}

// withContext prefixes a compile error's field with the rule set path.
func withContext(err error, context string) error {
	var ce *CompileError
	if errors.As(err, &ce) {
		out := *ce
		out.Field = context + "." + ce.Field
		return &out
	}
	return fmt.Errorf("%s: %w", context, err)
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
