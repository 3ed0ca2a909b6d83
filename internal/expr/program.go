package expr

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/roach88/fieldrules/internal/rules"
)

// Program is one compiled expression.
type Program struct {
	src  string
	prog cel.Program
}

// Vars binds the expression variables for one evaluation.
type Vars struct {
	Form     rules.Values
	Parent   rules.Values
	External rules.External
	Item     rules.Entity
}

func (v Vars) activation() map[string]any {
	return map[string]any{
		"form":     orEmpty(toCEL(map[string]any(v.Form))),
		"parent":   orEmpty(toCEL(map[string]any(v.Parent))),
		"external": orEmpty(toCEL(map[string]any(v.External))),
		"item":     orEmpty(toCEL(map[string]any(v.Item))),
	}
}

func orEmpty(v any) any {
	if m, ok := v.(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{}
}

// Compile parses and type-checks src.
func (e *Env) Compile(src string) (*Program, error) {
	ast, issues := e.env.Compile(src)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", src, issues.Err())
	}
	prog, err := e.env.Program(ast, cel.CostLimit(e.costLimit))
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", src, err)
	}
	return &Program{src: src, prog: prog}, nil
}

// Source returns the expression text.
func (p *Program) Source() string { return p.src }

// Eval evaluates the program and returns a plain Go value.
func (p *Program) Eval(vars Vars) (any, error) {
	return p.eval(vars.activation())
}

func (p *Program) eval(activation map[string]any) (any, error) {
	out, _, err := p.prog.Eval(activation)
	if err != nil {
		return nil, fmt.Errorf("eval %q: %w", p.src, err)
	}
	v, err := fromCEL(out)
	if err != nil {
		return nil, fmt.Errorf("eval %q: %w", p.src, err)
	}
	return v, nil
}

// Calculate adapts the program into a calculate function over form.
func (p *Program) Calculate() rules.CalculateFunc {
	return func(form rules.Values) (any, error) {
		return p.Eval(Vars{Form: form})
	}
}

// Preset adapts the program into a preset function.
func (p *Program) Preset() rules.PresetFunc {
	return func(form, parent rules.Values, ext rules.External) (any, error) {
		return p.Eval(Vars{Form: form, Parent: parent, External: ext})
	}
}

// Filter adapts a boolean predicate over item into a filter that keeps the
// matching entities of the named collection. A non-boolean result is an
// error.
func (p *Program) Filter(collection string) rules.FilterFunc {
	return func(ext rules.External, form rules.Values) ([]rules.Entity, error) {
		out := []rules.Entity{}
		activation := Vars{Form: form, External: ext}.activation()
		for _, ent := range ext.List(collection) {
			activation["item"] = orEmpty(toCEL(map[string]any(ent)))
			v, err := p.eval(activation)
			if err != nil {
				return nil, err
			}
			keep, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("filter %q: result %T is not a bool", p.src, v)
			}
			if keep {
				out = append(out, ent)
			}
		}
		return out, nil
	}
}
