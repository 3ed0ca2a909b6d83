package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/fieldrules/internal/expr"
	"github.com/roach88/fieldrules/internal/rules"
)

// parseAction compiles the action struct of one rule.
func parseAction(v cue.Value, field string, env *expr.Env) (rules.Action, error) {
	typ, err := requiredString(v, "type", field, ErrCodeAction)
	if err != nil {
		return nil, err
	}
	target, err := requiredString(v, "targetField", field, ErrCodeAction)
	if err != nil {
		return nil, err
	}

	switch rules.Kind(typ) {
	case rules.KindPreset:
		return parsePreset(v, field, target, env)
	case rules.KindCalculate:
		src, err := requiredString(v, "expr", field, ErrCodeAction)
		if err != nil {
			return nil, err
		}
		prog, err := compileExpr(env, v, "expr", field, src)
		if err != nil {
			return nil, err
		}
		return rules.Calculate{TargetField: target, Fn: prog.Calculate()}, nil
	case rules.KindFilterOptions:
		return parseFilter(v, field, target, env)
	default:
		return nil, &CompileError{
			Code:    ErrCodeActionType,
			Field:   field + ".type",
			Message: fmt.Sprintf("unknown action type %q, must be \"preset\", \"calculate\" or \"filterOptions\"", typ),
			Pos:     v.LookupPath(cue.ParsePath("type")).Pos(),
		}
	}
}

func parsePreset(v cue.Value, field, target string, env *expr.Env) (rules.Action, error) {
	preset := rules.Preset{TargetField: target}

	source, err := optionalString(v, "source")
	if err != nil {
		return nil, err
	}
	switch source {
	case "parent":
		sf, err := requiredString(v, "sourceField", field, ErrCodeAction)
		if err != nil {
			return nil, err
		}
		preset.Source = rules.SourceParent
		preset.SourceField = sf
		return preset, nil
	case "":
	default:
		return nil, &CompileError{
			Code:    ErrCodeAction,
			Field:   field + ".source",
			Message: fmt.Sprintf("unknown preset source %q, must be \"parent\"", source),
			Pos:     v.LookupPath(cue.ParsePath("source")).Pos(),
		}
	}

	if src, err := optionalString(v, "expr"); err != nil {
		return nil, err
	} else if src != "" {
		prog, err := compileExpr(env, v, "expr", field, src)
		if err != nil {
			return nil, err
		}
		preset.Fn = prog.Preset()
		return preset, nil
	}

	cv := v.LookupPath(cue.ParsePath("value"))
	if !cv.Exists() {
		return nil, &CompileError{
			Code:    ErrCodeAction,
			Field:   field,
			Message: "preset requires source \"parent\", expr or value",
			Pos:     v.Pos(),
		}
	}
	var constant any
	if err := cv.Decode(&constant); err != nil {
		return nil, formatCUEError(err)
	}
	preset.Fn = func(rules.Values, rules.Values, rules.External) (any, error) {
		return constant, nil
	}
	return preset, nil
}

func parseFilter(v cue.Value, field, target string, env *expr.Env) (rules.Action, error) {
	list, err := requiredString(v, "list", field, ErrCodeAction)
	if err != nil {
		return nil, err
	}
	f := rules.FilterOptions{TargetField: target}

	match, err := optionalString(v, "match")
	if err != nil {
		return nil, err
	}
	if match != "" {
		prog, err := compileExpr(env, v, "match", field, match)
		if err != nil {
			return nil, err
		}
		f.Filter = prog.Filter(list)
	} else {
		key, err := requiredString(v, "key", field, ErrCodeAction)
		if err != nil {
			return nil, err
		}
		formField, err := requiredString(v, "formField", field, ErrCodeAction)
		if err != nil {
			return nil, err
		}
		f.Filter = rules.MatchField(list, key, formField)
	}

	valueKeys, err := stringList(v, "value", field)
	if err != nil {
		return nil, err
	}
	labelKeys, err := stringList(v, "label", field)
	if err != nil {
		return nil, err
	}
	if valueKeys != nil || labelKeys != nil {
		if valueKeys == nil {
			valueKeys = rules.DefaultValueKeys
		}
		if labelKeys == nil {
			labelKeys = rules.DefaultLabelKeys
		}
		f.Mapper = rules.FieldOptionMapper(valueKeys, labelKeys)
	}
	return f, nil
}

func compileExpr(env *expr.Env, v cue.Value, name, field, src string) (*expr.Program, error) {
	prog, err := env.Compile(src)
	if err != nil {
		return nil, &CompileError{
			Code:    ErrCodeExpression,
			Field:   field + "." + name,
			Message: err.Error(),
			Pos:     v.LookupPath(cue.ParsePath(name)).Pos(),
		}
	}
	return prog, nil
}

func requiredString(v cue.Value, name, field, code string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(name))
	if !sv.Exists() {
		return "", &CompileError{
			Code:    code,
			Field:   field + "." + name,
			Message: name + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := sv.String()
	if err != nil {
		return "", &CompileError{
			Code:    code,
			Field:   field + "." + name,
			Message: name + " must be a string",
			Pos:     sv.Pos(),
		}
	}
	return s, nil
}

func optionalString(v cue.Value, name string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(name))
	if !sv.Exists() {
		return "", nil
	}
	s, err := sv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// stringList reads a list of strings, or a single string as a one-element
// list. Absent yields nil.
func stringList(v cue.Value, name, field string) ([]string, error) {
	lv := v.LookupPath(cue.ParsePath(name))
	if !lv.Exists() {
		return nil, nil
	}
	if s, err := lv.String(); err == nil {
		return []string{s}, nil
	}
	iter, err := lv.List()
	if err != nil {
		return nil, &CompileError{
			Code:    ErrCodeAction,
			Field:   field + "." + name,
			Message: name + " must be a string or a list of strings",
			Pos:     lv.Pos(),
		}
	}
	out := []string{}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Code:    ErrCodeAction,
				Field:   field + "." + name,
				Message: name + " must be a string or a list of strings",
				Pos:     iter.Value().Pos(),
			}
		}
		out = append(out, s)
	}
	return out, nil
}
