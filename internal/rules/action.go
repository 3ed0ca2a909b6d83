package rules

import (
	"github.com/roach88/fieldrules/internal/value"
)

// Kind names an action variant. It is used for logs and pass results only;
// dispatch is a type switch over the sealed Action interface.
type Kind string

const (
	KindPreset        Kind = "preset"
	KindCalculate     Kind = "calculate"
	KindFilterOptions Kind = "filterOptions"
)

// Action is a sealed interface: only Preset, Calculate and FilterOptions
// implement it, so an unrecognised action type cannot be constructed.
type Action interface {
	Kind() Kind
	Target() string
	isAction()
}

// PresetSource selects where a Preset reads its value.
type PresetSource string

const (
	// SourceFunc computes the value with Preset.Fn.
	SourceFunc PresetSource = ""
	// SourceParent copies parent[SourceField].
	SourceParent PresetSource = "parent"
)

// PresetFunc resolves a default from the current form, the parent record and
// the reference data. It must be pure.
type PresetFunc func(form Values, parent Values, ext External) (any, error)

// Preset seeds TargetField from the parent record or from a lookup function.
type Preset struct {
	TargetField string
	Source      PresetSource
	SourceField string
	Fn          PresetFunc
}

func (Preset) Kind() Kind       { return KindPreset }
func (p Preset) Target() string { return p.TargetField }
func (Preset) isAction()        {}

// CalculateFunc derives a value from the full current field set. It must be
// pure and should recompute from primitive inputs rather than read other
// derived fields that may not be refreshed yet in the current pass.
type CalculateFunc func(form Values) (any, error)

// Calculate writes Fn(form) into TargetField.
type Calculate struct {
	TargetField string
	Fn          CalculateFunc
}

func (Calculate) Kind() Kind       { return KindCalculate }
func (c Calculate) Target() string { return c.TargetField }
func (Calculate) isAction()        {}

// FilterFunc narrows a reference collection for the current form state.
type FilterFunc func(ext External, form Values) ([]Entity, error)

// FilterOptions republishes a narrowed option list for TargetField to the
// callback the host registered for that field. It never writes field state.
type FilterOptions struct {
	TargetField string
	Filter      FilterFunc
	// Mapper converts each entity to an Option. Nil means DefaultOptionMapper.
	Mapper OptionMapper
}

func (FilterOptions) Kind() Kind       { return KindFilterOptions }
func (f FilterOptions) Target() string { return f.TargetField }
func (FilterOptions) isAction()        {}

// MapperOrDefault returns the configured mapper or DefaultOptionMapper.
func (f FilterOptions) MapperOrDefault() OptionMapper {
	if f.Mapper == nil {
		return DefaultOptionMapper
	}
	return f.Mapper
}

// Option is one entry of a selection control.
type Option struct {
	Value any    `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// OptionMapper converts a reference entity into a selection option.
type OptionMapper func(Entity) Option

// Default key chains for DefaultOptionMapper. They cover the entity shapes of
// the operations datasets: generic records, tasks, varieties and crops.
var (
	DefaultValueKeys = []string{"_id", "id", "value"}
	DefaultLabelKeys = []string{"name", "taskName", "varietyName", "cropName", "label", "_id"}
)

// DefaultOptionMapper maps entities using DefaultValueKeys and DefaultLabelKeys.
var DefaultOptionMapper = FieldOptionMapper(DefaultValueKeys, DefaultLabelKeys)

// FieldOptionMapper builds a mapper that takes the first non-empty value among
// valueKeys and the first non-empty label among labelKeys.
func FieldOptionMapper(valueKeys, labelKeys []string) OptionMapper {
	vk := append([]string(nil), valueKeys...)
	lk := append([]string(nil), labelKeys...)
	return func(e Entity) Option {
		return Option{
			Value: firstPresent(e, vk),
			Label: value.Text(firstPresent(e, lk)),
		}
	}
}

func firstPresent(e Entity, keys []string) any {
	for _, k := range keys {
		if v, ok := e[k]; ok && !value.IsEmpty(v) {
			return v
		}
	}
	return nil
}

// MapOptions converts entities with mapper. The result is never nil.
func MapOptions(entities []Entity, mapper OptionMapper) []Option {
	out := make([]Option, 0, len(entities))
	for _, e := range entities {
		out = append(out, mapper(e))
	}
	return out
}

// MatchField returns a FilterFunc keeping the entities of the named collection
// whose key field equals the form's formField value. An empty form value or an
// unmatched id yields an empty list, never the unfiltered collection.
func MatchField(collection, key, formField string) FilterFunc {
	return func(ext External, form Values) ([]Entity, error) {
		want := form[formField]
		out := []Entity{}
		if value.IsEmpty(want) {
			return out, nil
		}
		for _, ent := range ext.List(collection) {
			if value.Equal(ent[key], want) {
				out = append(out, ent)
			}
		}
		return out, nil
	}
}
