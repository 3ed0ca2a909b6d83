package refdata

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// compileSelect builds the parameterized query that loads t.
//
// Identifiers are validated and quoted; filter values are always bound as
// parameters. Every query has an ORDER BY so collection order is stable
// across runs: the OrderBy column (binary collation, rowid tiebreak) or rowid.
func compileSelect(t Table) (string, []any, error) {
	if err := checkIdent("table", t.Name); err != nil {
		return "", nil, err
	}

	cols, err := compileColumns(t.Columns)
	if err != nil {
		return "", nil, err
	}

	where, params, err := compileWhere(t.Where)
	if err != nil {
		return "", nil, err
	}

	order := "rowid ASC"
	if t.OrderBy != "" {
		if err := checkIdent("order column", t.OrderBy); err != nil {
			return "", nil, err
		}
		order = quoteIdent(t.OrderBy) + " ASC COLLATE BINARY, rowid ASC"
	}

	return fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s", cols, quoteIdent(t.Name), where, order), params, nil
}

// compileColumns renders a source → name column map as a select list, sorted
// by source column. An empty map selects every column.
func compileColumns(columns map[string]string) (string, error) {
	if len(columns) == 0 {
		return "*", nil
	}

	keys := make([]string, 0, len(columns))
	for k := range columns {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, src := range keys {
		name := columns[src]
		if err := checkIdent("column", src); err != nil {
			return "", err
		}
		if name == "" || name == src {
			parts = append(parts, quoteIdent(src))
			continue
		}
		if err := checkIdent("column alias", name); err != nil {
			return "", err
		}
		parts = append(parts, quoteIdent(src)+" AS "+quoteIdent(name))
	}
	return strings.Join(parts, ", "), nil
}

// compileWhere renders equality filters, sorted by column, joined with AND.
func compileWhere(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	params := make([]any, 0, len(keys))
	for _, col := range keys {
		if err := checkIdent("filter column", col); err != nil {
			return "", nil, err
		}
		p, err := toParam(where[col])
		if err != nil {
			return "", nil, fmt.Errorf("filter %s: %w", col, err)
		}
		if p == nil {
			parts = append(parts, quoteIdent(col)+" IS NULL")
			continue
		}
		parts = append(parts, quoteIdent(col)+" = ?")
		params = append(params, p)
	}
	return " WHERE " + strings.Join(parts, " AND "), params, nil
}

// toParam converts a decoded filter value to a SQL parameter. Lists and maps
// cannot be bound.
func toParam(v any) (any, error) {
	switch val := v.(type) {
	case nil, string, bool, float64, float32, int, int64, int32, uint, uint64, uint32:
		return val, nil
	case []any, map[string]any:
		return nil, fmt.Errorf("%T cannot be used as a SQL parameter", v)
	default:
		return nil, fmt.Errorf("unsupported filter value type %T", v)
	}
}

func checkIdent(what, s string) error {
	if !identPattern.MatchString(s) {
		return fmt.Errorf("invalid %s name %q", what, s)
	}
	return nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
