package refdata

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/fieldrules/internal/rules"
)

// Table maps a database table to an external collection.
type Table struct {
	Name string `yaml:"table" json:"table"`
	// Collection is the external key; defaults to Name.
	Collection string `yaml:"as,omitempty" json:"as,omitempty"`
	// OrderBy is a column name; defaults to rowid.
	OrderBy string `yaml:"order_by,omitempty" json:"order_by,omitempty"`
	// Where keeps rows whose columns equal the given values.
	Where map[string]any `yaml:"where,omitempty" json:"where,omitempty"`
	// Columns selects and renames columns (source → entity key).
	// Empty selects every column under its own name.
	Columns map[string]string `yaml:"columns,omitempty" json:"columns,omitempty"`
}

// ParentRow selects the parent record.
type ParentRow struct {
	Table  string `yaml:"table" json:"table"`
	Column string `yaml:"column" json:"column"`
	ID     any    `yaml:"id" json:"id"`
}

// SQLiteSource reads reference data from a SQLite database opened read-only.
type SQLiteSource struct {
	db *sql.DB
}

// OpenSQLite opens the database at path read-only.
//
// The connection is configured with:
//   - mode=ro so no statement can write
//   - query_only as a second guard
//   - 5-second busy timeout for lock contention with a writer
func OpenSQLite(path string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	return &SQLiteSource{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA query_only = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteSource) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load reads each table into an external collection of entities, in table
// order (rowid unless OrderBy is set).
func (s *SQLiteSource) Load(ctx context.Context, tables []Table) (rules.External, error) {
	ext := rules.External{}
	for _, t := range tables {
		query, params, err := compileSelect(t)
		if err != nil {
			return nil, fmt.Errorf("load table %s: %w", t.Name, err)
		}
		entities, err := s.query(ctx, query, params...)
		if err != nil {
			return nil, fmt.Errorf("load table %s: %w", t.Name, err)
		}
		name := t.Collection
		if name == "" {
			name = t.Name
		}
		ext[name] = entities
	}
	return ext, nil
}

// LoadParent reads the single row of p.Table whose p.Column equals p.ID.
// No match yields an empty record.
func (s *SQLiteSource) LoadParent(ctx context.Context, p ParentRow) (rules.Values, error) {
	if err := checkIdent("parent column", p.Column); err != nil {
		return nil, err
	}
	query, params, err := compileSelect(Table{Name: p.Table, Where: map[string]any{p.Column: p.ID}})
	if err != nil {
		return nil, fmt.Errorf("load parent %s: %w", p.Table, err)
	}
	rows, err := s.query(ctx, query+" LIMIT 1", params...)
	if err != nil {
		return nil, fmt.Errorf("load parent %s: %w", p.Table, err)
	}
	if len(rows) == 0 {
		return rules.Values{}, nil
	}
	return rules.Values(rows[0]), nil
}

func (s *SQLiteSource) query(ctx context.Context, query string, args ...any) ([]rules.Entity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []rules.Entity{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		ent := make(rules.Entity, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				ent[c] = string(b)
				continue
			}
			ent[c] = vals[i]
		}
		out = append(out, ent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}
