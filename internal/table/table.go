package table

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Table is a SQLite table described by a runtime Schema
type Table struct {
	db     *sql.DB
	name   string
	schema Schema

	// types holds every declared field plus the id
	types map[string]Type

	columns   string
	insertSQL string

	mu sync.RWMutex
}

type options struct {
	indexes [][]string
}

// Option configures table creation
type Option func(*options)

// WithIndex creates a secondary index over the named fields
func WithIndex(fields ...string) Option {
	return func(o *options) {
		o.indexes = append(o.indexes, fields)
	}
}

// New declares a table and creates it (and any indexes) if it does not exist
func New(ctx context.Context, db *sql.DB, name string, schema Schema, opts ...Option) (*Table, error) {
	if !ValidIdentifier(name) {
		return nil, fmt.Errorf("invalid table name %q", name)
	}
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("table %s: %w", name, err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	t := &Table{
		db:     db,
		name:   name,
		schema: append(Schema(nil), schema...),
		types:  make(map[string]Type, len(schema)+1),
	}
	t.types[IDField] = Integer

	quoted := make([]string, len(schema))
	for i, f := range schema {
		t.types[f.Name] = f.Type
		quoted[i] = quote(f.Name)
	}
	t.columns = quote(IDField) + ", " + strings.Join(quoted, ", ")
	t.insertSQL = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(name), strings.Join(quoted, ", "), placeholders(len(schema)))

	for _, idx := range o.indexes {
		if len(idx) == 0 {
			return nil, fmt.Errorf("table %s: empty index", name)
		}
		for _, f := range idx {
			if _, ok := t.types[f]; !ok {
				return nil, fmt.Errorf("table %s: index on unknown field %q", name, f)
			}
		}
	}

	if err := t.create(ctx, o.indexes); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) create(ctx context.Context, indexes [][]string) error {
	defs := make([]string, 0, len(t.schema)+1)
	for _, f := range t.schema {
		defs = append(defs, fmt.Sprintf("%s %s NOT NULL", quote(f.Name), f.Type.SQLType()))
	}
	defs = append(defs, quote(IDField)+" INTEGER PRIMARY KEY AUTOINCREMENT")

	t.mu.Lock()
	defer t.mu.Unlock()

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", quote(t.name), strings.Join(defs, ",\n\t"))
	if _, err := t.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create table %s: %w", t.name, err)
	}

	for _, idx := range indexes {
		cols := make([]string, len(idx))
		for i, f := range idx {
			cols[i] = quote(f)
		}
		idxName := "idx_" + t.name + "_" + strings.Join(idx, "_")
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", quote(idxName), quote(t.name), strings.Join(cols, ", "))
		if _, err := t.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idxName, err)
		}
	}
	return nil
}

// Name returns the table name
func (t *Table) Name() string {
	return t.name
}

// Schema returns a copy of the declared fields
func (t *Table) Schema() Schema {
	return append(Schema(nil), t.schema...)
}

// Add inserts a row whose keys must match the schema exactly and returns its id
func (t *Table) Add(ctx context.Context, row Row) (int64, error) {
	if err := validateKeys(row, t.fieldTypes(), true); err != nil {
		return 0, err
	}

	args := make([]any, len(t.schema))
	for i, f := range t.schema {
		v, err := encode(f.Name, f.Type, row[f.Name])
		if err != nil {
			return 0, err
		}
		args[i] = v
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	res, err := t.db.ExecContext(ctx, t.insertSQL, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", t.name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id: %w", err)
	}
	return id, nil
}

// Get returns the row with the given id, or nil if there is none
func (t *Table) Get(ctx context.Context, id int64) (Row, error) {
	rows, err := t.Search(ctx, Query{Equal: Row{IDField: id}, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Modify updates the given fields of one row. It reports whether a row was
// updated; an empty change set touches nothing and reports false.
func (t *Table) Modify(ctx context.Context, id int64, changes Row) (bool, error) {
	n, err := t.ModifyWhere(ctx, Row{IDField: id}, changes)
	return n > 0, err
}

// ModifyWhere updates the given fields of every row whose fields equal match
// and returns the number of rows updated. match must not be empty.
func (t *Table) ModifyWhere(ctx context.Context, match Row, changes Row) (int64, error) {
	if len(changes) == 0 {
		return 0, nil
	}
	if len(match) == 0 {
		return 0, fmt.Errorf("modify %s: empty match", t.name)
	}
	if err := validateKeys(changes, t.fieldTypes(), false); err != nil {
		return 0, err
	}

	var (
		sets []string
		args []any
	)
	// schema order keeps the statement text stable
	for _, f := range t.schema {
		v, ok := changes[f.Name]
		if !ok {
			continue
		}
		enc, err := encode(f.Name, f.Type, v)
		if err != nil {
			return 0, err
		}
		sets = append(sets, quote(f.Name)+" = ?")
		args = append(args, enc)
	}

	where, whereArgs, err := t.where(Query{Equal: match})
	if err != nil {
		return 0, err
	}
	stmt := fmt.Sprintf("UPDATE %s SET %s%s", quote(t.name), strings.Join(sets, ", "), where)
	args = append(args, whereArgs...)

	t.mu.Lock()
	defer t.mu.Unlock()

	res, err := t.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update %s: %w", t.name, err)
	}
	return res.RowsAffected()
}

// Delete removes one row and reports whether it existed
func (t *Table) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := t.DeleteWhere(ctx, Row{IDField: id})
	return n > 0, err
}

// DeleteWhere removes every row whose fields equal match and returns the
// number of rows deleted. match must not be empty.
func (t *Table) DeleteWhere(ctx context.Context, match Row) (int64, error) {
	if len(match) == 0 {
		return 0, fmt.Errorf("delete %s: empty match", t.name)
	}
	where, args, err := t.where(Query{Equal: match})
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	res, err := t.db.ExecContext(ctx, "DELETE FROM "+quote(t.name)+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", t.name, err)
	}
	return res.RowsAffected()
}

// Search returns the rows selected by q. Each row carries the id and every
// declared field.
func (t *Table) Search(ctx context.Context, q Query) ([]Row, error) {
	where, args, err := t.where(q)
	if err != nil {
		return nil, err
	}
	order, err := t.orderBy(q.OrderBy)
	if err != nil {
		return nil, err
	}
	if q.Limit < 0 || q.Offset < 0 {
		return nil, fmt.Errorf("search %s: negative limit or offset", t.name)
	}

	stmt := fmt.Sprintf("SELECT %s FROM %s%s%s", t.columns, quote(t.name), where, order)
	switch {
	case q.Limit > 0:
		stmt += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	case q.Offset > 0:
		stmt += " LIMIT -1 OFFSET ?"
		args = append(args, q.Offset)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	rows, err := t.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", t.name, err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		row, err := t.scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", t.name, err)
	}
	return result, nil
}

// Count returns the number of rows selected by the filters of q. Ordering and
// paging are ignored.
func (t *Table) Count(ctx context.Context, q Query) (int64, error) {
	where, args, err := t.where(q)
	if err != nil {
		return 0, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	var n int64
	if err := t.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quote(t.name)+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", t.name, err)
	}
	return n, nil
}

// Vacuum rebuilds the database file. It affects the whole database, not only
// this table.
func (t *Table) Vacuum(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum: %w", err)
	}
	return nil
}

func (t *Table) fieldTypes() map[string]Type {
	m := make(map[string]Type, len(t.schema))
	for _, f := range t.schema {
		m[f.Name] = f.Type
	}
	return m
}

func (t *Table) scan(rows *sql.Rows) (Row, error) {
	var id int64
	dest := make([]any, 0, len(t.schema)+1)
	dest = append(dest, &id)
	for _, f := range t.schema {
		switch f.Type {
		case Text, JSON:
			dest = append(dest, new(string))
		case Integer:
			dest = append(dest, new(int64))
		case Real:
			dest = append(dest, new(float64))
		case Blob:
			dest = append(dest, new([]byte))
		}
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("failed to scan %s row: %w", t.name, err)
	}

	row := Row{IDField: id}
	for i, f := range t.schema {
		switch p := dest[i+1].(type) {
		case *string:
			if f.Type == JSON {
				var v any
				if err := json.Unmarshal([]byte(*p), &v); err != nil {
					return nil, fmt.Errorf("unmarshal %s.%s: %w", t.name, f.Name, err)
				}
				row[f.Name] = v
				continue
			}
			row[f.Name] = *p
		case *int64:
			row[f.Name] = *p
		case *float64:
			row[f.Name] = *p
		case *[]byte:
			row[f.Name] = *p
		}
	}
	return row, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
