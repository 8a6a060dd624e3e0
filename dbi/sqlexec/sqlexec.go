// Package sqlexec is a dbi.Driver over a sqldb.DBHandle. Each dbi statement
// holds one server-side prepared statement until it is finished.
//
// Queries take `?` for one value and `??` for a list: the bind for a `??` must
// be a non-empty slice, expanded to one placeholder per element. Statements
// with `??` are prepared on every execution, since the placeholder count
// depends on the binds.
package sqlexec

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/zeptools/gw-dbi/db/sqldb"
	"github.com/zeptools/gw-dbi/dbi"
)

type Driver struct {
	name   string
	handle sqldb.DBHandle
	prefix byte
	types  dbi.TypeRegistry
}

// Ensure sqlexec.Driver implements dbi.Driver interface
var _ dbi.Driver = (*Driver)(nil)

type Option func(*Driver)

// WithPlaceholderPrefix overrides the prefix looked up for the driver name.
func WithPlaceholderPrefix(prefix byte) Option {
	return func(d *Driver) { d.prefix = prefix }
}

// WithTypes sets the output registry every execution reports. Defaults to dbi.DefaultTypes.
func WithTypes(reg dbi.TypeRegistry) Option {
	return func(d *Driver) { d.types = reg }
}

// New returns a driver named after the sqldb type it talks to (mysql, pgsql, sqlite).
func New(name string, handle sqldb.DBHandle, opts ...Option) *Driver {
	d := &Driver{
		name:   name,
		handle: handle,
		prefix: sqldb.PlaceholderPrefixForDBType[name],
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) Name() string {
	return d.name
}

// Prepare numbers static `?` placeholders for the dialect and prepares the query server-side.
func (d *Driver) Prepare(ctx context.Context, query string) (dbi.Executor, error) {
	q := sqldb.ReplaceStaticPlaceholders(query, d.prefix)
	e := &executor{
		handle:  d.handle,
		prefix:  d.prefix,
		query:   q,
		marks:   sqldb.Placeholders(query),
		returns: ReturnsRows(query),
		types:   d.types,
	}
	if e.dynamic() {
		return e, nil
	}
	stmt, err := d.handle.Prepare(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare: %w", err)
	}
	e.stmt = stmt
	return e, nil
}

var (
	ErrBindCount = errors.New("sqlexec: bind count mismatch")
	ErrListBind  = errors.New("sqlexec: `??` needs a non-empty slice")
)

type executor struct {
	handle  sqldb.DBHandle
	prefix  byte
	query   string
	marks   []bool // placeholders in text order, true for `??`
	stmt    sqldb.PreparedStmt
	returns bool
	types   dbi.TypeRegistry
}

func (e *executor) dynamic() bool {
	for _, m := range e.marks {
		if m {
			return true
		}
	}
	return false
}

func (e *executor) NewExecution(ctx context.Context, binds []any) (*dbi.Execution, error) {
	if e.stmt != nil {
		return e.run(ctx, e.stmt, binds)
	}
	q, args, err := e.expand(binds)
	if err != nil {
		return nil, err
	}
	stmt, err := e.handle.Prepare(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	return e.run(ctx, stmt, args)
}

// expand fills in the `??` lists and flattens binds into args. Anonymous
// dialects bind in text order; numbered ones have the static placeholders
// first ($1..$k) and the list elements after them.
func (e *executor) expand(binds []any) (string, []any, error) {
	if len(binds) != len(e.marks) {
		return "", nil, fmt.Errorf("%w: %d binds for %d placeholders", ErrBindCount, len(binds), len(e.marks))
	}
	numbered := e.prefix != '?' && e.prefix != 0
	var args, lists []any
	var counts []int
	for i, dynamic := range e.marks {
		if !dynamic {
			args = append(args, binds[i])
			continue
		}
		elems, ok := listElems(binds[i])
		if !ok || len(elems) == 0 {
			return "", nil, fmt.Errorf("%w: bind %d is %T", ErrListBind, i+1, binds[i])
		}
		counts = append(counts, len(elems))
		if numbered {
			lists = append(lists, elems...)
		} else {
			args = append(args, elems...)
		}
	}
	q, err := sqldb.ExpandDynamicPlaceholders(e.query, e.prefix, counts, len(args)+1)
	if err != nil {
		return "", nil, err
	}
	return q, append(args, lists...), nil
}

// listElems returns the elements of a slice or array bind. []byte is a single value.
func listElems(v any) ([]any, bool) {
	rv := reflect.ValueOf(v)
	if k := rv.Kind(); k != reflect.Slice && k != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	elems := make([]any, rv.Len())
	for i := range elems {
		elems[i] = rv.Index(i).Interface()
	}
	return elems, true
}

func (e *executor) run(ctx context.Context, stmt sqldb.PreparedStmt, binds []any) (*dbi.Execution, error) {
	if !e.returns {
		res, err := stmt.Exec(ctx, binds...)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		return &dbi.Execution{Affected: n, Types: e.types}, nil
	}

	rows, err := stmt.Query(ctx, binds...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	schema := dbi.Schema{Columns: make([]dbi.Column, len(cols))}
	for i, c := range cols {
		schema.Columns[i] = dbi.Column{Name: c.Name, Type: c.DatabaseType}
	}

	data := []dbi.Row{}
	for rows.Next() {
		row := make(dbi.Row, len(cols))
		dest := make([]any, len(cols))
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &dbi.Execution{Rows: data, Schema: schema, Types: e.types}, nil
}

func (e *executor) Close() error {
	if e.stmt == nil {
		return nil
	}
	return e.stmt.Close()
}

var (
	rowKeywords = map[string]bool{
		"SELECT": true, "WITH": true, "SHOW": true, "VALUES": true,
		"EXPLAIN": true, "PRAGMA": true, "DESCRIBE": true, "DESC": true, "TABLE": true,
	}
	firstWord = regexp.MustCompile(`^[A-Za-z]+`)
	returning = regexp.MustCompile(`(?i)\bRETURNING\b`)
)

// ReturnsRows reports whether query produces a row set rather than an affected count.
// Leading comments and parentheses are skipped.
func ReturnsRows(query string) bool {
	q := stripLeading(query)
	if rowKeywords[strings.ToUpper(firstWord.FindString(q))] {
		return true
	}
	return returning.MatchString(query)
}

func stripLeading(q string) string {
	for {
		q = strings.TrimLeft(q, " \t\r\n(")
		switch {
		case strings.HasPrefix(q, "--"):
			i := strings.IndexByte(q, '\n')
			if i < 0 {
				return ""
			}
			q = q[i+1:]
		case strings.HasPrefix(q, "/*"):
			i := strings.Index(q, "*/")
			if i < 0 {
				return ""
			}
			q = q[i+2:]
		default:
			return q
		}
	}
}
