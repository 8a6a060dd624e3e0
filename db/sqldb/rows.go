package sqldb

import "errors"

// ErrNoRows is returned by Row.Scan when the query selected nothing.
var ErrNoRows = errors.New("sqldb: no rows in result set")

// ColumnType is the metadata of one result column.
type ColumnType struct {
	Name         string
	DatabaseType string // backend type name, e.g. "VARCHAR", "int4"
}

type Rows interface {
	Columns() ([]ColumnType, error)
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

type Row interface {
	Scan(dest ...any) error
}

type Result interface {
	RowsAffected() (int64, error)
	LastInsertId() (int64, error)
}
