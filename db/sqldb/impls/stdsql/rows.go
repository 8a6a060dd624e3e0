package stdsql

import (
	"database/sql"

	"github.com/zeptools/gw-dbi/db/sqldb"
)

type Rows struct {
	rows *sql.Rows
}

// Ensure stdsql.Rows implements sqldb.Rows interface
var _ sqldb.Rows = (*Rows)(nil)

// Columns reports names and declared types. Drivers that know no type
// for a column (e.g. sqlite expressions) leave DatabaseType empty.
func (r *Rows) Columns() ([]sqldb.ColumnType, error) {
	types, err := r.rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	cols := make([]sqldb.ColumnType, len(types))
	for i, t := range types {
		cols[i] = sqldb.ColumnType{Name: t.Name(), DatabaseType: t.DatabaseTypeName()}
	}
	return cols, nil
}

func (r *Rows) Next() bool {
	return r.rows.Next()
}

func (r *Rows) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

func (r *Rows) Close() error {
	return r.rows.Close()
}

func (r *Rows) Err() error {
	return r.rows.Err()
}
