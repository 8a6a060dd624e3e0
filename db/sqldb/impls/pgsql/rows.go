package pgsql

import (
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zeptools/gw-dbi/db/sqldb"
)

type Rows struct {
	conn    *pgxpool.Conn
	current pgx.Rows
}

// Ensure pgsql.Rows implements sqldb.Rows
var _ sqldb.Rows = (*Rows)(nil)

// Columns names each column type after its OID, as registered in the connection's type map.
// Unregistered OIDs (custom types) are reported as "oid:<n>".
func (r *Rows) Columns() ([]sqldb.ColumnType, error) {
	var m *pgtype.Map
	if conn := r.current.Conn(); conn != nil {
		m = conn.TypeMap()
	} else {
		m = pgtype.NewMap()
	}
	fields := r.current.FieldDescriptions()
	cols := make([]sqldb.ColumnType, len(fields))
	for i, fd := range fields {
		name := "oid:" + strconv.FormatUint(uint64(fd.DataTypeOID), 10)
		if t, ok := m.TypeForOID(fd.DataTypeOID); ok {
			name = t.Name
		}
		cols[i] = sqldb.ColumnType{Name: fd.Name, DatabaseType: name}
	}
	return cols, nil
}

func (r *Rows) Next() bool {
	return r.current.Next()
}

func (r *Rows) Scan(dest ...any) error {
	return scanSmallintBools(r.current.Scan, dest)
}

func (r *Rows) Close() error {
	if r.current != nil {
		r.current.Close()
	}
	if r.conn != nil {
		r.conn.Release()
	}
	return nil
}

func (r *Rows) Err() error {
	return r.current.Err()
}
