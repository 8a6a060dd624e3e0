package pgsql

import (
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/zeptools/gw-dbi/db/sqldb"
)

type Row struct {
	row pgx.Row
}

// Ensure pgsql.Row implements sqldb.Row interface
var _ sqldb.Row = (*Row)(nil)

func (r *Row) Scan(dest ...any) error {
	err := scanSmallintBools(r.row.Scan, dest)
	if errors.Is(err, pgx.ErrNoRows) {
		return sqldb.ErrNoRows
	}
	return err
}

// scanSmallintBools lets *bool destinations read smallint flag columns (0/1),
// the portable boolean shared with mysql TINYINT(1) schemas.
func scanSmallintBools(scan func(...any) error, dest []any) error {
	raw := make([]any, len(dest))
	for i, d := range dest {
		switch d.(type) {
		case *bool:
			raw[i] = new(int16)
		default:
			raw[i] = d
		}
	}
	if err := scan(raw...); err != nil {
		return err
	}
	for i, d := range dest {
		if v, ok := d.(*bool); ok {
			*v = *(raw[i].(*int16)) != 0
		}
	}
	return nil
}
