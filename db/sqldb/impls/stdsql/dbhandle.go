package stdsql

import (
	"context"
	"database/sql"

	"github.com/zeptools/gw-dbi/db/sqldb"
)

type DBHandle struct {
	db *sql.DB
}

// Ensure stdsql.DBHandle implements sqldb.DBHandle interface
var _ sqldb.DBHandle = (*DBHandle)(nil)

func NewDBHandle(db *sql.DB) *DBHandle {
	return &DBHandle{db: db}
}

func (h *DBHandle) Exec(ctx context.Context, query string, args ...any) (sqldb.Result, error) {
	result, err := h.db.ExecContext(ctx, query, args...)
	// NOTE: We can process a DBMS-specific error to produce a better abstracted error
	if err != nil {
		return nil, err
	}
	return &Result{result: result}, nil
}

func (h *DBHandle) QueryRows(ctx context.Context, query string, args ...any) (sqldb.Rows, error) {
	rows, err := h.db.QueryContext(ctx, query, args...)
	// NOTE: We can process a DBMS-specific error to produce a better abstracted error
	if err != nil {
		return nil, err
	}
	return &Rows{rows: rows}, nil
}

func (h *DBHandle) QueryRow(ctx context.Context, query string, args ...any) sqldb.Row {
	row := h.db.QueryRowContext(ctx, query, args...)
	return &Row{row: row}
}

func (h *DBHandle) Prepare(ctx context.Context, query string) (sqldb.PreparedStmt, error) {
	stmt, err := h.db.PrepareContext(ctx, query)
	// NOTE: We can process a DBMS-specific error to produce a better abstracted error
	if err != nil {
		return nil, err
	}
	return &PreparedStmt{stmt: stmt}, nil
}
