package pgsql

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zeptools/gw-dbi/db/sqldb"
)

type DBHandle struct {
	pool *pgxpool.Pool
}

var _ sqldb.DBHandle = (*DBHandle)(nil)

func (h *DBHandle) Exec(ctx context.Context, query string, args ...any) (sqldb.Result, error) {
	tag, err := h.pool.Exec(ctx, query, args...)
	// NOTE: We can process a DBMS-specific error to produce a better abstracted error
	if err != nil {
		return nil, err
	}
	return &Result{tag: tag}, nil
}

func (h *DBHandle) QueryRows(ctx context.Context, query string, args ...any) (sqldb.Rows, error) {
	rows, err := h.pool.Query(ctx, query, args...)
	// NOTE: We can process a DBMS-specific error to produce a better abstracted error
	if err != nil {
		return nil, err
	}
	return &Rows{
		conn:    nil, // pool manages connection, no need to release here
		current: rows,
	}, nil
}

func (h *DBHandle) QueryRow(ctx context.Context, query string, args ...any) sqldb.Row {
	row := h.pool.QueryRow(ctx, query, args...)
	return &Row{row: row}
}

// Prepare pins a pooled connection for the statement's lifetime. Close releases it.
func (h *DBHandle) Prepare(ctx context.Context, query string) (sqldb.PreparedStmt, error) {
	conn, err := h.pool.Acquire(ctx)
	// NOTE: We can process a DBMS-specific error to produce a better abstracted error
	if err != nil {
		return nil, err
	}
	stmtName := "stmt_" + uuid.NewString()
	if _, err = conn.Conn().Prepare(ctx, stmtName, query); err != nil {
		conn.Release()
		return nil, err
	}
	return &PreparedStmt{conn: conn, stmtName: stmtName}, nil
}
