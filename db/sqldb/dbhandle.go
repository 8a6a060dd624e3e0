package sqldb

import "context"

type DBHandle interface {
	// Exec executes SQL statement like INSERT, UPDATE, DELETE.
	Exec(ctx context.Context, query string, args ...any) (Result, error)

	QueryRows(ctx context.Context, query string, args ...any) (Rows, error) // Eager. Fail upfront on statement execution
	QueryRow(ctx context.Context, query string, args ...any) Row            // Lazy. only fails at Scan()

	// Prepare creates a server-side prepared statement. Close it when done.
	Prepare(ctx context.Context, query string) (PreparedStmt, error)
}

// PreparedStmt is a statement parsed once by the server and run many times
// with different args. The query text is already in the dialect's placeholder form.
type PreparedStmt interface {
	Query(ctx context.Context, args ...any) (Rows, error)
	Exec(ctx context.Context, args ...any) (Result, error)
	// Close releases the server-side statement. Rows already returned stay readable.
	Close() error
}
