package dbi

import (
	"context"
	"errors"
	"sync"

	"github.com/zeptools/gw-dbi/logger"
)

// Executor is the execution primitive a driver supplies for one prepared query.
// NewExecution must be deterministic with respect to its inputs for
// ResultSet.Reload to be meaningful. An Executor that also implements
// io.Closer is closed when its statement finishes.
type Executor interface {
	NewExecution(ctx context.Context, binds []any) (*Execution, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, binds []any) (*Execution, error)

func (f ExecutorFunc) NewExecution(ctx context.Context, binds []any) (*Execution, error) {
	return f(ctx, binds)
}

// Driver is a concrete backend family. Prepare may return a nil Executor,
// in which case executing the statement fails with ErrNotImplemented.
type Driver interface {
	Name() string
	Prepare(ctx context.Context, query string) (Executor, error)
}

// Database is a handle on one Driver. It tracks the statements prepared
// through it until they are finished.
type Database struct {
	driver      Driver
	log         logger.Logger
	defaultKind Kind
	optErr      error

	mu        sync.Mutex
	openStmts map[*Statement]struct{}
	closed    bool
}

// Option configures a Database.
type Option func(*Database)

// WithLogger sets the logger used by the database and its statements.
func WithLogger(l logger.Logger) Option {
	return func(d *Database) {
		if l != nil {
			d.log = l
		}
	}
}

// WithDefaultKind sets the fetch driver new result sets start with.
// An unknown kind makes every Prepare fail with a *ResolutionError.
func WithDefaultKind(k Kind) Option {
	return func(d *Database) {
		if !k.valid() {
			d.optErr = &ResolutionError{Name: k.String()}
			return
		}
		d.defaultKind = k
	}
}

// Open returns a Database backed by drv.
func Open(drv Driver, opts ...Option) *Database {
	d := &Database{
		driver:      drv,
		log:         logger.Log(),
		defaultKind: Array,
		openStmts:   make(map[*Statement]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.AddContext(logger.Ctx{"driver": drv.Name()})
	if d.optErr != nil {
		d.log.Error("invalid database option", logger.Ctx{"err": d.optErr})
	}
	return d
}

// ErrClosed is returned when preparing on a closed database.
var ErrClosed = errors.New("dbi: database is closed")

// DriverName returns the name of the driver family.
func (d *Database) DriverName() string {
	return d.driver.Name()
}

// Prepare asks the driver for an executor and registers a new Statement.
func (d *Database) Prepare(ctx context.Context, query string) (*Statement, error) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	if d.optErr != nil {
		return nil, d.optErr
	}
	exec, err := d.driver.Prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	stmt := newStatement(query, d, exec)
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		stmt.closeExecutor()
		return nil, ErrClosed
	}
	d.openStmts[stmt] = struct{}{}
	d.mu.Unlock()
	stmt.log.Debug("statement prepared", logger.Ctx{"query": query})
	return stmt, nil
}

// Execute prepares query and executes it once with binds. The statement is
// finished together with the returned result set.
func (d *Database) Execute(ctx context.Context, query string, binds ...any) (*ResultSet, error) {
	stmt, err := d.Prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	rs, err := stmt.Execute(ctx, binds...)
	if err != nil {
		_ = stmt.Finish()
		return nil, err
	}
	return rs, nil
}

// OpenStatements returns the statements that have not been finished yet.
func (d *Database) OpenStatements() []*Statement {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Statement, 0, len(d.openStmts))
	for s := range d.openStmts {
		out = append(out, s)
	}
	return out
}

func (d *Database) removeStatement(s *Statement) {
	d.mu.Lock()
	delete(d.openStmts, s)
	d.mu.Unlock()
}

// Close finishes every open statement. Further Prepare calls fail with ErrClosed.
func (d *Database) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	stmts := make([]*Statement, 0, len(d.openStmts))
	for s := range d.openStmts {
		stmts = append(stmts, s)
	}
	d.mu.Unlock()

	var errs []error
	for _, s := range stmts {
		if err := s.Finish(); err != nil {
			errs = append(errs, err)
		}
	}
	d.log.Debug("database closed", logger.Ctx{"finished": len(stmts)})
	return errors.Join(errs...)
}
