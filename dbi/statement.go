package dbi

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/zeptools/gw-dbi/logger"
)

// Statement owns one query and its execution lifecycle.
// Execute and Finish are serialized by a per-statement lock, so a Statement
// may be shared between goroutines; the ResultSets it returns may not.
type Statement struct {
	id       string
	query    string
	db       *Database
	exec     Executor
	inTypes  InputTypeMap
	log      logger.Logger
	mu       sync.Mutex
	finished bool
}

func newStatement(query string, db *Database, exec Executor) *Statement {
	id := uuid.NewString()
	return &Statement{
		id:      id,
		query:   query,
		db:      db,
		exec:    exec,
		inTypes: NewInputTypeMap(),
		log:     db.log.AddContext(logger.Ctx{"stmt": id}),
	}
}

// ID returns the statement identifier used in log entries.
func (s *Statement) ID() string { return s.id }

// Query returns the query text.
func (s *Statement) Query() string { return s.query }

// Database returns the owning database.
func (s *Statement) Database() *Database { return s.db }

// Driver returns the name of the driver family the statement belongs to.
func (s *Statement) Driver() string { return s.db.DriverName() }

// InputTypes returns the input conversion map captured at prepare time.
func (s *Statement) InputTypes() InputTypeMap { return s.inTypes }

// Finished reports whether Finish has been called.
func (s *Statement) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Execute converts binds, runs the driver's executor once and returns the
// captured result. If ctx carries a result slot (WithResultSlot) the result
// is published there as well. A failed execution publishes nothing.
func (s *Statement) Execute(ctx context.Context, binds ...any) (*ResultSet, error) {
	if s.Finished() {
		return nil, ErrFinished
	}
	converted := make([]any, len(binds))
	for i, b := range binds {
		v, err := ConvertIn(b, s.inTypes)
		if err != nil {
			return nil, err
		}
		converted[i] = v
	}
	return s.run(ctx, converted, nil)
}

// run executes already converted binds under the statement lock. The output
// is loaded into target when it is set (reload), into a new ResultSet otherwise.
func (s *Statement) run(ctx context.Context, binds []any, target *ResultSet) (*ResultSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return nil, ErrFinished
	}
	if s.exec == nil {
		return nil, ErrNotImplemented
	}
	res, err := s.exec.NewExecution(ctx, binds)
	if err != nil {
		s.log.Debug("statement execution failed", logger.Ctx{"err": err})
		return nil, err
	}
	if res == nil {
		res = &Execution{}
	}
	rs := target
	if rs == nil {
		rs = newResultSet(s, binds, res, s.db.defaultKind)
	} else {
		rs.load(res)
	}
	publishResult(ctx, rs)
	s.log.Debug("statement executed", logger.Ctx{"rows": rs.count, "affected": rs.affected})
	return rs, nil
}

// Finish marks the statement finished, removes it from its database's open
// statements and releases the executor. Calling it again is a no-op.
func (s *Statement) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return nil
	}
	s.db.removeStatement(s)
	s.finished = true
	s.log.Debug("statement finished")
	return s.closeExecutor()
}

func (s *Statement) closeExecutor() error {
	if c, ok := s.exec.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
