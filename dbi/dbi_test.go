package dbi_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeptools/gw-dbi/dbi"
	"github.com/zeptools/gw-dbi/logger"
)

// fakeDriver hands every statement the same executor.
type fakeDriver struct {
	exec dbi.Executor
}

func (d *fakeDriver) Name() string { return "fake" }

func (d *fakeDriver) Prepare(_ context.Context, _ string) (dbi.Executor, error) {
	return d.exec, nil
}

// table is an executor returning a fixed snapshot and counting its calls.
type table struct {
	mu     sync.Mutex
	schema dbi.Schema
	rows   []dbi.Row
	calls  int
	binds  [][]any
	err    error
	closed bool
}

func (t *table) NewExecution(_ context.Context, binds []any) (*dbi.Execution, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	t.binds = append(t.binds, binds)
	if t.err != nil {
		return nil, t.err
	}
	return &dbi.Execution{Rows: dbi.CloneRows(t.rows), Schema: t.schema}, nil
}

func (t *table) Close() error {
	t.closed = true
	return nil
}

func sample() *table {
	return &table{
		schema: dbi.NewSchema("id", "int", "name", "text"),
		rows:   []dbi.Row{{int64(1), "a"}, {int64(2), "b"}, {int64(3), "c"}},
	}
}

func openDB(exec dbi.Executor) *dbi.Database {
	return dbi.Open(&fakeDriver{exec: exec}, dbi.WithLogger(logger.Discard()))
}

func execute(t *testing.T, exec dbi.Executor, binds ...any) (*dbi.Statement, *dbi.ResultSet) {
	t.Helper()
	db := openDB(exec)
	stmt, err := db.Prepare(context.Background(), "SELECT id, name FROM t")
	require.NoError(t, err)
	rs, err := stmt.Execute(context.Background(), binds...)
	require.NoError(t, err)
	return stmt, rs
}

func TestExecuteCapturesSnapshot(t *testing.T) {
	_, rs := execute(t, sample())

	require.Equal(t, 3, rs.RowCount())
	require.Equal(t, 0, rs.Cursor())
	require.True(t, rs.HasData())
	require.True(t, rs.More())
	require.False(t, rs.EOF())
	require.True(t, rs.Complete())
	require.Equal(t, dbi.Array, rs.Driver())
	require.Equal(t, []string{"id", "name"}, rs.Schema().Names())
}

func TestExecuteEmptyResult(t *testing.T) {
	_, rs := execute(t, &table{schema: dbi.NewSchema("id", "int")})

	require.False(t, rs.HasData())
	require.True(t, rs.EOF())
	require.False(t, rs.More())

	rows, err := rs.FetchRows(5)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestExecuteFinishedStatement(t *testing.T) {
	tbl := sample()
	stmt, _ := execute(t, tbl)
	require.NoError(t, stmt.Finish())
	require.NoError(t, stmt.Finish())
	require.True(t, stmt.Finished())
	require.True(t, tbl.closed)

	_, err := stmt.Execute(context.Background())
	require.ErrorIs(t, err, dbi.ErrFinished)
	require.Equal(t, 1, tbl.calls)
}

func TestExecuteWithoutExecutor(t *testing.T) {
	db := openDB(nil)
	stmt, err := db.Prepare(context.Background(), "SELECT 1")
	require.NoError(t, err)

	_, err = stmt.Execute(context.Background())
	require.ErrorIs(t, err, dbi.ErrNotImplemented)
}

func TestExecuteConvertsBinds(t *testing.T) {
	type cents int
	dbi.RegisterInputType(cents(0), func(v any) (any, error) { return int64(v.(cents)) * 100, nil })

	tbl := sample()
	_, rs := execute(t, tbl, cents(3), "x", nil)

	require.Equal(t, []any{int64(300), "x", nil}, tbl.binds[0])
	require.Equal(t, []any{int64(300), "x", nil}, rs.Binds())
}

func TestExecuteInputConversionError(t *testing.T) {
	type bad struct{}
	boom := errors.New("boom")
	dbi.RegisterInputType(bad{}, func(any) (any, error) { return nil, boom })

	tbl := sample()
	db := openDB(tbl)
	stmt, err := db.Prepare(context.Background(), "q")
	require.NoError(t, err)

	_, err = stmt.Execute(context.Background(), bad{})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 0, tbl.calls)
}

func TestExecuteFailureKeepsLastResult(t *testing.T) {
	tbl := sample()
	db := openDB(tbl)
	stmt, err := db.Prepare(context.Background(), "q")
	require.NoError(t, err)

	ctx := dbi.WithResultSlot(context.Background())
	_, ok := dbi.LastResult(ctx)
	require.False(t, ok)

	first, err := stmt.Execute(ctx)
	require.NoError(t, err)

	tbl.err = errors.New("connection reset")
	_, err = stmt.Execute(ctx)
	require.EqualError(t, err, "connection reset")

	last, ok := dbi.LastResult(ctx)
	require.True(t, ok)
	require.Same(t, first, last)
}

func TestLastResultIsScopedToContext(t *testing.T) {
	tbl := sample()
	db := openDB(tbl)
	stmt, err := db.Prepare(context.Background(), "q")
	require.NoError(t, err)

	ctxA := dbi.WithResultSlot(context.Background())
	ctxB := dbi.WithResultSlot(context.Background())

	a, err := stmt.Execute(ctxA)
	require.NoError(t, err)
	b, err := stmt.Execute(ctxB)
	require.NoError(t, err)

	lastA, _ := dbi.LastResult(ctxA)
	lastB, _ := dbi.LastResult(ctxB)
	require.Same(t, a, lastA)
	require.Same(t, b, lastB)

	_, ok := dbi.LastResult(context.Background())
	require.False(t, ok)
}

// The executor must never be entered by two executions of one statement at once.
func TestExecuteSerializesExecutions(t *testing.T) {
	var inside, overlaps atomic.Int32
	exec := dbi.ExecutorFunc(func(_ context.Context, _ []any) (*dbi.Execution, error) {
		if inside.Add(1) > 1 {
			overlaps.Add(1)
		}
		defer inside.Add(-1)
		return &dbi.Execution{Schema: dbi.NewSchema("n", "int"), Rows: []dbi.Row{{int64(1)}}}, nil
	})
	db := openDB(exec)
	stmt, err := db.Prepare(context.Background(), "q")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				_, err := stmt.Execute(context.Background())
				if err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	require.Zero(t, overlaps.Load())
}

func TestDatabaseTracksOpenStatements(t *testing.T) {
	db := openDB(sample())
	ctx := context.Background()

	s1, err := db.Prepare(ctx, "q1")
	require.NoError(t, err)
	s2, err := db.Prepare(ctx, "q2")
	require.NoError(t, err)
	require.Len(t, db.OpenStatements(), 2)
	require.Equal(t, "fake", s1.Driver())
	require.Equal(t, "q1", s1.Query())
	require.NotEqual(t, s1.ID(), s2.ID())

	require.NoError(t, s1.Finish())
	require.Equal(t, []*dbi.Statement{s2}, db.OpenStatements())

	require.NoError(t, db.Close())
	require.Empty(t, db.OpenStatements())
	require.True(t, s2.Finished())

	_, err = db.Prepare(ctx, "q3")
	require.ErrorIs(t, err, dbi.ErrClosed)
}

func TestDatabaseExecute(t *testing.T) {
	tbl := sample()
	db := openDB(tbl)

	rs, err := db.Execute(context.Background(), "q", 1)
	require.NoError(t, err)
	require.Equal(t, 3, rs.RowCount())
	require.Len(t, db.OpenStatements(), 1)

	require.NoError(t, rs.Finish())
	require.Empty(t, db.OpenStatements())

	tbl.err = errors.New("syntax error")
	_, err = db.Execute(context.Background(), "q")
	require.Error(t, err)
	require.Empty(t, db.OpenStatements())
}

func TestDefaultKindOption(t *testing.T) {
	db := dbi.Open(&fakeDriver{exec: sample()}, dbi.WithLogger(logger.Discard()), dbi.WithDefaultKind(dbi.Struct))
	rs, err := db.Execute(context.Background(), "q")
	require.NoError(t, err)
	require.Equal(t, dbi.Struct, rs.Driver())

	recs, err := rs.FetchRecords(1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestInvalidDefaultKind(t *testing.T) {
	tbl := sample()
	db := dbi.Open(&fakeDriver{exec: tbl}, dbi.WithLogger(logger.Discard()), dbi.WithDefaultKind(dbi.Kind(42)))

	_, err := db.Prepare(context.Background(), "q")
	var rerr *dbi.ResolutionError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, "Kind(42)", rerr.Name)
	require.ErrorIs(t, err, dbi.ErrUnknownDriver)

	_, err = db.Execute(context.Background(), "q")
	require.Error(t, err)
	require.Zero(t, tbl.calls)
	require.Empty(t, db.OpenStatements())
}
