package dbi

import (
	"context"
	"iter"
	"math"
)

// ResultSet is the captured output of one statement execution: a snapshot of
// raw rows, the schema describing them, a cursor and the active FetchDriver.
//
// A ResultSet is not safe for concurrent use. It is meant to be read by a
// single goroutine; only the Statement that produced it is synchronized.
type ResultSet struct {
	stmt     *Statement
	binds    []any
	schema   Schema
	data     []Row
	index    int
	count    int
	affected int64
	types    TypeRegistry

	kind     Kind
	driver   FetchDriver
	finished bool
}

func newResultSet(stmt *Statement, binds []any, res *Execution, kind Kind) *ResultSet {
	rs := &ResultSet{
		stmt:  stmt,
		binds: binds,
	}
	rs.load(res)
	// kind comes from a validated database option
	rs.driver, _ = bindDriver(rs, kind, nil)
	rs.kind = kind
	return rs
}

// load replaces every data field from res and resets the cursor to 0. The rows
// are copied so the executor may reuse its buffers.
func (rs *ResultSet) load(res *Execution) {
	types := res.Types
	if types == nil {
		types = DefaultTypes()
	}
	rs.schema = res.Schema
	rs.data = CloneRows(res.Rows)
	rs.count = len(rs.data)
	rs.affected = res.Affected
	rs.types = types
	rs.index = 0
}

// Statement returns the statement that produced the result, nil once finished.
func (rs *ResultSet) Statement() *Statement { return rs.stmt }

// Schema returns the column metadata.
func (rs *ResultSet) Schema() Schema { return rs.schema.Clone() }

// Binds returns a copy of the converted bind values used for the execution.
func (rs *ResultSet) Binds() []any { return append([]any(nil), rs.binds...) }

// Types returns the output type registry of the current snapshot.
func (rs *ResultSet) Types() TypeRegistry { return rs.types }

// RowCount returns the number of rows in the snapshot.
func (rs *ResultSet) RowCount() int { return rs.count }

// AffectedCount returns the number of rows affected by a non-query statement.
func (rs *ResultSet) AffectedCount() int64 { return rs.affected }

// Cursor returns the current read position. It may exceed RowCount after an
// over-sized fetch.
func (rs *ResultSet) Cursor() int { return rs.index }

// Driver returns the kind of the active fetch driver.
func (rs *ResultSet) Driver() Kind { return rs.kind }

// EOF reports whether the cursor is at or past the last row.
func (rs *ResultSet) EOF() bool { return rs.finished || rs.index >= rs.count }

// More reports whether rows remain after the cursor.
func (rs *ResultSet) More() bool { return !rs.finished && rs.index < rs.count }

// HasData reports whether the snapshot holds any row.
func (rs *ResultSet) HasData() bool { return !rs.finished && rs.count > 0 }

// Complete reports whether execution has completed. Executions are
// synchronous, so it is always true.
func (rs *ResultSet) Complete() bool { return true }

// Finished reports whether Finish has been called.
func (rs *ResultSet) Finished() bool { return rs.finished }

// Rewind moves the cursor back to the first row.
func (rs *ResultSet) Rewind() {
	rs.index = 0
}

// As makes a new driver of kind k the active one. The cursor is reset to 0.
func (rs *ResultSet) As(k Kind, opts ...DriverOption) error {
	if rs.finished {
		return ErrResultFinished
	}
	drv, err := bindDriver(rs, k, opts)
	if err != nil {
		return err
	}
	rs.kind = k
	rs.driver = drv
	return nil
}

// AsName is As with the driver given by name ("array", "csv", "struct").
func (rs *ResultSet) AsName(name string, opts ...DriverOption) error {
	k, err := ParseKind(name)
	if err != nil {
		return err
	}
	return rs.As(k, opts...)
}

// Fetch reads n rows through the active driver.
func (rs *ResultSet) Fetch(n Count) (any, error) {
	if rs.finished {
		return nil, ErrResultFinished
	}
	return rs.driver.Fetch(n)
}

// FetchAs switches to a driver of kind k (rewinding the cursor) and reads n rows through it.
func (rs *ResultSet) FetchAs(n Count, k Kind, opts ...DriverOption) (any, error) {
	if err := rs.As(k, opts...); err != nil {
		return nil, err
	}
	return rs.Fetch(n)
}

// FetchRows is Fetch for the Array driver.
func (rs *ResultSet) FetchRows(n Count) ([]Row, error) {
	return fetchTyped[[]Row](rs, n, Array)
}

// FetchCSV is Fetch for the CSV driver.
func (rs *ResultSet) FetchCSV(n Count) (string, error) {
	return fetchTyped[string](rs, n, CSV)
}

// FetchRecords is Fetch for the Struct driver.
func (rs *ResultSet) FetchRecords(n Count) ([]Record, error) {
	return fetchTyped[[]Record](rs, n, Struct)
}

func fetchTyped[T any](rs *ResultSet, n Count, want Kind) (T, error) {
	var zero T
	if rs.finished {
		return zero, ErrResultFinished
	}
	// checked before fetching so a mismatch leaves the cursor alone
	if rs.kind != want {
		return zero, ErrDriverOutput
	}
	out, err := rs.driver.Fetch(n)
	if err != nil {
		return zero, err
	}
	v, ok := out.(T)
	if !ok {
		return zero, ErrDriverOutput
	}
	return v, nil
}

// RawFetch returns a structural copy of unconverted rows and moves the cursor:
//   - All: every row, whatever the cursor; the cursor does not move.
//   - Rest: rows from the cursor to the end; the cursor moves to the end.
//   - n >= 0: up to n rows from the cursor; the cursor moves by n even past the end,
//     stopping at math.MaxInt.
func (rs *ResultSet) RawFetch(n Count) ([]Row, error) {
	if rs.finished {
		return nil, ErrResultFinished
	}
	switch {
	case n == All:
		return CloneRows(rs.data), nil
	case n == Rest:
		start := min(rs.index, rs.count)
		out := CloneRows(rs.data[start:])
		rs.index = rs.count
		return out, nil
	case n >= 0:
		step := int(n)
		start := min(rs.index, rs.count)
		end := rs.count
		if step < rs.count-start {
			end = start + step
		}
		out := CloneRows(rs.data[start:end])
		// saturate, a wrapped cursor would read as before the end
		if step > math.MaxInt-rs.index {
			rs.index = math.MaxInt
		} else {
			rs.index += step
		}
		return out, nil
	default:
		return nil, ErrInvalidCount
	}
}

// Each returns a single-pass sequence of rows as formatted by the active
// driver, read one at a time from the cursor. The cursor ends up at the end;
// call Rewind to iterate again. Iteration stops after the first error.
func (rs *ResultSet) Each() iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		if rs.finished {
			yield(nil, ErrResultFinished)
			return
		}
		for rs.More() {
			item, err := rs.driver.fetchOne()
			if !yield(item, err) || err != nil {
				return
			}
		}
	}
}

// Reload executes the statement again with the original bind values and
// replaces schema, rows, types and counts with the new output. The cursor is
// reset to 0 and the active driver stays bound: drivers read the result set's
// current state on every fetch.
func (rs *ResultSet) Reload(ctx context.Context) error {
	if rs.finished {
		return ErrResultFinished
	}
	_, err := rs.stmt.run(ctx, rs.binds, rs)
	return err
}

// Finish finishes the owning statement and releases the snapshot. Every
// later operation on rs fails with ErrResultFinished.
func (rs *ResultSet) Finish() error {
	if rs.finished {
		return nil
	}
	var err error
	if rs.stmt != nil {
		err = rs.stmt.Finish()
	}
	rs.stmt = nil
	rs.data = nil
	rs.schema = Schema{}
	rs.driver = nil
	rs.binds = nil
	rs.types = nil
	rs.index = 0
	rs.count = 0
	rs.finished = true
	return err
}
