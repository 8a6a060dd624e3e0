package dbi_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeptools/gw-dbi/dbi"
)

func TestFetchAdvancesCursor(t *testing.T) {
	_, rs := execute(t, sample())

	rows, err := rs.FetchRows(2)
	require.NoError(t, err)
	assert.Equal(t, []dbi.Row{{int64(1), "a"}, {int64(2), "b"}}, rows)
	assert.Equal(t, 2, rs.Cursor())
	assert.True(t, rs.More())

	rows, err = rs.FetchRows(2)
	require.NoError(t, err)
	assert.Equal(t, []dbi.Row{{int64(3), "c"}}, rows)
	assert.Equal(t, 4, rs.Cursor())
	assert.True(t, rs.EOF())
	assert.False(t, rs.More())

	rows, err = rs.FetchRows(1)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 5, rs.Cursor())
}

func TestFetchDefaultsToOneRow(t *testing.T) {
	_, rs := execute(t, sample())

	out, err := rs.Fetch(1)
	require.NoError(t, err)
	assert.Equal(t, []dbi.Row{{int64(1), "a"}}, out)
	assert.Equal(t, 1, rs.Cursor())
}

func TestFetchZeroRows(t *testing.T) {
	_, rs := execute(t, sample())

	rows, err := rs.FetchRows(0)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 0, rs.Cursor())
}

func TestFetchAllIgnoresCursor(t *testing.T) {
	_, rs := execute(t, sample())
	_, err := rs.FetchRows(2)
	require.NoError(t, err)

	rows, err := rs.FetchRows(dbi.All)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, 2, rs.Cursor())
}

func TestFetchRest(t *testing.T) {
	_, rs := execute(t, sample())
	_, err := rs.FetchRows(1)
	require.NoError(t, err)

	rows, err := rs.FetchRows(dbi.Rest)
	require.NoError(t, err)
	assert.Equal(t, []dbi.Row{{int64(2), "b"}, {int64(3), "c"}}, rows)
	assert.Equal(t, 3, rs.Cursor())
	assert.False(t, rs.More())

	rows, err = rs.FetchRows(dbi.Rest)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestFetchRestAfterOvershoot(t *testing.T) {
	_, rs := execute(t, sample())
	_, err := rs.FetchRows(10)
	require.NoError(t, err)
	require.Equal(t, 10, rs.Cursor())

	rows, err := rs.FetchRows(dbi.Rest)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 3, rs.Cursor())
}

func TestFetchHugeCountSaturatesCursor(t *testing.T) {
	_, rs := execute(t, sample())
	_, err := rs.FetchRows(1)
	require.NoError(t, err)

	rows, err := rs.FetchRows(dbi.Count(math.MaxInt))
	require.NoError(t, err)
	assert.Equal(t, []dbi.Row{{int64(2), "b"}, {int64(3), "c"}}, rows)
	assert.Equal(t, math.MaxInt, rs.Cursor())
	assert.True(t, rs.EOF())
	assert.False(t, rs.More())

	rows, err = rs.FetchRows(1)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, math.MaxInt, rs.Cursor())

	rs.Rewind()
	rows, err = rs.FetchRows(1)
	require.NoError(t, err)
	assert.Equal(t, []dbi.Row{{int64(1), "a"}}, rows)
}

// Rows handed over by the executor are copied into the snapshot.
func TestSnapshotIndependentOfExecutorBuffer(t *testing.T) {
	buf := []dbi.Row{{int64(1), []byte("a")}}
	exec := dbi.ExecutorFunc(func(context.Context, []any) (*dbi.Execution, error) {
		return &dbi.Execution{Schema: dbi.NewSchema("id", "int", "name", "text"), Rows: buf}, nil
	})
	_, rs := execute(t, exec)

	buf[0][0] = int64(9)
	buf[0][1].([]byte)[0] = 'z'

	rows, err := rs.FetchRows(dbi.All)
	require.NoError(t, err)
	assert.Equal(t, []dbi.Row{{int64(1), "a"}}, rows)
}

func TestFetchInvalidCount(t *testing.T) {
	_, rs := execute(t, sample())

	_, err := rs.Fetch(-7)
	require.ErrorIs(t, err, dbi.ErrInvalidCount)
	assert.Equal(t, 0, rs.Cursor())
}

func TestRawFetchReturnsCopies(t *testing.T) {
	tbl := &table{
		schema: dbi.NewSchema("blob", "bytea", "tags", "json"),
		rows:   []dbi.Row{{[]byte("abc"), []any{"x", "y"}}},
	}
	_, rs := execute(t, tbl)

	raw, err := rs.RawFetch(dbi.All)
	require.NoError(t, err)
	raw[0][0].([]byte)[0] = 'Z'
	raw[0][1].([]any)[0] = "changed"
	raw[0] = nil

	again, err := rs.RawFetch(dbi.All)
	require.NoError(t, err)
	assert.Equal(t, dbi.Row{[]byte("abc"), []any{"x", "y"}}, again[0])
}

func TestEachIteratesOnce(t *testing.T) {
	_, rs := execute(t, sample())

	var first []any
	for row, err := range rs.Each() {
		require.NoError(t, err)
		first = append(first, row)
	}
	assert.Equal(t, []any{dbi.Row{int64(1), "a"}, dbi.Row{int64(2), "b"}, dbi.Row{int64(3), "c"}}, first)
	assert.True(t, rs.EOF())

	var none int
	for range rs.Each() {
		none++
	}
	assert.Zero(t, none)

	rs.Rewind()
	var second []any
	for row, err := range rs.Each() {
		require.NoError(t, err)
		second = append(second, row)
	}
	assert.Equal(t, first, second)
}

func TestEachStopsEarly(t *testing.T) {
	_, rs := execute(t, sample())

	for range rs.Each() {
		break
	}
	assert.Equal(t, 1, rs.Cursor())
}

func TestEachWithStructDriver(t *testing.T) {
	_, rs := execute(t, sample())
	require.NoError(t, rs.As(dbi.Struct))

	var names []any
	for item, err := range rs.Each() {
		require.NoError(t, err)
		v, ok := item.(dbi.Record).Get("name")
		require.True(t, ok)
		names = append(names, v)
	}
	assert.Equal(t, []any{"a", "b", "c"}, names)
}

func TestAsRewinds(t *testing.T) {
	for _, k := range []dbi.Kind{dbi.Array, dbi.CSV, dbi.Struct} {
		t.Run(k.String(), func(t *testing.T) {
			_, rs := execute(t, sample())
			_, err := rs.Fetch(2)
			require.NoError(t, err)

			require.NoError(t, rs.As(k))
			assert.Equal(t, 0, rs.Cursor())
			assert.Equal(t, k, rs.Driver())
		})
	}
}

func TestFetchAsOverridesDriver(t *testing.T) {
	_, rs := execute(t, sample())
	_, err := rs.Fetch(3)
	require.NoError(t, err)

	out, err := rs.FetchAs(1, dbi.CSV)
	require.NoError(t, err)
	assert.Equal(t, "1,a\n", out)
	assert.Equal(t, dbi.CSV, rs.Driver())
	assert.Equal(t, 1, rs.Cursor())
}

func TestAsUnknownDriver(t *testing.T) {
	_, rs := execute(t, sample())
	_, err := rs.Fetch(1)
	require.NoError(t, err)

	err = rs.As(dbi.Kind(42))
	var rerr *dbi.ResolutionError
	require.ErrorAs(t, err, &rerr)
	require.ErrorIs(t, err, dbi.ErrUnknownDriver)
	assert.Equal(t, dbi.Array, rs.Driver())
	assert.Equal(t, 1, rs.Cursor())

	err = rs.AsName("yaml")
	require.ErrorIs(t, err, dbi.ErrUnknownDriver)
	assert.EqualError(t, err, `dbi: unknown fetch driver: "yaml"`)

	require.NoError(t, rs.AsName(" Struct "))
	assert.Equal(t, dbi.Struct, rs.Driver())
}

func TestStructDriver(t *testing.T) {
	_, rs := execute(t, sample())
	require.NoError(t, rs.As(dbi.Struct))

	first, err := rs.FetchRecords(1)
	require.NoError(t, err)
	second, err := rs.FetchRecords(1)
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, map[string]any{"id": int64(1), "name": "a"}, first[0].Map())
	assert.Equal(t, map[string]any{"id": int64(2), "name": "b"}, second[0].Map())
	assert.Equal(t, []string{"id", "name"}, second[0].Fields())

	var user struct {
		ID   int    `db:"id"`
		Name string `db:"name"`
	}
	require.NoError(t, second[0].Decode(&user))
	assert.Equal(t, 2, user.ID)
	assert.Equal(t, "b", user.Name)

	data, err := json.Marshal(first[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"name":"a"}`, string(data))
	assert.Equal(t, `{"id":1,"name":"a"}`, string(data))
}

func TestCSVDriver(t *testing.T) {
	tbl := &table{
		schema: dbi.NewSchema("id", "int", "name", "text", "price", "numeric"),
		rows: []dbi.Row{
			{"1", []byte("plain"), "1.50"},
			{"2", "with,comma", nil},
			{"3", `quote "q"`, "10"},
		},
	}
	_, rs := execute(t, tbl)
	require.NoError(t, rs.As(dbi.CSV))

	out, err := rs.FetchCSV(dbi.All)
	require.NoError(t, err)
	assert.Equal(t, "1,plain,1.5\n2,\"with,comma\",\n3,\"quote \"\"q\"\"\",10\n", out)
	assert.Equal(t, 0, rs.Cursor())
}

func TestCSVDriverOptions(t *testing.T) {
	_, rs := execute(t, sample())
	require.NoError(t, rs.As(dbi.CSV, dbi.WithCSVHeader(), dbi.WithCSVComma(';')))

	out, err := rs.FetchCSV(2)
	require.NoError(t, err)
	assert.Equal(t, "id;name\n1;a\n2;b\n", out)

	item, err := rs.Fetch(dbi.Rest)
	require.NoError(t, err)
	assert.Equal(t, "id;name\n3;c\n", item)
}

func TestTypedFetchMismatch(t *testing.T) {
	_, rs := execute(t, sample())

	_, err := rs.FetchCSV(1)
	require.ErrorIs(t, err, dbi.ErrDriverOutput)
	_, err = rs.FetchRecords(1)
	require.ErrorIs(t, err, dbi.ErrDriverOutput)
	assert.Equal(t, 0, rs.Cursor())
}

func TestRowShapeMismatch(t *testing.T) {
	tbl := &table{
		schema: dbi.NewSchema("id", "int", "name", "text"),
		rows:   []dbi.Row{{int64(1)}},
	}
	_, rs := execute(t, tbl)

	_, err := rs.Fetch(1)
	require.ErrorIs(t, err, dbi.ErrRowShape)
}

func TestOutputConversionErrorPropagates(t *testing.T) {
	tbl := &table{
		schema: dbi.NewSchema("id", "int"),
		rows:   []dbi.Row{{"not a number"}},
	}
	_, rs := execute(t, tbl)

	_, err := rs.Fetch(1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "id"`)
}

func TestOutputConversionUsesRegistry(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	exec := dbi.ExecutorFunc(func(context.Context, []any) (*dbi.Execution, error) {
		reg := dbi.DefaultTypes()
		reg["shout"] = func(v any, _ dbi.Column) (any, error) { return v.(string) + "!", nil }
		return &dbi.Execution{
			Schema: dbi.NewSchema("n", "BIGINT", "d", "DECIMAL(10,2)", "at", "timestamptz", "s", "shout", "x", "geometry"),
			Rows:   []dbi.Row{{[]byte("42"), "3.10", ts, "hi", "POINT(1 1)"}},
			Types:  reg,
		}, nil
	})
	_, rs := execute(t, exec)

	rows, err := rs.FetchRows(1)
	require.NoError(t, err)
	row := rows[0]
	assert.Equal(t, int64(42), row[0])
	assert.True(t, decimal.RequireFromString("3.1").Equal(row[1].(decimal.Decimal)))
	assert.Equal(t, ts, row[2])
	assert.Equal(t, "hi!", row[3])
	assert.Equal(t, "POINT(1 1)", row[4])
}

func TestReload(t *testing.T) {
	tbl := sample()
	_, rs := execute(t, tbl, "k")
	require.NoError(t, rs.As(dbi.Struct))
	_, err := rs.Fetch(2)
	require.NoError(t, err)

	tbl.rows = append(tbl.rows, dbi.Row{int64(4), "d"})
	tbl.schema = dbi.NewSchema("id", "int", "label", "text")
	require.NoError(t, rs.Reload(context.Background()))

	assert.Equal(t, 0, rs.Cursor())
	assert.Equal(t, 4, rs.RowCount())
	assert.Equal(t, []string{"id", "label"}, rs.Schema().Names())
	assert.Equal(t, dbi.Struct, rs.Driver())
	assert.Equal(t, [][]any{{"k"}, {"k"}}, tbl.binds)

	recs, err := rs.FetchRecords(dbi.Rest)
	require.NoError(t, err)
	require.Len(t, recs, 4)
	label, _ := recs[3].Get("label")
	assert.Equal(t, "d", label)
}

func TestReloadUnchangedData(t *testing.T) {
	_, rs := execute(t, sample())
	before, err := rs.FetchRows(dbi.All)
	require.NoError(t, err)
	_, err = rs.Fetch(dbi.Rest)
	require.NoError(t, err)

	require.NoError(t, rs.Reload(context.Background()))
	after, err := rs.FetchRows(dbi.All)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 0, rs.Cursor())
}

func TestReloadFailureKeepsSnapshot(t *testing.T) {
	tbl := sample()
	_, rs := execute(t, tbl)
	_, err := rs.Fetch(1)
	require.NoError(t, err)

	tbl.err = errors.New("gone")
	require.Error(t, rs.Reload(context.Background()))
	assert.Equal(t, 1, rs.Cursor())
	assert.Equal(t, 3, rs.RowCount())
}

func TestReloadFinishedStatement(t *testing.T) {
	stmt, rs := execute(t, sample())
	require.NoError(t, stmt.Finish())

	require.ErrorIs(t, rs.Reload(context.Background()), dbi.ErrFinished)
}

func TestAffectedCount(t *testing.T) {
	exec := dbi.ExecutorFunc(func(context.Context, []any) (*dbi.Execution, error) {
		return &dbi.Execution{Affected: 7}, nil
	})
	_, rs := execute(t, exec)

	assert.Equal(t, int64(7), rs.AffectedCount())
	assert.False(t, rs.HasData())
}

func TestResultSetFinish(t *testing.T) {
	stmt, rs := execute(t, sample())

	require.NoError(t, rs.Finish())
	require.NoError(t, rs.Finish())
	assert.True(t, rs.Finished())
	assert.True(t, stmt.Finished())
	assert.Nil(t, rs.Statement())

	assert.True(t, rs.EOF())
	assert.False(t, rs.More())
	assert.False(t, rs.HasData())

	_, err := rs.Fetch(1)
	require.ErrorIs(t, err, dbi.ErrResultFinished)
	_, err = rs.RawFetch(dbi.All)
	require.ErrorIs(t, err, dbi.ErrResultFinished)
	require.ErrorIs(t, rs.As(dbi.CSV), dbi.ErrResultFinished)
	require.ErrorIs(t, rs.Reload(context.Background()), dbi.ErrResultFinished)
	_, err = rs.FetchRows(1)
	require.ErrorIs(t, err, dbi.ErrResultFinished)

	for _, err := range rs.Each() {
		require.ErrorIs(t, err, dbi.ErrResultFinished)
	}
}
