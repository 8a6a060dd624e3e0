package kvexec_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeptools/gw-dbi/db/kvdb"
	"github.com/zeptools/gw-dbi/db/kvdb/impls/memory"
	"github.com/zeptools/gw-dbi/dbi"
	"github.com/zeptools/gw-dbi/dbi/kvexec"
	"github.com/zeptools/gw-dbi/logger"
)

func open(t *testing.T) (*dbi.Database, kvdb.Client) {
	t.Helper()
	c, err := kvdb.New(memory.KVType, &kvdb.Conf{Type: memory.KVType})
	require.NoError(t, err)
	require.NoError(t, c.Init())
	t.Cleanup(func() { _ = c.Close() })

	db := dbi.Open(kvexec.New("kv", c), dbi.WithLogger(logger.Discard()))
	t.Cleanup(func() { _ = db.Close() })
	return db, c
}

func run(t *testing.T, db *dbi.Database, query string, binds ...any) *dbi.ResultSet {
	t.Helper()
	rs, err := db.Execute(context.Background(), query, binds...)
	require.NoError(t, err)
	return rs
}

func all(t *testing.T, rs *dbi.ResultSet) []dbi.Row {
	t.Helper()
	rows, err := rs.FetchRows(dbi.All)
	require.NoError(t, err)
	return rows
}

func TestStringCommands(t *testing.T) {
	db, _ := open(t)

	assert.Equal(t, int64(1), run(t, db, "SET greeting ?", "hello world").AffectedCount())

	rs := run(t, db, "get ?", "greeting")
	assert.Equal(t, []string{"key", "value"}, rs.Schema().Names())
	assert.Equal(t, []dbi.Row{{"greeting", "hello world"}}, all(t, rs))

	assert.False(t, run(t, db, "GET missing").HasData())
	assert.Equal(t, []dbi.Row{{true}}, all(t, run(t, db, "EXISTS greeting")))
	assert.Equal(t, int64(1), run(t, db, "EXPIRE greeting 60").AffectedCount())
	assert.Equal(t, int64(1), run(t, db, "DEL greeting missing").AffectedCount())
	assert.Equal(t, []dbi.Row{{false}}, all(t, run(t, db, "EXISTS greeting")))
}

func TestKeysSortedAndFiltered(t *testing.T) {
	db, _ := open(t)
	for _, k := range []string{"user:2", "user:1", "order:9"} {
		run(t, db, "SET ? x", k)
	}

	assert.Equal(t, []dbi.Row{{"order:9"}, {"user:1"}, {"user:2"}}, all(t, run(t, db, "KEYS")))
	assert.Equal(t, []dbi.Row{{"user:1"}, {"user:2"}}, all(t, run(t, db, "KEYS user:*")))

	_, err := db.Execute(context.Background(), "KEYS [")
	assert.Error(t, err)
}

func TestListCommands(t *testing.T) {
	db, _ := open(t)
	assert.Equal(t, int64(4), run(t, db, "RPUSH q a b c b").AffectedCount())

	assert.Equal(t, []dbi.Row{{int64(4)}}, all(t, run(t, db, "LLEN q")))
	assert.Equal(t, []dbi.Row{{int64(2), "c"}, {int64(3), "b"}}, all(t, run(t, db, "LRANGE q -2 -1")))
	assert.Equal(t, int64(2), run(t, db, "LREM q 0 b").AffectedCount())
	assert.Equal(t, []dbi.Row{{"a"}}, all(t, run(t, db, "LPOP q")))
	run(t, db, "LTRIM q 0 0")
	assert.Equal(t, []dbi.Row{{int64(0), "c"}}, all(t, run(t, db, "LRANGE q 0 -1")))
}

func TestHashCommands(t *testing.T) {
	db, _ := open(t)
	assert.Equal(t, int64(2), run(t, db, "HSET u:1 name ? city Oslo", "ann").AffectedCount())

	rs := run(t, db, "HGETALL u:1")
	require.NoError(t, rs.As(dbi.Struct))
	recs, err := rs.FetchRecords(dbi.All)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, map[string]any{"field": "city", "value": "Oslo"}, recs[0].Map())

	assert.Equal(t, []dbi.Row{{"zip", nil}, {"name", "ann"}}, all(t, run(t, db, "HMGET u:1 zip name")))
	assert.Equal(t, []dbi.Row{{"a", nil}}, all(t, run(t, db, "HMGET nokey a")))
	assert.Equal(t, []dbi.Row{{"city", "Oslo"}}, all(t, run(t, db, "HGET u:1 city")))
	assert.Equal(t, int64(1), run(t, db, "HDEL u:1 city zip").AffectedCount())
}

func TestReloadSeesNewState(t *testing.T) {
	db, c := open(t)
	ctx := context.Background()
	require.NoError(t, c.Push(ctx, "jobs", "j1"))

	rs := run(t, db, "LRANGE jobs 0 -1")
	assert.Equal(t, 1, rs.RowCount())

	require.NoError(t, c.Push(ctx, "jobs", "j2"))
	require.NoError(t, rs.Reload(ctx))
	assert.Equal(t, []dbi.Row{{int64(0), "j1"}, {int64(1), "j2"}}, all(t, rs))
}

func TestPrepareErrors(t *testing.T) {
	db, _ := open(t)
	ctx := context.Background()

	_, err := db.Prepare(ctx, "FLUSHALL")
	assert.ErrorIs(t, err, kvexec.ErrUnknownCommand)
	_, err = db.Prepare(ctx, "   ")
	assert.ErrorIs(t, err, kvexec.ErrUnknownCommand)
	_, err = db.Prepare(ctx, "GET a b")
	assert.ErrorIs(t, err, kvexec.ErrArity)
	_, err = db.Prepare(ctx, "HSET k f")
	assert.ErrorIs(t, err, kvexec.ErrArity)
	_, err = db.Prepare(ctx, "HSET k f v g")
	assert.ErrorIs(t, err, kvexec.ErrArity)
}

func TestBindCountMismatch(t *testing.T) {
	db, _ := open(t)
	st, err := db.Prepare(context.Background(), "GET ?")
	require.NoError(t, err)

	_, err = st.Execute(context.Background())
	assert.ErrorIs(t, err, kvexec.ErrBindCount)
	_, err = st.Execute(context.Background(), "a", "b")
	assert.ErrorIs(t, err, kvexec.ErrBindCount)
}
