package sqldb

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRawStmtsToStore(t *testing.T) {
	fsys := fstest.MapFS{
		"by_id.sql":    {Data: []byte("SELECT * FROM users WHERE id = ?")},
		"search.sql":   {Data: []byte("SELECT * FROM users WHERE name LIKE ? AND id IN (??)")},
		"search.pgsql": {Data: []byte("SELECT * FROM users WHERE name ILIKE $1 AND id = ANY($2)")},
		"upsert.mysql": {Data: []byte("INSERT ... ON DUPLICATE KEY UPDATE")},
		"README.md":    {Data: []byte("docs")},
		"nested/x.sql": {Data: []byte("SELECT 1")},
	}

	store := NewRawStore()
	n, err := LoadRawStmtsToStore(store, fsys, "users", "pgsql", '$')
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, store.Len())

	q, ok := store.Get("users.by_id")
	require.True(t, ok)
	assert.Equal(t, "SELECT * FROM users WHERE id = $1", q)

	q, ok = store.Get("users.search")
	require.True(t, ok)
	assert.Equal(t, "SELECT * FROM users WHERE name ILIKE $1 AND id = ANY($2)", q)

	_, ok = store.Get("users.upsert")
	assert.False(t, ok)
}

func TestLoadRawStmtsDialectAfterGeneric(t *testing.T) {
	// "a.sql" sorts before "a.sqlite"
	fsys := fstest.MapFS{
		"a.sql":    {Data: []byte("generic")},
		"a.sqlite": {Data: []byte("dialect")},
	}
	store := NewRawStore()
	n, err := LoadRawStmtsToStore(store, fsys, "g", "sqlite", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	q, _ := store.Get(StoreGroupedStmtKey{Group: "g", StmtName: "a"}.String())
	assert.Equal(t, "dialect", q)
}
