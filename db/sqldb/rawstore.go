package sqldb

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/zeptools/gw-dbi/logger"
)

type RawSQLStore struct {
	stmts map[string]string
}

func NewRawStore() *RawSQLStore {
	return &RawSQLStore{stmts: make(map[string]string)}
}

func (s *RawSQLStore) Set(key string, rawStmt string) {
	s.stmts[key] = rawStmt
}

func (s *RawSQLStore) Get(key string) (string, bool) {
	stmt, exists := s.stmts[key]
	return stmt, exists
}

func (s *RawSQLStore) Len() int {
	return len(s.stmts)
}

type StoreGroupedStmtKey struct {
	Group    string
	StmtName string
}

func (k StoreGroupedStmtKey) String() string {
	return k.Group + "." + k.StmtName
}

// LoadRawStmtsToStore reads the statement files in the root of fsys into store as "group.name".
// A file named for dbtype (name.pgsql) is used verbatim and wins over name.sql,
// whose static `?` placeholders are rewritten with prefix. Other files are ignored.
func LoadRawStmtsToStore(store *RawSQLStore, fsys fs.FS, group, dbtype string, placeholderPrefix byte) (int, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return 0, fmt.Errorf("failed to read sql dir: %w", err)
	}
	dialect := map[string]bool{}
	stmtCnt := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		filename := e.Name()
		ext := path.Ext(filename)
		name := strings.TrimSuffix(filename, ext)
		ext = strings.TrimPrefix(ext, ".")
		if ext != dbtype && ext != "sql" {
			continue
		}
		data, err := fs.ReadFile(fsys, filename)
		if err != nil {
			return stmtCnt, fmt.Errorf("failed to read %s: %w", filename, err)
		}
		key := StoreGroupedStmtKey{Group: group, StmtName: name}.String()

		switch ext {
		case dbtype:
			// exact matching file extension -> use it as-is for dialects
			if _, exists := store.Get(key); !exists {
				stmtCnt++
			}
			store.Set(key, string(data))
			dialect[key] = true
		case "sql":
			// Standard SQL with Placeholders: `?` (static) and `??` (dynamic)
			if dialect[key] {
				continue
			}
			if _, exists := store.Get(key); !exists {
				stmtCnt++
			}
			store.Set(key, ReplaceStaticPlaceholders(string(data), placeholderPrefix))
		}
	}
	logger.Info("sql raw stmts loaded", logger.Ctx{"group": group, "count": stmtCnt})
	return stmtCnt, nil
}
