package conf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"gopkg.in/yaml.v2"

	"github.com/zeptools/gw-dbi/db"
	"github.com/zeptools/gw-dbi/db/kvdb"
	"github.com/zeptools/gw-dbi/db/sqldb"
	"github.com/zeptools/gw-dbi/dbi"
	"github.com/zeptools/gw-dbi/dbi/kvexec"
	"github.com/zeptools/gw-dbi/dbi/sqlexec"
	"github.com/zeptools/gw-dbi/logger"
)

var ErrUnknownDatabase = errors.New("conf: unknown database")

// Core - common config: named SQL and KV databases plus the clients built from them.
type Core struct {
	AppName  string                 `json:"app_name" yaml:"app_name"`
	LogLevel string                 `json:"log_level" yaml:"log_level"` // logrus level name. default: info
	SQL      map[string]*sqldb.Conf `json:"sql" yaml:"sql"`
	KV       map[string]*kvdb.Conf  `json:"kv" yaml:"kv"`

	RootCtx     context.Context               `json:"-" yaml:"-"` // canceled on SIGINT/SIGTERM
	RootCancel  context.CancelFunc            `json:"-" yaml:"-"`
	SQLClients  map[string]sqldb.Client       `json:"-" yaml:"-"` // PrepareSQLDatabases
	KVClients   map[string]kvdb.Client        `json:"-" yaml:"-"` // PrepareKVDatabases
	RawSQLStore map[string]*sqldb.RawSQLStore `json:"-" yaml:"-"` // by db type. LoadRawStmts
}

// Load reads a config file: YAML for .yaml/.yml, JSON otherwise.
func Load(path string) (*Core, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := &Core{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return c, c.validate()
}

func (c *Core) validate() error {
	for name, sc := range c.SQL {
		if sc == nil || sc.Type == "" {
			return fmt.Errorf("sql database %q: type is required", name)
		}
		if _, dup := c.KV[name]; dup {
			return fmt.Errorf("database name %q used for both sql and kv", name)
		}
	}
	for name, kc := range c.KV {
		if kc == nil || kc.Type == "" {
			return fmt.Errorf("kv database %q: type is required", name)
		}
	}
	return nil
}

// BaseInit sets the root context, applies LogLevel and starts the shutdown signal listener.
func (c *Core) BaseInit(rootCtx context.Context) error {
	c.RootCtx, c.RootCancel = context.WithCancel(rootCtx)
	if c.LogLevel != "" {
		l, err := logger.ParseLevel(c.LogLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(l)
	}
	c.startShutdownSignalListener()
	return nil
}

func (c *Core) startShutdownSignalListener() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigs:
			logger.Info("got signal. shutting down", logger.Ctx{"signal": sig.String(), "app": c.AppName})
			c.RootCancel() // broadcast to every running statement via ctx
		case <-c.RootCtx.Done():
		}
		signal.Stop(sigs)
	}()
}

// ResolveSecrets opens every sealed sql password with d.
func (c *Core) ResolveSecrets(d sqldb.Decrypter) error {
	for name, sc := range c.SQL {
		if err := sc.ResolvePassword(d); err != nil {
			return fmt.Errorf("sql database %q: %w", name, err)
		}
	}
	return nil
}

// PrepareSQLDatabases builds and inits a client per sql conf.
// Impl packages must be imported beforehand so their factories are registered.
func (c *Core) PrepareSQLDatabases(names ...string) error {
	if c.SQLClients == nil {
		c.SQLClients = make(map[string]sqldb.Client)
	}
	for _, name := range c.selectNames(c.sqlNames(), names) {
		if _, ok := c.SQLClients[name]; ok {
			continue
		}
		sc := c.SQL[name]
		client, err := sqldb.New(sc.Type, sc)
		if err != nil {
			return fmt.Errorf("sql database %q: %w", name, err)
		}
		if err = client.Init(); err != nil {
			return fmt.Errorf("sql database %q: %w", name, err)
		}
		c.SQLClients[name] = client
	}
	return nil
}

// PrepareKVDatabases builds and inits a client per kv conf.
func (c *Core) PrepareKVDatabases(names ...string) error {
	if c.KVClients == nil {
		c.KVClients = make(map[string]kvdb.Client)
	}
	for _, name := range c.selectNames(c.kvNames(), names) {
		if _, ok := c.KVClients[name]; ok {
			continue
		}
		kc := c.KV[name]
		client, err := kvdb.New(kc.Type, kc)
		if err != nil {
			return fmt.Errorf("kv database %q: %w", name, err)
		}
		if err = client.Init(); err != nil {
			return fmt.Errorf("kv database %q: %w", name, err)
		}
		c.KVClients[name] = client
	}
	return nil
}

// selectNames returns wanted restricted to known, or all known when wanted is empty.
func (c *Core) selectNames(known, wanted []string) []string {
	if len(wanted) == 0 {
		return known
	}
	var out []string
	for _, w := range wanted {
		for _, k := range known {
			if k == w {
				out = append(out, w)
			}
		}
	}
	return out
}

func (c *Core) sqlNames() []string {
	names := make([]string, 0, len(c.SQL))
	for n := range c.SQL {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *Core) kvNames() []string {
	names := make([]string, 0, len(c.KV))
	for n := range c.KV {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LoadRawStmts loads the statement files of fsys as group into one store per configured sql type.
func (c *Core) LoadRawStmts(fsys fs.FS, group string) error {
	if c.RawSQLStore == nil {
		c.RawSQLStore = make(map[string]*sqldb.RawSQLStore)
	}
	for _, name := range c.sqlNames() {
		dbType := c.SQL[name].Type
		store, ok := c.RawSQLStore[dbType]
		if !ok {
			store = sqldb.NewRawStore()
			c.RawSQLStore[dbType] = store
		}
		if _, err := sqldb.LoadRawStmtsToStore(store, fsys, group, dbType, sqldb.PlaceholderPrefixForDBType[dbType]); err != nil {
			return err
		}
	}
	return nil
}

// RawStmt returns the stored statement key ("group.name") in the dialect of database name.
func (c *Core) RawStmt(name, key string) (string, bool) {
	sc, ok := c.SQL[name]
	if !ok {
		return "", false
	}
	store, ok := c.RawSQLStore[sc.Type]
	if !ok {
		return "", false
	}
	return store.Get(key)
}

// Database opens a dbi.Database over the prepared client called name.
func (c *Core) Database(name string, opts ...dbi.Option) (*dbi.Database, error) {
	if client, ok := c.SQLClients[name]; ok {
		return dbi.Open(sqlexec.New(client.GetConf().Type, client.DBHandle()), opts...), nil
	}
	if client, ok := c.KVClients[name]; ok {
		return dbi.Open(kvexec.New(client.GetConf().Type, client), opts...), nil
	}
	return nil, fmt.Errorf("%w: %q (not configured or not prepared)", ErrUnknownDatabase, name)
}

func (c *Core) ResourceCleanUp() {
	logger.Info("app resource cleaning up")
	for _, name := range c.kvNames() {
		if client, ok := c.KVClients[name]; ok {
			db.CloseClient[any](name, client)
		}
	}
	for _, name := range c.sqlNames() {
		if client, ok := c.SQLClients[name]; ok {
			db.CloseClient[sqldb.DBHandle](name, client)
		}
	}
	if c.RootCancel != nil {
		c.RootCancel()
	}
	logger.Info("app resource cleanup complete")
}
