package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // side-effect

	"github.com/zeptools/gw-dbi/db/sqldb"
	"github.com/zeptools/gw-dbi/db/sqldb/impls/stdsql"
	"github.com/zeptools/gw-dbi/logger"
)

const (
	DBType                   = "sqlite"
	DefaultPlaceholderPrefix = 0 // accepts `?`, `?NNN`, `:name`, `@name`, `$name`

	driverName = "sqlite3"
	memoryDB   = ":memory:"
)

func init() {
	sqldb.RegisterFactory(DBType, func(conf *sqldb.Conf) (sqldb.Client, error) {
		return &Client{Conf: conf}, nil
	})
}

type Client struct {
	Conf *sqldb.Conf

	db  *sql.DB
	dsn string
}

// Ensure sqlite.Client implements sqldb.Client interface
var _ sqldb.Client = (*Client)(nil)

// Init opens Conf.DSN, or the file Conf.DB, or a private in-memory database when both are empty.
func (c *Client) Init() error {
	var err error
	switch {
	case c.Conf.DSN != "":
		c.dsn = c.Conf.DSN
	case c.Conf.DB != "" && c.Conf.DB != memoryDB:
		c.dsn = fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", c.Conf.DB)
	default:
		c.dsn = memoryDB
	}
	if c.db, err = sql.Open(driverName, c.dsn); err != nil {
		return err
	}
	// NOTE: every pooled connection to ":memory:" would be a separate database
	c.db.SetMaxOpenConns(1)
	if err = c.Ping(context.Background()); err != nil {
		return fmt.Errorf("sqlite ping failed: %w", err)
	}
	logger.Info("client initialized", logger.Ctx{"type": DBType, "dsn": c.dsn})
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("sqlite client not initialized")
	}
	return c.db.PingContext(ctx)
}

func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	logger.Info("closing client", logger.Ctx{"type": DBType})
	return c.db.Close()
}

func (c *Client) DBHandle() sqldb.DBHandle {
	return stdsql.NewDBHandle(c.db)
}

func (c *Client) GetConf() *sqldb.Conf {
	return c.Conf
}

func (c *Client) GetDSN() string {
	return c.dsn
}
