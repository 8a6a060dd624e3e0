package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zeptools/gw-dbi/conf"
	_ "github.com/zeptools/gw-dbi/db/kvdb/impls/memory"
	_ "github.com/zeptools/gw-dbi/db/kvdb/impls/redis"
	"github.com/zeptools/gw-dbi/db/sqldb"
	_ "github.com/zeptools/gw-dbi/db/sqldb/impls/mysql"
	_ "github.com/zeptools/gw-dbi/db/sqldb/impls/pgsql"
	_ "github.com/zeptools/gw-dbi/db/sqldb/impls/sqlite"
	"github.com/zeptools/gw-dbi/logger"
	"github.com/zeptools/gw-dbi/sec"
)

// confKeyEnv holds the base64url key that opens pw_enc values.
const confKeyEnv = "GWDBI_CONF_KEY"

type cmdGlobal struct {
	flagConfig   string
	flagLogLevel string

	core *conf.Core
}

func main() {
	globalCmd := cmdGlobal{}

	app := &cobra.Command{}
	app.Use = "dbiq"
	app.Short = "Query configured SQL and key-value databases"
	app.Long = `Description:
  Query configured SQL and key-value databases

  Databases are named in a JSON or YAML config file:

    sql:
      main: {type: pgsql, host: db, port: 5432, user: app, pw_enc: ..., db: app}
    kv:
      cache: {type: redis, host: cache, port: 6379}

  Sealed passwords (pw_enc) are opened with the key in $GWDBI_CONF_KEY.
`
	app.SilenceUsage = true
	app.CompletionOptions = cobra.CompletionOptions{DisableDefaultCmd: true}

	// Global flags.
	app.PersistentFlags().StringVarP(&globalCmd.flagConfig, "config", "c", "dbiq.yaml", "Config file (.json, .yaml)")
	app.PersistentFlags().StringVar(&globalCmd.flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	queryCmd := cmdQuery{global: &globalCmd}
	app.AddCommand(queryCmd.Command())

	listCmd := cmdList{global: &globalCmd}
	app.AddCommand(listCmd.Command())

	keygenCmd := cmdKeygen{}
	app.AddCommand(keygenCmd.Command())

	sealCmd := cmdSeal{}
	app.AddCommand(sealCmd.Command())

	err := app.ExecuteContext(context.Background())
	if err != nil {
		os.Exit(1)
	}
}

// loadCore reads the config file, applies the log level and opens sealed passwords.
func (g *cmdGlobal) loadCore(ctx context.Context) error {
	core, err := conf.Load(g.flagConfig)
	if err != nil {
		return err
	}
	if g.flagLogLevel != "" {
		core.LogLevel = g.flagLogLevel
	}
	if err = core.BaseInit(ctx); err != nil {
		return err
	}

	var d sqldb.Decrypter
	if key := os.Getenv(confKeyEnv); key != "" {
		cipher, err := sec.NewCipherFromEncodedKey(key)
		if err != nil {
			return fmt.Errorf("%s: %w", confKeyEnv, err)
		}
		d = cipher
	}
	if err = core.ResolveSecrets(d); err != nil {
		return err
	}
	g.core = core
	logger.Debug("config loaded", logger.Ctx{"path": g.flagConfig, "sql": len(core.SQL), "kv": len(core.KV)})
	return nil
}
