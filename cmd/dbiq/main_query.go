package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zeptools/gw-dbi/dbi"
	"github.com/zeptools/gw-dbi/logger"
	"github.com/zeptools/gw-dbi/schedjobs"
)

type cmdQuery struct {
	global *cmdGlobal

	flagFormat string
	flagRows   string
	flagHeader bool
	flagSQLDir string
	flagStmt   string
	flagEvery  string
}

func (c *cmdQuery) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "query <database> [<query>|-] [<bind>...]"
	cmd.Short = "Execute a statement against a configured database"
	cmd.Long = `Description:
  Execute a statement against a configured database

  SQL databases take SQL with "?" placeholders, rewritten for the dialect.
  Key-value databases take one command, e.g. "HGETALL user:?".
  Each remaining argument is bound to the next placeholder.

  If <query> is the special value "-", the query is read from standard input.
  With --stmt, the query is the stored statement "group.name" loaded from
  --sql-dir (group = directory base name) and every argument after
  <database> is a bind value.

  With --every, the statement is executed again on the given schedule
  (a cron expression or "@every <duration>") and the output is written
  again until the command is interrupted.
`
	cmd.Args = cobra.MinimumNArgs(1)
	cmd.RunE = c.Run
	cmd.Flags().StringVarP(&c.flagFormat, "format", "f", "array", "Output format (array, csv, struct)")
	cmd.Flags().StringVarP(&c.flagRows, "rows", "n", "all", "Rows to fetch (a number or all)")
	cmd.Flags().BoolVar(&c.flagHeader, "header", false, "Write a header line (csv)")
	cmd.Flags().StringVar(&c.flagSQLDir, "sql-dir", "", "Directory of stored statement files")
	cmd.Flags().StringVar(&c.flagStmt, "stmt", "", "Stored statement to run (group.name)")
	cmd.Flags().StringVar(&c.flagEvery, "every", "", "Re-run on a schedule (e.g. \"@every 10s\", \"*/5 * * * *\")")

	return cmd
}

func (c *cmdQuery) Run(cmd *cobra.Command, args []string) error {
	kind, err := dbi.ParseKind(c.flagFormat)
	if err != nil {
		return err
	}
	count, err := dbi.ParseCount(c.flagRows)
	if err != nil {
		return err
	}
	if err = c.global.loadCore(cmd.Context()); err != nil {
		return err
	}
	core := c.global.core
	defer core.ResourceCleanUp()

	name := args[0]
	if err = core.PrepareSQLDatabases(name); err != nil {
		return err
	}
	if err = core.PrepareKVDatabases(name); err != nil {
		return err
	}

	query, binds, err := c.resolveQuery(cmd.InOrStdin(), name, args[1:])
	if err != nil {
		return err
	}

	db, err := core.Database(name)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	rs, err := db.Execute(core.RootCtx, query, binds...)
	if err != nil {
		return err
	}
	defer func() { _ = rs.Finish() }()

	out := cmd.OutOrStdout()
	n, err := render(out, rs, kind, count, c.flagHeader)
	if err != nil {
		return err
	}
	logger.Debug("query done", logger.Ctx{"database": name, "rows": rs.RowCount(), "lines": n})
	if c.flagEvery == "" {
		return nil
	}

	sched := schedjobs.NewScheduler(core.RootCtx)
	err = sched.AddCronJob(&schedjobs.CronJob{
		ID:   name,
		Spec: c.flagEvery,
		Task: func(ctx context.Context) error {
			if err := rs.Reload(ctx); err != nil {
				return err
			}
			_, err := render(out, rs, kind, count, c.flagHeader)
			return err
		},
		OnFinished: func(err error) {
			next, _ := sched.NextRun(name)
			logger.Debug("query reloaded", logger.Ctx{"database": name, "rows": rs.RowCount(), "ok": err == nil, "next": next})
		},
	})
	if err != nil {
		return err
	}
	sched.Run(core.RootCtx)
	return nil
}

// resolveQuery returns the query text and bind values from the arguments after <database>.
func (c *cmdQuery) resolveQuery(stdin io.Reader, name string, rest []string) (string, []any, error) {
	var query string
	if c.flagStmt != "" {
		if c.flagSQLDir == "" {
			return "", nil, fmt.Errorf("--stmt needs --sql-dir")
		}
		if err := c.global.core.LoadRawStmts(os.DirFS(c.flagSQLDir), groupName(c.flagSQLDir)); err != nil {
			return "", nil, err
		}
		q, ok := c.global.core.RawStmt(name, c.flagStmt)
		if !ok {
			return "", nil, fmt.Errorf("stored statement %q not found for %q", c.flagStmt, name)
		}
		query = q
	} else {
		if len(rest) == 0 {
			return "", nil, fmt.Errorf("missing <query>")
		}
		query, rest = rest[0], rest[1:]
		if query == "-" {
			b, err := io.ReadAll(stdin)
			if err != nil {
				return "", nil, fmt.Errorf("failed to read from stdin: %w", err)
			}
			query = string(b)
		}
	}
	binds := make([]any, len(rest))
	for i, b := range rest {
		binds[i] = b
	}
	return query, binds, nil
}
