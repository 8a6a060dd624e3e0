package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/zeptools/gw-dbi/db/kvdb"
	"github.com/zeptools/gw-dbi/db/sqldb"
)

type cmdList struct {
	global *cmdGlobal

	flagTypes bool
}

func (c *cmdList) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "list"
	cmd.Short = "List configured databases"
	cmd.Args = cobra.NoArgs
	cmd.RunE = c.Run
	cmd.Flags().BoolVar(&c.flagTypes, "types", false, "List the supported database types instead")

	return cmd
}

func (c *cmdList) Run(cmd *cobra.Command, _ []string) error {
	if c.flagTypes {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "sql: %s\nkv: %s\n",
			strings.Join(sqldb.Types(), ", "), strings.Join(kvdb.Types(), ", "))
		return err
	}

	err := c.global.loadCore(cmd.Context())
	if err != nil {
		return err
	}
	core := c.global.core

	var data [][]string
	for name, sc := range core.SQL {
		target := sc.DB
		if sc.Host != "" {
			target = fmt.Sprintf("%s:%d/%s", sc.Host, sc.Port, sc.DB)
		}
		data = append(data, []string{name, "sql", sc.Type, target})
	}
	for name, kc := range core.KV {
		target := ""
		if kc.Host != "" {
			target = fmt.Sprintf("%s:%d/%d", kc.Host, kc.Port, kc.DB)
		}
		data = append(data, []string{name, "kv", kc.Type, target})
	}
	sort.Slice(data, func(i, j int) bool { return data[i][0] < data[j][0] })

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"NAME", "KIND", "TYPE", "TARGET"})
	table.AppendBulk(data)
	table.Render()
	return nil
}
