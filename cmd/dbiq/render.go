package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cast"

	"github.com/zeptools/gw-dbi/dbi"
	"github.com/zeptools/gw-dbi/rw"
)

// render writes up to n rows of rs to w in the format of kind and returns the lines written.
// Statements without a row set print their affected count.
func render(w io.Writer, rs *dbi.ResultSet, kind dbi.Kind, n dbi.Count, header bool) (int64, error) {
	cw := rw.NewCountWriter(w)
	if rs.Schema().Len() == 0 {
		_, err := fmt.Fprintf(cw, "Rows affected: %d\n", rs.AffectedCount())
		return cw.Lines(), err
	}

	var opts []dbi.DriverOption
	if header {
		opts = append(opts, dbi.WithCSVHeader())
	}
	if err := rs.As(kind, opts...); err != nil {
		return 0, err
	}

	switch kind {
	case dbi.Array:
		rows, err := rs.FetchRows(n)
		if err != nil {
			return 0, err
		}
		renderTable(cw, rs.Schema().Names(), rows)
	case dbi.CSV:
		text, err := rs.FetchCSV(n)
		if err != nil {
			return 0, err
		}
		if _, err = io.WriteString(cw, text); err != nil {
			return cw.Lines(), err
		}
	case dbi.Struct:
		recs, err := rs.FetchRecords(n)
		if err != nil {
			return 0, err
		}
		enc := json.NewEncoder(cw)
		for _, r := range recs {
			if err = enc.Encode(r); err != nil {
				return cw.Lines(), err
			}
		}
	}
	return cw.Lines(), nil
}

func renderTable(w io.Writer, header []string, rows []dbi.Row) {
	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(header)
	for _, row := range rows {
		data := make([]string, len(row))
		for i, v := range row {
			data[i] = cell(v)
		}
		table.Append(data)
	}
	table.Render()
}

func cell(v any) string {
	if v == nil {
		return "NULL"
	}
	if b, ok := v.([]byte); ok {
		return fmt.Sprintf("%x", b)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return s
}

// groupName names the statements of a directory after its base name.
func groupName(dir string) string {
	return filepath.Base(filepath.Clean(dir))
}
