package dbi

import (
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

type csvDriver struct {
	rs   *ResultSet
	conf driverConf
}

func (d *csvDriver) Kind() Kind { return CSV }

// Fetch returns the converted rows as CSV text, one line per row. The column
// names are written first only if the driver was bound with WithCSVHeader.
func (d *csvDriver) Fetch(n Count) (any, error) {
	return d.fetch(n, d.conf.csvHeader)
}

func (d *csvDriver) fetchOne() (any, error) {
	return d.fetch(1, false)
}

func (d *csvDriver) fetch(n Count, header bool) (string, error) {
	raw, err := d.rs.RawFetch(n)
	if err != nil {
		return "", err
	}
	rows, err := convertRows(d.rs, raw)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	w := csv.NewWriter(&b)
	w.Comma = d.conf.csvComma
	if header {
		if err := w.Write(d.rs.schema.Names()); err != nil {
			return "", err
		}
	}
	record := make([]string, d.rs.schema.Len())
	for _, row := range rows {
		for i, v := range row {
			record[i] = csvField(v)
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return b.String(), nil
}

func csvField(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case []byte:
		return string(t)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}
