package dbi

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies a fetch driver variant.
type Kind int

const (
	// Array yields []Row of converted values. It is the default.
	Array Kind = iota
	// CSV yields one string holding a CSV line per row.
	CSV
	// Struct yields []Record with fields named after the schema columns.
	Struct
)

var kindNames = map[Kind]string{
	Array:  "array",
	CSV:    "csv",
	Struct: "struct",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

func (k Kind) valid() bool {
	_, ok := fetchDrivers[k]
	return ok
}

// ParseKind resolves a fetch driver name, case-insensitively.
func ParseKind(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for k, kn := range kindNames {
		if kn == n {
			return k, nil
		}
	}
	return 0, &ResolutionError{Name: name}
}

// FetchDriver turns raw rows of the result set it is bound to into a
// caller-facing representation. The variants are closed: Array, CSV and Struct.
type FetchDriver interface {
	Kind() Kind
	// Fetch reads n rows through the result set's cursor (see ResultSet.RawFetch).
	Fetch(n Count) (any, error)
	// fetchOne reads one row and returns it as a single item of the output.
	fetchOne() (any, error)
}

// DriverOption configures a fetch driver when it is bound.
type DriverOption func(*driverConf)

type driverConf struct {
	csvComma  rune
	csvHeader bool
}

// WithCSVHeader makes the CSV driver start every fetched batch with the column names.
func WithCSVHeader() DriverOption {
	return func(c *driverConf) { c.csvHeader = true }
}

// WithCSVComma sets the CSV field separator.
func WithCSVComma(r rune) DriverOption {
	return func(c *driverConf) { c.csvComma = r }
}

type driverFactory func(rs *ResultSet, conf driverConf) FetchDriver

var fetchDrivers = map[Kind]driverFactory{
	Array:  func(rs *ResultSet, _ driverConf) FetchDriver { return &arrayDriver{rs: rs} },
	CSV:    func(rs *ResultSet, conf driverConf) FetchDriver { return &csvDriver{rs: rs, conf: conf} },
	Struct: func(rs *ResultSet, _ driverConf) FetchDriver { return &structDriver{rs: rs} },
}

// bindDriver resolves k and binds a new driver to rs. Binding rewinds rs.
func bindDriver(rs *ResultSet, k Kind, opts []DriverOption) (FetchDriver, error) {
	factory, ok := fetchDrivers[k]
	if !ok {
		return nil, &ResolutionError{Name: k.String()}
	}
	conf := driverConf{csvComma: ','}
	for _, opt := range opts {
		opt(&conf)
	}
	rs.Rewind()
	return factory(rs, conf), nil
}

// convertRow applies output conversion to row, column by column.
func convertRow(rs *ResultSet, row Row) (Row, error) {
	cols := rs.schema.Columns
	if len(row) != len(cols) {
		return nil, fmt.Errorf("%w: %d values for %d columns", ErrRowShape, len(row), len(cols))
	}
	out := make(Row, len(row))
	for i, v := range row {
		cv, err := ConvertOut(v, cols[i], rs.types)
		if err != nil {
			return nil, err
		}
		out[i] = cv
	}
	return out, nil
}

func convertRows(rs *ResultSet, raw []Row) ([]Row, error) {
	out := make([]Row, 0, len(raw))
	for _, r := range raw {
		cr, err := convertRow(rs, r)
		if err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, nil
}
