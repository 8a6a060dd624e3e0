package dbi

import "strconv"

// Column describes one column of a result: its name and the type declared by the backend.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Schema is the ordered column metadata of a result.
type Schema struct {
	Columns []Column `json:"columns"`
}

// NewSchema builds a Schema from alternating name/type pairs.
// A trailing name without a type gets an empty type.
func NewSchema(nameTypes ...string) Schema {
	cols := make([]Column, 0, (len(nameTypes)+1)/2)
	for i := 0; i < len(nameTypes); i += 2 {
		col := Column{Name: nameTypes[i]}
		if i+1 < len(nameTypes) {
			col.Type = nameTypes[i+1]
		}
		cols = append(cols, col)
	}
	return Schema{Columns: cols}
}

// Len returns the number of columns.
func (s Schema) Len() int { return len(s.Columns) }

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Clone returns a Schema that shares nothing with s.
func (s Schema) Clone() Schema {
	if s.Columns == nil {
		return Schema{}
	}
	return Schema{Columns: append([]Column(nil), s.Columns...)}
}

// Row is one row of values, positionally aligned with a Schema.
// Values are plain values (numbers, strings, bools, times, byte slices, nil);
// byte slices, nested slices and maps are the only mutable members and are
// copied by Clone.
type Row []any

// Clone returns a structural copy of r.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for i, v := range r {
		out[i] = cloneValue(v)
	}
	return out
}

// CloneRows returns a structural copy of rows. The result is never nil.
func CloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []byte:
		if t == nil {
			return t
		}
		return append([]byte(nil), t...)
	case Row:
		return t.Clone()
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		if t == nil {
			return t
		}
		return append([]string(nil), t...)
	case map[string]any:
		if t == nil {
			return t
		}
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Execution is what a driver's Executor returns for one run of a statement.
type Execution struct {
	Rows     []Row
	Schema   Schema
	Types    TypeRegistry // nil selects DefaultTypes()
	Affected int64        // rows affected by a non-query statement
}

// Count is the number of rows requested from a result set. Besides
// non-negative counts it takes the special values All and Rest.
type Count int

const (
	// All requests the whole snapshot regardless of the cursor, without moving it.
	All Count = -1
	// Rest requests every row from the cursor on and moves the cursor to the end.
	Rest Count = -2
)

func (c Count) String() string {
	switch c {
	case All:
		return "all"
	case Rest:
		return "rest"
	default:
		return strconv.Itoa(int(c))
	}
}

// ParseCount parses "all", "rest" or a non-negative integer.
func ParseCount(s string) (Count, error) {
	switch s {
	case "all", "ALL":
		return All, nil
	case "rest", "REST":
		return Rest, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, ErrInvalidCount
	}
	return Count(n), nil
}
