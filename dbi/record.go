package dbi

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

var scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()

func scannerHook(from, to reflect.Type, data any) (any, error) {
	if from == to || !reflect.PointerTo(to).Implements(scannerType) {
		return data, nil
	}
	v := reflect.New(to)
	if err := v.Interface().(sql.Scanner).Scan(data); err != nil {
		return nil, err
	}
	return v.Elem().Interface(), nil
}

// Record is one converted row whose fields are named after the schema columns, in order.
type Record struct {
	fields []string
	values []any
}

// NewRecord pairs fields with values positionally. Missing values are nil.
func NewRecord(fields []string, values []any) Record {
	vals := make([]any, len(fields))
	copy(vals, values)
	return Record{fields: append([]string(nil), fields...), values: vals}
}

// Len returns the number of fields.
func (r Record) Len() int { return len(r.fields) }

// Fields returns the field names in schema order.
func (r Record) Fields() []string { return append([]string(nil), r.fields...) }

// Values returns the field values in schema order.
func (r Record) Values() []any { return append([]any(nil), r.values...) }

// Get returns the value of the first field called name.
func (r Record) Get(name string) (any, bool) {
	for i, f := range r.fields {
		if f == name {
			return r.values[i], true
		}
	}
	return nil, false
}

// Map returns the record as a map. With duplicate column names the last one wins.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.fields))
	for i, f := range r.fields {
		m[f] = r.values[i]
	}
	return m
}

// Decode copies the record into out, which must be a pointer to a struct or map.
// Struct fields are matched by their `db` tag, then case-insensitively by name.
// Fields whose pointer implements sql.Scanner (nullable.Int, sql.NullString, ...)
// are filled through Scan; NULL values leave any field at its zero value.
func (r Record) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "db",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			scannerHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(r.Map())
}

// MarshalJSON encodes the record as a JSON object keeping the schema order.
func (r Record) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

type structDriver struct {
	rs *ResultSet
}

func (d *structDriver) Kind() Kind { return Struct }

func (d *structDriver) Fetch(n Count) (any, error) {
	return d.fetch(n)
}

func (d *structDriver) fetch(n Count) ([]Record, error) {
	raw, err := d.rs.RawFetch(n)
	if err != nil {
		return nil, err
	}
	fields := d.rs.schema.Names()
	out := make([]Record, 0, len(raw))
	for _, r := range raw {
		row, err := convertRow(d.rs, r)
		if err != nil {
			return nil, err
		}
		out = append(out, Record{fields: fields, values: row})
	}
	return out, nil
}

func (d *structDriver) fetchOne() (any, error) {
	recs, err := d.fetch(1)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}
