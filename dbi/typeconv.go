package dbi

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/zeptools/gw-dbi/nullable"
)

// InConverter turns a bind value into the form handed to the driver.
type InConverter func(v any) (any, error)

// InputTypeMap maps the dynamic type of a bind value to its converter.
type InputTypeMap map[reflect.Type]InConverter

// OutConverter turns a raw driver value of the given column into a caller-facing value.
type OutConverter func(v any, col Column) (any, error)

// TypeRegistry maps normalized declared column types to output converters.
type TypeRegistry map[string]OutConverter

var inputTypes = InputTypeMap{
	reflect.TypeOf(decimal.Decimal{}): func(v any) (any, error) { return v.(decimal.Decimal).String(), nil },
	reflect.TypeOf(uuid.UUID{}):       func(v any) (any, error) { return v.(uuid.UUID).String(), nil },
	reflect.TypeOf(time.Duration(0)):  func(v any) (any, error) { return int64(v.(time.Duration)), nil },
	reflect.TypeOf(nullable.Int{}):    valuer,
	reflect.TypeOf(nullable.String{}): valuer,
	reflect.TypeOf(nullable.Time{}):   valuer,
}

// valuer binds a driver.Valuer as its value, so NULL wrappers reach every driver as nil.
func valuer(v any) (any, error) {
	return v.(driver.Valuer).Value()
}

// RegisterInputType sets the global input converter for the dynamic type of sample.
// Statements copy the global map when they are prepared; call this during init.
func RegisterInputType(sample any, conv InConverter) {
	inputTypes[reflect.TypeOf(sample)] = conv
}

// NewInputTypeMap returns a copy of the global input conversion map.
func NewInputTypeMap() InputTypeMap {
	m := make(InputTypeMap, len(inputTypes))
	for t, c := range inputTypes {
		m[t] = c
	}
	return m
}

// ConvertIn converts one bind value. Values without a registered converter pass through.
func ConvertIn(v any, m InputTypeMap) (any, error) {
	if v == nil {
		return nil, nil
	}
	conv, ok := m[reflect.TypeOf(v)]
	if !ok {
		return v, nil
	}
	return conv(v)
}

var outputTypes = TypeRegistry{}

func init() {
	registerAll(outputTypes, toInt64, "int", "integer", "int2", "int4", "int8", "smallint", "bigint",
		"tinyint", "mediumint", "serial", "bigserial", "smallserial", "year")
	registerAll(outputTypes, toFloat64, "float", "float4", "float8", "double", "real", "double precision")
	registerAll(outputTypes, toBool, "bool", "boolean", "bit")
	registerAll(outputTypes, toText, "text", "varchar", "char", "character", "character varying",
		"string", "bpchar", "name", "citext", "enum", "nvarchar", "nchar", "tinytext", "mediumtext", "longtext")
	registerAll(outputTypes, toDecimal, "decimal", "numeric", "money", "newdecimal")
	registerAll(outputTypes, toTime, "timestamp", "timestamptz", "datetime", "date",
		"timestamp with time zone", "timestamp without time zone")
	registerAll(outputTypes, toUUID, "uuid")
	registerAll(outputTypes, toBytes, "blob", "bytea", "binary", "varbinary", "tinyblob", "mediumblob", "longblob")
	registerAll(outputTypes, toJSON, "json", "jsonb")
}

func registerAll(reg TypeRegistry, conv OutConverter, names ...string) {
	for _, n := range names {
		reg[n] = conv
	}
}

// RegisterOutputType sets the global output converter for a declared type name.
func RegisterOutputType(typeName string, conv OutConverter) {
	outputTypes[NormalizeType(typeName)] = conv
}

// DefaultTypes returns a copy of the global output registry.
func DefaultTypes() TypeRegistry {
	reg := make(TypeRegistry, len(outputTypes))
	for n, c := range outputTypes {
		reg[n] = c
	}
	return reg
}

// NormalizeType lowercases a declared type and strips its size arguments,
// so "VARCHAR(255)" and "varchar" share a converter.
func NormalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

// Lookup finds the converter for a declared type. A multi-word type that is
// not registered as a whole ("unsigned int") is looked up word by word.
func (r TypeRegistry) Lookup(declared string) (OutConverter, bool) {
	t := NormalizeType(declared)
	if conv, ok := r[t]; ok {
		return conv, true
	}
	for _, w := range strings.Fields(t) {
		if conv, ok := r[w]; ok {
			return conv, true
		}
	}
	return nil, false
}

// ConvertOut converts one raw value of col through reg. NULLs and values of
// unregistered types pass through unchanged; converter errors are returned as is.
func ConvertOut(v any, col Column, reg TypeRegistry) (any, error) {
	if v == nil {
		return nil, nil
	}
	conv, ok := reg.Lookup(col.Type)
	if !ok {
		return v, nil
	}
	return conv(v, col)
}

// plain unwraps driver.Valuer implementations and byte slices into basic values.
func plain(v any) (any, error) {
	if vr, ok := v.(driver.Valuer); ok {
		pv, err := vr.Value()
		if err != nil {
			return nil, err
		}
		v = pv
	}
	if b, ok := v.([]byte); ok {
		return string(b), nil
	}
	return v, nil
}

func toInt64(v any, col Column) (any, error) {
	p, err := plain(v)
	if err != nil || p == nil {
		return p, err
	}
	if s, ok := p.(string); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		return n, nil
	}
	n, err := cast.ToInt64E(p)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", col.Name, err)
	}
	return n, nil
}

func toFloat64(v any, col Column) (any, error) {
	p, err := plain(v)
	if err != nil || p == nil {
		return p, err
	}
	f, err := cast.ToFloat64E(p)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", col.Name, err)
	}
	return f, nil
}

func toBool(v any, col Column) (any, error) {
	p, err := plain(v)
	if err != nil || p == nil {
		return p, err
	}
	if s, ok := p.(string); ok && len(s) == 1 && (s[0] == 0 || s[0] == 1) {
		// MySQL BIT(1)
		return s[0] == 1, nil
	}
	b, err := cast.ToBoolE(p)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", col.Name, err)
	}
	return b, nil
}

func toText(v any, col Column) (any, error) {
	p, err := plain(v)
	if err != nil || p == nil {
		return p, err
	}
	s, err := cast.ToStringE(p)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", col.Name, err)
	}
	return s, nil
}

func toDecimal(v any, col Column) (any, error) {
	if d, ok := v.(decimal.Decimal); ok {
		return d, nil
	}
	p, err := plain(v)
	if err != nil || p == nil {
		return p, err
	}
	var d decimal.Decimal
	switch t := p.(type) {
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(t))
	case float64:
		d = decimal.NewFromFloat(t)
	case float32:
		d = decimal.NewFromFloat32(t)
	default:
		var n int64
		n, err = cast.ToInt64E(t)
		d = decimal.NewFromInt(n)
	}
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", col.Name, err)
	}
	return d, nil
}

func toTime(v any, col Column) (any, error) {
	p, err := plain(v)
	if err != nil || p == nil {
		return p, err
	}
	t, err := cast.ToTimeE(p)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", col.Name, err)
	}
	return t, nil
}

func toUUID(v any, col Column) (any, error) {
	var (
		id  uuid.UUID
		err error
	)
	switch t := v.(type) {
	case uuid.UUID:
		return t, nil
	case [16]byte:
		return uuid.UUID(t), nil
	case []byte:
		if len(t) == 16 {
			id, err = uuid.FromBytes(t)
		} else {
			id, err = uuid.ParseBytes(t)
		}
	case string:
		id, err = uuid.Parse(t)
	default:
		err = fmt.Errorf("unable to convert %T to uuid", v)
	}
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", col.Name, err)
	}
	return id, nil
}

func toBytes(v any, col Column) (any, error) {
	switch t := v.(type) {
	case []byte:
		return append([]byte(nil), t...), nil
	case string:
		return []byte(t), nil
	default:
		return nil, fmt.Errorf("column %q: unable to convert %T to bytes", col.Name, v)
	}
}

func toJSON(v any, col Column) (any, error) {
	var data []byte
	switch t := v.(type) {
	case []byte:
		data = t
	case string:
		data = []byte(t)
	default:
		// already decoded by the driver
		return v, nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("column %q: %w", col.Name, err)
	}
	return out, nil
}
