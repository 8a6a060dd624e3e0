// Package nullable wraps the database/sql null types so a NULL column survives
// a round trip through records, binds and JSON.
package nullable

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Int implements sql.Scanner and driver.Valuer by embedding sql.NullInt64.
type Int struct {
	sql.NullInt64
}

// String implements sql.Scanner and driver.Valuer by embedding sql.NullString.
type String struct {
	sql.NullString
}

// Time implements sql.Scanner and driver.Valuer by embedding sql.NullTime.
// JSON uses RFC 3339.
type Time struct {
	sql.NullTime
}

func IntOf(v int64) Int        { return Int{sql.NullInt64{Int64: v, Valid: true}} }
func StringOf(v string) String { return String{sql.NullString{String: v, Valid: true}} }
func TimeOf(v time.Time) Time  { return Time{sql.NullTime{Time: v, Valid: true}} }

func (n Int) IsNil() bool    { return !n.Valid }
func (n String) IsNil() bool { return !n.Valid }
func (n Time) IsNil() bool   { return !n.Valid }

func (n Int) ForceValue() int64      { return n.Int64 }
func (n String) ForceValue() string  { return n.String }
func (n Time) ForceValue() time.Time { return n.Time }

func (n Int) MarshalJSON() ([]byte, error) {
	return marshal(n.Valid, n.Int64)
}

func (n *Int) UnmarshalJSON(data []byte) error {
	n.Int64 = 0
	return unmarshal(data, &n.Valid, &n.Int64)
}

func (n String) MarshalJSON() ([]byte, error) {
	return marshal(n.Valid, n.String)
}

func (n *String) UnmarshalJSON(data []byte) error {
	n.String = ""
	return unmarshal(data, &n.Valid, &n.String)
}

func (n Time) MarshalJSON() ([]byte, error) {
	return marshal(n.Valid, n.Time.Format(time.RFC3339))
}

func (n *Time) UnmarshalJSON(data []byte) error {
	var s string
	n.Time = time.Time{}
	if err := unmarshal(data, &n.Valid, &s); err != nil || !n.Valid {
		return err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		n.Valid = false
		return err
	}
	n.Time = t
	return nil
}

func marshal(valid bool, v any) ([]byte, error) {
	if !valid {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// unmarshal decodes data into dst and sets valid, leaving dst alone for null.
func unmarshal(data []byte, valid *bool, dst any) error {
	*valid = false
	if string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return err
	}
	*valid = true
	return nil
}
