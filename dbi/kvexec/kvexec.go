// Package kvexec is a dbi.Driver over a kvdb.Client. Queries are one
// command per statement, tokens separated by whitespace; a `?` token takes
// the next bind value:
//
//	GET key                    -> key, value
//	HGET key field             -> field, value
//	HGETALL key                -> field, value (sorted by field)
//	HMGET key field...         -> field, value (request order, NULL when missing)
//	EXISTS key                 -> exists
//	KEYS [pattern]             -> key (sorted)
//	LRANGE key start stop      -> index, value
//	LLEN key                   -> length
//	LPOP key                   -> value
//	SET key value [ttl-sec]    -> affected 1
//	DEL key...                 -> affected = keys removed
//	EXPIRE key ttl-sec         -> affected 1 or 0
//	RPUSH key value...         -> affected = values pushed
//	LREM key count value       -> affected = values removed
//	LTRIM key start stop       -> affected 0
//	HSET key field value...    -> affected = fields set
//	HDEL key field...          -> affected = fields removed
package kvexec

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/zeptools/gw-dbi/db/kvdb"
	"github.com/zeptools/gw-dbi/dbi"
)

var (
	ErrUnknownCommand = errors.New("kvexec: unknown command")
	ErrArity          = errors.New("kvexec: wrong number of arguments")
	ErrBindCount      = errors.New("kvexec: bind count mismatch")
)

const scanBatchSize = 500

type Driver struct {
	name   string
	client kvdb.Client
}

// Ensure kvexec.Driver implements dbi.Driver interface
var _ dbi.Driver = (*Driver)(nil)

func New(name string, client kvdb.Client) *Driver {
	return &Driver{name: name, client: client}
}

func (d *Driver) Name() string {
	return d.name
}

// Prepare parses and validates the command. Nothing is sent to the backend.
func (d *Driver) Prepare(_ context.Context, query string) (dbi.Executor, error) {
	tokens := strings.Fields(query)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty query", ErrUnknownCommand)
	}
	name := strings.ToUpper(tokens[0])
	cmd, ok := commands[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, tokens[0])
	}
	args := tokens[1:]
	if len(args) < cmd.min || (cmd.max >= 0 && len(args) > cmd.max) || (cmd.pairs && len(args)%2 == 0) {
		return nil, fmt.Errorf("%w for %s: %d", ErrArity, name, len(args))
	}
	holes := 0
	for _, a := range args {
		if a == "?" {
			holes++
		}
	}
	return &executor{client: d.client, cmd: cmd, args: args, holes: holes}, nil
}

type executor struct {
	client kvdb.Client
	cmd    command
	args   []string
	holes  int
}

func (e *executor) NewExecution(ctx context.Context, binds []any) (*dbi.Execution, error) {
	if len(binds) != e.holes {
		return nil, fmt.Errorf("%w: %d binds for %d placeholders", ErrBindCount, len(binds), e.holes)
	}
	args := make([]string, len(e.args))
	next := 0
	for i, a := range e.args {
		if a != "?" {
			args[i] = a
			continue
		}
		s, err := cast.ToStringE(binds[next])
		if err != nil {
			return nil, fmt.Errorf("bind %d: %w", next+1, err)
		}
		args[i] = s
		next++
	}
	return e.cmd.run(ctx, e.client, args)
}

type command struct {
	min, max int  // arity bounds, max < 0 for variadic
	pairs    bool // key followed by field/value pairs
	run      func(ctx context.Context, c kvdb.Client, args []string) (*dbi.Execution, error)
}

var (
	fieldValue = dbi.NewSchema("field", "text", "value", "text")
	keyValue   = dbi.NewSchema("key", "text", "value", "text")
)

func rows(schema dbi.Schema, data []dbi.Row) *dbi.Execution {
	if data == nil {
		data = []dbi.Row{}
	}
	return &dbi.Execution{Schema: schema, Rows: data}
}

func affected(n int64) *dbi.Execution {
	return &dbi.Execution{Affected: n}
}

var commands = map[string]command{
	"GET": {min: 1, max: 1, run: func(ctx context.Context, c kvdb.Client, a []string) (*dbi.Execution, error) {
		v, ok, err := c.Get(ctx, a[0])
		if err != nil || !ok {
			return rows(keyValue, nil), err
		}
		return rows(keyValue, []dbi.Row{{a[0], v}}), nil
	}},
	"HGET": {min: 2, max: 2, run: func(ctx context.Context, c kvdb.Client, a []string) (*dbi.Execution, error) {
		v, ok, err := c.GetField(ctx, a[0], a[1])
		if err != nil || !ok {
			return rows(fieldValue, nil), err
		}
		return rows(fieldValue, []dbi.Row{{a[1], v}}), nil
	}},
	"HGETALL": {min: 1, max: 1, run: func(ctx context.Context, c kvdb.Client, a []string) (*dbi.Execution, error) {
		m, err := c.GetAllFields(ctx, a[0])
		if err != nil {
			return nil, err
		}
		fields := make([]string, 0, len(m))
		for f := range m {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		data := make([]dbi.Row, len(fields))
		for i, f := range fields {
			data[i] = dbi.Row{f, m[f]}
		}
		return rows(fieldValue, data), nil
	}},
	"HMGET": {min: 2, max: -1, run: func(ctx context.Context, c kvdb.Client, a []string) (*dbi.Execution, error) {
		m, err := c.GetFields(ctx, a[0], a[1:]...)
		if err != nil {
			return nil, err
		}
		data := make([]dbi.Row, 0, len(a)-1)
		for _, f := range a[1:] {
			if v, ok := m[f]; ok {
				data = append(data, dbi.Row{f, v})
			} else {
				data = append(data, dbi.Row{f, nil})
			}
		}
		return rows(fieldValue, data), nil
	}},
	"EXISTS": {min: 1, max: 1, run: func(ctx context.Context, c kvdb.Client, a []string) (*dbi.Execution, error) {
		ok, err := c.Exists(ctx, a[0])
		if err != nil {
			return nil, err
		}
		return rows(dbi.NewSchema("exists", "bool"), []dbi.Row{{ok}}), nil
	}},
	"KEYS": {min: 0, max: 1, run: func(ctx context.Context, c kvdb.Client, a []string) (*dbi.Execution, error) {
		pattern := "*"
		if len(a) == 1 {
			pattern = a[0]
		}
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		keys, err := scanAll(ctx, c)
		if err != nil {
			return nil, err
		}
		var data []dbi.Row
		for _, k := range keys {
			if ok, _ := path.Match(pattern, k); ok {
				data = append(data, dbi.Row{k})
			}
		}
		return rows(dbi.NewSchema("key", "text"), data), nil
	}},
	"LRANGE": {min: 3, max: 3, run: func(ctx context.Context, c kvdb.Client, a []string) (*dbi.Execution, error) {
		start, stop, err := span(a[1], a[2])
		if err != nil {
			return nil, err
		}
		vals, err := c.Range(ctx, a[0], start, stop)
		if err != nil {
			return nil, err
		}
		// absolute positions, so negative starts still number from the head
		first := start
		if first < 0 {
			n, err := c.Len(ctx, a[0])
			if err != nil {
				return nil, err
			}
			first = max(n+start, 0)
		}
		data := make([]dbi.Row, len(vals))
		for i, v := range vals {
			data[i] = dbi.Row{first + int64(i), v}
		}
		return rows(dbi.NewSchema("index", "int", "value", "text"), data), nil
	}},
	"LLEN": {min: 1, max: 1, run: func(ctx context.Context, c kvdb.Client, a []string) (*dbi.Execution, error) {
		n, err := c.Len(ctx, a[0])
		if err != nil {
			return nil, err
		}
		return rows(dbi.NewSchema("length", "int"), []dbi.Row{{n}}), nil
	}},
	"LPOP": {min: 1, max: 1, run: func(ctx context.Context, c kvdb.Client, a []string) (*dbi.Execution, error) {
		v, ok, err := c.Pop(ctx, a[0])
		schema := dbi.NewSchema("value", "text")
		if err != nil || !ok {
			return rows(schema, nil), err
		}
		return rows(schema, []dbi.Row{{v}}), nil
	}},
	"SET": {min: 2, max: 3, run: func(ctx context.Context, c kvdb.Client, a []string) (*dbi.Execution, error) {
		var ttl time.Duration
		if len(a) == 3 {
			sec, err := parseInt(a[2])
			if err != nil || sec < 0 {
				return nil, fmt.Errorf("bad ttl %q", a[2])
			}
			ttl = time.Duration(sec) * time.Second
		}
		if err := c.Set(ctx, a[0], a[1], ttl); err != nil {
			return nil, err
		}
		return affected(1), nil
	}},
	"DEL": {min: 1, max: -1, run: func(ctx context.Context, c kvdb.Client, a []string) (*dbi.Execution, error) {
		n, err := c.Delete(ctx, a...)
		if err != nil {
			return nil, err
		}
		return affected(n), nil
	}},
	"EXPIRE": {min: 2, max: 2, run: func(ctx context.Context, c kvdb.Client, a []string) (*dbi.Execution, error) {
		sec, err := parseInt(a[1])
		if err != nil {
			return nil, fmt.Errorf("bad ttl %q", a[1])
		}
		ok, err := c.Expire(ctx, a[0], time.Duration(sec)*time.Second)
		if err != nil || !ok {
			return affected(0), err
		}
		return affected(1), nil
	}},
	"RPUSH": {min: 2, max: -1, run: func(ctx context.Context, c kvdb.Client, a []string) (*dbi.Execution, error) {
		for _, v := range a[1:] {
			if err := c.Push(ctx, a[0], v); err != nil {
				return nil, err
			}
		}
		return affected(int64(len(a) - 1)), nil
	}},
	"LREM": {min: 3, max: 3, run: func(ctx context.Context, c kvdb.Client, a []string) (*dbi.Execution, error) {
		cnt, err := parseInt(a[1])
		if err != nil {
			return nil, fmt.Errorf("bad count %q", a[1])
		}
		n, err := c.Remove(ctx, a[0], cnt, a[2])
		if err != nil {
			return nil, err
		}
		return affected(n), nil
	}},
	"LTRIM": {min: 3, max: 3, run: func(ctx context.Context, c kvdb.Client, a []string) (*dbi.Execution, error) {
		start, stop, err := span(a[1], a[2])
		if err != nil {
			return nil, err
		}
		return affected(0), c.Trim(ctx, a[0], start, stop)
	}},
	"HSET": {min: 3, max: -1, pairs: true, run: func(ctx context.Context, c kvdb.Client, a []string) (*dbi.Execution, error) {
		fields := make(map[string]any, len(a)/2)
		for i := 1; i+1 < len(a); i += 2 {
			fields[a[i]] = a[i+1]
		}
		if err := c.SetFields(ctx, a[0], fields); err != nil {
			return nil, err
		}
		return affected(int64(len(fields))), nil
	}},
	"HDEL": {min: 2, max: -1, run: func(ctx context.Context, c kvdb.Client, a []string) (*dbi.Execution, error) {
		n, err := c.RemoveFields(ctx, a[0], a[1:]...)
		if err != nil {
			return nil, err
		}
		return affected(n), nil
	}},
}

// span parses an inclusive start/stop pair.
func span(a, b string) (int64, int64, error) {
	start, err := parseInt(a)
	if err != nil {
		return 0, 0, fmt.Errorf("bad index %q", a)
	}
	stop, err := parseInt(b)
	if err != nil {
		return 0, 0, fmt.Errorf("bad index %q", b)
	}
	return start, stop, nil
}

// parseInt reads base 10 only; "010" is ten, not an octal eight.
func parseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// scanAll drains ScanKeys and returns the distinct keys sorted.
func scanAll(ctx context.Context, c kvdb.Client) ([]string, error) {
	seen := map[string]struct{}{}
	var cursor any
	for {
		keys, next, err := c.ScanKeys(ctx, cursor, scanBatchSize)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			seen[k] = struct{}{}
		}
		if next == nil {
			break
		}
		cursor = next
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}
