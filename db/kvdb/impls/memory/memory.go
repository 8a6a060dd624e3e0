// Package memory is a process-local kvdb backend with redis-like semantics.
// Used for tests and for running kv statements without a server.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cast"

	"github.com/zeptools/gw-dbi/db/kvdb"
	"github.com/zeptools/gw-dbi/logger"
)

const KVType = "memory"

func init() {
	kvdb.RegisterFactory(KVType, func(conf *kvdb.Conf) (kvdb.Client, error) {
		return &Client{Conf: conf}, nil
	})
}

type entry struct {
	str     string
	list    []string
	hash    map[string]string
	kind    byte // 's', 'l', 'h'
	expires time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

var ErrWrongType = errors.New("memory: operation against a key holding the wrong kind of value")

type Client struct {
	Conf *kvdb.Conf

	mu   sync.Mutex
	data map[string]*entry
	now  func() time.Time
}

// Ensure memory.Client implements kvdb.Client interface
var _ kvdb.Client = (*Client)(nil)

func (c *Client) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = map[string]*entry{}
	if c.now == nil {
		c.now = time.Now
	}
	logger.Info("client initialized", logger.Ctx{"type": KVType})
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
	return nil
}

func (c *Client) DBHandle() any {
	return nil
}

func (c *Client) GetConf() *kvdb.Conf {
	return c.Conf
}

// lookup returns the live entry for key, dropping it if expired. Caller holds mu.
func (c *Client) lookup(key string, kind byte) (*entry, error) {
	e, ok := c.data[key]
	if !ok {
		return nil, nil
	}
	if e.expired(c.now()) {
		delete(c.data, key)
		return nil, nil
	}
	if e.kind != kind {
		return nil, ErrWrongType
	}
	return e, nil
}

// create returns the entry for key, creating an empty one of kind. Caller holds mu.
func (c *Client) create(key string, kind byte) (*entry, error) {
	e, err := c.lookup(key, kind)
	if err != nil || e != nil {
		return e, err
	}
	e = &entry{kind: kind}
	if kind == 'h' {
		e.hash = map[string]string{}
	}
	c.data[key] = e
	return e, nil
}

func (c *Client) live(key string) bool {
	e, ok := c.data[key]
	if ok && e.expired(c.now()) {
		delete(c.data, key)
		return false
	}
	return ok
}

//--- Key Ops ----

func (c *Client) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live(key), nil
}

func (c *Client) Delete(_ context.Context, keys ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, k := range keys {
		if c.live(k) {
			delete(c.data, k)
			n++
		}
	}
	return n, nil
}

func (c *Client) Expire(_ context.Context, key string, expiration time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.live(key) {
		return false, nil
	}
	if expiration <= 0 {
		delete(c.data, key)
		return true, nil
	}
	c.data[key].expires = c.now().Add(expiration)
	return true, nil
}

// ScanKeys returns every live key in one sorted batch, whatever scanBatchSize says.
func (c *Client) ScanKeys(_ context.Context, cursor any, _ int) ([]string, any, error) {
	if cursor != nil {
		return nil, nil, fmt.Errorf("memory: invalid scan cursor %v", cursor)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		if c.live(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil, nil
}

//---- Single-value Ops ----

func (c *Client) Set(_ context.Context, key string, value any, expiration time.Duration) error {
	s, err := cast.ToStringE(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e := &entry{kind: 's', str: s}
	if expiration > 0 {
		e.expires = c.now().Add(expiration)
	}
	c.data[key] = e
	return nil
}

func (c *Client) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.lookup(key, 's')
	if err != nil || e == nil {
		return "", false, err
	}
	return e.str, true, nil
}

//---- List Ops ----

func (c *Client) Push(_ context.Context, key string, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.create(key, 'l')
	if err != nil {
		return err
	}
	e.list = append(e.list, value)
	return nil
}

func (c *Client) Pop(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.lookup(key, 'l')
	if err != nil || e == nil {
		return "", false, err
	}
	v := e.list[0]
	e.list = e.list[1:]
	if len(e.list) == 0 {
		delete(c.data, key)
	}
	return v, true, nil
}

func (c *Client) Len(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.lookup(key, 'l')
	if err != nil || e == nil {
		return 0, err
	}
	return int64(len(e.list)), nil
}

// bounds maps redis-style inclusive indexes (negative from the end) onto a slice of n.
func bounds(n int, start, stop int64) (int, int) {
	if start < 0 {
		start += int64(n)
	}
	if stop < 0 {
		stop += int64(n)
	}
	start = max(start, 0)
	stop = min(stop, int64(n)-1)
	if start > stop {
		return 0, 0
	}
	return int(start), int(stop) + 1
}

func (c *Client) Range(_ context.Context, key string, start, stop int64) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.lookup(key, 'l')
	if err != nil || e == nil {
		return []string{}, err
	}
	i, j := bounds(len(e.list), start, stop)
	return append([]string{}, e.list[i:j]...), nil
}

func (c *Client) Remove(_ context.Context, key string, cnt int64, value any) (int64, error) {
	v, err := cast.ToStringE(value)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.lookup(key, 'l')
	if err != nil || e == nil {
		return 0, err
	}
	var removed int64
	kept := e.list[:0]
	if cnt >= 0 {
		for _, s := range e.list {
			if s == v && (cnt == 0 || removed < cnt) {
				removed++
				continue
			}
			kept = append(kept, s)
		}
	} else {
		// negative count removes from the tail
		drop := make([]bool, len(e.list))
		for i := len(e.list) - 1; i >= 0 && removed < -cnt; i-- {
			if e.list[i] == v {
				drop[i] = true
				removed++
			}
		}
		for i, s := range e.list {
			if !drop[i] {
				kept = append(kept, s)
			}
		}
	}
	e.list = kept
	if len(e.list) == 0 {
		delete(c.data, key)
	}
	return removed, nil
}

func (c *Client) Trim(_ context.Context, key string, start, stop int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.lookup(key, 'l')
	if err != nil || e == nil {
		return err
	}
	i, j := bounds(len(e.list), start, stop)
	e.list = append([]string{}, e.list[i:j]...)
	if len(e.list) == 0 {
		delete(c.data, key)
	}
	return nil
}

//---- Hash Ops ----

func (c *Client) SetField(ctx context.Context, key string, field string, value any) error {
	return c.SetFields(ctx, key, map[string]any{field: value})
}

func (c *Client) GetField(_ context.Context, key string, field string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.lookup(key, 'h')
	if err != nil || e == nil {
		return "", false, err
	}
	v, ok := e.hash[field]
	return v, ok, nil
}

func (c *Client) SetFields(_ context.Context, key string, fields map[string]any) error {
	vals := make(map[string]string, len(fields))
	for f, v := range fields {
		s, err := cast.ToStringE(v)
		if err != nil {
			return fmt.Errorf("field %q: %w", f, err)
		}
		vals[f] = s
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.create(key, 'h')
	if err != nil {
		return err
	}
	for f, s := range vals {
		e.hash[f] = s
	}
	return nil
}

func (c *Client) GetFields(_ context.Context, key string, fields ...string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(fields))
	e, err := c.lookup(key, 'h')
	if err != nil || e == nil {
		return out, err
	}
	for _, f := range fields {
		if v, ok := e.hash[f]; ok {
			out[f] = v
		}
	}
	return out, nil
}

func (c *Client) RemoveFields(_ context.Context, key string, fields ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.lookup(key, 'h')
	if err != nil || e == nil {
		return 0, err
	}
	var n int64
	for _, f := range fields {
		if _, ok := e.hash[f]; ok {
			delete(e.hash, f)
			n++
		}
	}
	if len(e.hash) == 0 {
		delete(c.data, key)
	}
	return n, nil
}

func (c *Client) GetAllFields(_ context.Context, key string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.lookup(key, 'h')
	if err != nil || e == nil {
		return map[string]string{}, err
	}
	out := make(map[string]string, len(e.hash))
	for f, v := range e.hash {
		out[f] = v
	}
	return out, nil
}
