package sqldb

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// ClientFactory constructs a Client from Conf. Driver packages register one
// from init, so a blank import is enough to make a database type available.
type ClientFactory func(conf *Conf) (Client, error)

var ErrUnsupportedType = errors.New("unsupported database type")

var (
	registryMu sync.RWMutex
	registry   = map[string]ClientFactory{}
)

// RegisterFactory panics when dbType is registered twice.
func RegisterFactory(dbType string, factory ClientFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[dbType]; dup {
		panic("sqldb: RegisterFactory called twice for " + dbType)
	}
	registry[dbType] = factory
}

// Types returns the registered database types, sorted.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

func New(dbType string, conf *Conf) (Client, error) {
	registryMu.RLock()
	factory, ok := registry[dbType]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnsupportedType, dbType, strings.Join(Types(), ", "))
	}
	return factory(conf)
}
