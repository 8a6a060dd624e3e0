package kvdb

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// ClientFactory constructs a Client from Conf. Impls register one in init.
type ClientFactory func(conf *Conf) (Client, error)

var ErrUnsupportedType = errors.New("unsupported kv type")

var (
	registryMu sync.RWMutex
	registry   = map[string]ClientFactory{}
)

// RegisterFactory panics when kvType is registered twice.
func RegisterFactory(kvType string, factory ClientFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[kvType]; dup {
		panic("kvdb: RegisterFactory called twice for " + kvType)
	}
	registry[kvType] = factory
}

// Types returns the registered kv types, sorted.
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

func New(kvType string, conf *Conf) (Client, error) {
	registryMu.RLock()
	factory, ok := registry[kvType]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnsupportedType, kvType, strings.Join(Types(), ", "))
	}
	return factory(conf)
}
