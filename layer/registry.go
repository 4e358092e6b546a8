package layer

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

type Creator func(Parameter) (Layer, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Creator{}
)

// Register panics when typ is registered twice.
func Register(typ string, creator Creator) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[typ]; ok {
		panic(fmt.Sprintf("layer: type %q already registered", typ))
	}
	registry[typ] = creator
}

func New(param Parameter) (Layer, error) {
	registryMu.RLock()
	creator, ok := registry[param.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownLayerType, param.Type, Types())
	}
	return creator(param)
}

func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return slices.Sorted(maps.Keys(registry))
}
