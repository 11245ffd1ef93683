package emu

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps core driver names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register makes a core available by name. Registering the same name twice or
// a nil factory panics.
func (r *Registry) Register(name string, f Factory) {
	name = strings.TrimSpace(name)
	if f == nil {
		panic("emu: Register factory is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[name]; dup {
		panic("emu: Register called twice for core " + name)
	}
	r.factories[name] = f
}

func (r *Registry) Open(name string, opts Options) (Core, error) {
	name = strings.TrimSpace(name)
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnknownCore, name, strings.Join(r.Names(), ","))
	}
	c, err := f(opts)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("core %q returned nil", name)
	}
	return c, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

var defaultRegistry = NewRegistry()

// Register adds a core to the process-wide registry. Core packages call it
// from init and are linked in with a blank import.
func Register(name string, f Factory) { defaultRegistry.Register(name, f) }

func Open(name string, opts Options) (Core, error) { return defaultRegistry.Open(name, opts) }

func Cores() []string { return defaultRegistry.Names() }

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }
