// Package filters implements a configurable chain of grid transforms applied
// to incoming elevation maps before they are thresholded into costs.
//
// Filters are selected by type name through a package registry, so new
// transforms can be added without touching the chain or its callers.
package filters

import (
	"fmt"
	"sort"
	"sync"

	"github.com/fieldrobotics/elevmap/internal/config"
	"github.com/fieldrobotics/elevmap/internal/gridmap"
)

// Filter is one grid transform in a chain. Configure is called once with the
// filter's config block; Update must not mutate its input map.
type Filter interface {
	// Name returns the registered type name of the filter.
	Name() string

	// Configure applies the filter's config block. Called once before any
	// Update.
	Configure(cfg config.FilterConfig) error

	// Update applies the transform and returns the resulting map.
	Update(in *gridmap.Map) (*gridmap.Map, error)
}

// Factory constructs an unconfigured filter instance.
type Factory func() Filter

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register associates a filter type name with its factory. Panics on
// duplicate registration; filter packages register from init.
func Register(typeName string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[typeName]; dup {
		panic(fmt.Sprintf("filters: duplicate registration of %q", typeName))
	}
	registry[typeName] = f
}

// Registered returns the sorted list of known filter type names.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func build(typeName string) (Filter, error) {
	registryMu.RLock()
	factory, ok := registry[typeName]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown filter type %q", typeName)
	}
	return factory(), nil
}

// Chain applies an ordered list of filters to a grid.
type Chain struct {
	name    string
	filters []Filter
}

// NewChain returns an empty, unconfigured chain.
func NewChain() *Chain {
	return &Chain{}
}

// Configure builds and configures every filter named in cfg. On error the
// chain is left empty so a later Update passes grids through untouched.
func (c *Chain) Configure(name string, cfg config.ChainConfig) error {
	built := make([]Filter, 0, len(cfg.Filters))
	for i, fc := range cfg.Filters {
		f, err := build(fc.Type)
		if err != nil {
			return fmt.Errorf("chain %q filter %d: %w", name, i, err)
		}
		if err := f.Configure(fc); err != nil {
			return fmt.Errorf("chain %q filter %d (%s): %w", name, i, fc.Type, err)
		}
		built = append(built, f)
	}
	c.name = name
	c.filters = built
	return nil
}

// Name returns the configured chain name.
func (c *Chain) Name() string { return c.name }

// Len returns the number of configured filters.
func (c *Chain) Len() int { return len(c.filters) }

// Update runs the grid through every configured filter in order. The input
// map is never mutated. An empty chain returns the input unchanged.
func (c *Chain) Update(in *gridmap.Map) (*gridmap.Map, error) {
	out := in
	for _, f := range c.filters {
		next, err := f.Update(out)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", f.Name(), err)
		}
		out = next
	}
	return out, nil
}
