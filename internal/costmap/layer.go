package costmap

import (
	"fmt"
	"sort"
	"sync"

	"github.com/fieldrobotics/elevmap/internal/config"
)

// Layer is the capability interface a costmap layer implements. The layered
// costmap drives each layer once per planning cycle: a bounds pass over all
// layers, then a cost pass over the finalised window.
type Layer interface {
	// OnInitialize wires the layer to its parent costmap and configuration.
	OnInitialize(parent *LayeredCostmap, cfg *config.Config) error

	// UpdateBounds expands the dirty bounding box to cover everything the
	// layer intends to write this cycle.
	UpdateBounds(robotX, robotY, robotYaw float64, minX, minY, maxX, maxY *float64)

	// UpdateCosts writes the layer's costs into the master grid over the
	// given cell window.
	UpdateCosts(master *Costmap2D, minI, minJ, maxI, maxJ int)

	// Reset returns the layer to its just-initialised state.
	Reset()

	// Activate resumes a deactivated layer.
	Activate()

	// Deactivate stops the layer from processing input.
	Deactivate()

	// Name returns the layer's registry name.
	Name() string

	// Current reports whether the layer's data is fresh enough to plan on.
	Current() bool
}

// LayerFactory constructs an uninitialised layer instance.
type LayerFactory func() Layer

var (
	layerRegistryMu sync.RWMutex
	layerRegistry   = make(map[string]LayerFactory)
)

// RegisterLayer associates a layer name with its factory so layers are
// selected by configuration rather than compiled-in wiring. Panics on
// duplicate registration; layer packages register from init.
func RegisterLayer(name string, f LayerFactory) {
	layerRegistryMu.Lock()
	defer layerRegistryMu.Unlock()
	if _, dup := layerRegistry[name]; dup {
		panic(fmt.Sprintf("costmap: duplicate layer registration of %q", name))
	}
	layerRegistry[name] = f
}

// RegisteredLayers returns the sorted list of known layer names.
func RegisteredLayers() []string {
	layerRegistryMu.RLock()
	defer layerRegistryMu.RUnlock()
	names := make([]string, 0, len(layerRegistry))
	for name := range layerRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewLayer builds an unconfigured layer by registry name.
func NewLayer(name string) (Layer, error) {
	layerRegistryMu.RLock()
	factory, ok := layerRegistry[name]
	layerRegistryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown costmap layer %q", name)
	}
	return factory(), nil
}
