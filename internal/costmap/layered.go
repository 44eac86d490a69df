package costmap

import (
	"fmt"
	"math"
	"sync"

	"github.com/fieldrobotics/elevmap/internal/config"
	"github.com/fieldrobotics/elevmap/internal/gridmap"
)

// LayeredCostmap owns the master cost grid and the ordered set of layers
// that write into it. One UpdateMap call per planning cycle runs the
// two-phase update protocol: every layer reports its dirty bounds, the
// window is clamped to the grid, and every layer writes its costs.
type LayeredCostmap struct {
	mu sync.Mutex

	costmap      *Costmap2D
	globalFrame  gridmap.FrameID
	rolling      bool
	trackUnknown bool
	footprint    []Point
	layers       []Layer

	minX, minY, maxX, maxY float64 // last cycle's dirty bounds, for inspection
}

// NewLayeredCostmap creates a layered costmap from the master grid geometry.
// When trackUnknown is set, unobserved cells read as no-information instead
// of free.
func NewLayeredCostmap(globalFrame gridmap.FrameID, sizeX, sizeY int, resolution, originX, originY float64, rolling, trackUnknown bool) *LayeredCostmap {
	defaultValue := FreeSpace
	if trackUnknown {
		defaultValue = NoInformation
	}
	return &LayeredCostmap{
		costmap:      NewCostmap2D(sizeX, sizeY, resolution, originX, originY, defaultValue),
		globalFrame:  globalFrame,
		rolling:      rolling,
		trackUnknown: trackUnknown,
	}
}

// GlobalFrame returns the costmap's coordinate frame.
func (lc *LayeredCostmap) GlobalFrame() gridmap.FrameID { return lc.globalFrame }

// IsRolling reports whether the costmap recenters on the robot each cycle.
func (lc *LayeredCostmap) IsRolling() bool { return lc.rolling }

// IsTrackingUnknown reports whether unobserved space reads as no-information.
func (lc *LayeredCostmap) IsTrackingUnknown() bool { return lc.trackUnknown }

// Costmap returns the master grid.
func (lc *LayeredCostmap) Costmap() *Costmap2D { return lc.costmap }

// SetFootprint installs the robot's static body outline.
func (lc *LayeredCostmap) SetFootprint(fp []Point) {
	lc.footprint = make([]Point, len(fp))
	copy(lc.footprint, fp)
}

// Footprint returns the robot's static body outline.
func (lc *LayeredCostmap) Footprint() []Point { return lc.footprint }

// AddLayer appends an initialised layer to the update order.
func (lc *LayeredCostmap) AddLayer(l Layer) { lc.layers = append(lc.layers, l) }

// Layers returns the layers in update order.
func (lc *LayeredCostmap) Layers() []Layer { return lc.layers }

// BuildLayers constructs and initialises layers by registry name, in order.
func (lc *LayeredCostmap) BuildLayers(names []string, cfg *config.Config) error {
	for _, name := range names {
		l, err := NewLayer(name)
		if err != nil {
			return err
		}
		if err := l.OnInitialize(lc, cfg); err != nil {
			return fmt.Errorf("layer %q: %w", name, err)
		}
		lc.AddLayer(l)
	}
	return nil
}

// UpdateMap runs one planning-cycle update at the given robot pose.
func (lc *LayeredCostmap) UpdateMap(robotX, robotY, robotYaw float64) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if lc.rolling {
		newOriginX := robotX - lc.costmap.SizeInMetersX()/2.0
		newOriginY := robotY - lc.costmap.SizeInMetersY()/2.0
		lc.costmap.UpdateOrigin(newOriginX, newOriginY)
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, l := range lc.layers {
		l.UpdateBounds(robotX, robotY, robotYaw, &minX, &minY, &maxX, &maxY)
	}
	lc.minX, lc.minY, lc.maxX, lc.maxY = minX, minY, maxX, maxY

	if minX > maxX || minY > maxY {
		return // no layer touched anything
	}

	minI, minJ := lc.costmap.WorldToMapEnforceBounds(minX, minY)
	maxI, maxJ := lc.costmap.WorldToMapEnforceBounds(maxX, maxY)
	for _, l := range lc.layers {
		l.UpdateCosts(lc.costmap, minI, minJ, maxI+1, maxJ+1)
	}
}

// Snapshot returns a copy of the master grid taken under the update lock,
// safe to read while planning cycles continue.
func (lc *LayeredCostmap) Snapshot() *Costmap2D {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	cp := NewCostmap2D(lc.costmap.sizeX, lc.costmap.sizeY, lc.costmap.resolution,
		lc.costmap.originX, lc.costmap.originY, lc.costmap.defaultValue)
	copy(cp.cells, lc.costmap.cells)
	return cp
}

// LastBounds returns the previous cycle's dirty bounding box in world
// coordinates.
func (lc *LayeredCostmap) LastBounds() (minX, minY, maxX, maxY float64) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.minX, lc.minY, lc.maxX, lc.maxY
}

// IsCurrent reports whether every layer considers its data fresh.
func (lc *LayeredCostmap) IsCurrent() bool {
	for _, l := range lc.layers {
		if !l.Current() {
			return false
		}
	}
	return true
}
