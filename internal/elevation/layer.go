// Package elevation implements the costmap layer that folds an
// externally-produced elevation grid into the shared navigation costmap.
//
// Grids arrive over a latest-only subscription, pass through a configurable
// filter chain, and are thresholded into occupancy costs once per planning
// cycle: cells above the height threshold become lethal obstacles unless an
// edge-sharpness layer says the region is a gentle slope, in which case they
// stay free. The local cost pass is merged into the master grid with a
// configurable combination method.
package elevation

import (
	"sync"
	"time"

	"github.com/fieldrobotics/elevmap/internal/bus"
	"github.com/fieldrobotics/elevmap/internal/config"
	"github.com/fieldrobotics/elevmap/internal/costmap"
	"github.com/fieldrobotics/elevmap/internal/filters"
	"github.com/fieldrobotics/elevmap/internal/gridmap"
	"github.com/fieldrobotics/elevmap/internal/monitoring"
)

// LayerName is the registry name this layer is selected by.
const LayerName = "elevation"

// Combination methods for merging the local cost pass into the master grid.
const (
	CombineOverwrite = 0
	CombineMaximum   = 1
)

const warnInterval = 200 * time.Millisecond

func init() {
	costmap.RegisterLayer(LayerName, func() costmap.Layer { return New(bus.Default) })
}

// Verify at compile time that *Layer implements costmap.Layer.
var _ costmap.Layer = (*Layer)(nil)

// Layer is the elevation cost adapter. One mutex guards the stored grid and
// the threshold state; the subscription goroutine and the planning-cycle
// bounds/cost passes may run concurrently and never observe a half-written
// grid.
type Layer struct {
	mu sync.Mutex

	parent *costmap.LayeredCostmap
	local  *costmap.Costmap2D

	enabled     bool
	current     bool
	rolling     bool
	globalFrame gridmap.FrameID

	topic              string
	elevationLayerName string
	edgesLayerName     string
	heightThreshold    float64
	sharpnessThreshold float64
	combinationMethod  int
	footprintClearing  bool

	chain           *filters.Chain
	chainConfigured bool

	elevationMap    *gridmap.Map
	mapReceived     bool
	thresholdHalved bool

	transformedFootprint []costmap.Point

	b      *bus.Bus
	sub    *bus.Subscription
	stopCh chan struct{}
	wg     sync.WaitGroup

	warnFrame *monitoring.Throttle
	warnChain *monitoring.Throttle
	warnEdges *monitoring.Throttle
}

// New creates an uninitialised elevation layer reading from the given bus.
func New(b *bus.Bus) *Layer {
	return &Layer{
		b:         b,
		chain:     filters.NewChain(),
		warnFrame: monitoring.NewThrottle(warnInterval),
		warnChain: monitoring.NewThrottle(warnInterval),
		warnEdges: monitoring.NewThrottle(warnInterval),
	}
}

// Name returns the registry name.
func (l *Layer) Name() string { return LayerName }

// OnInitialize reads configuration, sizes the layer's private cost grid to
// the master, configures the filter chain and establishes the subscription.
// Filter chain configuration failure is tolerated: the layer logs once and
// uses raw grids for its whole lifetime.
func (l *Layer) OnInitialize(parent *costmap.LayeredCostmap, cfg *config.Config) error {
	l.mu.Lock()

	l.parent = parent
	l.rolling = parent.IsRolling()
	l.globalFrame = parent.GlobalFrame()
	l.enabled = true
	l.current = true
	l.mapReceived = false
	l.thresholdHalved = false

	l.topic = cfg.GetElevationTopic()
	l.elevationLayerName = cfg.GetElevationLayerName()
	l.edgesLayerName = cfg.GetEdgesLayerName()
	l.heightThreshold = cfg.GetHeightThreshold()
	l.sharpnessThreshold = cfg.GetEdgesSharpnessThreshold()
	l.combinationMethod = cfg.GetCombinationMethod()
	l.footprintClearing = cfg.GetFootprintClearingEnabled()

	trackUnknown := cfg.GetTrackUnknownSpace(parent.IsTrackingUnknown())
	defaultValue := costmap.FreeSpace
	if trackUnknown {
		defaultValue = costmap.NoInformation
	}

	// Private grid matches the master's geometry.
	master := parent.Costmap()
	l.local = costmap.NewCostmap2D(
		master.SizeInCellsX(), master.SizeInCellsY(),
		master.Resolution(), master.OriginX(), master.OriginY(),
		defaultValue,
	)

	chainName := cfg.GetFilterChainParametersName()
	l.chainConfigured = false
	if chainCfg, ok := cfg.GetFilterChain(chainName); ok {
		if err := l.chain.Configure(chainName, chainCfg); err != nil {
			monitoring.Logf("elevation: could not configure filter chain %q, using raw grids: %v", chainName, err)
		} else {
			l.chainConfigured = true
		}
	} else {
		monitoring.Logf("elevation: no filter chain %q configured, using raw grids", chainName)
	}

	l.mu.Unlock()

	l.Activate()
	return nil
}

// Activate establishes the subscription and starts consuming grids. A no-op
// when already active.
func (l *Layer) Activate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sub != nil {
		return
	}
	l.sub = l.b.Subscribe(l.topic)
	l.stopCh = make(chan struct{})
	l.wg.Add(1)
	go l.receive(l.sub, l.stopCh)
}

// Deactivate drops the subscription; no further grids are processed until
// Activate. A no-op when already inactive.
func (l *Layer) Deactivate() {
	l.mu.Lock()
	if l.sub == nil {
		l.mu.Unlock()
		return
	}
	sub, stop := l.sub, l.stopCh
	l.sub = nil
	l.stopCh = nil
	l.mu.Unlock()

	sub.Cancel()
	close(stop)
	l.wg.Wait()
}

// Reset deactivates, clears the stored grid and the private cost grid, marks
// the layer current again and resubscribes. The once-only threshold halving
// is not undone; it tracks the observed terrain, not the subscription.
func (l *Layer) Reset() {
	l.Deactivate()

	l.mu.Lock()
	l.elevationMap = nil
	l.mapReceived = false
	if l.local != nil {
		l.local.ResetMaps()
	}
	l.current = true
	l.mu.Unlock()

	l.Activate()
}

// Current reports whether the layer's data is fresh enough to plan on.
func (l *Layer) Current() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Enabled reports whether the layer participates in update cycles.
func (l *Layer) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// SetEnabled toggles the layer. This is the only runtime-reconfigurable
// field.
func (l *Layer) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// MapReceived reports whether a grid has been stored since the last reset.
func (l *Layer) MapReceived() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mapReceived
}

// HeightThreshold returns the effective obstacle height threshold, halved
// after the first received grid.
func (l *Layer) HeightThreshold() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.heightThreshold
}

func (l *Layer) receive(sub *bus.Subscription, stop <-chan struct{}) {
	defer l.wg.Done()
	for {
		select {
		case <-stop:
			return
		case m := <-sub.C():
			if m != nil {
				l.handleGrid(m)
			}
		}
	}
}

// handleGrid is the message-received path: normalize, frame-check, filter,
// then swap the stored grid under lock.
func (l *Layer) handleGrid(incoming *gridmap.Map) {
	incoming.ConvertToDefaultStartIndex()

	if incoming.Frame() != l.globalFrame {
		l.warnFrame.Logf("elevation: incoming grid frame %q differs from costmap frame %q", incoming.Frame(), l.globalFrame)
		// No transform is attempted; positions are used as-is.
	}

	filtered := incoming
	if l.chainConfigured {
		out, err := l.chain.Update(incoming)
		if err != nil {
			l.warnChain.Logf("elevation: filter chain failed, using raw grid: %v", err)
		} else {
			filtered = out
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.elevationMap = filtered
	if !l.thresholdHalved {
		// The sharpness response peaks at an obstacle's mid-height, so after
		// the first observation the detection threshold is centred on that
		// peak. This happens exactly once.
		l.heightThreshold /= 2.0
		l.thresholdHalved = true
	}
	l.mapReceived = true
}

// UpdateBounds expands the dirty bounding box to cover every cell of the
// stored grid, plus the transformed footprint when clearing is enabled. In
// rolling mode the private grid is recentred on the robot first.
func (l *Layer) UpdateBounds(robotX, robotY, robotYaw float64, minX, minY, maxX, maxY *float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rolling {
		l.local.UpdateOrigin(robotX-l.local.SizeInMetersX()/2.0, robotY-l.local.SizeInMetersY()/2.0)
	}
	if !l.enabled || !l.mapReceived {
		return
	}

	m := l.elevationMap
	m.ForEach(func(row, col int) {
		px, py := m.Position(row, col)
		costmap.Touch(px, py, minX, minY, maxX, maxY)
	})

	l.updateFootprint(robotX, robotY, robotYaw, minX, minY, maxX, maxY)
}

func (l *Layer) updateFootprint(robotX, robotY, robotYaw float64, minX, minY, maxX, maxY *float64) {
	if !l.footprintClearing {
		return
	}
	l.transformedFootprint = costmap.TransformFootprint(robotX, robotY, robotYaw, l.parent.Footprint())
	for _, p := range l.transformedFootprint {
		costmap.Touch(p.X, p.Y, minX, minY, maxX, maxY)
	}
}

// UpdateCosts thresholds the stored grid into the private cost grid, clears
// the footprint, and merges into the master with the configured combination
// method.
func (l *Layer) UpdateCosts(master *costmap.Costmap2D, minI, minJ, maxI, maxJ int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled || !l.mapReceived {
		return
	}

	m := l.elevationMap
	elevData, ok := m.Layer(l.elevationLayerName)
	if !ok {
		l.warnChain.Logf("elevation: stored grid has no %q layer", l.elevationLayerName)
		return
	}

	hasEdges := m.Exists(l.edgesLayerName)
	if !hasEdges {
		l.warnEdges.Logf("elevation: no %q layer found, slope disambiguation disabled", l.edgesLayerName)
	}
	var edgesData = elevData
	if hasEdges {
		edgesData, _ = m.Layer(l.edgesLayerName)
	}

	m.ForEach(func(row, col int) {
		px, py := m.Position(row, col)
		mx, my, inside := l.local.WorldToMap(px, py)
		if !inside {
			return // outside the costmap, ignore
		}
		if elevData.At(row, col) > l.heightThreshold {
			// Tall, but not sharp: likely a ramp or slope, not an obstacle.
			if hasEdges && edgesData.At(row, col) < l.sharpnessThreshold {
				l.local.SetCost(mx, my, costmap.FreeSpace)
				return
			}
			l.local.SetCost(mx, my, costmap.LethalObstacle)
		} else {
			l.local.SetCost(mx, my, costmap.FreeSpace)
		}
	})

	if l.footprintClearing {
		l.local.SetConvexPolygonCost(l.transformedFootprint, costmap.FreeSpace)
	}

	switch l.combinationMethod {
	case CombineOverwrite:
		l.local.UpdateWithOverwrite(master, minI, minJ, maxI, maxJ)
	case CombineMaximum:
		l.local.UpdateWithMax(master, minI, minJ, maxI, maxJ)
	default:
		// Discard the local pass.
	}
}
