// Package costmap implements the shared 2D occupancy cost grid consumed by
// path planners, the layer capability interface, and the layered master grid
// that fuses per-layer cost passes.
package costmap

import "math"

// Cost values, matching the conventional navigation-stack encoding.
const (
	// FreeSpace marks a cell known to be traversable.
	FreeSpace byte = 0
	// InscribedObstacle marks a cell inside an obstacle's inscribed radius.
	InscribedObstacle byte = 253
	// LethalObstacle marks a cell occupied by an obstacle.
	LethalObstacle byte = 254
	// NoInformation marks a cell with no sensor evidence either way.
	NoInformation byte = 255
)

// Costmap2D is a row-major byte grid over a world-aligned extent. Origin is
// the world position of the lower-left corner; cell (0,0) is the lower-left
// cell. Costmap2D itself is not synchronised; LayeredCostmap serialises
// access during update cycles.
type Costmap2D struct {
	sizeX, sizeY     int
	resolution       float64
	originX, originY float64
	defaultValue     byte
	cells            []byte
}

// NewCostmap2D allocates a grid of sizeX by sizeY cells filled with the
// default value.
func NewCostmap2D(sizeX, sizeY int, resolution, originX, originY float64, defaultValue byte) *Costmap2D {
	if sizeX <= 0 {
		sizeX = 1
	}
	if sizeY <= 0 {
		sizeY = 1
	}
	c := &Costmap2D{
		sizeX:        sizeX,
		sizeY:        sizeY,
		resolution:   resolution,
		originX:      originX,
		originY:      originY,
		defaultValue: defaultValue,
		cells:        make([]byte, sizeX*sizeY),
	}
	c.ResetMaps()
	return c
}

// SizeInCellsX returns the grid width in cells.
func (c *Costmap2D) SizeInCellsX() int { return c.sizeX }

// SizeInCellsY returns the grid height in cells.
func (c *Costmap2D) SizeInCellsY() int { return c.sizeY }

// SizeInMetersX returns the grid width in metres.
func (c *Costmap2D) SizeInMetersX() float64 { return float64(c.sizeX) * c.resolution }

// SizeInMetersY returns the grid height in metres.
func (c *Costmap2D) SizeInMetersY() float64 { return float64(c.sizeY) * c.resolution }

// Resolution returns the cell edge length in metres.
func (c *Costmap2D) Resolution() float64 { return c.resolution }

// OriginX returns the world X of the lower-left corner.
func (c *Costmap2D) OriginX() float64 { return c.originX }

// OriginY returns the world Y of the lower-left corner.
func (c *Costmap2D) OriginY() float64 { return c.originY }

// DefaultValue returns the fill value used for unobserved cells.
func (c *Costmap2D) DefaultValue() byte { return c.defaultValue }

// SetDefaultValue changes the fill value used by ResetMaps and UpdateOrigin.
func (c *Costmap2D) SetDefaultValue(v byte) { c.defaultValue = v }

func (c *Costmap2D) index(mx, my int) int { return my*c.sizeX + mx }

// Cost returns the cost at cell (mx, my). Out-of-range indices return the
// default value.
func (c *Costmap2D) Cost(mx, my int) byte {
	if mx < 0 || mx >= c.sizeX || my < 0 || my >= c.sizeY {
		return c.defaultValue
	}
	return c.cells[c.index(mx, my)]
}

// SetCost writes the cost at cell (mx, my). Out-of-range writes are dropped.
func (c *Costmap2D) SetCost(mx, my int, cost byte) {
	if mx < 0 || mx >= c.sizeX || my < 0 || my >= c.sizeY {
		return
	}
	c.cells[c.index(mx, my)] = cost
}

// WorldToMap converts a world position to cell indices. ok is false when the
// position lies outside the grid.
func (c *Costmap2D) WorldToMap(wx, wy float64) (mx, my int, ok bool) {
	if wx < c.originX || wy < c.originY {
		return 0, 0, false
	}
	mx = int((wx - c.originX) / c.resolution)
	my = int((wy - c.originY) / c.resolution)
	if mx >= c.sizeX || my >= c.sizeY {
		return 0, 0, false
	}
	return mx, my, true
}

// WorldToMapEnforceBounds converts a world position to cell indices, clamping
// positions outside the grid onto its border.
func (c *Costmap2D) WorldToMapEnforceBounds(wx, wy float64) (mx, my int) {
	mx = int(math.Floor((wx - c.originX) / c.resolution))
	my = int(math.Floor((wy - c.originY) / c.resolution))
	if mx < 0 {
		mx = 0
	} else if mx >= c.sizeX {
		mx = c.sizeX - 1
	}
	if my < 0 {
		my = 0
	} else if my >= c.sizeY {
		my = c.sizeY - 1
	}
	return mx, my
}

// MapToWorld returns the world position of the centre of cell (mx, my).
func (c *Costmap2D) MapToWorld(mx, my int) (wx, wy float64) {
	wx = c.originX + (float64(mx)+0.5)*c.resolution
	wy = c.originY + (float64(my)+0.5)*c.resolution
	return
}

// ResetMaps fills the whole grid with the default value.
func (c *Costmap2D) ResetMaps() {
	for i := range c.cells {
		c.cells[i] = c.defaultValue
	}
}

// UpdateOrigin moves the grid origin, shifting cell contents by whole cells
// so data in the overlapping region survives and newly exposed cells take the
// default value. Used by rolling-window costmaps to stay centred on the
// robot.
func (c *Costmap2D) UpdateOrigin(newOriginX, newOriginY float64) {
	cellDX := int(math.Floor((newOriginX - c.originX) / c.resolution))
	cellDY := int(math.Floor((newOriginY - c.originY) / c.resolution))
	if cellDX == 0 && cellDY == 0 {
		return
	}

	old := c.cells
	c.cells = make([]byte, c.sizeX*c.sizeY)
	for i := range c.cells {
		c.cells[i] = c.defaultValue
	}
	for my := 0; my < c.sizeY; my++ {
		oldY := my + cellDY
		if oldY < 0 || oldY >= c.sizeY {
			continue
		}
		for mx := 0; mx < c.sizeX; mx++ {
			oldX := mx + cellDX
			if oldX < 0 || oldX >= c.sizeX {
				continue
			}
			c.cells[c.index(mx, my)] = old[oldY*c.sizeX+oldX]
		}
	}

	// Keep the origin cell-aligned so repeated rolling does not drift.
	c.originX += float64(cellDX) * c.resolution
	c.originY += float64(cellDY) * c.resolution
}

// UpdateWithOverwrite copies this grid's cells into master over the given
// index window, replacing whatever was there.
func (c *Costmap2D) UpdateWithOverwrite(master *Costmap2D, minI, minJ, maxI, maxJ int) {
	minI, minJ, maxI, maxJ = clampWindow(master, minI, minJ, maxI, maxJ)
	for my := minJ; my < maxJ; my++ {
		for mx := minI; mx < maxI; mx++ {
			master.SetCost(mx, my, c.Cost(mx, my))
		}
	}
}

// UpdateWithMax merges this grid's cells into master over the given index
// window, keeping the higher cost under the ordering
// free < no-information < lethal.
func (c *Costmap2D) UpdateWithMax(master *Costmap2D, minI, minJ, maxI, maxJ int) {
	minI, minJ, maxI, maxJ = clampWindow(master, minI, minJ, maxI, maxJ)
	for my := minJ; my < maxJ; my++ {
		for mx := minI; mx < maxI; mx++ {
			master.SetCost(mx, my, maxCost(master.Cost(mx, my), c.Cost(mx, my)))
		}
	}
}

// maxCost orders costs free < no-information < lethal; other cost values
// compare numerically below no-information.
func maxCost(a, b byte) byte {
	if a == LethalObstacle || b == LethalObstacle {
		return LethalObstacle
	}
	if a == NoInformation || b == NoInformation {
		return NoInformation
	}
	if a > b {
		return a
	}
	return b
}

func clampWindow(master *Costmap2D, minI, minJ, maxI, maxJ int) (int, int, int, int) {
	if minI < 0 {
		minI = 0
	}
	if minJ < 0 {
		minJ = 0
	}
	if maxI > master.sizeX {
		maxI = master.sizeX
	}
	if maxJ > master.sizeY {
		maxJ = master.sizeY
	}
	return minI, minJ, maxI, maxJ
}

// Touch expands the bounding box to include the world position (x, y).
func Touch(x, y float64, minX, minY, maxX, maxY *float64) {
	*minX = math.Min(*minX, x)
	*minY = math.Min(*minY, y)
	*maxX = math.Max(*maxX, x)
	*maxY = math.Max(*maxY, y)
}
