package costmap

import "math"

// Point is a 2D world-frame position.
type Point struct {
	X float64
	Y float64
}

// TransformFootprint rotates the static footprint by yaw and translates it to
// the robot pose, producing the world-frame body outline for this cycle.
func TransformFootprint(robotX, robotY, robotYaw float64, footprint []Point) []Point {
	cosYaw := math.Cos(robotYaw)
	sinYaw := math.Sin(robotYaw)
	out := make([]Point, len(footprint))
	for i, p := range footprint {
		out[i] = Point{
			X: robotX + p.X*cosYaw - p.Y*sinYaw,
			Y: robotY + p.X*sinYaw + p.Y*cosYaw,
		}
	}
	return out
}

// pointInPolygon reports whether (x, y) lies inside the polygon, using the
// even-odd ray-casting rule. Points exactly on an edge may land either way.
func pointInPolygon(x, y float64, polygon []Point) bool {
	inside := false
	n := len(polygon)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := polygon[i], polygon[j]
		if (pi.Y > y) != (pj.Y > y) &&
			x < (pj.X-pi.X)*(y-pi.Y)/(pj.Y-pi.Y)+pi.X {
			inside = !inside
		}
	}
	return inside
}

// SetConvexPolygonCost writes the given cost into every cell whose centre
// lies inside the polygon. Cells outside the grid are skipped.
func (c *Costmap2D) SetConvexPolygonCost(polygon []Point, cost byte) {
	if len(polygon) < 3 {
		return
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range polygon {
		Touch(p.X, p.Y, &minX, &minY, &maxX, &maxY)
	}

	minI, minJ := c.WorldToMapEnforceBounds(minX, minY)
	maxI, maxJ := c.WorldToMapEnforceBounds(maxX, maxY)
	for my := minJ; my <= maxJ; my++ {
		for mx := minI; mx <= maxI; mx++ {
			wx, wy := c.MapToWorld(mx, my)
			if pointInPolygon(wx, wy, polygon) {
				c.SetCost(mx, my, cost)
			}
		}
	}
}
