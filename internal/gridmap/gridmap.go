// Package gridmap implements a multi-layered 2D grid over a common spatial
// extent. Each layer is a dense matrix of scalar values addressed by the same
// (row, col) index, with world-position math shared across layers.
//
// Index convention: row 0 / col 0 sits at the maximum X/Y corner of the map
// and indices grow towards negative X/Y, so Position and IndexAt are exact
// inverses for in-bounds cells. Maps received from a rolling-window publisher
// may carry a non-zero start index; ConvertToDefaultStartIndex rewinds the
// circular buffer so row 0, col 0 is the logical first cell again.
package gridmap

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// FrameID is a human-readable coordinate frame identifier.
type FrameID string

// Map is a named-layer elevation grid. It is not safe for concurrent
// mutation; callers that share a Map across goroutines must replace it
// wholesale rather than mutate in place.
type Map struct {
	frame      FrameID
	rows, cols int
	resolution float64
	centerX    float64
	centerY    float64
	startRow   int
	startCol   int
	stamp      time.Time
	layers     map[string]*mat.Dense
	order      []string
}

// New creates an empty map with the given geometry. Rows index the X axis and
// cols the Y axis; resolution is metres per cell; (centerX, centerY) is the
// world position of the map centre.
func New(frame FrameID, rows, cols int, resolution, centerX, centerY float64) *Map {
	if rows <= 0 {
		rows = 1
	}
	if cols <= 0 {
		cols = 1
	}
	return &Map{
		frame:      frame,
		rows:       rows,
		cols:       cols,
		resolution: resolution,
		centerX:    centerX,
		centerY:    centerY,
		layers:     make(map[string]*mat.Dense),
	}
}

// Frame returns the map's coordinate frame.
func (m *Map) Frame() FrameID { return m.frame }

// SetFrame sets the map's coordinate frame.
func (m *Map) SetFrame(f FrameID) { m.frame = f }

// Rows returns the number of cells along X.
func (m *Map) Rows() int { return m.rows }

// Cols returns the number of cells along Y.
func (m *Map) Cols() int { return m.cols }

// Resolution returns the cell edge length in metres.
func (m *Map) Resolution() float64 { return m.resolution }

// Center returns the world position of the map centre.
func (m *Map) Center() (x, y float64) { return m.centerX, m.centerY }

// Stamp returns the acquisition time of the grid data.
func (m *Map) Stamp() time.Time { return m.stamp }

// SetStamp records the acquisition time of the grid data.
func (m *Map) SetStamp(t time.Time) { m.stamp = t }

// StartIndex returns the circular-buffer start index.
func (m *Map) StartIndex() (row, col int) { return m.startRow, m.startCol }

// SetStartIndex marks the circular-buffer start index, as set by
// rolling-window publishers.
func (m *Map) SetStartIndex(row, col int) {
	m.startRow = ((row % m.rows) + m.rows) % m.rows
	m.startCol = ((col % m.cols) + m.cols) % m.cols
}

// Add creates a layer filled with the given value, replacing any existing
// layer of the same name.
func (m *Map) Add(name string, fill float64) {
	data := make([]float64, m.rows*m.cols)
	if fill != 0 {
		for i := range data {
			data[i] = fill
		}
	}
	m.setLayer(name, mat.NewDense(m.rows, m.cols, data))
}

// AddMatrix installs an existing matrix as a layer. The matrix dimensions
// must match the map geometry.
func (m *Map) AddMatrix(name string, data *mat.Dense) error {
	r, c := data.Dims()
	if r != m.rows || c != m.cols {
		return fmt.Errorf("layer %q dimensions %dx%d do not match map %dx%d", name, r, c, m.rows, m.cols)
	}
	m.setLayer(name, data)
	return nil
}

func (m *Map) setLayer(name string, data *mat.Dense) {
	if _, exists := m.layers[name]; !exists {
		m.order = append(m.order, name)
	}
	m.layers[name] = data
}

// Exists reports whether a layer with the given name is present.
func (m *Map) Exists(name string) bool {
	_, ok := m.layers[name]
	return ok
}

// Layer returns the matrix backing the named layer.
func (m *Map) Layer(name string) (*mat.Dense, bool) {
	l, ok := m.layers[name]
	return l, ok
}

// Layers returns layer names in insertion order.
func (m *Map) Layers() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// At reads the named layer at logical index (row, col), unwrapping the
// circular start index.
func (m *Map) At(name string, row, col int) (float64, error) {
	l, ok := m.layers[name]
	if !ok {
		return 0, fmt.Errorf("no layer %q", name)
	}
	r := (m.startRow + row) % m.rows
	c := (m.startCol + col) % m.cols
	return l.At(r, c), nil
}

// Position returns the world position of the centre of cell (row, col).
func (m *Map) Position(row, col int) (x, y float64) {
	x = m.centerX + (float64(m.rows)/2.0-float64(row)-0.5)*m.resolution
	y = m.centerY + (float64(m.cols)/2.0-float64(col)-0.5)*m.resolution
	return
}

// IndexAt maps a world position to a cell index. ok is false when the
// position falls outside the map extent.
func (m *Map) IndexAt(x, y float64) (row, col int, ok bool) {
	row = int(math.Floor((m.centerX + float64(m.rows)/2.0*m.resolution - x) / m.resolution))
	col = int(math.Floor((m.centerY + float64(m.cols)/2.0*m.resolution - y) / m.resolution))
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		return 0, 0, false
	}
	return row, col, true
}

// ConvertToDefaultStartIndex rotates every layer so that the circular start
// index becomes (0, 0). A no-op when the start index is already zero.
func (m *Map) ConvertToDefaultStartIndex() {
	if m.startRow == 0 && m.startCol == 0 {
		return
	}
	for name, l := range m.layers {
		rotated := mat.NewDense(m.rows, m.cols, nil)
		for i := 0; i < m.rows; i++ {
			for j := 0; j < m.cols; j++ {
				rotated.Set(i, j, l.At((m.startRow+i)%m.rows, (m.startCol+j)%m.cols))
			}
		}
		m.layers[name] = rotated
	}
	m.startRow = 0
	m.startCol = 0
}

// Copy returns a deep copy of the map, layers included.
func (m *Map) Copy() *Map {
	out := New(m.frame, m.rows, m.cols, m.resolution, m.centerX, m.centerY)
	out.startRow = m.startRow
	out.startCol = m.startCol
	out.stamp = m.stamp
	for _, name := range m.order {
		out.setLayer(name, mat.DenseCopyOf(m.layers[name]))
	}
	return out
}

// ForEach invokes fn for every cell index of the map in row-major order.
func (m *Map) ForEach(fn func(row, col int)) {
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			fn(i, j)
		}
	}
}
