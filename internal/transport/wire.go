// Package transport ingests elevation grids from an external publisher and
// feeds them onto the in-process bus. The wire form is JSON: one message per
// grid, layers as flat row-major float arrays.
package transport

import (
	"encoding/json"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/fieldrobotics/elevmap/internal/gridmap"
)

// LayerData is one named layer's cell values in row-major order.
type LayerData struct {
	Name string    `json:"name"`
	Data []float64 `json:"data"`
}

// GridMessage is the wire form of an elevation grid.
type GridMessage struct {
	Frame          string      `json:"frame"`
	Rows           int         `json:"rows"`
	Cols           int         `json:"cols"`
	Resolution     float64     `json:"resolution"`
	CenterX        float64     `json:"center_x"`
	CenterY        float64     `json:"center_y"`
	StartRow       int         `json:"start_row,omitempty"`
	StartCol       int         `json:"start_col,omitempty"`
	StampUnixNanos int64       `json:"stamp_unix_nanos,omitempty"`
	Layers         []LayerData `json:"layers"`
}

// Validate checks internal consistency of the message.
func (m *GridMessage) Validate() error {
	if m.Rows <= 0 || m.Cols <= 0 {
		return fmt.Errorf("invalid grid dimensions %dx%d", m.Rows, m.Cols)
	}
	if m.Resolution <= 0 {
		return fmt.Errorf("invalid resolution %f", m.Resolution)
	}
	if len(m.Layers) == 0 {
		return fmt.Errorf("message carries no layers")
	}
	for _, l := range m.Layers {
		if l.Name == "" {
			return fmt.Errorf("layer with empty name")
		}
		if len(l.Data) != m.Rows*m.Cols {
			return fmt.Errorf("layer %q has %d values, want %d", l.Name, len(l.Data), m.Rows*m.Cols)
		}
	}
	return nil
}

// ToMap converts the message into a grid map.
func (m *GridMessage) ToMap() (*gridmap.Map, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	out := gridmap.New(gridmap.FrameID(m.Frame), m.Rows, m.Cols, m.Resolution, m.CenterX, m.CenterY)
	out.SetStartIndex(m.StartRow, m.StartCol)
	if m.StampUnixNanos != 0 {
		out.SetStamp(time.Unix(0, m.StampUnixNanos))
	}
	for _, l := range m.Layers {
		data := make([]float64, len(l.Data))
		copy(data, l.Data)
		if err := out.AddMatrix(l.Name, mat.NewDense(m.Rows, m.Cols, data)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FromMap converts a grid map into its wire form.
func FromMap(g *gridmap.Map) *GridMessage {
	startRow, startCol := g.StartIndex()
	msg := &GridMessage{
		Frame:      string(g.Frame()),
		Rows:       g.Rows(),
		Cols:       g.Cols(),
		Resolution: g.Resolution(),
		StartRow:   startRow,
		StartCol:   startCol,
	}
	msg.CenterX, msg.CenterY = g.Center()
	if !g.Stamp().IsZero() {
		msg.StampUnixNanos = g.Stamp().UnixNano()
	}
	for _, name := range g.Layers() {
		l, _ := g.Layer(name)
		rows, cols := l.Dims()
		data := make([]float64, 0, rows*cols)
		for i := 0; i < rows; i++ {
			data = append(data, l.RawRowView(i)...)
		}
		msg.Layers = append(msg.Layers, LayerData{Name: name, Data: data})
	}
	return msg
}

// Decode parses a wire payload into a grid map.
func Decode(payload []byte) (*gridmap.Map, error) {
	var msg GridMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal grid message: %w", err)
	}
	return msg.ToMap()
}

// Encode renders a grid map as a wire payload.
func Encode(g *gridmap.Map) ([]byte, error) {
	return json.Marshal(FromMap(g))
}
