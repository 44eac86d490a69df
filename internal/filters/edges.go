package filters

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/fieldrobotics/elevmap/internal/config"
	"github.com/fieldrobotics/elevmap/internal/gridmap"
)

func init() {
	Register("sharpness_edges", func() Filter { return &sharpnessEdges{} })
}

// sharpnessEdges writes a gradient-magnitude layer from the height layer.
// Sharp height discontinuities (obstacle edges) score high; gentle ramps
// score low, which lets the cost pass tell obstacles from slopes.
type sharpnessEdges struct {
	inputLayer  string
	outputLayer string
}

func (f *sharpnessEdges) Name() string { return "sharpness_edges" }

func (f *sharpnessEdges) Configure(cfg config.FilterConfig) error {
	if cfg.InputLayer == "" {
		return fmt.Errorf("sharpness_edges requires input_layer")
	}
	if cfg.OutputLayer == "" {
		return fmt.Errorf("sharpness_edges requires output_layer")
	}
	if cfg.OutputLayer == cfg.InputLayer {
		return fmt.Errorf("sharpness_edges output_layer must differ from input_layer")
	}
	f.inputLayer = cfg.InputLayer
	f.outputLayer = cfg.OutputLayer
	return nil
}

func (f *sharpnessEdges) Update(in *gridmap.Map) (*gridmap.Map, error) {
	src, ok := in.Layer(f.inputLayer)
	if !ok {
		return nil, fmt.Errorf("input layer %q not present", f.inputLayer)
	}
	out := in.Copy()

	rows, cols := in.Rows(), in.Cols()
	edges := mat.NewDense(rows, cols, nil)
	inv := 1.0 / (2.0 * in.Resolution())

	at := func(i, j int) float64 {
		if i < 0 {
			i = 0
		}
		if i >= rows {
			i = rows - 1
		}
		if j < 0 {
			j = 0
		}
		if j >= cols {
			j = cols - 1
		}
		return src.At(i, j)
	}

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			gx := (at(i+1, j) - at(i-1, j)) * inv
			gy := (at(i, j+1) - at(i, j-1)) * inv
			edges.Set(i, j, math.Hypot(gx, gy))
		}
	}

	if err := out.AddMatrix(f.outputLayer, edges); err != nil {
		return nil, err
	}
	return out, nil
}
