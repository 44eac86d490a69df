package filters

import (
	"fmt"

	"github.com/fieldrobotics/elevmap/internal/config"
	"github.com/fieldrobotics/elevmap/internal/gridmap"
)

func init() {
	Register("min_clamp", func() Filter { return &minClamp{} })
}

// minClamp raises every cell below a floor value up to that floor. Useful to
// stop spurious negative heights from a mis-calibrated sensor reading as
// holes in the terrain.
type minClamp struct {
	inputLayer string
	floor      float64
	hasFloor   bool
}

func (f *minClamp) Name() string { return "min_clamp" }

func (f *minClamp) Configure(cfg config.FilterConfig) error {
	if cfg.InputLayer == "" {
		return fmt.Errorf("min_clamp requires input_layer")
	}
	f.inputLayer = cfg.InputLayer
	f.floor, f.hasFloor = cfg.Params["min"]
	if !f.hasFloor {
		return fmt.Errorf("min_clamp requires params.min")
	}
	return nil
}

func (f *minClamp) Update(in *gridmap.Map) (*gridmap.Map, error) {
	if !in.Exists(f.inputLayer) {
		return nil, fmt.Errorf("input layer %q not present", f.inputLayer)
	}
	out := in.Copy()
	l, _ := out.Layer(f.inputLayer)
	rows, cols := out.Rows(), out.Cols()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if l.At(i, j) < f.floor {
				l.Set(i, j, f.floor)
			}
		}
	}
	return out, nil
}
