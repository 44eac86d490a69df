package filters

import (
	"fmt"

	"github.com/fieldrobotics/elevmap/internal/config"
	"github.com/fieldrobotics/elevmap/internal/gridmap"
)

func init() {
	Register("mean_in_radius", func() Filter { return &meanInRadius{} })
}

// meanInRadius replaces each cell with the mean of all cells whose centres
// lie within the configured radius. Used to knock sensor noise out of the
// height layer before thresholding.
type meanInRadius struct {
	inputLayer  string
	outputLayer string
	radius      float64
}

func (f *meanInRadius) Name() string { return "mean_in_radius" }

func (f *meanInRadius) Configure(cfg config.FilterConfig) error {
	if cfg.InputLayer == "" {
		return fmt.Errorf("mean_in_radius requires input_layer")
	}
	f.inputLayer = cfg.InputLayer
	f.outputLayer = cfg.OutputLayer
	if f.outputLayer == "" {
		f.outputLayer = cfg.InputLayer
	}
	f.radius = cfg.Params["radius"]
	if f.radius <= 0 {
		return fmt.Errorf("mean_in_radius requires positive radius, got %f", f.radius)
	}
	return nil
}

func (f *meanInRadius) Update(in *gridmap.Map) (*gridmap.Map, error) {
	src, ok := in.Layer(f.inputLayer)
	if !ok {
		return nil, fmt.Errorf("input layer %q not present", f.inputLayer)
	}
	out := in.Copy()

	window := int(f.radius / in.Resolution())
	rows, cols := in.Rows(), in.Cols()
	r2 := f.radius * f.radius
	res := in.Resolution()

	dst, _ := out.Layer(f.outputLayer)
	if dst == nil {
		out.Add(f.outputLayer, 0)
		dst, _ = out.Layer(f.outputLayer)
	}

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			sum := 0.0
			n := 0
			for di := -window; di <= window; di++ {
				for dj := -window; dj <= window; dj++ {
					ni, nj := i+di, j+dj
					if ni < 0 || ni >= rows || nj < 0 || nj >= cols {
						continue
					}
					dx := float64(di) * res
					dy := float64(dj) * res
					if dx*dx+dy*dy > r2 {
						continue
					}
					sum += src.At(ni, nj)
					n++
				}
			}
			if n > 0 {
				dst.Set(i, j, sum/float64(n))
			}
		}
	}
	return out, nil
}
