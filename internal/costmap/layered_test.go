package costmap

import (
	"testing"

	"github.com/fieldrobotics/elevmap/internal/config"
)

// stubLayer marks a fixed world cell lethal each cycle.
type stubLayer struct {
	initialised bool
	cellX       float64
	cellY       float64
	boundsCalls int
	costsCalls  int
	lastWindow  [4]int
}

func (s *stubLayer) OnInitialize(parent *LayeredCostmap, cfg *config.Config) error {
	s.initialised = true
	return nil
}

func (s *stubLayer) UpdateBounds(robotX, robotY, robotYaw float64, minX, minY, maxX, maxY *float64) {
	s.boundsCalls++
	Touch(s.cellX, s.cellY, minX, minY, maxX, maxY)
}

func (s *stubLayer) UpdateCosts(master *Costmap2D, minI, minJ, maxI, maxJ int) {
	s.costsCalls++
	s.lastWindow = [4]int{minI, minJ, maxI, maxJ}
	if mx, my, ok := master.WorldToMap(s.cellX, s.cellY); ok {
		master.SetCost(mx, my, LethalObstacle)
	}
}

func (s *stubLayer) Reset()        {}
func (s *stubLayer) Activate()     {}
func (s *stubLayer) Deactivate()   {}
func (s *stubLayer) Name() string  { return "stub" }
func (s *stubLayer) Current() bool { return true }

func TestUpdateMapRunsTwoPhaseProtocol(t *testing.T) {
	lc := NewLayeredCostmap("odom", 10, 10, 1.0, 0, 0, false, false)
	layer := &stubLayer{cellX: 4.5, cellY: 4.5}
	lc.AddLayer(layer)

	lc.UpdateMap(5, 5, 0)

	if layer.boundsCalls != 1 || layer.costsCalls != 1 {
		t.Fatalf("bounds/costs calls = %d/%d, want 1/1", layer.boundsCalls, layer.costsCalls)
	}
	if got := lc.Costmap().Cost(4, 4); got != LethalObstacle {
		t.Fatalf("marked cell = %d, want lethal", got)
	}
}

func TestUpdateMapNoLayersNoDirtyBounds(t *testing.T) {
	lc := NewLayeredCostmap("odom", 4, 4, 1.0, 0, 0, false, false)
	lc.UpdateMap(0, 0, 0) // must not panic with empty bounds
	minX, _, maxX, _ := lc.LastBounds()
	if minX <= maxX {
		t.Fatalf("expected empty bounds, got minX=%f maxX=%f", minX, maxX)
	}
}

func TestUpdateMapRollingRecentersMaster(t *testing.T) {
	lc := NewLayeredCostmap("odom", 10, 10, 1.0, 0, 0, true, false)
	lc.UpdateMap(20, 20, 0)
	c := lc.Costmap()
	if c.OriginX() != 15 || c.OriginY() != 15 {
		t.Fatalf("rolled origin = (%f,%f), want (15,15)", c.OriginX(), c.OriginY())
	}
}

func TestTrackUnknownControlsDefault(t *testing.T) {
	tracked := NewLayeredCostmap("odom", 2, 2, 1.0, 0, 0, false, true)
	if got := tracked.Costmap().Cost(0, 0); got != NoInformation {
		t.Fatalf("tracked default = %d, want NoInformation", got)
	}
	untracked := NewLayeredCostmap("odom", 2, 2, 1.0, 0, 0, false, false)
	if got := untracked.Costmap().Cost(0, 0); got != FreeSpace {
		t.Fatalf("untracked default = %d, want FreeSpace", got)
	}
}

func TestBuildLayersUnknownName(t *testing.T) {
	lc := NewLayeredCostmap("odom", 2, 2, 1.0, 0, 0, false, false)
	if err := lc.BuildLayers([]string{"definitely_not_registered"}, &config.Config{}); err == nil {
		t.Fatal("BuildLayers should fail for unknown layer name")
	}
}

func TestRegisterLayerAndBuild(t *testing.T) {
	RegisterLayer("stub_for_test", func() Layer { return &stubLayer{cellX: 0.5, cellY: 0.5} })
	lc := NewLayeredCostmap("odom", 2, 2, 1.0, 0, 0, false, false)
	if err := lc.BuildLayers([]string{"stub_for_test"}, &config.Config{}); err != nil {
		t.Fatalf("BuildLayers failed: %v", err)
	}
	if len(lc.Layers()) != 1 {
		t.Fatalf("expected 1 layer, got %d", len(lc.Layers()))
	}
	if !lc.Layers()[0].(*stubLayer).initialised {
		t.Fatal("layer was not initialised")
	}
}
