package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "adapter.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaultsForOmittedFields(t *testing.T) {
	path := writeConfig(t, `{"height_threshold": 0.8}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := cfg.GetHeightThreshold(); got != 0.8 {
		t.Fatalf("GetHeightThreshold = %v, want 0.8", got)
	}
	if got := cfg.GetElevationTopic(); got != "elevation_map" {
		t.Fatalf("GetElevationTopic = %q, want default", got)
	}
	if got := cfg.GetElevationLayerName(); got != "elevation" {
		t.Fatalf("GetElevationLayerName = %q, want default", got)
	}
	if got := cfg.GetCombinationMethod(); got != 1 {
		t.Fatalf("GetCombinationMethod = %d, want 1", got)
	}
	if got := cfg.GetPlannerInterval(); got != 200*time.Millisecond {
		t.Fatalf("GetPlannerInterval = %v, want 200ms", got)
	}
	if !cfg.GetTrackUnknownSpace(true) {
		t.Fatal("GetTrackUnknownSpace should fall back to host default")
	}
	if cfg.GetTrackUnknownSpace(false) {
		t.Fatal("GetTrackUnknownSpace should fall back to host default")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"negative threshold", `{"height_threshold": -1}`},
		{"zero resolution", `{"resolution": 0}`},
		{"bad planner interval", `{"planner_interval": "fast"}`},
		{"two point footprint", `{"footprint": [[0,0],[1,0]]}`},
		{"footprint point arity", `{"footprint": [[0,0],[1,0],[1]]}`},
		{"filter without type", `{"filter_chains":{"c":{"filters":[{"params":{"radius":1}}]}}}`},
		{"not json", `height_threshold: 1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Fatalf("Load accepted invalid config %q", tt.content)
			}
		})
	}
}

func TestLoadRequiresJSONExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adapter.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted non-json extension")
	}
}

func TestLoadShippedDefaultsFile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "elevmap.defaults.json"))
	if err != nil {
		t.Fatalf("Load failed on the shipped defaults file: %v", err)
	}
	chain, ok := cfg.GetFilterChain(cfg.GetFilterChainParametersName())
	if !ok {
		t.Fatalf("no %q chain in the shipped defaults", cfg.GetFilterChainParametersName())
	}
	if len(chain.Filters) != 2 {
		t.Fatalf("expected 2 filters in the shipped chain, got %d", len(chain.Filters))
	}
	if got := cfg.GetLayers(); len(got) != 1 || got[0] != "elevation" {
		t.Fatalf("GetLayers = %v, want [elevation]", got)
	}
	if got := cfg.GetHeightThreshold(); got != 0.5 {
		t.Fatalf("GetHeightThreshold = %v, want 0.5", got)
	}
}

func TestGetFilterChain(t *testing.T) {
	path := writeConfig(t, `{
		"filter_chain_parameters_name": "terrain",
		"filter_chains": {
			"terrain": {"filters": [
				{"type": "mean_in_radius", "input_layer": "elevation", "params": {"radius": 0.1}},
				{"type": "sharpness_edges", "input_layer": "elevation", "output_layer": "edges"}
			]}
		}
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	chain, ok := cfg.GetFilterChain(cfg.GetFilterChainParametersName())
	if !ok {
		t.Fatal("expected terrain chain to exist")
	}
	if len(chain.Filters) != 2 {
		t.Fatalf("expected 2 filters, got %d", len(chain.Filters))
	}
	if chain.Filters[0].Type != "mean_in_radius" {
		t.Fatalf("unexpected first filter: %+v", chain.Filters[0])
	}
	if _, ok := cfg.GetFilterChain("missing"); ok {
		t.Fatal("unexpected chain for unknown name")
	}
}
