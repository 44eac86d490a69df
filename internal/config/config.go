// Package config loads the adapter's JSON configuration. The schema matches
// the /api/params endpoint so the same JSON can be used for both startup
// configuration and inspection at runtime.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FilterConfig describes one filter in a chain: a registered type name, the
// grid layers it reads and writes, and its numeric parameters.
type FilterConfig struct {
	Type        string             `json:"type"`
	InputLayer  string             `json:"input_layer,omitempty"`
	OutputLayer string             `json:"output_layer,omitempty"`
	Params      map[string]float64 `json:"params,omitempty"`
}

// ChainConfig is an ordered list of filters applied to each incoming grid.
type ChainConfig struct {
	Filters []FilterConfig `json:"filters"`
}

// Config is the root configuration. Fields are pointers so that omitted
// values fall back to defaults via the Get* accessors; partial configs are
// safe.
type Config struct {
	// Elevation layer params
	ElevationTopic            *string  `json:"elevation_topic,omitempty"`
	HeightThreshold           *float64 `json:"height_threshold,omitempty"`
	FilterChainParametersName *string  `json:"filter_chain_parameters_name,omitempty"`
	ElevationLayerName        *string  `json:"elevation_layer_name,omitempty"`
	EdgesLayerName            *string  `json:"edges_layer_name,omitempty"`
	FootprintClearingEnabled  *bool    `json:"footprint_clearing_enabled,omitempty"`
	CombinationMethod         *int     `json:"combination_method,omitempty"`
	EdgesSharpnessThreshold   *float64 `json:"edges_sharpness_threshold,omitempty"`
	TrackUnknownSpace         *bool    `json:"track_unknown_space,omitempty"`

	// Filter chains, keyed by the name FilterChainParametersName points at.
	FilterChains map[string]ChainConfig `json:"filter_chains,omitempty"`

	// Master costmap geometry
	GlobalFrame   *string     `json:"global_frame,omitempty"`
	CellsX        *int        `json:"cells_x,omitempty"`
	CellsY        *int        `json:"cells_y,omitempty"`
	Resolution    *float64    `json:"resolution,omitempty"`
	OriginX       *float64    `json:"origin_x,omitempty"`
	OriginY       *float64    `json:"origin_y,omitempty"`
	RollingWindow *bool       `json:"rolling_window,omitempty"`
	Footprint     [][]float64 `json:"footprint,omitempty"`

	// Service wiring
	SourceURL       *string  `json:"source_url,omitempty"`       // websocket elevation source
	SnapshotDB      *string  `json:"snapshot_db,omitempty"`      // sqlite path, empty disables
	SnapshotKeep    *int     `json:"snapshot_keep,omitempty"`    // snapshots retained per frame
	PlannerInterval *string  `json:"planner_interval,omitempty"` // duration string like "200ms"
	Layers          []string `json:"layers,omitempty"`           // layer registry names, in order
}

// Load reads and validates a Config from a JSON file. Fields omitted from the
// file retain their defaults through the Get* accessors.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that configured values are usable.
func (c *Config) Validate() error {
	if c.HeightThreshold != nil && *c.HeightThreshold <= 0 {
		return fmt.Errorf("height_threshold must be positive, got %f", *c.HeightThreshold)
	}
	if c.EdgesSharpnessThreshold != nil && *c.EdgesSharpnessThreshold < 0 {
		return fmt.Errorf("edges_sharpness_threshold must be non-negative, got %f", *c.EdgesSharpnessThreshold)
	}
	if c.Resolution != nil && *c.Resolution <= 0 {
		return fmt.Errorf("resolution must be positive, got %f", *c.Resolution)
	}
	if c.CellsX != nil && *c.CellsX <= 0 {
		return fmt.Errorf("cells_x must be positive, got %d", *c.CellsX)
	}
	if c.CellsY != nil && *c.CellsY <= 0 {
		return fmt.Errorf("cells_y must be positive, got %d", *c.CellsY)
	}
	if c.PlannerInterval != nil && *c.PlannerInterval != "" {
		if _, err := time.ParseDuration(*c.PlannerInterval); err != nil {
			return fmt.Errorf("invalid planner_interval %q: %w", *c.PlannerInterval, err)
		}
	}
	for i, pt := range c.Footprint {
		if len(pt) != 2 {
			return fmt.Errorf("footprint point %d must have 2 coordinates, got %d", i, len(pt))
		}
	}
	if len(c.Footprint) > 0 && len(c.Footprint) < 3 {
		return fmt.Errorf("footprint must have at least 3 points, got %d", len(c.Footprint))
	}
	if c.SnapshotKeep != nil && *c.SnapshotKeep < 1 {
		return fmt.Errorf("snapshot_keep must be at least 1, got %d", *c.SnapshotKeep)
	}
	for name, chain := range c.FilterChains {
		for i, f := range chain.Filters {
			if f.Type == "" {
				return fmt.Errorf("filter_chains[%s].filters[%d] missing type", name, i)
			}
		}
	}
	return nil
}

// GetElevationTopic returns the elevation topic name or the default.
func (c *Config) GetElevationTopic() string {
	if c.ElevationTopic == nil {
		return "elevation_map"
	}
	return *c.ElevationTopic
}

// GetHeightThreshold returns the height threshold or the default.
func (c *Config) GetHeightThreshold() float64 {
	if c.HeightThreshold == nil {
		return 0.5
	}
	return *c.HeightThreshold
}

// GetFilterChainParametersName returns the filter chain key or the default.
func (c *Config) GetFilterChainParametersName() string {
	if c.FilterChainParametersName == nil {
		return "elevation_filters"
	}
	return *c.FilterChainParametersName
}

// GetElevationLayerName returns the height layer key or the default.
func (c *Config) GetElevationLayerName() string {
	if c.ElevationLayerName == nil {
		return "elevation"
	}
	return *c.ElevationLayerName
}

// GetEdgesLayerName returns the edge-sharpness layer key or the default.
func (c *Config) GetEdgesLayerName() string {
	if c.EdgesLayerName == nil {
		return "edges"
	}
	return *c.EdgesLayerName
}

// GetFootprintClearingEnabled returns the footprint clearing flag or the default.
func (c *Config) GetFootprintClearingEnabled() bool {
	if c.FootprintClearingEnabled == nil {
		return true
	}
	return *c.FootprintClearingEnabled
}

// GetCombinationMethod returns the merge policy selector or the default.
// 0 overwrites, 1 keeps the maximum, anything else discards the local pass.
func (c *Config) GetCombinationMethod() int {
	if c.CombinationMethod == nil {
		return 1
	}
	return *c.CombinationMethod
}

// GetEdgesSharpnessThreshold returns the sharpness threshold or the default.
func (c *Config) GetEdgesSharpnessThreshold() float64 {
	if c.EdgesSharpnessThreshold == nil {
		return 0.05
	}
	return *c.EdgesSharpnessThreshold
}

// GetTrackUnknownSpace returns the track_unknown_space flag, falling back to
// the host's default when unset.
func (c *Config) GetTrackUnknownSpace(hostDefault bool) bool {
	if c.TrackUnknownSpace == nil {
		return hostDefault
	}
	return *c.TrackUnknownSpace
}

// GetFilterChain returns the chain config for the given name. The second
// return is false when no chain with that name is configured.
func (c *Config) GetFilterChain(name string) (ChainConfig, bool) {
	chain, ok := c.FilterChains[name]
	return chain, ok
}

// GetGlobalFrame returns the costmap frame ID or the default.
func (c *Config) GetGlobalFrame() string {
	if c.GlobalFrame == nil {
		return "odom"
	}
	return *c.GlobalFrame
}

// GetCellsX returns the master grid width in cells or the default.
func (c *Config) GetCellsX() int {
	if c.CellsX == nil {
		return 200
	}
	return *c.CellsX
}

// GetCellsY returns the master grid height in cells or the default.
func (c *Config) GetCellsY() int {
	if c.CellsY == nil {
		return 200
	}
	return *c.CellsY
}

// GetResolution returns the cell size in metres or the default.
func (c *Config) GetResolution() float64 {
	if c.Resolution == nil {
		return 0.05
	}
	return *c.Resolution
}

// GetOriginX returns the map origin X or the default.
func (c *Config) GetOriginX() float64 {
	if c.OriginX == nil {
		return 0
	}
	return *c.OriginX
}

// GetOriginY returns the map origin Y or the default.
func (c *Config) GetOriginY() float64 {
	if c.OriginY == nil {
		return 0
	}
	return *c.OriginY
}

// GetRollingWindow returns whether the costmap recenters on the robot.
func (c *Config) GetRollingWindow() bool {
	if c.RollingWindow == nil {
		return true
	}
	return *c.RollingWindow
}

// GetSourceURL returns the elevation source websocket URL or the default.
func (c *Config) GetSourceURL() string {
	if c.SourceURL == nil {
		return "ws://localhost:9090/elevation"
	}
	return *c.SourceURL
}

// GetSnapshotDB returns the sqlite path for grid snapshots; empty disables
// persistence.
func (c *Config) GetSnapshotDB() string {
	if c.SnapshotDB == nil {
		return ""
	}
	return *c.SnapshotDB
}

// GetSnapshotKeep returns how many snapshots to retain per frame.
func (c *Config) GetSnapshotKeep() int {
	if c.SnapshotKeep == nil {
		return 10
	}
	return *c.SnapshotKeep
}

// GetPlannerInterval parses and returns the planning cycle period.
func (c *Config) GetPlannerInterval() time.Duration {
	if c.PlannerInterval == nil || *c.PlannerInterval == "" {
		return 200 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.PlannerInterval)
	if err != nil {
		return 200 * time.Millisecond
	}
	return d
}

// GetLayers returns the configured layer registry names, defaulting to the
// elevation layer alone.
func (c *Config) GetLayers() []string {
	if len(c.Layers) == 0 {
		return []string{"elevation"}
	}
	return c.Layers
}
