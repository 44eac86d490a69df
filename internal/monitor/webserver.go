// Package monitor provides the HTTP interface for inspecting the running
// costmap: health and status endpoints, a runtime parameter surface, and a
// debugging chart of the master grid.
package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fieldrobotics/elevmap/internal/costmap"
	"github.com/fieldrobotics/elevmap/internal/elevation"
	"github.com/fieldrobotics/elevmap/internal/monitoring"
	"github.com/fieldrobotics/elevmap/internal/store"
)

// WebServer handles the HTTP interface for monitoring the costmap and the
// elevation layer feeding it.
type WebServer struct {
	address string
	layered *costmap.LayeredCostmap
	elev    *elevation.Layer
	store   *store.Store
	server  *http.Server
	started time.Time
}

// WebServerConfig contains configuration options for the web server. Store
// may be nil when snapshot persistence is disabled.
type WebServerConfig struct {
	Address string
	Layered *costmap.LayeredCostmap
	Layer   *elevation.Layer
	Store   *store.Store
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address: config.Address,
		layered: config.Layered,
		elev:    config.Layer,
		store:   config.Store,
		started: time.Now(),
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}

	return ws
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Logf("monitor: failed to encode response: %v", err)
	}
}

// Start begins the HTTP server in a goroutine and blocks until the context
// is cancelled, then shuts the server down.
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		monitoring.Logf("monitor: HTTP server listening on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("monitor: HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	monitoring.Logf("monitor: shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("monitor: HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("monitor: HTTP server force close error: %v", err)
		}
	}
	return nil
}

// setupRoutes configures the HTTP routes and handlers.
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/status", ws.handleStatus)
	mux.HandleFunc("/api/params", ws.handleParams)
	mux.HandleFunc("/api/snapshots", ws.handleSnapshots)
	mux.HandleFunc("/debug/costmap", ws.handleCostmapChart)

	return mux
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, map[string]string{"status": "ok"})
}

// StatusResponse is the /api/status payload.
type StatusResponse struct {
	UptimeSeconds   float64   `json:"uptime_seconds"`
	GlobalFrame     string    `json:"global_frame"`
	Rolling         bool      `json:"rolling"`
	TrackingUnknown bool      `json:"tracking_unknown"`
	SizeCellsX      int       `json:"size_cells_x"`
	SizeCellsY      int       `json:"size_cells_y"`
	Resolution      float64   `json:"resolution"`
	OriginX         float64   `json:"origin_x"`
	OriginY         float64   `json:"origin_y"`
	Current         bool      `json:"current"`
	LayerEnabled    bool      `json:"layer_enabled"`
	MapReceived     bool      `json:"map_received"`
	HeightThreshold float64   `json:"height_threshold"`
	LastBounds      []float64 `json:"last_bounds"`
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	cm := ws.layered.Costmap()
	minX, minY, maxX, maxY := ws.layered.LastBounds()
	resp := StatusResponse{
		UptimeSeconds:   time.Since(ws.started).Seconds(),
		GlobalFrame:     string(ws.layered.GlobalFrame()),
		Rolling:         ws.layered.IsRolling(),
		TrackingUnknown: ws.layered.IsTrackingUnknown(),
		SizeCellsX:      cm.SizeInCellsX(),
		SizeCellsY:      cm.SizeInCellsY(),
		Resolution:      cm.Resolution(),
		OriginX:         cm.OriginX(),
		OriginY:         cm.OriginY(),
		Current:         ws.layered.IsCurrent(),
		LayerEnabled:    ws.elev.Enabled(),
		MapReceived:     ws.elev.MapReceived(),
		HeightThreshold: ws.elev.HeightThreshold(),
		LastBounds:      []float64{minX, minY, maxX, maxY},
	}
	ws.writeJSON(w, resp)
}

// handleParams exposes the runtime-adjustable layer parameters. Only the
// enabled flag can change after startup; everything else requires a restart.
func (ws *WebServer) handleParams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ws.writeJSON(w, map[string]any{
			"enabled":          ws.elev.Enabled(),
			"height_threshold": ws.elev.HeightThreshold(),
		})
	case http.MethodPost:
		raw := r.FormValue("enabled")
		if raw == "" {
			ws.writeJSONError(w, http.StatusBadRequest, "missing 'enabled' parameter")
			return
		}
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			ws.writeJSONError(w, http.StatusBadRequest, "invalid 'enabled' parameter")
			return
		}
		ws.elev.SetEnabled(enabled)
		monitoring.Logf("monitor: layer enabled set to %v", enabled)
		ws.writeJSON(w, map[string]any{"enabled": enabled})
	default:
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (ws *WebServer) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if ws.store == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "snapshot store not configured")
		return
	}
	frame := r.URL.Query().Get("frame")
	if frame == "" {
		frame = string(ws.layered.GlobalFrame())
	}
	n, err := ws.store.Count(frame)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ws.writeJSON(w, map[string]any{"frame": frame, "count": n})
}
