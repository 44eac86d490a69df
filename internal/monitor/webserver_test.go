package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/fieldrobotics/elevmap/internal/bus"
	"github.com/fieldrobotics/elevmap/internal/config"
	"github.com/fieldrobotics/elevmap/internal/costmap"
	"github.com/fieldrobotics/elevmap/internal/elevation"
	"github.com/fieldrobotics/elevmap/internal/store"
)

func newTestServer(t *testing.T, st *store.Store) *WebServer {
	t.Helper()
	parent := costmap.NewLayeredCostmap("odom", 8, 8, 0.25, -1, -1, false, false)
	layer := elevation.New(bus.New())
	if err := layer.OnInitialize(parent, &config.Config{}); err != nil {
		t.Fatalf("OnInitialize failed: %v", err)
	}
	parent.AddLayer(layer)
	t.Cleanup(layer.Deactivate)

	return NewWebServer(WebServerConfig{
		Address: "127.0.0.1:0",
		Layered: parent,
		Layer:   layer,
		Store:   st,
	})
}

func doRequest(ws *WebServer, method, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	ws.setupRoutes().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	ws := newTestServer(t, nil)
	rec := doRequest(ws, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	ws := newTestServer(t, nil)
	rec := doRequest(ws, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("status response is not JSON: %v", err)
	}
	if resp.GlobalFrame != "odom" {
		t.Fatalf("global_frame = %q", resp.GlobalFrame)
	}
	if resp.SizeCellsX != 8 || resp.SizeCellsY != 8 {
		t.Fatalf("size = %dx%d, want 8x8", resp.SizeCellsX, resp.SizeCellsY)
	}
	if !resp.LayerEnabled {
		t.Fatal("layer should start enabled")
	}
	if resp.MapReceived {
		t.Fatal("no grid was published, map_received should be false")
	}
	if resp.HeightThreshold != 0.5 {
		t.Fatalf("height_threshold = %v, want the 0.5 default", resp.HeightThreshold)
	}
}

func TestStatusRejectsPost(t *testing.T) {
	ws := newTestServer(t, nil)
	rec := doRequest(ws, http.MethodPost, "/api/status", url.Values{})
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status code = %d, want 405", rec.Code)
	}
}

func TestParamsToggleEnabled(t *testing.T) {
	ws := newTestServer(t, nil)

	rec := doRequest(ws, http.MethodPost, "/api/params", url.Values{"enabled": {"false"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ws.elev.Enabled() {
		t.Fatal("layer still enabled after POST enabled=false")
	}

	rec = doRequest(ws, http.MethodGet, "/api/params", nil)
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("params response is not JSON: %v", err)
	}
	if resp["enabled"] != false {
		t.Fatalf("params enabled = %v, want false", resp["enabled"])
	}

	rec = doRequest(ws, http.MethodPost, "/api/params", url.Values{"enabled": {"true"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("re-enable status = %d", rec.Code)
	}
	if !ws.elev.Enabled() {
		t.Fatal("layer not re-enabled")
	}
}

func TestParamsRejectsBadInput(t *testing.T) {
	ws := newTestServer(t, nil)

	rec := doRequest(ws, http.MethodPost, "/api/params", url.Values{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing param status = %d, want 400", rec.Code)
	}
	rec = doRequest(ws, http.MethodPost, "/api/params", url.Values{"enabled": {"maybe"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid param status = %d, want 400", rec.Code)
	}
	rec = doRequest(ws, http.MethodDelete, "/api/params", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("delete status = %d, want 405", rec.Code)
	}
}

func TestSnapshotsWithoutStore(t *testing.T) {
	ws := newTestServer(t, nil)
	rec := doRequest(ws, http.MethodGet, "/api/snapshots", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestSnapshotsWithStore(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ws := newTestServer(t, st)
	rec := doRequest(ws, http.MethodGet, "/api/snapshots", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("snapshots response is not JSON: %v", err)
	}
	if resp["frame"] != "odom" {
		t.Fatalf("frame = %v, want odom (the global frame default)", resp["frame"])
	}
	if resp["count"] != float64(0) {
		t.Fatalf("count = %v, want 0", resp["count"])
	}
}

func TestCostmapChartRendersHTML(t *testing.T) {
	ws := newTestServer(t, nil)
	ws.layered.Costmap().SetCost(2, 3, costmap.LethalObstacle)

	rec := doRequest(ws, http.MethodGet, "/debug/costmap?show_unknown=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type = %q, want text/html", ct)
	}
	if !strings.Contains(rec.Body.String(), "echarts") {
		t.Fatal("chart body does not reference echarts")
	}
}
