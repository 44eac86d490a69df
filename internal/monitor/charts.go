package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/fieldrobotics/elevmap/internal/costmap"
)

// handleCostmapChart renders the master grid as a colored scatter (HTML)
// using go-echarts. This is a debugging-only endpoint (no auth) to eyeball
// the merged costs without a full UI.
// Query params:
//   - show_unknown (optional; default false) to include no-information cells
//   - max_points (optional; default 20000) to reduce payload size
func (ws *WebServer) handleCostmapChart(w http.ResponseWriter, r *http.Request) {
	cm := ws.layered.Snapshot()

	showUnknown := false
	if v := r.URL.Query().Get("show_unknown"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			showUnknown = parsed
		}
	}
	maxPoints := 20000
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v > 100 && v <= 100000 {
			maxPoints = v
		}
	}

	total := cm.SizeInCellsX() * cm.SizeInCellsY()
	stride := 1
	if total > maxPoints {
		stride = total/maxPoints + 1
	}

	data := make([]opts.ScatterData, 0, total/stride+1)
	for my := 0; my < cm.SizeInCellsY(); my++ {
		for mx := 0; mx < cm.SizeInCellsX(); mx++ {
			if (my*cm.SizeInCellsX()+mx)%stride != 0 {
				continue
			}
			cost := cm.Cost(mx, my)
			if cost == costmap.NoInformation && !showUnknown {
				continue
			}
			wx, wy := cm.MapToWorld(mx, my)
			data = append(data, opts.ScatterData{Value: []interface{}{wx, wy, int(cost)}})
		}
	}

	minX, minY := cm.MapToWorld(0, 0)
	maxX, maxY := cm.MapToWorld(cm.SizeInCellsX()-1, cm.SizeInCellsY()-1)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Costmap", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Master Costmap", Subtitle: fmt.Sprintf("frame=%s points=%d stride=%d", ws.layered.GlobalFrame(), len(data), stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: minX, Max: maxX, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: minY, Max: maxY, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(costmap.NoInformation),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}},
		}),
	)
	scatter.AddSeries("cost", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
