package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fieldrobotics/elevmap/internal/bus"
	"github.com/fieldrobotics/elevmap/internal/config"
	"github.com/fieldrobotics/elevmap/internal/costmap"
	"github.com/fieldrobotics/elevmap/internal/elevation"
	"github.com/fieldrobotics/elevmap/internal/gridmap"
	"github.com/fieldrobotics/elevmap/internal/monitor"
	"github.com/fieldrobotics/elevmap/internal/store"
	"github.com/fieldrobotics/elevmap/internal/transport"
)

var (
	configPath = flag.String("config", "", "Path to the JSON configuration file (empty uses built-in defaults)")
	listen     = flag.String("listen", ":8080", "Listen address for the monitoring HTTP server")
	devMode    = flag.Bool("dev", false, "Replay fixture grids instead of connecting to the live source")
	fixtures   = flag.String("fixtures", "fixtures.jsonl", "Fixture file for dev mode (JSON lines of grid messages)")
	robotX     = flag.Float64("robot-x", 0, "Robot pose X used for planning cycles")
	robotY     = flag.Float64("robot-y", 0, "Robot pose Y used for planning cycles")
	robotYaw   = flag.Float64("robot-yaw", 0, "Robot pose yaw used for planning cycles")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := &config.Config{}
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	layered := costmap.NewLayeredCostmap(
		gridmap.FrameID(cfg.GetGlobalFrame()),
		cfg.GetCellsX(), cfg.GetCellsY(),
		cfg.GetResolution(), cfg.GetOriginX(), cfg.GetOriginY(),
		cfg.GetRollingWindow(), cfg.GetTrackUnknownSpace(false),
	)
	if len(cfg.Footprint) > 0 {
		fp := make([]costmap.Point, len(cfg.Footprint))
		for i, pt := range cfg.Footprint {
			fp[i] = costmap.Point{X: pt[0], Y: pt[1]}
		}
		layered.SetFootprint(fp)
	}

	if err := layered.BuildLayers(cfg.GetLayers(), cfg); err != nil {
		log.Fatalf("failed to build costmap layers: %v", err)
	}

	var elevLayer *elevation.Layer
	for _, l := range layered.Layers() {
		if el, ok := l.(*elevation.Layer); ok {
			elevLayer = el
		}
	}
	if elevLayer == nil {
		log.Fatalf("no elevation layer in configured layers %v", cfg.GetLayers())
	}
	defer elevLayer.Deactivate()

	var st *store.Store
	if path := cfg.GetSnapshotDB(); path != "" {
		var err error
		st, err = store.Open(path)
		if err != nil {
			log.Fatalf("failed to open snapshot store: %v", err)
		}
		defer st.Close()
	}

	topic := cfg.GetElevationTopic()

	// warm start: replay the last persisted grid through the normal path
	if st != nil {
		grid, err := st.LatestSnapshot(cfg.GetGlobalFrame())
		switch {
		case err == nil:
			bus.Default.Publish(topic, grid)
			log.Printf("warm-started from snapshot stamped %s", grid.Stamp())
		case !errors.Is(err, store.ErrNoSnapshot):
			log.Printf("failed to load latest snapshot: %v", err)
		}
	}

	sourceURL := cfg.GetSourceURL()
	if !*devMode && sourceURL == "" {
		log.Fatal("no source_url configured (use -dev to replay fixtures)")
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// grid source: live websocket feed, or fixture replay in dev mode
	wg.Add(1)
	go func() {
		defer wg.Done()
		if *devMode {
			if err := transport.Replay(ctx, *fixtures, topic, bus.Default, 100*time.Millisecond); err != nil && err != context.Canceled {
				log.Printf("fixture replay failed: %v", err)
			}
			return
		}
		l := transport.NewListener(sourceURL, topic, bus.Default)
		if err := l.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("source listener failed: %v", err)
		}
		log.Print("source listener terminated")
	}()

	// snapshot persistence: every received grid is saved, old ones pruned
	if st != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := bus.Default.Subscribe(topic)
			defer sub.Cancel()
			keep := cfg.GetSnapshotKeep()
			for {
				select {
				case grid := <-sub.C():
					if _, err := st.SaveSnapshot(grid); err != nil {
						log.Printf("failed to save grid snapshot: %v", err)
						continue
					}
					if err := st.Prune(string(grid.Frame()), keep); err != nil {
						log.Printf("failed to prune grid snapshots: %v", err)
					}
				case <-ctx.Done():
					log.Print("snapshot routine terminated")
					return
				}
			}
		}()
	}

	// planning cycles: one two-phase costmap update per tick
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(cfg.GetPlannerInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				layered.UpdateMap(*robotX, *robotY, *robotYaw)
			case <-ctx.Done():
				log.Print("planner routine terminated")
				return
			}
		}
	}()

	// monitoring HTTP server
	wg.Add(1)
	go func() {
		defer wg.Done()
		ws := monitor.NewWebServer(monitor.WebServerConfig{
			Address: *listen,
			Layered: layered,
			Layer:   elevLayer,
			Store:   st,
		})
		if err := ws.Start(ctx); err != nil {
			log.Printf("monitoring server failed: %v", err)
		}
	}()

	wg.Wait()
	log.Print("graceful shutdown complete")
}
