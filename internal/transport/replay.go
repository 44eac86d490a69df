package transport

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fieldrobotics/elevmap/internal/bus"
	"github.com/fieldrobotics/elevmap/internal/monitoring"
)

// Replay publishes grids from a JSON-lines fixture file at a fixed cadence,
// for development and testing without a live elevation source. Undecodable
// lines are logged and skipped. Returns after the whole file has been
// replayed or the context is cancelled.
func Replay(ctx context.Context, path, topic string, b *bus.Bus, interval time.Duration) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open fixture file: %w", err)
	}
	defer f.Close()

	warn := monitoring.NewThrottle(200 * time.Millisecond)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)

	published := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		grid, err := Decode(line)
		if err != nil {
			warn.Logf("transport: fixture line decode failed: %v", err)
			continue
		}
		b.Publish(topic, grid)
		published++

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read fixture file: %w", err)
	}
	monitoring.Logf("transport: replayed %d grids from %s", published, path)
	return nil
}
