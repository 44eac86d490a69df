package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fieldrobotics/elevmap/internal/bus"
	"github.com/fieldrobotics/elevmap/internal/gridmap"
)

func fixtureGrid(t *testing.T) *gridmap.Map {
	t.Helper()
	g := gridmap.New("odom", 2, 2, 0.5, 0, 0)
	g.Add("elevation", 0.7)
	return g
}

func TestListenerPublishesDecodedGrids(t *testing.T) {
	payload, err := Encode(fixtureGrid(t))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// One garbage frame (must be skipped), then a real grid.
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not a grid"))
		_ = conn.WriteMessage(websocket.TextMessage, payload)
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	b := bus.New()
	sub := b.Subscribe("elevation_map")
	defer sub.Cancel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewListener("ws"+strings.TrimPrefix(srv.URL, "http"), "elevation_map", b)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()

	select {
	case got := <-sub.C():
		if got.Frame() != "odom" {
			t.Fatalf("published grid frame = %q", got.Frame())
		}
		if v, err := got.At("elevation", 1, 1); err != nil || v != 0.7 {
			t.Fatalf("grid value = (%v, %v), want 0.7", v, err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no grid published within deadline")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("listener did not stop on context cancellation")
	}
}

func TestReplayPublishesFixtureLines(t *testing.T) {
	payload, err := Encode(fixtureGrid(t))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "fixtures.jsonl")
	content := string(payload) + "\n" + "garbage line\n" + string(payload) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	b := bus.New()
	received := 0
	sub := b.Subscribe("elevation_map")
	defer sub.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- Replay(ctx, path, "elevation_map", b, 20*time.Millisecond) }()

	deadline := time.After(3 * time.Second)
	for received < 2 {
		select {
		case <-sub.C():
			received++
		case <-deadline:
			t.Fatalf("received %d grids before deadline, want 2", received)
		}
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Replay returned error: %v", err)
	}
}

func TestReplayMissingFile(t *testing.T) {
	err := Replay(context.Background(), "/nonexistent/fixtures.jsonl", "t", bus.New(), time.Millisecond)
	if err == nil {
		t.Fatal("Replay should fail for a missing file")
	}
}
