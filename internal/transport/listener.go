package transport

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fieldrobotics/elevmap/internal/bus"
	"github.com/fieldrobotics/elevmap/internal/monitoring"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Listener dials an elevation source over websocket and publishes every
// decoded grid to the bus. Connection loss triggers reconnects with
// exponential backoff; decode failures are logged and skipped, never fatal.
type Listener struct {
	url   string
	topic string
	b     *bus.Bus

	warnDecode *monitoring.Throttle
}

// NewListener creates a listener for the given source URL, publishing on the
// given topic.
func NewListener(url, topic string, b *bus.Bus) *Listener {
	return &Listener{
		url:        url,
		topic:      topic,
		b:          b,
		warnDecode: monitoring.NewThrottle(200 * time.Millisecond),
	}
}

// Run connects and consumes grids until the context is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, l.url, nil)
		if err != nil {
			monitoring.Logf("transport: dial %s failed, retrying in %v: %v", l.url, backoff, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		monitoring.Logf("transport: connected to %s", l.url)
		backoff = initialBackoff
		l.consume(ctx, conn)
		_ = conn.Close()
	}
}

// consume reads messages until the connection breaks or the context is
// cancelled.
func (l *Listener) consume(ctx context.Context, conn *websocket.Conn) {
	// Unblock the pending read when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				monitoring.Logf("transport: connection to %s lost: %v", l.url, err)
			}
			return
		}
		grid, err := Decode(payload)
		if err != nil {
			l.warnDecode.Logf("transport: grid message decode failed: %v", err)
			continue
		}
		l.b.Publish(l.topic, grid)
	}
}
