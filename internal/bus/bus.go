// Package bus provides an in-process, latest-only publish/subscribe channel
// for elevation grids. Every subscription has a queue depth of one: a newer
// grid replaces an unconsumed older one, and publishing never blocks.
package bus

import (
	"sync"

	"github.com/google/uuid"

	"github.com/fieldrobotics/elevmap/internal/gridmap"
)

// Bus routes published grids to topic subscribers.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]map[string]*Subscription
}

// Default is the process-wide bus, used when no explicit bus is wired.
// Analogous to http.DefaultServeMux.
var Default = New()

// Subscription is one subscriber's handle on a topic.
type Subscription struct {
	id    string
	topic string
	bus   *Bus
	ch    chan *gridmap.Map

	cancelOnce sync.Once
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{topics: make(map[string]map[string]*Subscription)}
}

// Subscribe registers a depth-1 subscription on the topic.
func (b *Bus) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		id:    uuid.NewString(),
		topic: topic,
		bus:   b,
		ch:    make(chan *gridmap.Map, 1),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[string]*Subscription)
		b.topics[topic] = subs
	}
	subs[sub.id] = sub
	return sub
}

// Publish delivers the grid to every subscriber of the topic. Subscribers
// that have not consumed the previous grid lose it; Publish never blocks.
func (b *Bus) Publish(topic string, m *gridmap.Map) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.topics[topic] {
		select {
		case sub.ch <- m:
		default:
			// Drop the stale grid, then offer the new one. A concurrent
			// consumer may win the race for the slot; either way the
			// subscriber ends up with the freshest grid it can get.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- m:
			default:
			}
		}
	}
}

// Subscribers returns the number of subscriptions on the topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// C returns the receive channel. It yields at most the latest published grid.
func (s *Subscription) C() <-chan *gridmap.Map { return s.ch }

// Topic returns the subscribed topic name.
func (s *Subscription) Topic() string { return s.topic }

// Cancel removes the subscription from the bus. Safe to call more than once.
// The channel is not closed; pending receives simply stop yielding grids.
func (s *Subscription) Cancel() {
	s.cancelOnce.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		if subs, ok := s.bus.topics[s.topic]; ok {
			delete(subs, s.id)
			if len(subs) == 0 {
				delete(s.bus.topics, s.topic)
			}
		}
	})
}
