// Package runfeed fans run events out to watchers attached after the run
// started. The primary SSE stream goes straight to the requester; the feed
// serves everyone else (websocket watchers, dashboards).
package runfeed

import (
	"strings"
	"sync"
	"time"

	"edgejury/internal/council"
)

const completedRunRetention = 30 * time.Second

// Broker manages per-run event channels.
type Broker struct {
	mu     sync.RWMutex
	events map[string]chan council.Event
}

func NewBroker() *Broker {
	return &Broker{events: make(map[string]chan council.Event)}
}

// Allocate creates and registers a new event channel for a run.
func (b *Broker) Allocate(runID string, size int) chan council.Event {
	if size <= 0 {
		size = 1
	}
	ch := make(chan council.Event, size)
	if b == nil {
		return ch
	}
	b.mu.Lock()
	b.events[strings.TrimSpace(runID)] = ch
	b.mu.Unlock()
	return ch
}

// Get returns the event channel for a run.
func (b *Broker) Get(runID string) (chan council.Event, bool) {
	if b == nil {
		return nil, false
	}
	b.mu.RLock()
	ch, ok := b.events[strings.TrimSpace(runID)]
	b.mu.RUnlock()
	return ch, ok
}

// Publish forwards one event to the run's channel if a watcher allocated
// one. A full channel drops the event; watchers are lossy observers.
func (b *Broker) Publish(runID string, ev council.Event) {
	ch, ok := b.Get(runID)
	if !ok {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}

// Close closes the run's channel so watchers drain and disconnect.
func (b *Broker) Close(runID string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	ch, ok := b.events[strings.TrimSpace(runID)]
	if ok {
		delete(b.events, strings.TrimSpace(runID))
		close(ch)
	}
	b.mu.Unlock()
}

// ScheduleCleanup removes a run's channel after a retention period.
func (b *Broker) ScheduleCleanup(runID string) {
	if b == nil {
		return
	}
	time.AfterFunc(completedRunRetention, func() {
		b.Close(runID)
	})
}
