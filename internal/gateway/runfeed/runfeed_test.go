package runfeed

import (
	"testing"

	"edgejury/internal/council"
	"edgejury/internal/tester"
)

func TestPublishToWatcher(t *testing.T) {
	b := NewBroker()
	ch := b.Allocate("r1", 4)

	b.Publish("r1", council.Event{Type: council.EventStage1Start})
	b.Publish("r2", council.Event{Type: council.EventDone}) // no watcher, dropped

	ev := <-ch
	tester.Eq(t, ev.Type, council.EventStage1Start)
	tester.Eq(t, len(ch), 0)
}

func TestPublishDropsWhenFull(t *testing.T) {
	b := NewBroker()
	b.Allocate("r1", 1)
	b.Publish("r1", council.Event{Type: council.EventStage1Start})
	b.Publish("r1", council.Event{Type: council.EventStage1Complete})

	ch, ok := b.Get("r1")
	tester.True(t, ok)
	tester.Eq(t, len(ch), 1)
}

func TestCloseDrainsWatchers(t *testing.T) {
	b := NewBroker()
	ch := b.Allocate("r1", 1)
	b.Close("r1")

	_, open := <-ch
	tester.False(t, open)
	_, ok := b.Get("r1")
	tester.False(t, ok)
}
