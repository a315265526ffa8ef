// Package realtime delivers "analysis ready" notifications from the backend
// to whoever is waiting on a particular entry.
package realtime

import (
	"sync"

	"github.com/dmitrijs2005/cbtjournal/internal/rpc"
)

type Event = rpc.Event

// Hub fans events out to callbacks keyed by entry id.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[int]func(Event)
	nextID int
}

func NewHub() *Hub {
	return &Hub{subs: map[string]map[int]func(Event){}}
}

// Subscribe registers fn for events about entryID.
func (h *Hub) Subscribe(entryID string, fn func(Event)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	if h.subs[entryID] == nil {
		h.subs[entryID] = map[int]func(Event){}
	}
	h.subs[entryID][id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[entryID], id)
		if len(h.subs[entryID]) == 0 {
			delete(h.subs, entryID)
		}
	}
}

// Publish runs the callbacks registered for ev.EntryID and returns how many
// there were.
func (h *Hub) Publish(ev Event) int {
	h.mu.Lock()
	fns := make([]func(Event), 0, len(h.subs[ev.EntryID]))
	for _, fn := range h.subs[ev.EntryID] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
	return len(fns)
}

// Watching returns the number of entries with at least one subscriber.
func (h *Hub) Watching() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
