package engine

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Handler receives published events.
type Handler func(Event)

// Bus fans events out to subscribers. A panicking subscriber is logged and
// skipped; the others still receive the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]Handler
	next   int
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{subs: make(map[int]Handler), logger: logger}
}

// Subscribe registers h and returns the function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers evt to every subscriber in subscription order.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	handlers := make([]Handler, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		handlers = append(handlers, b.subs[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(h, evt)
	}
}

func (b *Bus) deliver(h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked", "event", evt.Type(), "panic", fmt.Sprint(r))
		}
	}()
	h(evt)
}
