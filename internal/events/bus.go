package events

import (
	"fmt"
	"log/slog"
	"sync"
)

// DefaultBufferSize is the default buffer size for streams.
const DefaultBufferSize = 100

// Listener reacts to an event. A returned error is logged and does not
// stop delivery to the remaining listeners.
type Listener func(Event) error

// Handle identifies one subscription. The zero Handle is never issued.
type Handle struct {
	ch Channel
	id uint64
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// Bus is a synchronous publish/subscribe hub keyed by Channel.
// Publish invokes every listener of the event's channel, in subscription
// order, before returning. Listeners run outside the bus lock so they may
// publish or subscribe themselves.
type Bus struct {
	listeners map[Channel][]listenerEntry
	streams   map[*Stream]struct{}
	nextID    uint64
	closed    bool
	logger    *slog.Logger
	mu        sync.RWMutex
}

// NewBus creates an empty bus. Listener failures are reported to logger;
// a nil logger uses slog.Default().
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		listeners: make(map[Channel][]listenerEntry),
		streams:   make(map[*Stream]struct{}),
		logger:    logger.With("component", "bus"),
	}
}

// Subscribe registers l on ch. After Close it returns the zero Handle and
// registers nothing.
func (b *Bus) Subscribe(ch Channel, l Listener) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || l == nil {
		return Handle{}
	}

	b.nextID++
	b.listeners[ch] = append(b.listeners[ch], listenerEntry{id: b.nextID, fn: l})
	return Handle{ch: ch, id: b.nextID}
}

// Unsubscribe removes the subscription. Unknown or repeated handles are ignored.
func (b *Bus) Unsubscribe(h Handle) {
	if h.id == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.listeners[h.ch]
	for i, e := range entries {
		if e.id == h.id {
			// Copy so snapshots already handed to Publish stay intact.
			next := make([]listenerEntry, 0, len(entries)-1)
			next = append(next, entries[:i]...)
			next = append(next, entries[i+1:]...)
			if len(next) == 0 {
				delete(b.listeners, h.ch)
			} else {
				b.listeners[h.ch] = next
			}
			return
		}
	}
}

// Publish delivers event to the listeners of its channel.
// It is a no-op when nobody listens or after Close.
func (b *Bus) Publish(event Event) {
	if event == nil {
		return
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	entries := b.listeners[event.Channel()]
	b.mu.RUnlock()

	for _, e := range entries {
		b.invoke(event, e)
	}
}

func (b *Bus) invoke(event Event, e listenerEntry) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("listener panicked",
				"channel", event.Channel(),
				"panic", fmt.Sprint(r),
			)
		}
	}()

	if err := e.fn(event); err != nil {
		b.logger.Warn("listener failed",
			"channel", event.Channel(),
			"source", event.Source(),
			"error", err,
		)
	}
}

// ListenerCount reports how many listeners are registered on ch.
func (b *Bus) ListenerCount(ch Channel) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[ch])
}

// Close stops all further delivery and closes every open stream.
// Close is safe to call multiple times.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.listeners = make(map[Channel][]listenerEntry)
	streams := b.streams
	b.streams = make(map[*Stream]struct{})
	b.mu.Unlock()

	for s := range streams {
		s.closeChan()
	}
}
