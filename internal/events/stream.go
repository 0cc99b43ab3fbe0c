package events

import (
	"log/slog"
	"sync"
)

// Stream is a buffered channel view of one or more bus channels, for
// consumers that run on their own goroutine. When the buffer is full new
// events are dropped and a warning is logged.
type Stream struct {
	bus     *Bus
	ch      chan Event
	handles []Handle
	closed  bool
	mu      sync.Mutex
}

// Stream subscribes a buffered channel to the given channels, or to
// AllChannels when none are named. If size is 0 or negative,
// DefaultBufferSize is used. After Close the stream is already closed.
func (b *Bus) Stream(size int, channels ...Channel) *Stream {
	if size <= 0 {
		size = DefaultBufferSize
	}
	if len(channels) == 0 {
		channels = AllChannels
	}

	s := &Stream{bus: b, ch: make(chan Event, size)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		s.closeChan()
		return s
	}
	b.streams[s] = struct{}{}
	b.mu.Unlock()

	for _, ch := range channels {
		s.handles = append(s.handles, b.Subscribe(ch, s.deliver))
	}
	return s
}

// C returns the receive side of the stream.
func (s *Stream) C() <-chan Event {
	return s.ch
}

func (s *Stream) deliver(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	select {
	case s.ch <- event:
	default:
		slog.Warn("event dropped: stream buffer full",
			"channel", event.Channel(),
			"source", event.Source(),
		)
	}
	return nil
}

// Close unsubscribes the stream and closes its channel.
// It is safe to call multiple times and after the bus is closed.
func (s *Stream) Close() {
	for _, h := range s.handles {
		s.bus.Unsubscribe(h)
	}

	s.bus.mu.Lock()
	delete(s.bus.streams, s)
	s.bus.mu.Unlock()

	s.closeChan()
}

func (s *Stream) closeChan() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
