// Package conn maintains the duplex channel to the backend: it opens it,
// turns incoming frames into bus events and reconnects after every close.
package conn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/npratt/botctl/internal/events"
	"github.com/npratt/botctl/internal/wire"
)

// Defaults.
const (
	DefaultReconnectDelay   = 3 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
)

// ErrNotConnected is returned by Send when no channel is open.
var ErrNotConnected = errors.New("not connected")

// State is the connection lifecycle state.
type State int

// States.
const (
	Disconnected State = iota
	Connecting
	Connected
	Erroring
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Erroring:
		return "error"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Manager owns the connection state. A single reader goroutine per open
// channel decodes frames and publishes them in arrival order; each frame's
// listeners finish before the next frame is read.
type Manager struct {
	url              string
	dialer           Dialer
	bus              *events.Bus
	clock            clockwork.Clock
	reconnectDelay   time.Duration
	handshakeTimeout time.Duration
	logger           *slog.Logger

	mu          sync.Mutex
	state       State
	ch          Channel
	gen         uint64
	reconnect   clockwork.Timer
	reconnectID uint64
	cancelDial  context.CancelFunc
	manual      bool
	destroyed   bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock that drives reconnect delays.
func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithReconnectDelay sets the pause between a close and the next attempt.
func WithReconnectDelay(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.reconnectDelay = d
		}
	}
}

// WithHandshakeTimeout bounds each open attempt.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.handshakeTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New creates a disconnected Manager for url.
func New(url string, dialer Dialer, bus *events.Bus, opts ...Option) *Manager {
	m := &Manager{
		url:              url,
		dialer:           dialer,
		bus:              bus,
		clock:            clockwork.NewRealClock(),
		reconnectDelay:   DefaultReconnectDelay,
		handshakeTimeout: DefaultHandshakeTimeout,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "conn", "url", url)
	return m
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// URL returns the endpoint the manager dials.
func (m *Manager) URL() string {
	return m.url
}

// Connect starts opening the channel. It does nothing unless the manager is
// Disconnected. A pending reconnect is superseded.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.destroyed || m.state != Disconnected {
		m.mu.Unlock()
		return
	}

	m.manual = false
	m.cancelReconnectLocked()
	m.state = Connecting
	m.gen++
	gen := m.gen
	ctx, cancel := context.WithTimeout(context.Background(), m.handshakeTimeout)
	m.cancelDial = cancel
	m.mu.Unlock()

	m.logger.Debug("connecting")
	go m.open(ctx, cancel, gen)
}

func (m *Manager) open(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	ch, err := m.dialer.Dial(ctx, m.url)
	cancel()

	m.mu.Lock()
	if gen != m.gen || m.state != Connecting {
		m.mu.Unlock()
		if ch != nil {
			_ = ch.Close()
		}
		return
	}
	m.cancelDial = nil

	if err != nil {
		m.mu.Unlock()
		m.logger.Warn("connection failed", "error", err)
		m.channelError(gen, err)
		m.channelClosed(gen, 0, "")
		return
	}

	m.ch = ch
	m.state = Connected
	m.mu.Unlock()

	m.logger.Info("connected")
	m.bus.Publish(&events.ConnectionOpenedEvent{
		BaseEvent: events.NewClientEvent(events.ConnectionOpened),
		URL:       m.url,
	})

	m.readPump(ch, gen)
}

func (m *Manager) readPump(ch Channel, gen uint64) {
	for {
		data, err := ch.ReadMessage()
		if err != nil {
			var ce *CloseError
			if errors.As(err, &ce) {
				m.logger.Info("connection closed by backend", "code", ce.Code, "reason", ce.Reason)
				m.channelClosed(gen, ce.Code, ce.Reason)
				return
			}
			m.logger.Warn("connection lost", "error", err)
			m.channelError(gen, err)
			m.channelClosed(gen, 0, err.Error())
			return
		}

		if !m.current(gen) {
			return
		}
		m.dispatch(data)
	}
}

// dispatch decodes one frame and publishes it. Bad frames are logged and dropped.
func (m *Manager) dispatch(data []byte) {
	env, err := wire.Decode(data)
	if err != nil {
		m.logger.Warn("dropping malformed frame", "error", err, "size", len(data))
		return
	}
	if !env.Known() {
		m.logger.Warn("unknown message type", "type", env.Kind)
		return
	}

	ev, err := env.Event()
	if err != nil {
		m.logger.Warn("dropping undecodable payload", "type", env.Kind, "error", err)
		return
	}
	m.bus.Publish(ev)
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen && !m.destroyed
}

// channelError moves an open or opening session to Erroring. It never
// schedules a reconnect; that happens only on close.
func (m *Manager) channelError(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.gen || m.destroyed || (m.state != Connected && m.state != Connecting) {
		m.mu.Unlock()
		return
	}
	m.state = Erroring
	m.mu.Unlock()

	m.bus.Publish(&events.ConnectionErrorEvent{
		BaseEvent: events.NewClientEvent(events.ConnectionError),
		Message:   err.Error(),
	})
}

// channelClosed moves the session to Disconnected and schedules exactly one
// reconnect unless the operator disconnected or one is already pending.
func (m *Manager) channelClosed(gen uint64, code int, reason string) {
	m.mu.Lock()
	if gen != m.gen || m.destroyed || m.state == Disconnected {
		m.mu.Unlock()
		return
	}

	m.state = Disconnected
	ch := m.ch
	m.ch = nil

	if !m.manual && m.reconnect == nil {
		m.reconnectID++
		id := m.reconnectID
		m.reconnect = m.clock.AfterFunc(m.reconnectDelay, func() { m.reconnectFired(id) })
		m.logger.Debug("reconnect scheduled", "delay", m.reconnectDelay)
	}
	m.mu.Unlock()

	if ch != nil {
		_ = ch.Close()
	}

	m.bus.Publish(&events.ConnectionClosedEvent{
		BaseEvent: events.NewClientEvent(events.ConnectionClosed),
		Code:      code,
		Reason:    reason,
	})
}

func (m *Manager) reconnectFired(id uint64) {
	m.mu.Lock()
	if id != m.reconnectID || m.manual || m.destroyed {
		m.mu.Unlock()
		return
	}
	m.reconnect = nil
	m.mu.Unlock()

	m.logger.Info("reconnecting")
	m.Connect()
}

// ReconnectPending reports whether a reconnect attempt is scheduled.
func (m *Manager) ReconnectPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnect != nil
}

func (m *Manager) cancelReconnectLocked() {
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	m.reconnectID++
}

// Disconnect closes the channel and cancels any pending reconnect. No
// automatic retry follows; a later Connect starts a new session.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.manual = true
	m.cancelReconnectLocked()
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}

	prev := m.state
	ch := m.ch
	m.ch = nil
	m.state = Disconnected
	m.gen++
	m.mu.Unlock()

	if ch != nil {
		_ = ch.Close()
	}

	if prev != Disconnected {
		m.logger.Info("disconnected")
		m.bus.Publish(&events.ConnectionClosedEvent{
			BaseEvent: events.NewClientEvent(events.ConnectionClosed),
			Manual:    true,
		})
	}
}

// Destroy disconnects and makes the manager permanently inert.
func (m *Manager) Destroy() {
	m.Disconnect()

	m.mu.Lock()
	m.destroyed = true
	m.mu.Unlock()
}

// Send encodes payload under kind and writes it to the open channel.
// Outside the Connected state it logs and returns ErrNotConnected; nothing
// is queued.
func (m *Manager) Send(kind string, payload any) error {
	m.mu.Lock()
	ch := m.ch
	state := m.state
	m.mu.Unlock()

	if state != Connected || ch == nil {
		m.logger.Warn("cannot send: not connected", "kind", kind, "state", state)
		return ErrNotConnected
	}

	frame, err := wire.Encode(kind, payload)
	if err != nil {
		return fmt.Errorf("send %s: %w", kind, err)
	}
	if err := ch.WriteMessage(frame); err != nil {
		return fmt.Errorf("send %s: %w", kind, err)
	}
	return nil
}
