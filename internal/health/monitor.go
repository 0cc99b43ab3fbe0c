// Package health probes the backend while the duplex channel is down and
// raises a single alert once the retry budget is spent.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/npratt/botctl/internal/conn"
	"github.com/npratt/botctl/internal/events"
	"github.com/npratt/botctl/internal/notify"
)

// Defaults.
const (
	DefaultInterval     = 10 * time.Second
	DefaultMaxRetries   = 5
	DefaultProbeTimeout = 5 * time.Second
)

// LostMessage is the alert shown when the retry budget is exhausted.
const LostMessage = "Connection to backend lost"

// Connection is the part of the connection manager the monitor drives.
type Connection interface {
	State() conn.State
	Connect()
}

// Checker performs a one-shot liveness request.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a function to Checker.
type CheckFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f CheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// Alerter shows and clears the persistent alert.
type Alerter interface {
	NotifyPersistent(message string, category notify.Category) notify.Record
	Dismiss(id string) bool
}

// Monitor counts consecutive failed probes while disconnected.
type Monitor struct {
	conn         Connection
	checker      Checker
	alerts       Alerter
	bus          *events.Bus
	clock        clockwork.Clock
	interval     time.Duration
	maxRetries   int
	probeTimeout time.Duration
	logger       *slog.Logger

	mu        sync.Mutex
	retries   int
	alertID   string
	scheduler gocron.Scheduler
	handle    events.Handle
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock sets the clock the probe schedule runs on.
func WithClock(c clockwork.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithInterval sets the probe period.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithMaxRetries sets how many failed probes raise the alert.
func WithMaxRetries(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.maxRetries = n
		}
	}
}

// WithProbeTimeout bounds each liveness request.
func WithProbeTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.probeTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// New creates a Monitor.
func New(c Connection, checker Checker, alerts Alerter, bus *events.Bus, opts ...Option) *Monitor {
	m := &Monitor{
		conn:         c,
		checker:      checker,
		alerts:       alerts,
		bus:          bus,
		clock:        clockwork.NewRealClock(),
		interval:     DefaultInterval,
		maxRetries:   DefaultMaxRetries,
		probeTimeout: DefaultProbeTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "health")
	return m
}

// Attach resets the counter whenever the channel opens on its own.
func (m *Monitor) Attach() {
	h := m.bus.Subscribe(events.ConnectionOpened, func(events.Event) error {
		m.recovered()
		return nil
	})

	m.mu.Lock()
	m.handle = h
	m.mu.Unlock()
}

// Start schedules Probe every interval. Overlapping probes are skipped.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.scheduler != nil {
		return nil
	}

	s, err := gocron.NewScheduler(
		gocron.WithClock(m.clock),
		gocron.WithLogger(m.logger),
		gocron.WithStopTimeout(m.probeTimeout+time.Second),
	)
	if err != nil {
		return fmt.Errorf("create health scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(m.interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), m.probeTimeout)
			defer cancel()
			m.Probe(ctx)
		}),
		gocron.WithName("health-probe"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("schedule health probe: %w", err)
	}

	s.Start()
	m.scheduler = s
	m.logger.Debug("health monitor started", "interval", m.interval, "max_retries", m.maxRetries)
	return nil
}

// Stop cancels the schedule and detaches from the bus.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	s := m.scheduler
	m.scheduler = nil
	h := m.handle
	m.handle = events.Handle{}
	m.mu.Unlock()

	m.bus.Unsubscribe(h)
	if s == nil {
		return nil
	}
	if err := s.Shutdown(); err != nil {
		return fmt.Errorf("stop health scheduler: %w", err)
	}
	return nil
}

// Probe runs one check. While the connection is anything but Disconnected
// it does nothing. A successful check resets the counter and asks the
// connection to reconnect; a failed one counts towards the alert.
func (m *Monitor) Probe(ctx context.Context) {
	if m.conn.State() != conn.Disconnected {
		return
	}

	if err := m.checker.HealthCheck(ctx); err != nil {
		m.failed(err)
		return
	}

	m.logger.Info("backend healthy, reconnecting")
	m.recovered()
	m.conn.Connect()
}

func (m *Monitor) failed(err error) {
	m.mu.Lock()
	if m.retries >= m.maxRetries {
		m.mu.Unlock()
		m.logger.Debug("health probe failed", "error", err, "retries", m.maxRetries)
		return
	}
	m.retries++
	retries := m.retries
	exhausted := retries == m.maxRetries
	m.mu.Unlock()

	m.logger.Warn("health probe failed", "error", err, "retries", retries, "max_retries", m.maxRetries)
	if !exhausted {
		return
	}

	rec := m.alerts.NotifyPersistent(LostMessage, notify.Emergency)
	m.mu.Lock()
	m.alertID = rec.ID
	m.mu.Unlock()

	m.bus.Publish(&events.HealthAlertEvent{
		BaseEvent: events.NewClientEvent(events.HealthAlert),
		Failures:  retries,
	})
}

// recovered resets the counter and clears a showing alert.
func (m *Monitor) recovered() {
	m.mu.Lock()
	m.retries = 0
	alertID := m.alertID
	m.alertID = ""
	m.mu.Unlock()

	if alertID == "" {
		return
	}
	m.alerts.Dismiss(alertID)
	m.bus.Publish(&events.HealthRecoveredEvent{
		BaseEvent: events.NewClientEvent(events.HealthRecovered),
	})
}

// RetryCount returns the number of consecutive failed probes.
func (m *Monitor) RetryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retries
}

// Alerting reports whether the lost-connection alert is showing.
func (m *Monitor) Alerting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alertID != ""
}
