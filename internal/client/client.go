// Package client is the application root: it builds one instance of every
// component, wires them together and exposes the operator command surface.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/npratt/botctl/internal/api"
	"github.com/npratt/botctl/internal/config"
	"github.com/npratt/botctl/internal/configedit"
	"github.com/npratt/botctl/internal/conn"
	"github.com/npratt/botctl/internal/events"
	"github.com/npratt/botctl/internal/health"
	"github.com/npratt/botctl/internal/notify"
	"github.com/npratt/botctl/internal/prefs"
	"github.com/npratt/botctl/internal/transport"
	"github.com/npratt/botctl/internal/views"
)

// LoadFailedMessage is shown when any initial snapshot fetch fails.
const LoadFailedMessage = "Failed to load initial data"

// ErrDestroyed is returned by Init after Destroy.
var ErrDestroyed = errors.New("client destroyed")

// Client owns every component of one session.
type Client struct {
	cfg    *config.Config
	logger *slog.Logger

	bus     *events.Bus
	conn    *conn.Manager
	views   *views.Reconciler
	editor  *configedit.Editor
	notices *notify.Controller
	health  *health.Monitor
	api     *api.Client

	prefs     *prefs.Store
	sink      *events.LogSink
	sinkStop  context.CancelFunc
	exportDir string

	mu          sync.Mutex
	initialized bool
	destroyed   bool
}

type options struct {
	clock      clockwork.Clock
	dialer     conn.Dialer
	audio      notify.AudioOutput
	requester  transport.Requester
	soundStore notify.SoundStore
	logger     *slog.Logger
	exportDir  string
}

// Option configures New.
type Option func(*options)

// WithClock sets the clock used for reconnect delays, notification expiry
// and the probe schedule.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithDialer replaces the websocket dialer.
func WithDialer(d conn.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithAudio sets the audio output for cues.
func WithAudio(a notify.AudioOutput) Option {
	return func(o *options) { o.audio = a }
}

// WithRequester replaces the HTTP transport.
func WithRequester(r transport.Requester) Option {
	return func(o *options) { o.requester = r }
}

// WithSoundStore replaces the preference database for the sound flag.
func WithSoundStore(s notify.SoundStore) Option {
	return func(o *options) { o.soundStore = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithExportDir sets where exported reports are written.
func WithExportDir(dir string) Option {
	return func(o *options) { o.exportDir = dir }
}

// New builds a client from cfg. Nothing connects until Init.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	o := options{
		clock:     clockwork.NewRealClock(),
		dialer:    conn.WebsocketDialer{},
		audio:     notify.Discard{},
		logger:    slog.Default(),
		exportDir: ".",
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		cfg:       cfg,
		logger:    o.logger.With("component", "client"),
		exportDir: o.exportDir,
	}

	requester := o.requester
	if requester == nil {
		tr, err := transport.New(cfg.Backend.BaseURL,
			transport.WithTimeout(cfg.Backend.RequestTimeout),
			transport.WithLogger(o.logger),
		)
		if err != nil {
			return nil, err
		}
		requester = tr
	}

	soundStore := o.soundStore
	if soundStore == nil {
		path := cfg.Paths.Prefs
		if path == "" {
			path = prefs.MemoryPath
		}
		store, err := prefs.Open(path, o.logger)
		if err != nil {
			return nil, err
		}
		c.prefs = store
		soundStore = store
	}

	c.bus = events.NewBus(o.logger)
	c.api = api.New(requester)
	c.views = views.New(c.bus, o.logger)
	c.editor = configedit.New(c.views, c.api, o.logger)
	c.notices = notify.New(c.bus,
		notify.WithClock(o.clock),
		notify.WithAudio(o.audio),
		notify.WithSoundStore(soundStore),
		notify.WithSoundDefault(cfg.Notify.SoundDefault),
		notify.WithDisplayWindow(cfg.Notify.DisplayWindow),
		notify.WithLogger(o.logger),
	)
	c.conn = conn.New(cfg.Backend.WSURL, o.dialer, c.bus,
		conn.WithClock(o.clock),
		conn.WithReconnectDelay(cfg.Connection.ReconnectDelay),
		conn.WithHandshakeTimeout(cfg.Connection.HandshakeTimeout),
		conn.WithLogger(o.logger),
	)
	c.health = health.New(c.conn, c.api, c.notices, c.bus,
		health.WithClock(o.clock),
		health.WithInterval(cfg.Health.Interval),
		health.WithMaxRetries(cfg.Health.MaxRetries),
		health.WithProbeTimeout(cfg.Health.ProbeTimeout),
		health.WithLogger(o.logger),
	)

	return c, nil
}

// Bus returns the event bus.
func (c *Client) Bus() *events.Bus { return c.bus }

// Views returns the state reconciler.
func (c *Client) Views() *views.Reconciler { return c.views }

// Editor returns the config editor.
func (c *Client) Editor() *configedit.Editor { return c.editor }

// Notices returns the notification controller.
func (c *Client) Notices() *notify.Controller { return c.notices }

// Connection returns the connection manager.
func (c *Client) Connection() *conn.Manager { return c.conn }

// Health returns the health monitor.
func (c *Client) Health() *health.Monitor { return c.health }

// API returns the backend API client.
func (c *Client) API() *api.Client { return c.api }

// Init checks the backend, loads the four snapshots, subscribes every
// component to the bus, opens the channel and starts the probe schedule.
// Backend failures are reported as notifications; the health monitor
// takes over from there. Init runs once.
func (c *Client) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}
	if c.initialized {
		c.mu.Unlock()
		return nil
	}
	c.initialized = true
	c.mu.Unlock()

	if err := c.startEventLog(); err != nil {
		c.logger.Warn("event log disabled", "path", c.cfg.Paths.EventLog, "error", err)
	}

	c.views.Attach()
	c.notices.Attach()
	c.health.Attach()

	if err := c.api.HealthCheck(ctx); err != nil {
		c.logger.Warn("backend health check failed", "error", err)
		c.notices.Notify("Backend unreachable: "+err.Error(), notify.Error)
	} else if err := c.LoadSnapshots(ctx); err != nil {
		c.logger.Warn("initial load incomplete", "error", err)
	}

	c.conn.Connect()

	if err := c.health.Start(); err != nil {
		return fmt.Errorf("start health monitor: %w", err)
	}
	return nil
}

// LoadSnapshots fetches config, status, stats and system info in parallel
// and replaces each view that loaded. If any fetch fails an error
// notification is raised once and the joined error returned.
func (c *Client) LoadSnapshots(ctx context.Context) error {
	var (
		cfg    views.ConfigView
		status views.StatusView
		stats  map[string]any
		system map[string]any

		mu   sync.Mutex
		errs []error
	)

	fail := func(what string, err error) {
		mu.Lock()
		errs = append(errs, fmt.Errorf("load %s: %w", what, err))
		mu.Unlock()
	}

	// Fetches are independent: a failure does not cancel the others.
	var g errgroup.Group
	g.Go(func() error {
		v, err := c.api.GetConfig(ctx)
		if err != nil {
			fail("config", err)
			return nil
		}
		cfg = v
		return nil
	})
	g.Go(func() error {
		v, err := c.api.Status(ctx)
		if err != nil {
			fail("status", err)
			return nil
		}
		status = v
		return nil
	})
	g.Go(func() error {
		v, err := c.api.Stats(ctx)
		if err != nil {
			fail("stats", err)
			return nil
		}
		stats = v
		return nil
	})
	g.Go(func() error {
		v, err := c.api.SystemStats(ctx)
		if err != nil {
			fail("system info", err)
			return nil
		}
		system = v
		return nil
	})
	_ = g.Wait()

	if cfg.Fields != nil {
		c.views.ReplaceConfig(cfg)
	}
	if status.State != "" || status.DisplayText != "" {
		c.views.ReplaceStatus(status)
	}
	if stats != nil {
		c.views.ReplaceStats(stats)
	}
	if system != nil {
		c.views.ReplaceSystemInfo(system)
	}

	if len(errs) > 0 {
		c.notices.Notify(LoadFailedMessage, notify.Error)
		return errors.Join(errs...)
	}
	return nil
}

func (c *Client) startEventLog() error {
	if c.cfg.Paths.EventLog == "" {
		return nil
	}

	stream := c.bus.Stream(c.cfg.Dashboard.EventBuffer)
	sink := events.NewLogSink(c.cfg.Paths.EventLog, c.logger)
	ctx, cancel := context.WithCancel(context.Background())
	if err := sink.Start(ctx, stream.C()); err != nil {
		cancel()
		stream.Close()
		return err
	}
	c.sink = sink
	c.sinkStop = cancel
	return nil
}

// Destroy cancels every timer and schedule, closes the channel without
// reconnecting and closes the bus. Views stay readable. Safe to call twice.
func (c *Client) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	c.mu.Unlock()

	if err := c.health.Stop(); err != nil {
		c.logger.Warn("stop health monitor", "error", err)
	}
	c.conn.Destroy()
	c.notices.Close()
	c.views.Detach()
	c.bus.Close()

	// Closing the bus closed the sink's stream; Stop drains what is buffered.
	if c.sink != nil {
		if err := c.sink.Stop(); err != nil {
			c.logger.Warn("close event log", "error", err)
		}
		c.sinkStop()
	}
	if c.prefs != nil {
		if err := c.prefs.Close(); err != nil {
			c.logger.Warn("close preferences", "error", err)
		}
	}
}
