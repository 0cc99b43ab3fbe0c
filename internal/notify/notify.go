// Package notify manages transient operator notifications and their audio cues.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/npratt/botctl/internal/events"
)

// DefaultDisplayWindow is how long a notification stays visible.
const DefaultDisplayWindow = 5 * time.Second

// Category classifies a notification.
type Category string

// Categories.
const (
	Success   Category = "success"
	Error     Category = "error"
	Warning   Category = "warning"
	Info      Category = "info"
	Emergency Category = "emergency"
)

// ParseCategory maps a backend-supplied category to a Category.
// Unrecognised values become Info.
func ParseCategory(s string) Category {
	switch c := Category(s); c {
	case Success, Error, Warning, Info, Emergency:
		return c
	}
	return Info
}

// Record is one visible notification.
type Record struct {
	ID         string
	Message    string
	Category   Category
	CreatedAt  time.Time
	Persistent bool
}

// SoundStore persists the sound preference.
type SoundStore interface {
	LoadSound(ctx context.Context, def bool) bool
	SaveSound(ctx context.Context, on bool) error
}

// Controller owns the set of visible notifications.
type Controller struct {
	records []Record
	timers  map[string]clockwork.Timer
	sound   bool
	closed  bool
	handles []events.Handle

	bus    *events.Bus
	clock  clockwork.Clock
	audio  AudioOutput
	store  SoundStore
	window time.Duration
	logger *slog.Logger

	mu sync.Mutex
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used for expiry.
func WithClock(c clockwork.Clock) Option {
	return func(n *Controller) { n.clock = c }
}

// WithAudio sets the audio output.
func WithAudio(a AudioOutput) Option {
	return func(n *Controller) { n.audio = a }
}

// WithSoundStore sets where the sound preference is persisted.
func WithSoundStore(s SoundStore) Option {
	return func(n *Controller) { n.store = s }
}

// WithSoundDefault sets the sound preference used when none is stored.
func WithSoundDefault(on bool) Option {
	return func(n *Controller) { n.sound = on }
}

// WithDisplayWindow overrides how long notifications stay visible.
func WithDisplayWindow(d time.Duration) Option {
	return func(n *Controller) {
		if d > 0 {
			n.window = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Controller) { n.logger = l }
}

// New creates a Controller publishing on bus. The sound preference is read
// from the store once, here.
func New(bus *events.Bus, opts ...Option) *Controller {
	c := &Controller{
		timers: make(map[string]clockwork.Timer),
		sound:  true,
		bus:    bus,
		clock:  clockwork.NewRealClock(),
		audio:  Discard{},
		window: DefaultDisplayWindow,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "notify")

	if c.store != nil {
		c.sound = c.store.LoadSound(context.Background(), c.sound)
	}
	return c
}

// Attach subscribes to backend notification and error pushes.
func (c *Controller) Attach() {
	notification := c.bus.Subscribe(events.Notification, func(e events.Event) error {
		ev, ok := e.(*events.NotificationEvent)
		if !ok {
			return fmt.Errorf("unexpected event %T on %s", e, e.Channel())
		}
		c.Notify(ev.Message, ParseCategory(ev.Type))
		return nil
	})
	backendErr := c.bus.Subscribe(events.BackendError, func(e events.Event) error {
		ev, ok := e.(*events.ErrorEvent)
		if !ok {
			return fmt.Errorf("unexpected event %T on %s", e, e.Channel())
		}
		c.Notify(ev.Message, Error)
		return nil
	})

	c.mu.Lock()
	c.handles = append(c.handles, notification, backendErr)
	c.mu.Unlock()
}

// Notify shows message for the display window and plays the category cue.
func (c *Controller) Notify(message string, category Category) Record {
	return c.add(message, category, false)
}

// NotifyPersistent shows message until it is dismissed.
func (c *Controller) NotifyPersistent(message string, category Category) Record {
	return c.add(message, category, true)
}

func (c *Controller) add(message string, category Category, persistent bool) Record {
	rec := Record{
		ID:         uuid.NewString(),
		Message:    message,
		Category:   category,
		CreatedAt:  c.clock.Now(),
		Persistent: persistent,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return rec
	}
	c.records = append(c.records, rec)
	if !persistent {
		id := rec.ID
		c.timers[id] = c.clock.AfterFunc(c.window, func() { c.remove(id) })
	}
	c.mu.Unlock()

	c.logger.Debug("notification added", "id", rec.ID, "category", category, "message", message)
	c.bus.Publish(&events.NoticeAddedEvent{
		BaseEvent:  events.NewClientEvent(events.NoticeAdded),
		ID:         rec.ID,
		Message:    message,
		Category:   string(category),
		Persistent: persistent,
	})
	c.PlayCue(category)

	return rec
}

// Dismiss removes the notification immediately. It reports whether the
// record was still visible; dismissing twice is harmless.
func (c *Controller) Dismiss(id string) bool {
	return c.remove(id)
}

// DismissAll removes every visible notification.
func (c *Controller) DismissAll() {
	for _, rec := range c.Active() {
		c.remove(rec.ID)
	}
}

// remove is shared by the expiry timer and Dismiss.
func (c *Controller) remove(id string) bool {
	c.mu.Lock()
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	idx := slices.IndexFunc(c.records, func(r Record) bool { return r.ID == id })
	if idx < 0 {
		c.mu.Unlock()
		return false
	}
	c.records = slices.Delete(c.records, idx, idx+1)
	c.mu.Unlock()

	c.bus.Publish(&events.NoticeRemovedEvent{
		BaseEvent: events.NewClientEvent(events.NoticeRemoved),
		ID:        id,
	})
	return true
}

// Active returns the visible notifications, oldest first.
func (c *Controller) Active() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.records)
}

// PlayCue plays the category's tone when sound is enabled.
func (c *Controller) PlayCue(category Category) {
	if !c.SoundEnabled() {
		return
	}
	tone, ok := Tones[category]
	if !ok {
		return
	}
	if err := c.audio.Play(tone); err != nil {
		c.logger.Debug("audio cue failed", "category", category, "error", err)
	}
}

// SoundEnabled reports whether audio cues are played.
func (c *Controller) SoundEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sound
}

// SetSoundEnabled changes and persists the sound preference. The in-memory
// preference changes even when persisting fails.
func (c *Controller) SetSoundEnabled(on bool) error {
	c.mu.Lock()
	c.sound = on
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	if err := c.store.SaveSound(context.Background(), on); err != nil {
		return fmt.Errorf("save sound preference: %w", err)
	}
	return nil
}

// ToggleSound flips the sound preference and returns the new value.
func (c *Controller) ToggleSound() (bool, error) {
	on := !c.SoundEnabled()
	return on, c.SetSoundEnabled(on)
}

// Close cancels pending expiries, drops visible notifications and detaches
// from the bus. Later notifications are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.records = nil
	handles := c.handles
	c.handles = nil
	c.mu.Unlock()

	for _, h := range handles {
		c.bus.Unsubscribe(h)
	}
}
