package views

import (
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/npratt/botctl/internal/events"
)

// View names carried by view:changed events.
const (
	ViewConfig = "config"
	ViewStatus = "status"
	ViewStats  = "stats"
	ViewSystem = "system"
)

// StatusView is the bot's run state as last reported.
type StatusView struct {
	State       string `json:"status"`
	DisplayText string `json:"status_text,omitempty"`
}

// Text returns the display text, falling back to the raw state.
func (s StatusView) Text() string {
	if s.DisplayText != "" {
		return s.DisplayText
	}
	return s.State
}

// Reconciler owns the config, status, stats and system views. Every
// mutation publishes a view:changed event after the lock is released.
type Reconciler struct {
	config  ConfigView
	status  StatusView
	stats   map[string]any
	system  map[string]any
	dirty   bool
	bus     *events.Bus
	handles []events.Handle
	logger  *slog.Logger
	mu      sync.RWMutex
}

// New creates a Reconciler with empty views that publishes on bus.
func New(bus *events.Bus, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		config: NewConfigView(),
		stats:  make(map[string]any),
		system: make(map[string]any),
		bus:    bus,
		logger: logger.With("component", "views"),
	}
}

// Attach subscribes the reconciler to backend pushes on the bus.
func (r *Reconciler) Attach() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handles = append(r.handles,
		r.bus.Subscribe(events.BotStatus, func(e events.Event) error {
			ev, ok := e.(*events.BotStatusEvent)
			if !ok {
				return fmt.Errorf("unexpected event %T on %s", e, e.Channel())
			}
			r.ReplaceStatus(StatusView{State: ev.Status, DisplayText: ev.StatusText})
			return nil
		}),
		r.bus.Subscribe(events.StatsUpdate, func(e events.Event) error {
			ev, ok := e.(*events.StatsUpdateEvent)
			if !ok {
				return fmt.Errorf("unexpected event %T on %s", e, e.Channel())
			}
			r.MergeStats(ev.Stats)
			return nil
		}),
		r.bus.Subscribe(events.SystemInfo, func(e events.Event) error {
			ev, ok := e.(*events.SystemInfoEvent)
			if !ok {
				return fmt.Errorf("unexpected event %T on %s", e, e.Channel())
			}
			r.MergeSystemInfo(ev.Info)
			return nil
		}),
	)
}

// Detach removes the subscriptions made by Attach.
func (r *Reconciler) Detach() {
	r.mu.Lock()
	handles := r.handles
	r.handles = nil
	r.mu.Unlock()

	for _, h := range handles {
		r.bus.Unsubscribe(h)
	}
}

// Config returns a copy of the configuration view.
func (r *Reconciler) Config() ConfigView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.Clone()
}

// Status returns the status view.
func (r *Reconciler) Status() StatusView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Stats returns a copy of the statistics view.
func (r *Reconciler) Stats() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.stats)
}

// SystemInfo returns a copy of the system telemetry view.
func (r *Reconciler) SystemInfo() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.system)
}

// Dirty reports whether the configuration has unsaved local edits.
func (r *Reconciler) Dirty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dirty
}

// ReplaceConfig swaps in a full configuration and clears the dirty flag.
// Proxy entries beyond the new tab count are dropped.
func (r *Reconciler) ReplaceConfig(cfg ConfigView) {
	next := cfg.Clone()
	if n, ok := next.NumTabs(); ok {
		pruneProxies(next.TabProxies, n)
	}

	r.mu.Lock()
	r.config = next
	r.dirty = false
	r.mu.Unlock()

	r.changed(ViewConfig)
}

// ReplaceStatus swaps in a full status.
func (r *Reconciler) ReplaceStatus(s StatusView) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()

	r.changed(ViewStatus)
}

// ReplaceStats swaps in a full statistics snapshot.
func (r *Reconciler) ReplaceStats(full map[string]any) {
	r.mu.Lock()
	r.stats = maps.Clone(full)
	if r.stats == nil {
		r.stats = make(map[string]any)
	}
	r.mu.Unlock()

	r.changed(ViewStats)
}

// ReplaceSystemInfo swaps in a full telemetry snapshot.
func (r *Reconciler) ReplaceSystemInfo(full map[string]any) {
	r.mu.Lock()
	r.system = maps.Clone(full)
	if r.system == nil {
		r.system = make(map[string]any)
	}
	r.mu.Unlock()

	r.changed(ViewSystem)
}

// MergeStats overwrites the keys present in partial and keeps the rest.
func (r *Reconciler) MergeStats(partial map[string]any) {
	r.mu.Lock()
	maps.Copy(r.stats, partial)
	r.mu.Unlock()

	r.changed(ViewStats)
}

// MergeSystemInfo overwrites the keys present in partial and keeps the rest.
func (r *Reconciler) MergeSystemInfo(partial map[string]any) {
	r.mu.Lock()
	maps.Copy(r.system, partial)
	r.mu.Unlock()

	r.changed(ViewSystem)
}

// SetConfigField records a local edit and marks the config dirty.
// Changing numTabs prunes proxy entries beyond the new count in the same call.
func (r *Reconciler) SetConfigField(key string, value any) {
	if key == KeyTabProxies {
		proxies, ok := value.(map[int]string)
		if !ok {
			r.logger.Warn("ignoring tabProxies edit with unexpected type", "type", fmt.Sprintf("%T", value))
			return
		}
		r.mu.Lock()
		r.config.TabProxies = maps.Clone(proxies)
		if r.config.TabProxies == nil {
			r.config.TabProxies = make(map[int]string)
		}
		if n, ok := r.config.NumTabs(); ok {
			pruneProxies(r.config.TabProxies, n)
		}
		r.dirty = true
		r.mu.Unlock()

		r.changed(ViewConfig)
		return
	}

	r.mu.Lock()
	r.config.Fields[key] = value
	if key == KeyNumTabs {
		if n, ok := ToFloat(value); ok {
			pruneProxies(r.config.TabProxies, int(n))
		}
	}
	r.dirty = true
	r.mu.Unlock()

	r.changed(ViewConfig)
}

// SetTabProxy assigns addr to tab and marks the config dirty.
func (r *Reconciler) SetTabProxy(tab int, addr string) {
	r.mu.Lock()
	r.config.TabProxies[tab] = addr
	r.dirty = true
	r.mu.Unlock()

	r.changed(ViewConfig)
}

// RemoveTabProxy clears tab's proxy and marks the config dirty.
// It reports whether an entry existed.
func (r *Reconciler) RemoveTabProxy(tab int) bool {
	r.mu.Lock()
	_, existed := r.config.TabProxies[tab]
	delete(r.config.TabProxies, tab)
	r.dirty = true
	r.mu.Unlock()

	r.changed(ViewConfig)
	return existed
}

// MarkPersisted clears the dirty flag after a successful save.
func (r *Reconciler) MarkPersisted() {
	r.mu.Lock()
	r.dirty = false
	r.mu.Unlock()

	r.changed(ViewConfig)
}

// SuccessRate returns successful/total participations as a percentage.
// Both the backend's snake_case keys and camelCase keys are read.
// ok is false when there have been no participations.
func (r *Reconciler) SuccessRate() (rate float64, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := r.statNumber("total_participations", "totalParticipations")
	success := r.statNumber("successful_participations", "successfulParticipations")
	if total <= 0 {
		return 0, false
	}
	return success / total * 100, true
}

// statNumber returns the first of keys present in stats as a number.
// Callers hold r.mu.
func (r *Reconciler) statNumber(keys ...string) float64 {
	for _, k := range keys {
		if n, ok := ToFloat(r.stats[k]); ok {
			return n
		}
	}
	return 0
}

func (r *Reconciler) changed(view string) {
	r.bus.Publish(&events.ViewChangedEvent{
		BaseEvent: events.NewClientEvent(events.ViewChanged),
		View:      view,
	})
}

// pruneProxies removes entries outside [1, n].
func pruneProxies(proxies map[int]string, n int) {
	for tab := range proxies {
		if tab < 1 || tab > n {
			delete(proxies, tab)
		}
	}
}
