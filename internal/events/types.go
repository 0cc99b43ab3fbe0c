// Package events defines the channel taxonomy and event payloads that flow
// between botctl components, plus the bus that carries them.
package events

import "time"

// Channel identifies a named topic on the bus.
type Channel string

// Connection lifecycle channels.
const (
	ConnectionOpened Channel = "connection:opened"
	ConnectionClosed Channel = "connection:closed"
	ConnectionError  Channel = "connection:error"
)

// Backend push channels. Each recognised envelope kind maps to exactly one.
const (
	BotStatus     Channel = "bot:status"
	StatsUpdate   Channel = "stats:update"
	SystemInfo    Channel = "system:info"
	BrowserStatus Channel = "browser:status"
	TaskCompleted Channel = "task:completed"
	BackendError  Channel = "error"
	Notification  Channel = "notification"
)

// Local channels.
const (
	ViewChanged     Channel = "view:changed"
	NoticeAdded     Channel = "notice:added"
	NoticeRemoved   Channel = "notice:removed"
	HealthAlert     Channel = "health:alert"
	HealthRecovered Channel = "health:recovered"
)

// AllChannels lists every channel in a stable order.
var AllChannels = []Channel{
	ConnectionOpened, ConnectionClosed, ConnectionError,
	BotStatus, StatsUpdate, SystemInfo, BrowserStatus, TaskCompleted,
	BackendError, Notification,
	ViewChanged, NoticeAdded, NoticeRemoved, HealthAlert, HealthRecovered,
}

// Source constants identify the origin of events.
const (
	SourceBackend = "backend"
	SourceClient  = "botctl"
)

// Event is the base interface for all events on the bus.
type Event interface {
	Channel() Channel
	Timestamp() time.Time
	Source() string
}

// BaseEvent provides the common fields for all events.
type BaseEvent struct {
	Chan Channel   `json:"channel"`
	Time time.Time `json:"timestamp"`
	Src  string    `json:"source"`
}

// Channel returns the channel the event is published on.
func (e BaseEvent) Channel() Channel {
	return e.Chan
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.Time
}

// Source returns the origin of the event.
func (e BaseEvent) Source() string {
	return e.Src
}

// ConnectionOpenedEvent is published when the duplex channel opens.
type ConnectionOpenedEvent struct {
	BaseEvent
	URL string `json:"url"`
}

// ConnectionClosedEvent is published whenever the channel goes away,
// whether the backend closed it, it failed, or the operator disconnected.
type ConnectionClosedEvent struct {
	BaseEvent
	Code   int    `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
	Manual bool   `json:"manual,omitempty"`
}

// ConnectionErrorEvent is published when the channel reports a failure.
type ConnectionErrorEvent struct {
	BaseEvent
	Message string `json:"message"`
}

// BotStatusEvent carries a full status replacement.
type BotStatusEvent struct {
	BaseEvent
	Status     string `json:"status"`
	StatusText string `json:"status_text,omitempty"`
}

// StatsUpdateEvent carries a partial statistics mapping.
type StatsUpdateEvent struct {
	BaseEvent
	Stats map[string]any `json:"stats"`
}

// SystemInfoEvent carries a partial system telemetry mapping.
type SystemInfoEvent struct {
	BaseEvent
	Info map[string]any `json:"info"`
}

// BrowserStatusEvent carries the backend's browser pool report.
type BrowserStatusEvent struct {
	BaseEvent
	Data map[string]any `json:"data"`
}

// TaskCompletedEvent is pushed when the bot finishes a unit of work.
type TaskCompletedEvent struct {
	BaseEvent
	Data map[string]any `json:"data"`
}

// ErrorEvent is an error pushed by the backend.
type ErrorEvent struct {
	BaseEvent
	Message string `json:"message"`
}

// NotificationEvent is a backend request to surface a message to the operator.
type NotificationEvent struct {
	BaseEvent
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ViewChangedEvent is published after any view mutation.
type ViewChangedEvent struct {
	BaseEvent
	View string `json:"view"`
}

// NoticeAddedEvent is published when a notification record becomes visible.
type NoticeAddedEvent struct {
	BaseEvent
	ID         string `json:"id"`
	Message    string `json:"message"`
	Category   string `json:"category"`
	Persistent bool   `json:"persistent,omitempty"`
}

// NoticeRemovedEvent is published once when a notification record is removed.
type NoticeRemovedEvent struct {
	BaseEvent
	ID string `json:"id"`
}

// HealthAlertEvent is published when the probe failure budget is exhausted.
type HealthAlertEvent struct {
	BaseEvent
	Failures int `json:"failures"`
}

// HealthRecoveredEvent is published when the backend comes back after an alert.
type HealthRecoveredEvent struct {
	BaseEvent
}

// NewEvent creates a BaseEvent with the given channel and source.
func NewEvent(ch Channel, source string) BaseEvent {
	return BaseEvent{
		Chan: ch,
		Time: time.Now(),
		Src:  source,
	}
}

// NewBackendEvent creates a BaseEvent with the backend as the source.
func NewBackendEvent(ch Channel) BaseEvent {
	return NewEvent(ch, SourceBackend)
}

// NewClientEvent creates a BaseEvent with botctl as the source.
func NewClientEvent(ch Channel) BaseEvent {
	return NewEvent(ch, SourceClient)
}
