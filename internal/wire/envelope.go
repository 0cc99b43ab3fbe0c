// Package wire decodes and encodes the JSON envelopes exchanged with the
// backend over the duplex channel. Every frame is one object of the form
// {"type": <kind>, "data": <payload>}.
package wire

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/npratt/botctl/internal/events"
)

// Kind tags an envelope.
type Kind string

// Recognised inbound kinds.
const (
	KindBotStatus     Kind = "bot_status"
	KindStatsUpdate   Kind = "stats_update"
	KindSystemMetrics Kind = "system_metrics"
	KindBrowserStatus Kind = "browser_status"
	KindTaskCompleted Kind = "task_completed"
	KindError         Kind = "error"
	KindNotification  Kind = "notification"
)

// Sentinel errors.
var (
	ErrMalformed   = errors.New("malformed envelope")
	ErrUnknownKind = errors.New("unknown envelope kind")
)

// kindChannels maps each recognised kind to the bus channel it feeds.
var kindChannels = map[Kind]events.Channel{
	KindBotStatus:     events.BotStatus,
	KindStatsUpdate:   events.StatsUpdate,
	KindSystemMetrics: events.SystemInfo,
	KindBrowserStatus: events.BrowserStatus,
	KindTaskCompleted: events.TaskCompleted,
	KindError:         events.BackendError,
	KindNotification:  events.Notification,
}

// Envelope is one decoded frame. Data holds the raw payload JSON.
type Envelope struct {
	Kind Kind
	Data gjson.Result
}

// Known reports whether the envelope kind is recognised.
func (e Envelope) Known() bool {
	_, ok := kindChannels[e.Kind]
	return ok
}

// Channel returns the bus channel for the envelope kind.
func (e Envelope) Channel() (events.Channel, bool) {
	ch, ok := kindChannels[e.Kind]
	return ch, ok
}

// Decode parses a frame. It fails with ErrMalformed when the frame is not
// a JSON object carrying a string "type". Unknown kinds decode fine;
// callers check Known.
func Decode(frame []byte) (Envelope, error) {
	if !gjson.ValidBytes(frame) {
		return Envelope{}, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}

	root := gjson.ParseBytes(frame)
	if !root.IsObject() {
		return Envelope{}, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	kind := root.Get("type")
	if kind.Type != gjson.String || kind.Str == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	return Envelope{Kind: Kind(kind.Str), Data: root.Get("data")}, nil
}

// Event converts the envelope into the typed event published on the bus.
func (e Envelope) Event() (events.Event, error) {
	ch, ok := e.Channel()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	base := events.NewBackendEvent(ch)

	switch e.Kind {
	case KindBotStatus:
		if e.Data.Type == gjson.String {
			return &events.BotStatusEvent{BaseEvent: base, Status: e.Data.Str}, nil
		}
		if !e.Data.IsObject() {
			return nil, fmt.Errorf("%w: %s payload is not an object", ErrMalformed, e.Kind)
		}
		return &events.BotStatusEvent{
			BaseEvent:  base,
			Status:     e.Data.Get("status").String(),
			StatusText: e.Data.Get("status_text").String(),
		}, nil

	case KindStatsUpdate:
		m, err := e.object()
		if err != nil {
			return nil, err
		}
		return &events.StatsUpdateEvent{BaseEvent: base, Stats: m}, nil

	case KindSystemMetrics:
		m, err := e.object()
		if err != nil {
			return nil, err
		}
		return &events.SystemInfoEvent{BaseEvent: base, Info: m}, nil

	case KindBrowserStatus:
		return &events.BrowserStatusEvent{BaseEvent: base, Data: e.loose()}, nil

	case KindTaskCompleted:
		return &events.TaskCompletedEvent{BaseEvent: base, Data: e.loose()}, nil

	case KindError:
		return &events.ErrorEvent{BaseEvent: base, Message: e.message()}, nil

	case KindNotification:
		category := e.Data.Get("type").String()
		if category == "" {
			category = "info"
		}
		return &events.NotificationEvent{
			BaseEvent: base,
			Message:   e.message(),
			Type:      category,
		}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
}

// object returns the payload as a map, failing unless it is a JSON object.
func (e Envelope) object() (map[string]any, error) {
	if !e.Data.IsObject() {
		return nil, fmt.Errorf("%w: %s payload is not an object", ErrMalformed, e.Kind)
	}
	m, _ := e.Data.Value().(map[string]any)
	return m, nil
}

// loose returns an object payload as-is and wraps anything else under "value".
func (e Envelope) loose() map[string]any {
	if e.Data.IsObject() {
		m, _ := e.Data.Value().(map[string]any)
		return m
	}
	if !e.Data.Exists() {
		return map[string]any{}
	}
	return map[string]any{"value": e.Data.Value()}
}

// message extracts a human-readable message from a string or {message} payload.
func (e Envelope) message() string {
	if e.Data.Type == gjson.String {
		return e.Data.Str
	}
	if msg := e.Data.Get("message"); msg.Exists() {
		return msg.String()
	}
	return e.Data.Raw
}

// Encode builds an outbound frame for kind with payload as "data".
// A nil payload produces "data": null.
func Encode(kind string, payload any) ([]byte, error) {
	frame, err := sjson.SetBytes([]byte(`{}`), "type", kind)
	if err != nil {
		return nil, fmt.Errorf("encode type: %w", err)
	}

	frame, err = sjson.SetBytes(frame, "data", payload)
	if err != nil {
		return nil, fmt.Errorf("encode data: %w", err)
	}
	return frame, nil
}

// EncodeRaw builds an outbound frame whose payload is already JSON.
func EncodeRaw(kind string, data []byte) ([]byte, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: payload is not valid JSON", ErrMalformed)
	}

	frame, err := sjson.SetBytes([]byte(`{}`), "type", kind)
	if err != nil {
		return nil, fmt.Errorf("encode type: %w", err)
	}

	frame, err = sjson.SetRawBytes(frame, "data", data)
	if err != nil {
		return nil, fmt.Errorf("encode data: %w", err)
	}
	return frame, nil
}
