package events

import (
	"encoding/json"
	"log/slog"
)

// eventEnvelope is used for initial JSON parsing to determine the channel.
type eventEnvelope struct {
	Channel Channel `json:"channel"`
}

// ParseEvent parses an event log line into a typed Event.
// Returns nil with no error for unknown channels (for forward compatibility).
func ParseEvent(line []byte) (Event, error) {
	// First pass: determine the channel
	var envelope eventEnvelope
	if err := json.Unmarshal(line, &envelope); err != nil {
		return nil, err
	}

	var ev Event
	switch envelope.Channel {
	case ConnectionOpened:
		ev = &ConnectionOpenedEvent{}
	case ConnectionClosed:
		ev = &ConnectionClosedEvent{}
	case ConnectionError:
		ev = &ConnectionErrorEvent{}
	case BotStatus:
		ev = &BotStatusEvent{}
	case StatsUpdate:
		ev = &StatsUpdateEvent{}
	case SystemInfo:
		ev = &SystemInfoEvent{}
	case BrowserStatus:
		ev = &BrowserStatusEvent{}
	case TaskCompleted:
		ev = &TaskCompletedEvent{}
	case BackendError:
		ev = &ErrorEvent{}
	case Notification:
		ev = &NotificationEvent{}
	case ViewChanged:
		ev = &ViewChangedEvent{}
	case NoticeAdded:
		ev = &NoticeAddedEvent{}
	case NoticeRemoved:
		ev = &NoticeRemovedEvent{}
	case HealthAlert:
		ev = &HealthAlertEvent{}
	case HealthRecovered:
		ev = &HealthRecoveredEvent{}
	default:
		slog.Debug("unknown event channel", "channel", envelope.Channel)
		return nil, nil
	}

	// Second pass: unmarshal into the concrete type
	if err := json.Unmarshal(line, ev); err != nil {
		return nil, err
	}
	return ev, nil
}
