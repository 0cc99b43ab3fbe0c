package wire

import (
	"errors"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/npratt/botctl/internal/events"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		kind    Kind
		known   bool
		wantErr bool
	}{
		{"bot status", `{"type":"bot_status","data":{"status":"running"}}`, KindBotStatus, true, false},
		{"stats", `{"type":"stats_update","data":{"totalParticipations":3}}`, KindStatsUpdate, true, false},
		{"missing data", `{"type":"task_completed"}`, KindTaskCompleted, true, false},
		{"unknown kind", `{"type":"mystery","data":{}}`, Kind("mystery"), false, false},
		{"invalid json", `{"type":`, "", false, true},
		{"array", `[1,2,3]`, "", false, true},
		{"missing type", `{"data":{}}`, "", false, true},
		{"numeric type", `{"type":7,"data":{}}`, "", false, true},
		{"empty type", `{"type":"","data":{}}`, "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.frame))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("expected ErrMalformed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if env.Kind != tt.kind {
				t.Errorf("expected kind %q, got %q", tt.kind, env.Kind)
			}
			if env.Known() != tt.known {
				t.Errorf("expected known=%v, got %v", tt.known, env.Known())
			}
		})
	}
}

func TestEnvelopeChannels(t *testing.T) {
	want := map[Kind]events.Channel{
		KindBotStatus:     events.BotStatus,
		KindStatsUpdate:   events.StatsUpdate,
		KindSystemMetrics: events.SystemInfo,
		KindBrowserStatus: events.BrowserStatus,
		KindTaskCompleted: events.TaskCompleted,
		KindError:         events.BackendError,
		KindNotification:  events.Notification,
	}

	for kind, ch := range want {
		got, ok := Envelope{Kind: kind}.Channel()
		if !ok {
			t.Errorf("%s: expected known kind", kind)
			continue
		}
		if got != ch {
			t.Errorf("%s: expected channel %s, got %s", kind, ch, got)
		}
	}
}

func decodeEvent(t *testing.T, frame string) events.Event {
	t.Helper()
	env, err := Decode([]byte(frame))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ev, err := env.Event()
	if err != nil {
		t.Fatalf("event: %v", err)
	}
	return ev
}

func TestEnvelopeEvent(t *testing.T) {
	t.Run("bot status object", func(t *testing.T) {
		ev := decodeEvent(t, `{"type":"bot_status","data":{"status":"running","status_text":"Running"}}`)
		s, ok := ev.(*events.BotStatusEvent)
		if !ok {
			t.Fatalf("expected *BotStatusEvent, got %T", ev)
		}
		if s.Status != "running" || s.StatusText != "Running" {
			t.Errorf("unexpected status %+v", s)
		}
		if s.Source() != events.SourceBackend {
			t.Errorf("expected backend source, got %q", s.Source())
		}
	})

	t.Run("bot status string", func(t *testing.T) {
		ev := decodeEvent(t, `{"type":"bot_status","data":"idle"}`)
		if s := ev.(*events.BotStatusEvent); s.Status != "idle" {
			t.Errorf("expected idle, got %q", s.Status)
		}
	})

	t.Run("stats keeps numbers as float64", func(t *testing.T) {
		ev := decodeEvent(t, `{"type":"stats_update","data":{"totalParticipations":10,"uptime":42.5}}`)
		s := ev.(*events.StatsUpdateEvent)
		if v, ok := s.Stats["totalParticipations"].(float64); !ok || v != 10 {
			t.Errorf("expected 10, got %v", s.Stats["totalParticipations"])
		}
		if v := s.Stats["uptime"]; v != 42.5 {
			t.Errorf("expected 42.5, got %v", v)
		}
	})

	t.Run("system metrics", func(t *testing.T) {
		ev := decodeEvent(t, `{"type":"system_metrics","data":{"cpuUsage":12.5}}`)
		s := ev.(*events.SystemInfoEvent)
		if s.Channel() != events.SystemInfo {
			t.Errorf("expected %s, got %s", events.SystemInfo, s.Channel())
		}
		if s.Info["cpuUsage"] != 12.5 {
			t.Errorf("expected 12.5, got %v", s.Info["cpuUsage"])
		}
	})

	t.Run("stats payload must be an object", func(t *testing.T) {
		env, _ := Decode([]byte(`{"type":"stats_update","data":[1]}`))
		if _, err := env.Event(); !errors.Is(err, ErrMalformed) {
			t.Errorf("expected ErrMalformed, got %v", err)
		}
	})

	t.Run("task completed with scalar payload", func(t *testing.T) {
		ev := decodeEvent(t, `{"type":"task_completed","data":"tab-3"}`)
		if v := ev.(*events.TaskCompletedEvent).Data["value"]; v != "tab-3" {
			t.Errorf("expected wrapped value, got %v", v)
		}
	})

	t.Run("error with message object", func(t *testing.T) {
		ev := decodeEvent(t, `{"type":"error","data":{"message":"browser crashed"}}`)
		if m := ev.(*events.ErrorEvent).Message; m != "browser crashed" {
			t.Errorf("expected message, got %q", m)
		}
	})

	t.Run("error with string payload", func(t *testing.T) {
		ev := decodeEvent(t, `{"type":"error","data":"plain"}`)
		if m := ev.(*events.ErrorEvent).Message; m != "plain" {
			t.Errorf("expected plain, got %q", m)
		}
	})

	t.Run("notification defaults to info", func(t *testing.T) {
		ev := decodeEvent(t, `{"type":"notification","data":{"message":"hello"}}`)
		n := ev.(*events.NotificationEvent)
		if n.Message != "hello" || n.Type != "info" {
			t.Errorf("unexpected notification %+v", n)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		env, _ := Decode([]byte(`{"type":"mystery"}`))
		if _, err := env.Event(); !errors.Is(err, ErrUnknownKind) {
			t.Errorf("expected ErrUnknownKind, got %v", err)
		}
	})
}

func TestEncode(t *testing.T) {
	t.Run("map payload", func(t *testing.T) {
		frame, err := Encode("control", map[string]any{"action": "start"})
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if got := gjson.GetBytes(frame, "type").String(); got != "control" {
			t.Errorf("expected type control, got %q", got)
		}
		if got := gjson.GetBytes(frame, "data.action").String(); got != "start" {
			t.Errorf("expected action start, got %q", got)
		}
	})

	t.Run("nil payload", func(t *testing.T) {
		frame, err := Encode("ping", nil)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if d := gjson.GetBytes(frame, "data"); d.Type != gjson.Null {
			t.Errorf("expected null data, got %s", d.Raw)
		}
	})

	t.Run("round trips through decode", func(t *testing.T) {
		frame, _ := Encode(string(KindNotification), map[string]string{"message": "hi", "type": "success"})
		ev := decodeEvent(t, string(frame))
		n := ev.(*events.NotificationEvent)
		if n.Message != "hi" || n.Type != "success" {
			t.Errorf("unexpected notification %+v", n)
		}
	})

	t.Run("raw payload", func(t *testing.T) {
		frame, err := EncodeRaw("control", []byte(`{"action":"stop"}`))
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if got := gjson.GetBytes(frame, "data.action").String(); got != "stop" {
			t.Errorf("expected stop, got %q", got)
		}
	})

	t.Run("raw payload must be valid JSON", func(t *testing.T) {
		if _, err := EncodeRaw("control", []byte(`{`)); !errors.Is(err, ErrMalformed) {
			t.Errorf("expected ErrMalformed, got %v", err)
		}
	})
}
