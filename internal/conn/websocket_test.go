package conn

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/tidwall/gjson"

	"github.com/npratt/botctl/internal/events"
	"github.com/npratt/botctl/internal/testutil"
)

func TestWebsocketRoundTrip(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	bus := events.NewBus(nil)
	defer bus.Close()

	clock := clockwork.NewFakeClock()
	m := New(backend.WSURL(), WebsocketDialer{}, bus, WithClock(clock))
	defer m.Destroy()

	rec := &recorder{}
	rec.listen(bus, events.ConnectionOpened, events.ConnectionClosed, events.ConnectionError, events.BotStatus, events.StatsUpdate)

	m.Connect()
	if !backend.WaitForConnection(2 * time.Second) {
		t.Fatal("expected backend to accept connection")
	}
	waitFor(t, func() bool { return m.State() == Connected }, "expected Connected")

	if err := backend.Push("bot_status", map[string]any{"status": "running", "status_text": "Running"}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := backend.PushRaw([]byte("not json")); err != nil {
		t.Fatalf("push raw: %v", err)
	}
	if err := backend.Push("stats_update", map[string]any{"successful": 3}); err != nil {
		t.Fatalf("push: %v", err)
	}
	waitFor(t, func() bool { return rec.count(events.StatsUpdate) == 1 }, "expected stats update")

	got := rec.channels()
	want := []events.Channel{events.ConnectionOpened, events.BotStatus, events.StatsUpdate}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	if err := m.Send("ping", map[string]any{"n": 1}); err != nil {
		t.Fatalf("send: %v", err)
	}
	testutil.Eventually(t, 2*time.Second, func() bool { return len(backend.Received()) == 1 }, "message at backend")
	frame := backend.Received()[0]
	if gjson.GetBytes(frame, "type").String() != "ping" || gjson.GetBytes(frame, "data.n").Int() != 1 {
		t.Errorf("unexpected frame %s", frame)
	}
}

func TestWebsocketCleanCloseReconnects(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	bus := events.NewBus(nil)
	defer bus.Close()

	clock := clockwork.NewFakeClock()
	m := New(backend.WSURL(), WebsocketDialer{}, bus, WithClock(clock))
	defer m.Destroy()

	rec := &recorder{}
	rec.listen(bus, events.ConnectionClosed, events.ConnectionError)

	m.Connect()
	if !backend.WaitForConnection(2 * time.Second) {
		t.Fatal("expected connection")
	}
	waitFor(t, func() bool { return m.State() == Connected }, "expected Connected")

	backend.CloseConnections(websocket.CloseGoingAway, "restart")
	waitFor(t, func() bool { return rec.count(events.ConnectionClosed) == 1 }, "expected close")

	if rec.count(events.ConnectionError) != 0 {
		t.Errorf("expected no error for a clean close, got %d", rec.count(events.ConnectionError))
	}
	if !m.ReconnectPending() {
		t.Fatal("expected reconnect scheduled")
	}

	clock.Advance(DefaultReconnectDelay)
	if !backend.WaitForConnection(2 * time.Second) {
		t.Fatal("expected reconnection after delay")
	}
	waitFor(t, func() bool { return m.State() == Connected }, "expected Connected again")
	if backend.Accepted() != 2 {
		t.Errorf("expected 2 accepted connections, got %d", backend.Accepted())
	}
}

func TestWebsocketDialRejected(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	backend.RejectWebsocket(true)
	bus := events.NewBus(nil)
	defer bus.Close()

	clock := clockwork.NewFakeClock()
	m := New(backend.WSURL(), WebsocketDialer{}, bus, WithClock(clock))
	defer m.Destroy()

	rec := &recorder{}
	rec.listen(bus, events.ConnectionError, events.ConnectionClosed)

	m.Connect()
	waitFor(t, func() bool { return rec.count(events.ConnectionClosed) == 1 }, "expected close after failed dial")

	got := rec.channels()
	if got[0] != events.ConnectionError || got[1] != events.ConnectionClosed {
		t.Errorf("expected error then close, got %v", got)
	}
	if m.State() != Disconnected {
		t.Errorf("expected Disconnected, got %s", m.State())
	}
}
