package tui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/npratt/botctl/internal/conn"
	"github.com/npratt/botctl/internal/events"
)

func TestTerminalSize_ReturnsInts(t *testing.T) {
	// May return 0,0 if not a terminal
	width, height := terminalSize()
	if width < 0 || height < 0 {
		t.Errorf("terminalSize returned negative values: %d, %d", width, height)
	}
}

func TestRunSimple_ExitsOnChannelClose(t *testing.T) {
	eventChan := make(chan events.Event)
	tui := New(eventChan, WithOutput(&bytes.Buffer{}))

	done := make(chan error, 1)
	go func() {
		done <- tui.runSimple()
	}()

	close(eventChan)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("runSimple returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("runSimple did not exit after channel close")
	}
}

func TestRunSimple_FormatsEvents(t *testing.T) {
	eventChan := make(chan events.Event, 3)
	var out bytes.Buffer
	tui := New(eventChan,
		WithOutput(&out),
		WithConnection(fakeConn{state: conn.Connecting}),
	)

	eventChan <- &events.ConnectionOpenedEvent{
		BaseEvent: events.NewClientEvent(events.ConnectionOpened),
		URL:       "ws://localhost:8000/ws",
	}
	eventChan <- &events.ViewChangedEvent{BaseEvent: events.NewClientEvent(events.ViewChanged)}
	eventChan <- &events.NoticeAddedEvent{
		BaseEvent: events.NewClientEvent(events.NoticeAdded),
		Message:   "Bot started",
		Category:  "success",
	}
	close(eventChan)

	if err := tui.runSimple(); err != nil {
		t.Fatalf("runSimple: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), out.String())
	}
	if lines[0] != "connection connecting" {
		t.Errorf("expected connection state first, got %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], " connected: ws://localhost:8000/ws") {
		t.Errorf("unexpected line %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], " [success] Bot started") {
		t.Errorf("unexpected line %q", lines[2])
	}
}

func TestRun_SimpleMode(t *testing.T) {
	eventChan := make(chan events.Event)
	close(eventChan)

	tui := New(eventChan, WithSimple(true), WithOutput(&bytes.Buffer{}))
	if err := tui.Run(); err != nil {
		t.Errorf("Run returned error: %v", err)
	}
}
