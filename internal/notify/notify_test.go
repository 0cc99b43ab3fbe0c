package notify

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/npratt/botctl/internal/events"
)

type recordingAudio struct {
	mu    sync.Mutex
	tones []Tone
	err   error
}

func (a *recordingAudio) Play(t Tone) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tones = append(a.tones, t)
	return a.err
}

func (a *recordingAudio) played() []Tone {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Tone(nil), a.tones...)
}

type memorySoundStore struct {
	stored *bool
	saves  int
	err    error
}

func (m *memorySoundStore) LoadSound(_ context.Context, def bool) bool {
	if m.stored == nil {
		return def
	}
	return *m.stored
}

func (m *memorySoundStore) SaveSound(_ context.Context, on bool) error {
	m.saves++
	m.stored = &on
	return m.err
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func newController(t *testing.T, opts ...Option) (*Controller, *events.Bus, *clockwork.FakeClock) {
	t.Helper()
	bus := events.NewBus(nil)
	clock := clockwork.NewFakeClock()
	c := New(bus, append([]Option{WithClock(clock)}, opts...)...)
	t.Cleanup(func() {
		c.Close()
		bus.Close()
	})
	return c, bus, clock
}

func TestNotifyExpiry(t *testing.T) {
	c, _, clock := newController(t)

	rec := c.Notify("saved", Success)
	if rec.ID == "" {
		t.Fatal("expected record id")
	}
	if rec.CreatedAt != clock.Now() {
		t.Errorf("expected creation time from clock")
	}

	clock.Advance(4900 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	if n := len(c.Active()); n != 1 {
		t.Fatalf("expected record visible before window ends, got %d", n)
	}

	clock.Advance(101 * time.Millisecond)
	waitFor(t, func() bool { return len(c.Active()) == 0 }, "expected record removed after 5s")
}

func TestDismiss(t *testing.T) {
	c, bus, clock := newController(t)

	var removed []string
	var mu sync.Mutex
	bus.Subscribe(events.NoticeRemoved, func(e events.Event) error {
		mu.Lock()
		removed = append(removed, e.(*events.NoticeRemovedEvent).ID)
		mu.Unlock()
		return nil
	})

	rec := c.Notify("hello", Info)
	if !c.Dismiss(rec.ID) {
		t.Error("expected first dismiss to remove")
	}
	if len(c.Active()) != 0 {
		t.Error("expected record gone immediately")
	}
	if c.Dismiss(rec.ID) {
		t.Error("expected second dismiss to be a no-op")
	}

	// The expiry timer was cancelled; advancing must not emit a second removal.
	clock.Advance(10 * time.Second)
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(removed) != 1 || removed[0] != rec.ID {
		t.Errorf("expected exactly one removal for %s, got %v", rec.ID, removed)
	}
}

func TestNotifyPersistent(t *testing.T) {
	c, _, clock := newController(t)

	rec := c.NotifyPersistent("connection to backend lost", Emergency)
	clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)

	active := c.Active()
	if len(active) != 1 || !active[0].Persistent {
		t.Fatalf("expected persistent record to remain, got %+v", active)
	}
	if !c.Dismiss(rec.ID) {
		t.Error("expected persistent record to be dismissable")
	}
}

func TestActiveOrder(t *testing.T) {
	c, _, _ := newController(t)

	c.Notify("first", Info)
	c.Notify("second", Warning)
	c.Notify("third", Error)

	active := c.Active()
	if len(active) != 3 {
		t.Fatalf("expected 3 records, got %d", len(active))
	}
	for i, want := range []string{"first", "second", "third"} {
		if active[i].Message != want {
			t.Errorf("record %d: expected %q, got %q", i, want, active[i].Message)
		}
	}

	c.DismissAll()
	if n := len(c.Active()); n != 0 {
		t.Errorf("expected no records after DismissAll, got %d", n)
	}
}

func TestNoticeAddedEvent(t *testing.T) {
	c, bus, _ := newController(t)

	var got *events.NoticeAddedEvent
	bus.Subscribe(events.NoticeAdded, func(e events.Event) error {
		got = e.(*events.NoticeAddedEvent)
		return nil
	})

	rec := c.Notify("hi", Warning)
	if got == nil {
		t.Fatal("expected notice:added event")
	}
	if got.ID != rec.ID || got.Category != "warning" || got.Message != "hi" {
		t.Errorf("unexpected event %+v", got)
	}
}

func TestPlayCue(t *testing.T) {
	t.Run("plays category tone", func(t *testing.T) {
		audio := &recordingAudio{}
		c, _, _ := newController(t, WithAudio(audio))

		c.Notify("ok", Success)
		c.Notify("bad", Error)

		tones := audio.played()
		if len(tones) != 2 {
			t.Fatalf("expected 2 tones, got %d", len(tones))
		}
		if tones[0].Frequency != 800 || tones[0].Duration != 200*time.Millisecond {
			t.Errorf("unexpected success tone %+v", tones[0])
		}
		if tones[1].Frequency != 400 || tones[1].Duration != 500*time.Millisecond {
			t.Errorf("unexpected error tone %+v", tones[1])
		}
	})

	t.Run("silent when disabled but visuals unaffected", func(t *testing.T) {
		audio := &recordingAudio{}
		c, _, _ := newController(t, WithAudio(audio), WithSoundDefault(false))

		c.Notify("quiet", Warning)

		if n := len(audio.played()); n != 0 {
			t.Errorf("expected no tones, got %d", n)
		}
		if n := len(c.Active()); n != 1 {
			t.Errorf("expected record shown, got %d", n)
		}
	})

	t.Run("audio failure is swallowed", func(t *testing.T) {
		audio := &recordingAudio{err: errors.New("no device")}
		c, _, _ := newController(t, WithAudio(audio))

		c.Notify("ok", Success)
		if n := len(c.Active()); n != 1 {
			t.Errorf("expected record shown, got %d", n)
		}
	})
}

func TestSoundPreference(t *testing.T) {
	t.Run("read once at construction", func(t *testing.T) {
		off := false
		store := &memorySoundStore{stored: &off}
		c, _, _ := newController(t, WithSoundStore(store))

		if c.SoundEnabled() {
			t.Error("expected stored preference to be used")
		}
	})

	t.Run("toggle persists", func(t *testing.T) {
		store := &memorySoundStore{}
		c, _, _ := newController(t, WithSoundStore(store))

		on, err := c.ToggleSound()
		if err != nil {
			t.Fatalf("ToggleSound: %v", err)
		}
		if on {
			t.Error("expected sound off after toggle from default on")
		}
		if store.saves != 1 || store.stored == nil || *store.stored {
			t.Errorf("expected false persisted, got %+v", store)
		}
	})

	t.Run("save failure still changes preference", func(t *testing.T) {
		store := &memorySoundStore{err: errors.New("disk full")}
		c, _, _ := newController(t, WithSoundStore(store))

		if err := c.SetSoundEnabled(false); err == nil {
			t.Error("expected error from store")
		}
		if c.SoundEnabled() {
			t.Error("expected in-memory preference to change")
		}
	})
}

func TestAttach(t *testing.T) {
	c, bus, _ := newController(t)
	c.Attach()

	bus.Publish(&events.NotificationEvent{
		BaseEvent: events.NewBackendEvent(events.Notification),
		Message:   "bot started",
		Type:      "success",
	})
	bus.Publish(&events.ErrorEvent{
		BaseEvent: events.NewBackendEvent(events.BackendError),
		Message:   "tab crashed",
	})

	active := c.Active()
	if len(active) != 2 {
		t.Fatalf("expected 2 records, got %d", len(active))
	}
	if active[0].Category != Success || active[1].Category != Error {
		t.Errorf("unexpected categories %s, %s", active[0].Category, active[1].Category)
	}
}

func TestClose(t *testing.T) {
	c, bus, clock := newController(t)
	c.Attach()
	c.Notify("pending", Info)

	c.Close()
	c.Close()

	if n := len(c.Active()); n != 0 {
		t.Errorf("expected no records after close, got %d", n)
	}
	c.Notify("ignored", Info)
	bus.Publish(&events.ErrorEvent{BaseEvent: events.NewBackendEvent(events.BackendError), Message: "x"})
	if n := len(c.Active()); n != 0 {
		t.Errorf("expected notifications ignored after close, got %d", n)
	}

	clock.Advance(time.Minute)
}

func TestParseCategory(t *testing.T) {
	for in, want := range map[string]Category{
		"success":   Success,
		"error":     Error,
		"warning":   Warning,
		"emergency": Emergency,
		"info":      Info,
		"":          Info,
		"shouting":  Info,
	} {
		if got := ParseCategory(in); got != want {
			t.Errorf("ParseCategory(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestBell(t *testing.T) {
	var buf bytes.Buffer
	b := NewBell(&buf)

	if err := b.Play(Tones[Success]); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if buf.String() != "\a" {
		t.Errorf("expected one bell, got %q", buf.String())
	}

	buf.Reset()
	_ = b.Play(Tones[Emergency])
	if buf.String() != "\a\a" {
		t.Errorf("expected two bells for emergency, got %q", buf.String())
	}

	for _, tt := range []struct {
		d    time.Duration
		want int
	}{
		{0, 1},
		{100 * time.Millisecond, 1},
		{500 * time.Millisecond, 1},
		{700 * time.Millisecond, 2},
		{1000 * time.Millisecond, 2},
	} {
		if n := Rings(Tone{Duration: tt.d}); n != tt.want {
			t.Errorf("Rings(%v) = %d, want %d", tt.d, n, tt.want)
		}
	}
}
