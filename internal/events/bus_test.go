package events

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func statusEvent(status string) *BotStatusEvent {
	return &BotStatusEvent{BaseEvent: NewBackendEvent(BotStatus), Status: status}
}

func TestBusPublishSubscribe(t *testing.T) {
	t.Run("listener receives event", func(t *testing.T) {
		bus := NewBus(nil)
		defer bus.Close()

		var got Event
		bus.Subscribe(BotStatus, func(e Event) error {
			got = e
			return nil
		})

		bus.Publish(statusEvent("running"))

		ev, ok := got.(*BotStatusEvent)
		if !ok {
			t.Fatalf("expected *BotStatusEvent, got %T", got)
		}
		if ev.Status != "running" {
			t.Errorf("expected status running, got %q", ev.Status)
		}
	})

	t.Run("listeners only see their channel", func(t *testing.T) {
		bus := NewBus(nil)
		defer bus.Close()

		calls := 0
		bus.Subscribe(StatsUpdate, func(Event) error {
			calls++
			return nil
		})

		bus.Publish(statusEvent("running"))

		if calls != 0 {
			t.Errorf("expected 0 calls, got %d", calls)
		}
	})

	t.Run("publish with no subscribers is a no-op", func(t *testing.T) {
		bus := NewBus(nil)
		defer bus.Close()

		bus.Publish(statusEvent("idle"))
		bus.Publish(nil)
	})
}

func TestBusListenerIsolation(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	var order []int
	bus.Subscribe(BotStatus, func(Event) error {
		order = append(order, 1)
		return nil
	})
	bus.Subscribe(BotStatus, func(Event) error {
		order = append(order, 2)
		return errors.New("listener two failed")
	})
	bus.Subscribe(BotStatus, func(Event) error {
		order = append(order, 3)
		return nil
	})

	bus.Publish(statusEvent("running"))

	if len(order) != 3 {
		t.Fatalf("expected 3 listener calls, got %d", len(order))
	}
	for i, v := range []int{1, 2, 3} {
		if order[i] != v {
			t.Errorf("call %d: expected listener %d, got %d", i, v, order[i])
		}
	}
}

func TestBusListenerPanic(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	reached := false
	bus.Subscribe(BotStatus, func(Event) error {
		panic("boom")
	})
	bus.Subscribe(BotStatus, func(Event) error {
		reached = true
		return nil
	})

	bus.Publish(statusEvent("running"))

	if !reached {
		t.Error("expected listener after panicking listener to run")
	}
}

func TestBusUnsubscribe(t *testing.T) {
	t.Run("unsubscribed listener is not called", func(t *testing.T) {
		bus := NewBus(nil)
		defer bus.Close()

		calls := 0
		h := bus.Subscribe(BotStatus, func(Event) error {
			calls++
			return nil
		})
		bus.Unsubscribe(h)
		bus.Publish(statusEvent("running"))

		if calls != 0 {
			t.Errorf("expected 0 calls, got %d", calls)
		}
		if n := bus.ListenerCount(BotStatus); n != 0 {
			t.Errorf("expected 0 listeners, got %d", n)
		}
	})

	t.Run("double unsubscribe is a no-op", func(t *testing.T) {
		bus := NewBus(nil)
		defer bus.Close()

		h1 := bus.Subscribe(BotStatus, func(Event) error { return nil })
		bus.Subscribe(BotStatus, func(Event) error { return nil })

		bus.Unsubscribe(h1)
		bus.Unsubscribe(h1)
		bus.Unsubscribe(Handle{})

		if n := bus.ListenerCount(BotStatus); n != 1 {
			t.Errorf("expected 1 listener, got %d", n)
		}
	})

	t.Run("unsubscribe during publish keeps current delivery", func(t *testing.T) {
		bus := NewBus(nil)
		defer bus.Close()

		var second Handle
		secondCalls := 0
		bus.Subscribe(BotStatus, func(Event) error {
			bus.Unsubscribe(second)
			return nil
		})
		second = bus.Subscribe(BotStatus, func(Event) error {
			secondCalls++
			return nil
		})

		bus.Publish(statusEvent("a"))
		bus.Publish(statusEvent("b"))

		if secondCalls != 1 {
			t.Errorf("expected second listener called once, got %d", secondCalls)
		}
	})
}

func TestBusReentrantPublish(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	var views []string
	bus.Subscribe(ViewChanged, func(e Event) error {
		views = append(views, e.(*ViewChangedEvent).View)
		return nil
	})
	bus.Subscribe(BotStatus, func(Event) error {
		bus.Publish(&ViewChangedEvent{BaseEvent: NewClientEvent(ViewChanged), View: "status"})
		return nil
	})

	bus.Publish(statusEvent("running"))

	if len(views) != 1 || views[0] != "status" {
		t.Errorf("expected [status], got %v", views)
	}
}

func TestBusClose(t *testing.T) {
	t.Run("publish after close is a no-op", func(t *testing.T) {
		bus := NewBus(nil)

		calls := 0
		bus.Subscribe(BotStatus, func(Event) error {
			calls++
			return nil
		})
		bus.Close()
		bus.Publish(statusEvent("running"))

		if calls != 0 {
			t.Errorf("expected 0 calls after close, got %d", calls)
		}
	})

	t.Run("subscribe after close returns zero handle", func(t *testing.T) {
		bus := NewBus(nil)
		bus.Close()

		h := bus.Subscribe(BotStatus, func(Event) error { return nil })
		if h != (Handle{}) {
			t.Errorf("expected zero handle, got %+v", h)
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		bus := NewBus(nil)
		bus.Close()
		bus.Close()
	})
}

func TestBusConcurrentPublish(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	var mu sync.Mutex
	count := 0
	bus.Subscribe(StatsUpdate, func(Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish(&StatsUpdateEvent{BaseEvent: NewBackendEvent(StatsUpdate)})
			}
		}()
	}
	wg.Wait()

	if count != 1000 {
		t.Errorf("expected 1000 deliveries, got %d", count)
	}
}

func TestStream(t *testing.T) {
	t.Run("receives subscribed channels", func(t *testing.T) {
		bus := NewBus(nil)
		defer bus.Close()

		s := bus.Stream(10, BotStatus)
		bus.Publish(statusEvent("running"))
		bus.Publish(&StatsUpdateEvent{BaseEvent: NewBackendEvent(StatsUpdate)})

		select {
		case e := <-s.C():
			if e.Channel() != BotStatus {
				t.Errorf("expected %s, got %s", BotStatus, e.Channel())
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event")
		}

		select {
		case e := <-s.C():
			t.Errorf("unexpected event on %s", e.Channel())
		default:
		}
	})

	t.Run("no channels means all channels", func(t *testing.T) {
		bus := NewBus(nil)
		defer bus.Close()

		s := bus.Stream(len(AllChannels))
		for _, ch := range AllChannels {
			bus.Publish(&ViewChangedEvent{BaseEvent: NewClientEvent(ch)})
		}
		if got := len(s.C()); got != len(AllChannels) {
			t.Errorf("expected %d buffered events, got %d", len(AllChannels), got)
		}
	})

	t.Run("full buffer drops events", func(t *testing.T) {
		bus := NewBus(nil)
		defer bus.Close()

		s := bus.Stream(2, BotStatus)
		for i := 0; i < 5; i++ {
			bus.Publish(statusEvent("running"))
		}
		if got := len(s.C()); got != 2 {
			t.Errorf("expected 2 buffered events, got %d", got)
		}
	})

	t.Run("close unsubscribes and closes channel", func(t *testing.T) {
		bus := NewBus(nil)
		defer bus.Close()

		s := bus.Stream(10, BotStatus)
		s.Close()
		s.Close()

		if _, ok := <-s.C(); ok {
			t.Error("expected closed channel")
		}
		if n := bus.ListenerCount(BotStatus); n != 0 {
			t.Errorf("expected 0 listeners, got %d", n)
		}
		bus.Publish(statusEvent("running"))
	})

	t.Run("bus close closes streams", func(t *testing.T) {
		bus := NewBus(nil)
		s := bus.Stream(10)
		bus.Close()

		select {
		case _, ok := <-s.C():
			if ok {
				t.Error("expected closed channel")
			}
		case <-time.After(time.Second):
			t.Fatal("stream not closed")
		}
		s.Close()
	})

	t.Run("stream after close is closed", func(t *testing.T) {
		bus := NewBus(nil)
		bus.Close()

		s := bus.Stream(10)
		if _, ok := <-s.C(); ok {
			t.Error("expected closed channel")
		}
	})
}
