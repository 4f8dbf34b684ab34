package realtime

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// waitForTimer blocks until the loop has armed its next timer.
func waitForTimer(t *testing.T, clock *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("no timer armed: %v", err)
	}
}

func TestNewRoomStore(t *testing.T) {
	s := NewRoomStore[string, string](nil)
	if s == nil {
		t.Fatal("NewRoomStore returned nil")
	}
	if s.Clock() == nil {
		t.Error("default clock should be the real clock")
	}
}

func TestRoomStore_Create_Get(t *testing.T) {
	s := NewRoomStore[string, string](nil)
	s.Create("room1", "state1")
	room, ok := s.Get("room1")
	if !ok {
		t.Fatal("Get returned false for existing room")
	}
	if room.ID != "room1" {
		t.Errorf("room ID %q, want room1", room.ID)
	}
	if room.State != "state1" {
		t.Errorf("room State %q, want state1", room.State)
	}

	_, ok = s.Get("nonexistent")
	if ok {
		t.Error("Get should return false for missing ID")
	}
}

func TestRoomStore_IDsAndRemove(t *testing.T) {
	s := NewRoomStore[string, string](nil)
	s.Create("b", "")
	s.Create("a", "")
	ids := s.IDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("IDs = %v, want [a b]", ids)
	}
	s.Remove("a")
	if _, ok := s.Get("a"); ok {
		t.Error("room a should be removed")
	}
}

func TestRoomStore_Publish(t *testing.T) {
	s := NewRoomStore[string, string](nil)
	s.Create("r1", "x")
	hub, ok := s.Broadcaster("r1")
	if !ok {
		t.Fatal("Broadcaster returned false for existing room")
	}
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	s.Publish("r1", "event1")
	got := <-ch
	if got != "event1" {
		t.Errorf("got %q, want event1", got)
	}

	if _, ok := s.Broadcaster("unknown"); ok {
		t.Error("Broadcaster should return false for unknown room")
	}
	s.Publish("unknown", "ignored")
}

func TestRoomStore_Wake_NoPanicWhenNoLoop(t *testing.T) {
	s := NewRoomStore[string, string](nil)
	s.Wake("nonexistent")
	s.StopLoop("nonexistent")
}

func TestRoomStore_RunLoop_TicksOnClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	s := NewRoomStore[string, int](clock)
	s.Create("r", "state")
	hub, _ := s.Broadcaster("r")
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	var ticks atomic.Int32
	tick := func(state string, now time.Time) (time.Time, []int, bool) {
		n := int(ticks.Add(1))
		if n == 3 {
			return time.Time{}, []int{n}, true
		}
		return now.Add(time.Second), []int{n}, false
	}
	done := s.RunLoop("r", func() string { return "state" }, tick)

	for want := 1; want <= 3; want++ {
		select {
		case got := <-sub:
			if got != want {
				t.Fatalf("event %d, want %d", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for tick %d", want)
		}
		if want < 3 {
			waitForTimer(t, clock)
			clock.Advance(time.Second)
		}
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
	if s.Running("r") {
		t.Error("loop should be unregistered after stop")
	}
}

func TestRoomStore_RunLoop_Idempotent(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Now())
	s := NewRoomStore[string, int](clock)
	s.Create("r", "")
	woke := make(chan struct{}, 4)
	tick := func(string, time.Time) (time.Time, []int, bool) {
		woke <- struct{}{}
		return clock.Now().Add(time.Hour), nil, false
	}
	done1 := s.RunLoop("r", func() string { return "" }, tick)
	defer s.StopLoop("r")
	<-woke
	waitForTimer(t, clock)

	done2 := s.RunLoop("r", func() string { return "" }, tick)
	if done1 != done2 {
		t.Error("second RunLoop should return the running loop")
	}
	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("second RunLoop should wake the running loop")
	}
}

func TestRoomStore_RunLoop_StopUnregisters(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Now())
	s := NewRoomStore[string, int](clock)
	s.Create("r", "")
	done := s.RunLoop("r", func() string { return "" }, func(string, time.Time) (time.Time, []int, bool) {
		return time.Time{}, nil, true
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
	if s.Running("r") {
		t.Error("stopped loop should be unregistered")
	}

	again := s.RunLoop("r", func() string { return "" }, func(string, time.Time) (time.Time, []int, bool) {
		return time.Time{}, nil, true
	})
	if again == done {
		t.Error("RunLoop after a stop should start a new loop")
	}
	<-again
}

func TestRoomStore_StopLoop_NoFurtherTicks(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Now())
	s := NewRoomStore[string, int](clock)
	s.Create("r", "")
	var ticks atomic.Int32
	done := s.RunLoop("r", func() string { return "" }, func(string, time.Time) (time.Time, []int, bool) {
		ticks.Add(1)
		return clock.Now().Add(time.Second), nil, false
	})
	waitForTimer(t, clock)
	s.StopLoop("r")
	<-done
	clock.Advance(10 * time.Second)
	if got := ticks.Load(); got != 1 {
		t.Errorf("ticks %d after stop, want 1", got)
	}
}

func TestRoomStore_Wake_RecomputesImmediately(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Now())
	s := NewRoomStore[string, int](clock)
	s.Create("r", "")
	woke := make(chan struct{}, 4)
	s.RunLoop("r", func() string { return "" }, func(string, time.Time) (time.Time, []int, bool) {
		woke <- struct{}{}
		return clock.Now().Add(time.Hour), nil, false
	})
	defer s.StopLoop("r")
	<-woke
	waitForTimer(t, clock)
	s.Wake("r")
	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("Wake did not trigger a tick")
	}
}
