package realtime

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Room holds state and a broadcaster for one room.
type Room[T any, E any] struct {
	ID    string
	State T
	hub   *Broadcaster[E]
}

// RoomStore manages rooms, their broadcasters and their timing loops.
type RoomStore[T any, E any] struct {
	clock clockwork.Clock
	mu    sync.RWMutex
	rooms map[string]*Room[T, E]
	loops map[string]*loop
}

type loop struct {
	cancel context.CancelFunc
	wake   chan struct{}
	done   chan struct{}
}

// NewRoomStore creates an empty room store. A nil clock means wall time.
func NewRoomStore[T any, E any](clock clockwork.Clock) *RoomStore[T, E] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RoomStore[T, E]{
		clock: clock,
		rooms: make(map[string]*Room[T, E]),
		loops: make(map[string]*loop),
	}
}

// Clock returns the clock loops are driven by.
func (s *RoomStore[T, E]) Clock() clockwork.Clock {
	return s.clock
}

// Create adds a room with the given id and state, and a new Broadcaster.
func (s *RoomStore[T, E]) Create(id string, state T) *Room[T, E] {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &Room[T, E]{ID: id, State: state, hub: NewBroadcaster[E]()}
	s.rooms[id] = r
	return r
}

// Get returns the room by ID if it exists.
func (s *RoomStore[T, E]) Get(id string) (*Room[T, E], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	return r, ok
}

// IDs returns the sorted ids of all rooms.
func (s *RoomStore[T, E]) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Remove stops the room's loop and forgets the room.
func (s *RoomStore[T, E]) Remove(id string) {
	s.StopLoop(id)
	s.mu.Lock()
	delete(s.rooms, id)
	s.mu.Unlock()
}

// Publish notifies subscribers of the room's broadcaster.
func (s *RoomStore[T, E]) Publish(id string, event E) {
	hub, ok := s.hub(id)
	if !ok {
		return
	}
	hub.Publish(event)
}

// Broadcaster returns the broadcaster for the room, or false if the room is unknown.
func (s *RoomStore[T, E]) Broadcaster(id string) (*Broadcaster[E], bool) {
	return s.hub(id)
}

func (s *RoomStore[T, E]) hub(id string) (*Broadcaster[E], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, false
	}
	if r.hub == nil {
		r.hub = NewBroadcaster[E]()
	}
	return r.hub, true
}

// TickFunc is called by RunLoop to determine the next wake time and events to publish.
// Events are published even when stop is true; stop then ends the loop.
type TickFunc[T any, E any] func(state T, now time.Time) (next time.Time, events []E, stop bool)

// RunLoop starts a timing loop for the room and returns a channel closed when it
// exits. If a loop already exists for id, it is woken instead of started again
// and its done channel is returned; a loop that has just decided to stop then
// ticks once more.
func (s *RoomStore[T, E]) RunLoop(id string, getState func() T, tick TickFunc[T, E]) <-chan struct{} {
	s.mu.Lock()
	if l, ok := s.loops[id]; ok {
		select {
		case l.wake <- struct{}{}:
		default:
		}
		s.mu.Unlock()
		return l.done
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &loop{
		cancel: cancel,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	s.loops[id] = l
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			// A newer loop may already own the id after StopLoop.
			if s.loops[id] == l {
				delete(s.loops, id)
			}
			s.mu.Unlock()
			cancel()
			close(l.done)
		}()

		for {
			if ctx.Err() != nil {
				return
			}
			next, events, stop := tick(getState(), s.clock.Now())
			for _, e := range events {
				s.Publish(id, e)
			}
			if stop {
				if s.retire(id, l) {
					return
				}
				continue
			}
			wait := next.Sub(s.clock.Now())
			if wait < 0 {
				wait = 0
			}
			timer := s.clock.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.Chan():
			case <-l.wake:
				timer.Stop()
			}
		}
	}()
	return l.done
}

// retire unregisters l and reports true, unless a wake arrived since its last
// tick, in which case the loop stays registered and must tick again.
func (s *RoomStore[T, E]) retire(id string, l *loop) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loops[id] != l {
		return true
	}
	select {
	case <-l.wake:
		return false
	default:
	}
	delete(s.loops, id)
	return true
}

// Running reports whether a loop is registered for id.
func (s *RoomStore[T, E]) Running(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.loops[id]
	return ok
}

// StopLoop cancels the room's loop. A tick already in progress completes; no
// further tick starts.
func (s *RoomStore[T, E]) StopLoop(id string) {
	s.mu.Lock()
	l, ok := s.loops[id]
	if ok {
		delete(s.loops, id)
	}
	s.mu.Unlock()
	if ok {
		l.cancel()
	}
}

// Wake unblocks the room's loop so it recomputes immediately.
func (s *RoomStore[T, E]) Wake(id string) {
	s.mu.RLock()
	l, ok := s.loops[id]
	s.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
