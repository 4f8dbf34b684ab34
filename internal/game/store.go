package game

import (
	"crypto/rand"
	"encoding/base32"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"blockduel/pkg/realtime"
)

// Store holds matches and delegates to realtime.RoomStore for broadcast and timing.
type Store struct {
	r        *realtime.RoomStore[*Match, Event]
	settings Settings
	logger   *zap.Logger
}

// MatchInfo is a row of the match list.
type MatchInfo struct {
	ID        string    `json:"id"`
	Players   int       `json:"players"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewStore creates an in-memory match store. A nil clock means wall time.
func NewStore(settings Settings, clock clockwork.Clock, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		r:        realtime.NewRoomStore[*Match, Event](clock),
		settings: settings,
		logger:   logger,
	}
}

// CreateMatch initializes a match with its own piece factory and registers its broadcaster.
func (s *Store) CreateMatch() *Match {
	seed, err := NewSeed()
	if err != nil {
		s.logger.Warn("falling back to time seed", zap.Error(err))
		seed = time.Now().UnixNano()
	}
	return s.CreateMatchWithFactory(NewPieceFactory(seed))
}

// CreateMatchWithFactory is CreateMatch with an explicit piece source.
func (s *Store) CreateMatchWithFactory(factory *PieceFactory) *Match {
	id := newID()
	m := NewMatch(id, s.settings, factory, s.logger, func(ev Event) {
		s.r.Publish(id, ev)
	})
	m.CreatedAt = s.r.Clock().Now().UTC()
	s.r.Create(id, m)
	s.logger.Info("match created", zap.String("match_id", id))
	return m
}

// GetMatch returns a match by ID if it exists.
func (s *Store) GetMatch(id string) (*Match, bool) {
	room, ok := s.r.Get(id)
	if !ok {
		return nil, false
	}
	return room.State, true
}

// ListMatches returns all matches with their roster size, oldest first.
func (s *Store) ListMatches() []MatchInfo {
	ids := s.r.IDs()
	out := make([]MatchInfo, 0, len(ids))
	for _, id := range ids {
		m, ok := s.GetMatch(id)
		if !ok {
			continue
		}
		out = append(out, MatchInfo{ID: id, Players: m.PlayerCount(), Status: m.Status(), CreatedAt: m.CreatedAt})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// RemoveMatch stops a match's loop and forgets it.
func (s *Store) RemoveMatch(id string) {
	s.r.Remove(id)
	s.logger.Info("match removed", zap.String("match_id", id))
}

// ReleaseIfIdle removes the match when nobody is seated and no stream is
// subscribed. A released match is closed first, so a session still holding
// it can no longer seat a player.
func (s *Store) ReleaseIfIdle(id string) bool {
	m, ok := s.GetMatch(id)
	if !ok {
		return false
	}
	if hub, ok := s.r.Broadcaster(id); ok && hub.Subscribers() > 0 {
		return false
	}
	if !m.Close() {
		return false
	}
	s.RemoveMatch(id)
	return true
}

// ReleaseWhenIdle calls ReleaseIfIdle once the idle grace period has passed,
// or right away when there is none.
func (s *Store) ReleaseWhenIdle(id string) {
	if s.settings.IdleGrace <= 0 {
		s.ReleaseIfIdle(id)
		return
	}
	s.r.Clock().AfterFunc(s.settings.IdleGrace, func() {
		if s.ReleaseIfIdle(id) {
			s.logger.Debug("idle match released", zap.String("match_id", id))
		}
	})
}

// Subscribe registers a stream subscriber for a match. The returned func
// unsubscribes and closes the channel; it stays valid after the match is removed.
func (s *Store) Subscribe(id string) (<-chan Event, func(), bool) {
	hub, ok := s.r.Broadcaster(id)
	if !ok {
		return nil, nil, false
	}
	ch := hub.Subscribe()
	return ch, func() { hub.Unsubscribe(ch) }, true
}

// EnsureLoop starts the match loop if the match needs timed transitions, or
// wakes the running one so the latest command is observed at once. It returns
// the loop's done channel, or nil when no loop is needed.
func (s *Store) EnsureLoop(id string) <-chan struct{} {
	m, ok := s.GetMatch(id)
	if !ok {
		return nil
	}
	switch m.Status() {
	case StatusWarmingUp, StatusPlaying:
	default:
		s.r.Wake(id)
		return nil
	}
	getState := func() *Match {
		room, ok := s.r.Get(id)
		if !ok {
			return nil
		}
		return room.State
	}
	tick := func(state *Match, now time.Time) (time.Time, []Event, bool) {
		if state == nil {
			return time.Time{}, nil, true
		}
		return state.Advance(now)
	}
	return s.r.RunLoop(id, getState, tick)
}

// StopLoop cancels the match loop if one is running.
func (s *Store) StopLoop(id string) {
	s.r.StopLoop(id)
}

// LoopRunning reports whether a loop is registered for the match.
func (s *Store) LoopRunning(id string) bool {
	return s.r.Running(id)
}

func newID() string {
	// 10 bytes -> 16 chars of base32, short and url-safe.
	buf := make([]byte, 10)
	_, _ = rand.Read(buf)
	encoder := base32.StdEncoding.WithPadding(base32.NoPadding)
	return strings.ToLower(encoder.EncodeToString(buf))
}
