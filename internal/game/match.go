package game

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"blockduel/pkg/realtime"
)

// Status is the match lifecycle phase.
type Status string

const (
	StatusWaitingPlayers Status = "waiting_players"
	StatusWarmingUp      Status = "warming_up"
	StatusStart          Status = "start"
	StatusPlaying        Status = "playing"
	StatusGameOver       Status = "game_over"
)

const (
	// RequiredPlayers is both the roster size that starts a match and the cap.
	RequiredPlayers = 2

	// CountdownFrom is the first countdown value broadcast during warm-up.
	CountdownFrom = 3

	// DefaultQueueLength is how many pieces are generated per match.
	DefaultQueueLength = 1000

	maxNameRunes = 20
	previewSize  = 3
)

var (
	ErrMatchFull       = errors.New("match is full")
	ErrMatchInProgress = errors.New("match already in progress")
	ErrNotFinished     = errors.New("match not finished")
	ErrMatchClosed     = errors.New("match closed")
)

// Command is a move requested by a player.
type Command string

const (
	CommandLeft   Command = "left"
	CommandRight  Command = "right"
	CommandRotate Command = "rotate"
	CommandDown   Command = "down"
	CommandDrop   Command = "drop"
)

// ParseCommand maps a wire direction to a Command.
func ParseCommand(s string) (Command, bool) {
	switch c := Command(strings.ToLower(strings.TrimSpace(s))); c {
	case CommandLeft, CommandRight, CommandRotate, CommandDown, CommandDrop:
		return c, true
	}
	return "", false
}

// Settings tunes timing and queue size for a match.
type Settings struct {
	QueueLength   int
	Cadence       realtime.Cadence
	CountdownStep time.Duration

	// IdleGrace is how long an empty, unwatched match is kept before removal.
	IdleGrace time.Duration
}

// DefaultSettings matches the classic pacing: 1000 pieces, 1s countdown steps,
// gravity from 1s down to 100ms.
func DefaultSettings() Settings {
	return Settings{
		QueueLength:   DefaultQueueLength,
		Cadence:       realtime.DefaultCadence,
		CountdownStep: time.Second,
		IdleGrace:     30 * time.Second,
	}
}

// Player is a roster entry. Score is a multiple of LinePoints, or Lost.
type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// BoardState is the transmitted view of one player's board.
type BoardState struct {
	Cells  [][]string `json:"cells"`
	Cursor int        `json:"cursor"`
	Next   []Draft    `json:"next"`
	Score  int        `json:"score"`
}

// GameState is the snapshot sent to clients. Roster and boards are copies;
// PieceQueue shares the match's read-only shape matrices. Snapshots published
// for moves and gravity ticks leave PieceQueue out, since boards carry their
// next pieces.
type GameState struct {
	MatchID    string                `json:"matchId"`
	Status     Status                `json:"status"`
	Players    []Player              `json:"players"`
	PieceQueue []Draft               `json:"pieceQueue,omitempty"`
	Countdown  int                   `json:"countdown,omitempty"`
	Boards     map[string]BoardState `json:"boards,omitempty"`
	Reason     string                `json:"reason,omitempty"`
}

// Match coordinates one two-player session: roster, lifecycle, boards and the
// shared piece queue. All mutations happen under one lock, so a loop tick
// always observes a settled state.
type Match struct {
	mu        sync.Mutex
	ID        string
	CreatedAt time.Time

	settings Settings
	factory  *PieceFactory
	logger   *zap.Logger
	notify   func(Event)

	status        Status
	players       []*Player
	boards        map[string]*Board
	queue         PieceQueue
	countdown     int
	countdownNext int
	nextStepAt    time.Time
	playingSince  time.Time
	reason        string
	closed        bool
}

// NewMatch creates a match waiting for players. notify receives every
// mutation-driven event; it may be nil.
func NewMatch(id string, settings Settings, factory *PieceFactory, logger *zap.Logger, notify func(Event)) *Match {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notify == nil {
		notify = func(Event) {}
	}
	if settings.CountdownStep <= 0 {
		settings.CountdownStep = time.Second
	}
	return &Match{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		settings:  settings,
		factory:   factory,
		logger:    logger.With(zap.String("match_id", id)),
		notify:    notify,
		status:    StatusWaitingPlayers,
	}
}

// Status returns the current lifecycle phase.
func (m *Match) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// PlayerCount returns the roster size.
func (m *Match) PlayerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.players)
}

// HasPlayer reports whether id is on the roster.
func (m *Match) HasPlayer(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playerLocked(id) != nil
}

// AddPlayer joins a player. A blank id is replaced by a generated one and a
// blank name by "Player N". Joining twice with the same id returns the
// existing player. The roster reaching RequiredPlayers starts the warm-up.
func (m *Match) AddPlayer(id, name string) (Player, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Player{}, ErrMatchClosed
	}
	if p := m.playerLocked(id); p != nil {
		return *p, nil
	}
	if len(m.players) >= RequiredPlayers {
		return Player{}, ErrMatchFull
	}
	if m.status != StatusWaitingPlayers {
		return Player{}, ErrMatchInProgress
	}

	player := &Player{ID: id, Name: normalizeName(name, len(m.players)+1)}
	m.players = append(m.players, player)
	m.logger.Info("player joined",
		zap.String("player_id", player.ID),
		zap.String("name", player.Name),
		zap.Int("players", len(m.players)),
	)
	if len(m.players) == RequiredPlayers {
		m.beginWarmUpLocked()
	}
	m.emitLocked()
	return *player, nil
}

// RemovePlayer drops a player. Falling below RequiredPlayers resets the match
// to WaitingPlayers and discards boards, queue and cursors.
func (m *Match) RemovePlayer(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := -1
	for i, p := range m.players {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	m.players = append(m.players[:idx], m.players[idx+1:]...)
	delete(m.boards, id)
	m.logger.Info("player left", zap.String("player_id", id), zap.Int("players", len(m.players)))
	if len(m.players) < RequiredPlayers && m.status != StatusWaitingPlayers {
		m.resetLocked()
	}
	m.emitLocked()
	return true
}

// Close marks an empty match as finished for good; later joins fail with
// ErrMatchClosed. It reports false while anyone is seated.
func (m *Match) Close() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.players) > 0 {
		return false
	}
	if !m.closed {
		m.closed = true
		m.logger.Info("match closed")
	}
	return true
}

// Restart starts a rematch from GameOver with the same roster.
func (m *Match) Restart() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusGameOver || len(m.players) < RequiredPlayers {
		return ErrNotFinished
	}
	m.beginWarmUpLocked()
	m.logger.Info("match restarted")
	m.emitLocked()
	return nil
}

// Move applies a player command to their board. Commands outside Playing, for
// unknown players, or that do not fit are dropped and report false.
func (m *Match) Move(id string, cmd Command) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusPlaying {
		return false
	}
	player := m.playerLocked(id)
	board := m.boards[id]
	if player == nil || board == nil || board.ToppedOut() {
		return false
	}

	var changed bool
	var err error
	switch cmd {
	case CommandLeft:
		changed = board.MoveLeft()
	case CommandRight:
		changed = board.MoveRight()
	case CommandRotate:
		changed = board.Rotate()
	case CommandDown:
		changed = board.SoftDrop()
	case CommandDrop:
		var res TickResult
		res, err = board.Drop()
		changed = res.Locked
	}
	player.Score = board.Score()
	if err != nil {
		m.failLocked(err)
		m.emitLocked()
		return true
	}
	if !changed {
		return false
	}
	m.checkLossLocked()
	if m.status == StatusPlaying {
		m.notify(stateEvent(m.frameLocked()))
	} else {
		m.emitLocked()
	}
	return true
}

// NotifyGameOver records a loss reported by the player's own client.
func (m *Match) NotifyGameOver(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusPlaying {
		return false
	}
	player := m.playerLocked(id)
	if player == nil {
		return false
	}
	if board := m.boards[id]; board != nil {
		board.MarkLost()
	}
	player.Score = Lost
	m.status = StatusGameOver
	m.logger.Info("player reported game over", zap.String("player_id", id))
	m.emitLocked()
	return true
}

// Advance runs every timed transition due at now: countdown steps, the
// Start/Playing transition and gravity ticks. It returns when it next needs
// to run, the events to publish and whether the loop should stop.
func (m *Match) Advance(now time.Time) (time.Time, []Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.status {
	case StatusWarmingUp:
		return m.warmUpLocked(now)
	case StatusPlaying:
		return m.playLocked(now)
	default:
		return time.Time{}, nil, true
	}
}

func (m *Match) warmUpLocked(now time.Time) (time.Time, []Event, bool) {
	if !m.nextStepAt.IsZero() && now.Before(m.nextStepAt) {
		return m.nextStepAt, nil, false
	}
	at := m.nextStepAt
	if at.IsZero() {
		at = now
	}
	if m.countdownNext > 0 {
		m.countdown = m.countdownNext
		m.countdownNext--
		m.nextStepAt = at.Add(m.settings.CountdownStep)
		return m.nextStepAt, []Event{countDownEvent(m.countdown)}, false
	}
	events := m.startLocked(at)
	if m.status != StatusPlaying {
		return time.Time{}, events, true
	}
	return m.nextStepAt, events, false
}

// startLocked generates the shared queue and spawns the first piece on every
// board, passing through Start on the way to Playing.
func (m *Match) startLocked(at time.Time) []Event {
	m.status = StatusStart
	m.countdown = 0
	m.queue = m.factory.Generate(m.settings.QueueLength)
	m.boards = make(map[string]*Board, len(m.players))
	for _, p := range m.players {
		p.Score = 0
		m.boards[p.ID] = NewBoard(m.queue)
	}
	events := []Event{stateEvent(m.snapshotLocked())}

	m.status = StatusPlaying
	m.playingSince = at
	m.nextStepAt = m.settings.Cadence.Next(at, at)
	for _, p := range m.players {
		if _, err := m.boards[p.ID].Spawn(); err != nil {
			m.failLocked(err)
			break
		}
	}
	m.checkLossLocked()
	m.logger.Info("match started", zap.Int("queue_length", m.queue.Len()))
	return append(events, stateEvent(m.snapshotLocked()))
}

func (m *Match) playLocked(now time.Time) (time.Time, []Event, bool) {
	if now.Before(m.nextStepAt) {
		return m.nextStepAt, nil, false
	}
	for _, p := range m.players {
		board := m.boards[p.ID]
		if board == nil || board.ToppedOut() {
			continue
		}
		res, err := board.Tick()
		p.Score = board.Score()
		if err != nil {
			m.failLocked(err)
			break
		}
		if res.Cleared > 0 {
			m.logger.Debug("lines cleared",
				zap.String("player_id", p.ID),
				zap.Int("lines", res.Cleared),
				zap.Int("score", p.Score),
			)
		}
		if res.ToppedOut {
			break
		}
	}
	m.checkLossLocked()
	if m.status != StatusPlaying {
		return time.Time{}, []Event{stateEvent(m.snapshotLocked())}, true
	}
	events := []Event{stateEvent(m.frameLocked())}
	m.nextStepAt = m.settings.Cadence.Next(m.nextStepAt, m.playingSince)
	return m.nextStepAt, events, false
}

func (m *Match) checkLossLocked() {
	if m.status != StatusPlaying {
		return
	}
	for _, p := range m.players {
		if board := m.boards[p.ID]; board != nil && board.ToppedOut() {
			p.Score = Lost
			m.status = StatusGameOver
			m.logger.Info("player topped out", zap.String("player_id", p.ID), zap.Int("cursor", board.Cursor()))
		}
	}
}

func (m *Match) failLocked(err error) {
	m.status = StatusGameOver
	m.reason = err.Error()
	m.logger.Error("match aborted", zap.Error(err))
}

func (m *Match) beginWarmUpLocked() {
	m.status = StatusWarmingUp
	m.countdown = CountdownFrom
	m.countdownNext = CountdownFrom
	m.nextStepAt = time.Time{}
	m.playingSince = time.Time{}
	m.boards = nil
	m.queue = PieceQueue{}
	m.reason = ""
	for _, p := range m.players {
		p.Score = 0
	}
}

func (m *Match) resetLocked() {
	m.status = StatusWaitingPlayers
	m.countdown = 0
	m.countdownNext = 0
	m.nextStepAt = time.Time{}
	m.playingSince = time.Time{}
	m.boards = nil
	m.queue = PieceQueue{}
	m.reason = ""
	for _, p := range m.players {
		p.Score = 0
	}
	m.logger.Info("match reset, waiting for players")
}

// CurrentState returns a snapshot of the match.
func (m *Match) CurrentState() GameState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Match) snapshotLocked() GameState {
	state := GameState{
		MatchID:    m.ID,
		Status:     m.status,
		Players:    make([]Player, 0, len(m.players)),
		PieceQueue: m.queue.Drafts(),
		Reason:     m.reason,
	}
	if state.PieceQueue == nil {
		state.PieceQueue = []Draft{}
	}
	if m.status == StatusWarmingUp {
		state.Countdown = m.countdown
	}
	for _, p := range m.players {
		state.Players = append(state.Players, *p)
	}
	if m.boards != nil {
		state.Boards = make(map[string]BoardState, len(m.boards))
		for id, b := range m.boards {
			state.Boards[id] = BoardState{
				Cells:  b.View(),
				Cursor: b.Cursor(),
				Next:   b.Next(previewSize),
				Score:  b.Score(),
			}
		}
	}
	return state
}

// frameLocked is snapshotLocked without the piece queue.
func (m *Match) frameLocked() GameState {
	state := m.snapshotLocked()
	state.PieceQueue = nil
	return state
}

func (m *Match) emitLocked() {
	m.notify(stateEvent(m.snapshotLocked()))
}

func (m *Match) playerLocked(id string) *Player {
	for _, p := range m.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func normalizeName(name string, seat int) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Player " + strconv.Itoa(seat)
	}
	if utf8.RuneCountInString(name) > maxNameRunes {
		name = string([]rune(name)[:maxNameRunes])
	}
	return name
}
