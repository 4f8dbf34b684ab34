// Package transport adapts websocket connections to match commands and events.
package transport

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"blockduel/internal/game"
	"blockduel/internal/protocol"
)

const (
	readLimit    = 64 << 10
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
	writeWait    = 10 * time.Second
)

var errNotSeated = errors.New("join the match first")

// Bridge serves the websocket endpoint of each match. A connection receives
// every match event; once it joins, its commands drive that player's board
// and closing it removes the player.
type Bridge struct {
	store    *game.Store
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*session]struct{}
}

// NewBridge builds a bridge over store. An empty allowedOrigins keeps the
// same-origin check; "*" accepts any origin.
func NewBridge(store *game.Store, logger *zap.Logger, allowedOrigins []string) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		store:  store,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		sessions: make(map[*session]struct{}),
	}
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(origin, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// session is one websocket connection. player is only touched by the read loop.
type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	match   *game.Match
	player  string
	logger  *zap.Logger
}

func (s *session) send(b []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

func (s *session) sendError(msg string) {
	if err := s.send(protocol.EncodeError(msg)); err != nil {
		s.logger.Debug("write error frame", zap.Error(err))
	}
}

func (s *session) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Serve upgrades the request and runs the connection until either side closes it.
func (b *Bridge) Serve(w http.ResponseWriter, r *http.Request, matchID string) {
	match, ok := b.store.GetMatch(matchID)
	if !ok {
		http.NotFound(w, r)
		return
	}
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", zap.String("match_id", matchID), zap.Error(err))
		return
	}
	defer conn.Close()

	s := &session{
		conn:   conn,
		match:  match,
		logger: b.logger.With(zap.String("match_id", matchID), zap.String("remote", r.RemoteAddr)),
	}
	b.track(s)
	defer b.untrack(s)

	events, cancel, ok := b.store.Subscribe(matchID)
	if !ok {
		return
	}
	done := make(chan struct{})
	defer func() {
		close(done)
		cancel()
		b.leave(s)
	}()

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	initial, err := protocol.Encode(protocol.MsgGameState, match.CurrentState())
	if err == nil {
		err = s.send(initial)
	}
	if err != nil {
		s.logger.Debug("initial snapshot failed", zap.Error(err))
		return
	}
	s.logger.Debug("websocket connected")

	go b.writeLoop(s, events, done)

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Info("websocket read failed", zap.Error(err))
			}
			return
		}
		b.handle(s, frame)
	}
}

func (b *Bridge) writeLoop(s *session, events <-chan game.Event, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			frame, err := protocol.EncodeEvent(ev)
			if err != nil {
				s.logger.Error("encode event", zap.Error(err))
				continue
			}
			if err := s.send(frame); err != nil {
				_ = s.conn.Close()
				return
			}
		case <-ticker.C:
			if err := s.ping(); err != nil {
				_ = s.conn.Close()
				return
			}
		}
	}
}

func (b *Bridge) handle(s *session, frame []byte) {
	env, err := protocol.DecodeEnvelope(frame)
	if err != nil {
		s.sendError("malformed frame")
		return
	}
	switch env.T {
	case protocol.MsgJoinGame:
		b.join(s, env)
	case protocol.MsgMovePiece:
		b.move(s, env)
	case protocol.MsgNotifyGameOver:
		b.gameOver(s, env)
	case protocol.MsgRestartGame:
		b.restart(s)
	default:
		s.sendError("unknown message type " + env.T)
	}
}

func (b *Bridge) join(s *session, env protocol.Envelope) {
	req, err := protocol.DecodePayload[protocol.JoinGame](env)
	if err != nil {
		s.sendError("malformed joinGame payload")
		return
	}
	id := req.ClientID
	if s.player != "" {
		id = s.player
	}
	player, err := s.match.AddPlayer(id, req.Name)
	if err != nil {
		s.sendError(err.Error())
		return
	}
	s.player = player.ID
	frame, err := protocol.Encode(protocol.MsgJoined, player)
	if err == nil {
		err = s.send(frame)
	}
	if err != nil {
		s.logger.Debug("write joined", zap.Error(err))
	}
	b.store.EnsureLoop(s.match.ID)
}

func (b *Bridge) move(s *session, env protocol.Envelope) {
	if s.player == "" {
		s.sendError(errNotSeated.Error())
		return
	}
	req, err := protocol.DecodePayload[protocol.MovePiece](env)
	if err != nil {
		s.sendError("malformed movePiece payload")
		return
	}
	cmd, ok := game.ParseCommand(req.Direction)
	if !ok {
		s.sendError("unknown direction " + req.Direction)
		return
	}
	if s.match.Move(s.player, cmd) && s.match.Status() != game.StatusPlaying {
		b.store.EnsureLoop(s.match.ID)
	}
}

func (b *Bridge) gameOver(s *session, env protocol.Envelope) {
	if s.player == "" {
		s.sendError(errNotSeated.Error())
		return
	}
	req, err := protocol.DecodePayload[protocol.NotifyGameOver](env)
	if err != nil {
		s.sendError("malformed notifyGameOver payload")
		return
	}
	if req.PlayerID != "" && req.PlayerID != s.player {
		s.sendError("cannot report game over for another player")
		return
	}
	if s.match.NotifyGameOver(s.player) {
		b.store.EnsureLoop(s.match.ID)
	}
}

func (b *Bridge) restart(s *session) {
	if s.player == "" {
		s.sendError(errNotSeated.Error())
		return
	}
	if err := s.match.Restart(); err != nil {
		s.sendError(err.Error())
		return
	}
	b.store.EnsureLoop(s.match.ID)
}

// leave unseats the connection's player. A match left with nobody seated is
// released after the idle grace period unless another stream still watches it.
func (b *Bridge) leave(s *session) {
	if s.player != "" && s.match.RemovePlayer(s.player) {
		s.logger.Info("player disconnected", zap.String("player_id", s.player))
		if s.match.PlayerCount() > 0 {
			b.store.EnsureLoop(s.match.ID)
			return
		}
	}
	if s.match.PlayerCount() == 0 {
		b.store.ReleaseWhenIdle(s.match.ID)
	}
}

func (b *Bridge) track(s *session) {
	b.mu.Lock()
	b.sessions[s] = struct{}{}
	b.mu.Unlock()
}

func (b *Bridge) untrack(s *session) {
	b.mu.Lock()
	delete(b.sessions, s)
	b.mu.Unlock()
}

// Connections returns the number of open websocket sessions.
func (b *Bridge) Connections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// Shutdown sends a going-away close frame to every open session. Each
// session's read loop then ends and removes its player.
func (b *Bridge) Shutdown() {
	b.mu.Lock()
	sessions := make([]*session, 0, len(b.sessions))
	for s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, s := range sessions {
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	}
}
