package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"blockduel/internal/game"
	"blockduel/internal/protocol"
	"blockduel/internal/transport"
	"blockduel/internal/viewmodel"
	"blockduel/internal/views"
)

const (
	clientCookieName  = "blockduel_client"
	keepAliveInterval = 25 * time.Second
	requestTimeout    = 15 * time.Second
)

type MatchHandler struct {
	store   *game.Store
	bridge  *transport.Bridge
	baseURL string
	logger  *zap.Logger
}

func NewMatchHandler(store *game.Store, bridge *transport.Bridge, baseURL string, logger *zap.Logger) *MatchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchHandler{
		store:   store,
		bridge:  bridge,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		logger:  logger,
	}
}

func (h *MatchHandler) RegisterRoutes(r chi.Router) {
	r.Route("/matches/{id}", func(r chi.Router) {
		r.With(middleware.Timeout(requestTimeout)).Get("/", h.matchPage)
		r.With(middleware.Timeout(requestTimeout)).Get("/state", h.state)
		// Long-lived connections stay outside the request timeout.
		r.Get("/stream", h.stream)
		r.Get("/ws", h.websocket)
	})
}

func (h *MatchHandler) matchPage(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "id")
	m, ok := h.store.GetMatch(matchID)
	if !ok {
		http.NotFound(w, r)
		return
	}
	clientID := clientIDFromCookie(r)
	if clientID == "" {
		clientID = uuid.NewString()
		setClientCookie(w, clientID)
	}
	data := buildMatchPage(m.CurrentState())
	data.InviteURL = h.inviteURL(r, matchID)
	data.ClientID = clientID
	render(w, r, views.MatchPage(data))
}

func (h *MatchHandler) state(w http.ResponseWriter, r *http.Request) {
	m, ok := h.store.GetMatch(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, protocol.Error{Message: "match not found"})
		return
	}
	writeJSON(w, http.StatusOK, m.CurrentState())
}

func (h *MatchHandler) stream(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "id")
	m, ok := h.store.GetMatch(matchID)
	if !ok {
		http.NotFound(w, r)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	// The server write timeout would otherwise cut the stream.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, cancel, ok := h.store.Subscribe(matchID)
	if !ok {
		http.NotFound(w, r)
		return
	}
	defer cancel()

	send := func(ev game.Event) {
		kind, payload, err := protocol.EventMessage(ev)
		if err == nil {
			var data []byte
			if data, err = json.Marshal(payload); err == nil {
				writeSSE(w, kind, string(data))
				flusher.Flush()
				return
			}
		}
		h.logger.Error("encode event", zap.String("match_id", matchID), zap.Error(err))
	}

	initial := m.CurrentState()
	send(game.Event{Kind: game.EventGameState, State: &initial})

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			send(ev)
		case <-keepAlive.C:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		}
	}
}

func (h *MatchHandler) websocket(w http.ResponseWriter, r *http.Request) {
	h.bridge.Serve(w, r, chi.URLParam(r, "id"))
}

func (h *MatchHandler) inviteURL(r *http.Request, matchID string) string {
	if h.baseURL != "" {
		return h.baseURL + matchPath(matchID)
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + matchPath(matchID)
}

func buildMatchPage(state game.GameState) viewmodel.MatchPage {
	data := viewmodel.MatchPage{
		Title:     title,
		MatchID:   state.MatchID,
		WSPath:    matchPath(state.MatchID) + "/ws",
		StatePath: matchPath(state.MatchID) + "/state",
		Status:    string(state.Status),
		Countdown: state.Countdown,
		Reason:    state.Reason,
		Seats:     game.RequiredPlayers,
		Players:   make([]viewmodel.PlayerRow, 0, len(state.Players)),
	}
	for _, p := range state.Players {
		data.Players = append(data.Players, viewmodel.PlayerRow{
			ID:    p.ID,
			Name:  p.Name,
			Score: p.Score,
			Lost:  p.Score == game.Lost,
		})
		board, ok := state.Boards[p.ID]
		if !ok {
			continue
		}
		data.Boards = append(data.Boards, viewmodel.BoardView{
			PlayerID:   p.ID,
			PlayerName: p.Name,
			Rows:       board.Cells,
			Score:      board.Score,
			Lost:       board.Score == game.Lost,
		})
	}
	return data
}

func clientIDFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(clientCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func setClientCookie(w http.ResponseWriter, clientID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     clientCookieName,
		Value:    clientID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(24 * time.Hour),
	})
}
