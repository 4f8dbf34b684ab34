package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"blockduel/internal/game"
	"blockduel/internal/viewmodel"
	"blockduel/internal/views"
)

const title = "Block Duel"

type HomeHandler struct {
	store  *game.Store
	logger *zap.Logger
}

func NewHomeHandler(store *game.Store, logger *zap.Logger) *HomeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HomeHandler{store: store, logger: logger}
}

func (h *HomeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.home)
	r.Get("/healthz", h.health)
	r.Get("/matches", h.listMatches)
	r.Post("/matches", h.createMatch)
}

func (h *HomeHandler) home(w http.ResponseWriter, r *http.Request) {
	matches := h.store.ListMatches()
	rows := make([]viewmodel.MatchRow, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, viewmodel.MatchRow{
			ID:      m.ID,
			URL:     matchPath(m.ID),
			Players: m.Players,
			Status:  string(m.Status),
			Open:    m.Status == game.StatusWaitingPlayers && m.Players < game.RequiredPlayers,
		})
	}
	render(w, r, views.HomePage(viewmodel.HomePage{Title: title, Matches: rows}))
}

func (h *HomeHandler) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (h *HomeHandler) listMatches(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.store.ListMatches())
}

func (h *HomeHandler) createMatch(w http.ResponseWriter, r *http.Request) {
	m := h.store.CreateMatch()
	http.Redirect(w, r, matchPath(m.ID), http.StatusSeeOther)
}

func matchPath(id string) string {
	return "/matches/" + id
}
