// Package protocol defines the JSON envelope exchanged with game clients.
package protocol

import (
	"encoding/json"

	"blockduel/internal/game"
)

// Client to server.
const (
	MsgJoinGame       = "joinGame"
	MsgMovePiece      = "movePiece"
	MsgNotifyGameOver = "notifyGameOver"
	MsgRestartGame    = "restartGame"
)

// Server to client.
const (
	MsgGameState = "gameState"
	MsgCountDown = "countDown"
	MsgJoined    = "joined"
	MsgError     = "error"
)

// Envelope wraps every frame: T names the message, P is its raw payload.
type Envelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p"`
}

// JoinGame asks to be seated. ClientID may be empty; the server then assigns one.
type JoinGame struct {
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
}

// MovePiece carries one of left, right, rotate, down or drop.
type MovePiece struct {
	Direction string `json:"direction"`
}

// NotifyGameOver reports the sender's own loss.
type NotifyGameOver struct {
	PlayerID string `json:"playerId"`
}

// RestartGame requests a rematch; it has no fields.
type RestartGame struct{}

// Error is sent back for frames the server could not act on.
type Error struct {
	Message string `json:"message"`
}

// Joined confirms a seat to the joining client.
type Joined = game.Player

// GameState is the broadcast snapshot.
type GameState = game.GameState
