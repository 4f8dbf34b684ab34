package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"blockduel/internal/game"
)

var (
	ErrEmptyType    = errors.New("envelope type is empty")
	ErrEmptyFrame   = errors.New("empty frame")
	ErrEmptyPayload = errors.New("empty payload")
)

// Encode marshals payload and wraps it in an envelope of type t.
func Encode(t string, payload any) ([]byte, error) {
	if t == "" {
		return nil, ErrEmptyType
	}
	if payload == nil {
		return nil, fmt.Errorf("encode %q: %w", t, ErrEmptyPayload)
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %q: %w", t, err)
	}
	return json.Marshal(Envelope{T: t, P: pb})
}

// DecodeEnvelope parses a frame without looking at the payload.
func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, ErrEmptyFrame
	}
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if e.T == "" {
		return Envelope{}, ErrEmptyType
	}
	return e, nil
}

// DecodePayload unmarshals the envelope payload into T. A missing payload
// yields the zero value for message kinds whose fields are all optional.
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.P) == 0 || string(env.P) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(env.P, &out); err != nil {
		return out, fmt.Errorf("decode %q payload: %w", env.T, err)
	}
	return out, nil
}

// EventMessage maps a match event to its message kind and payload.
func EventMessage(ev game.Event) (string, any, error) {
	switch ev.Kind {
	case game.EventCountDown:
		return MsgCountDown, ev.CountDown, nil
	case game.EventGameState:
		if ev.State == nil {
			return "", nil, fmt.Errorf("encode %q: %w", MsgGameState, ErrEmptyPayload)
		}
		return MsgGameState, ev.State, nil
	default:
		return "", nil, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
}

// EncodeEvent turns a match event into its wire frame.
func EncodeEvent(ev game.Event) ([]byte, error) {
	kind, payload, err := EventMessage(ev)
	if err != nil {
		return nil, err
	}
	return Encode(kind, payload)
}

// EncodeError builds an error frame.
func EncodeError(message string) []byte {
	b, _ := Encode(MsgError, Error{Message: message})
	return b
}
