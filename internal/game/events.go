package game

// EventKind identifies what a published match event carries.
type EventKind string

const (
	EventGameState EventKind = "game_state"
	EventCountDown EventKind = "count_down"
)

// Event is published on the match broadcaster after every mutation.
type Event struct {
	Kind      EventKind
	State     *GameState
	CountDown int
}

func stateEvent(s GameState) Event {
	return Event{Kind: EventGameState, State: &s}
}

func countDownEvent(n int) Event {
	return Event{Kind: EventCountDown, CountDown: n}
}
