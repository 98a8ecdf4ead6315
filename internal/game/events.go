package game

// EventType is an enum-like type for broadcasting room events.
type EventType string

const (
	EventRoomCreated    EventType = "room_created"
	EventRoomJoined     EventType = "room_joined"
	EventPlayerJoined   EventType = "player_joined"
	EventPlayerLeft     EventType = "player_left"
	EventGameLoading    EventType = "game_loading"
	EventGameStarted    EventType = "game_started"
	EventStartCountdown EventType = "start_countdown"
	EventNewRound       EventType = "new_round"
	EventRoundWinner    EventType = "round_winner"
	EventRoundTimeout   EventType = "round_timeout"
	EventUpdateScores   EventType = "update_scores"
	EventGameOver       EventType = "game_over"
	EventWrongGuess     EventType = "wrong_guess"
	EventError          EventType = "error"
)

// Error codes surfaced to clients.
const (
	CodeRoomNotFoundOrStarted = "ROOM_NOT_FOUND_OR_STARTED"
	CodeGenerationFailed      = "GENERATION_FAILED"
)

// Event holds data about a room event in a consistent wire format.
type Event struct {
	Type    EventType              `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

func errorEvent(code, message string) Event {
	payload := map[string]interface{}{"code": code}
	if message != "" {
		payload["message"] = message
	}
	return Event{Type: EventError, Payload: payload}
}
