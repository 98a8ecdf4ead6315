package game

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dmarini/trackdown/internal/models"
)

// RoomState is the lifecycle state of a room. Transitions move forward
// except LOADING -> LOBBY on playlist generation failure and
// ENDED -> LOADING when the owner starts a rematch.
type RoomState string

const (
	RoomLobby   RoomState = "LOBBY"
	RoomLoading RoomState = "LOADING"
	RoomPlaying RoomState = "PLAYING"
	RoomEnded   RoomState = "ENDED"
)

// DefaultTotalRounds is used when the owner does not pick a round count.
const DefaultTotalRounds = 10

// MaxTotalRounds is the hard cap on the requested round count.
const MaxTotalRounds = 50

// Room holds the entire state for a single game session in memory.
// All fields are guarded by Mu; every mutation (joins, start, guesses,
// timer callbacks) is serialized through it. Rooms are fully independent
// of each other.
type Room struct {
	ID      string
	Players []*models.Player // insertion order; index 0 is the owner
	State   RoomState

	TotalRounds  int
	Tracks       []models.Track
	CurrentRound int // 0-based, strictly increasing within a game
	CurrentTrack *models.Track
	RoundOpen    bool

	Mu sync.Mutex

	// BroadcastFn sends an event to every connected player in the room.
	// If nil, no broadcast is done.
	BroadcastFn func(ev Event)

	// BroadcastToPlayerFn sends an event to a single player.
	BroadcastToPlayerFn func(playerID uuid.UUID, ev Event)
}

// PlayerSummary is the public view of a player used in event payloads.
type PlayerSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Score int       `json:"score"`
}

// Snapshot is the public view of a room sent on create/join.
type Snapshot struct {
	ID           string          `json:"id"`
	Players      []PlayerSummary `json:"players"`
	State        RoomState       `json:"state"`
	TotalRounds  int             `json:"totalRounds"`
	CurrentRound int             `json:"currentRound"`
}

// fireEvent broadcasts to the whole room. Assumes lock is held; the
// broadcast function itself must not re-enter the room lock
// synchronously.
func (r *Room) fireEvent(ev Event) {
	if r.BroadcastFn != nil {
		r.BroadcastFn(ev)
	}
}

func (r *Room) fireEventToPlayer(playerID uuid.UUID, ev Event) {
	if r.BroadcastToPlayerFn != nil {
		r.BroadcastToPlayerFn(playerID, ev)
	}
}

// Owner returns the player at position 0. Assumes lock is held.
func (r *Room) Owner() *models.Player {
	if len(r.Players) == 0 {
		return nil
	}
	return r.Players[0]
}

func (r *Room) playerByID(id uuid.UUID) *models.Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// scoreboard copies the current player list into value summaries so the
// payload can be marshaled after the lock is released. Assumes lock is
// held.
func (r *Room) scoreboard() []PlayerSummary {
	out := make([]PlayerSummary, 0, len(r.Players))
	for _, p := range r.Players {
		out = append(out, PlayerSummary{ID: p.ID, Name: p.Name, Score: p.Score})
	}
	return out
}

// SnapshotLocked returns the public room view. Assumes lock is held.
func (r *Room) SnapshotLocked() Snapshot {
	return Snapshot{
		ID:           r.ID,
		Players:      r.scoreboard(),
		State:        r.State,
		TotalRounds:  r.TotalRounds,
		CurrentRound: r.CurrentRound,
	}
}

// Snapshot acquires the lock and returns the public room view.
func (r *Room) Snapshot() Snapshot {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.SnapshotLocked()
}
