package game

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dmarini/trackdown/internal/models"
)

// ErrRoomNotFoundOrStarted is returned when joining a room that does not
// exist or has left the lobby. Joining mid-game is disallowed: latecomers
// would have undefined round semantics and corrupt the score sheet.
var ErrRoomNotFoundOrStarted = errors.New("room not found or already started")

const (
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLength   = 5
)

// Registry maps room codes to live rooms. The map has its own lock;
// room entries are independently owned and serialized by their own
// mutex.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
	log   *logrus.Logger
}

func NewRegistry(log *logrus.Logger) *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		log:   log,
	}
}

// CreateRoom generates an unused room code and creates a LOBBY room with
// the owner as sole player.
func (reg *Registry) CreateRoom(ownerName string) (*Room, *models.Player) {
	owner := models.NewPlayer(ownerName)
	room := &Room{
		Players:     []*models.Player{owner},
		State:       RoomLobby,
		TotalRounds: DefaultTotalRounds,
	}

	reg.mu.Lock()
	for {
		code := newRoomCode()
		if _, taken := reg.rooms[code]; !taken {
			room.ID = code
			reg.rooms[code] = room
			break
		}
		// 36^5 codes; a collision means regenerate, not fail.
	}
	reg.mu.Unlock()

	reg.log.WithFields(logrus.Fields{"room": room.ID, "owner": ownerName}).Info("room created")
	return room, owner
}

// JoinRoom appends a new player to a lobby room. Position 0 stays the
// owner; insertion order is preserved.
func (reg *Registry) JoinRoom(roomID, playerName string) (*Room, *models.Player, error) {
	room, ok := reg.Get(roomID)
	if !ok {
		return nil, nil, ErrRoomNotFoundOrStarted
	}

	room.Mu.Lock()
	defer room.Mu.Unlock()
	if room.State != RoomLobby {
		return nil, nil, ErrRoomNotFoundOrStarted
	}
	player := models.NewPlayer(playerName)
	room.Players = append(room.Players, player)

	reg.log.WithFields(logrus.Fields{"room": roomID, "player": playerName}).Info("player joined")
	return room, player, nil
}

// Get returns the live room for a code, if any.
func (reg *Registry) Get(roomID string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	room, ok := reg.rooms[roomID]
	return room, ok
}

// Remove deletes a room from the registry. Called when the last
// connection of a room drops.
func (reg *Registry) Remove(roomID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.rooms[roomID]; ok {
		delete(reg.rooms, roomID)
		reg.log.WithField("room", roomID).Info("room removed")
	}
}

func newRoomCode() string {
	buf := make([]byte, roomCodeLength)
	for i := range buf {
		buf[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
	}
	return string(buf)
}
