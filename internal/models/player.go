package models

import (
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Player is one named participant in a room. The ID is assigned when the
// WebSocket connection is accepted and stays stable for the connection's
// lifetime.
type Player struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Score     int             `json:"score"`
	Connected bool            `json:"-"`
	Conn      *websocket.Conn `json:"-"`
}

func NewPlayer(name string) *Player {
	return &Player{
		ID:        uuid.New(),
		Name:      name,
		Connected: true,
	}
}
