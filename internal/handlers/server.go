package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/dmarini/trackdown/internal/game"
)

// GameServer wires the room registry and round engine together and hands
// them to the WebSocket handler.
type GameServer struct {
	Registry *game.Registry
	Engine   *game.Engine
	Logger   *logrus.Logger
}

func NewGameServer(logger *logrus.Logger, provider game.PlaylistProvider) *GameServer {
	registry := game.NewRegistry(logger)
	engine := game.NewEngine(registry, provider, game.NewWallClockScheduler(), logger)
	return &GameServer{
		Registry: registry,
		Engine:   engine,
		Logger:   logger,
	}
}
