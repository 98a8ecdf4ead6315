package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dmarini/trackdown/internal/game"
	"github.com/dmarini/trackdown/internal/models"
)

const writeTimeout = 3 * time.Second

// ClientMessage is the envelope for every intent a client can send.
type ClientMessage struct {
	Type string `json:"type"`

	PlayerName string `json:"playerName,omitempty"`
	RoomID     string `json:"roomId,omitempty"`

	// start_game configuration. Genre is the legacy single-genre field;
	// Genres wins when both are present.
	Genres     []string `json:"genres,omitempty"`
	Genre      string   `json:"genre,omitempty"`
	Decade     string   `json:"decade,omitempty"`
	Language   string   `json:"language,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
	Rounds     int      `json:"rounds,omitempty"`

	Guess string `json:"guess,omitempty"`
}

// session tracks which room and player a WebSocket connection is bound
// to. A connection is bound at most once, by create_room or join_room.
type session struct {
	roomID   string
	playerID uuid.UUID
	bound    bool
}

// RoomWSHandler upgrades the HTTP connection to WebSocket and runs the
// intent loop for one client. The connection's player identity lives
// exactly as long as the read loop; when it exits the player is marked
// disconnected in its room.
func RoomWSHandler(logger *logrus.Logger, gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"room"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "room" {
			c.Close(websocket.StatusPolicyViolation, "client must speak the room subprotocol")
			return
		}
		logger.Infof("WebSocket connection established from %s", r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sess := &session{}
		readIntents(ctx, c, gs, sess, logger)

		if sess.bound {
			gs.Engine.HandleDisconnect(sess.roomID, sess.playerID)
			logger.Infof("player %s disconnected from room %s", sess.playerID, sess.roomID)
		}
	}
}

// readIntents reads client intents until the connection closes and
// dispatches them into the registry and engine.
func readIntents(ctx context.Context, c *websocket.Conn, gs *GameServer, sess *session, logger *logrus.Logger) {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				logger.Infof("websocket closed normally for player %s", sess.playerID)
			} else if strings.Contains(err.Error(), "context canceled") {
				logger.Infof("websocket context canceled for player %s", sess.playerID)
			} else {
				logger.Warnf("websocket read error for player %s: %v", sess.playerID, err)
			}
			return
		}
		if msgType != websocket.MessageText {
			logger.Warnf("ignoring non-text message type %d", msgType)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnf("invalid JSON from client: %v", err)
			sendError(ctx, c, "INVALID_JSON", "invalid JSON format")
			continue
		}

		logger.Debugf("received intent %q (room=%s player=%s)", msg.Type, sess.roomID, sess.playerID)

		switch msg.Type {
		case "create_room":
			handleCreateRoom(ctx, c, gs, sess, msg, logger)
		case "join_room":
			handleJoinRoom(ctx, c, gs, sess, msg, logger)
		case "start_game":
			if !sess.bound {
				continue
			}
			if !claimedRoomMatches(msg.RoomID, sess.roomID) {
				sendError(ctx, c, "ROOM_MISMATCH", "roomId does not match the room this connection belongs to")
				continue
			}
			gs.Engine.StartGame(sess.roomID, sess.playerID, game.PlaylistRequest{
				Genres:     mergedGenres(msg),
				Decade:     msg.Decade,
				Language:   msg.Language,
				Difficulty: msg.Difficulty,
				Rounds:     msg.Rounds,
			})
		case "submit_guess":
			if !sess.bound || msg.Guess == "" {
				continue
			}
			if !claimedRoomMatches(msg.RoomID, sess.roomID) {
				sendError(ctx, c, "ROOM_MISMATCH", "roomId does not match the room this connection belongs to")
				continue
			}
			gs.Engine.SubmitGuess(sess.roomID, sess.playerID, msg.Guess)
		case "ping":
			sendWsMessage(c, map[string]string{"type": "pong"}, logger)
		default:
			logger.Warnf("unknown intent type %q", msg.Type)
			sendError(ctx, c, "UNKNOWN_INTENT", "unknown intent type: "+msg.Type)
		}
	}
}

func handleCreateRoom(ctx context.Context, c *websocket.Conn, gs *GameServer, sess *session, msg ClientMessage, logger *logrus.Logger) {
	name := strings.TrimSpace(msg.PlayerName)
	if name == "" {
		sendError(ctx, c, "INVALID_NAME", "player name is required")
		return
	}
	if sess.bound {
		sendError(ctx, c, "ALREADY_IN_ROOM", "connection is already bound to a room")
		return
	}

	room, owner := gs.Registry.CreateRoom(name)

	room.Mu.Lock()
	owner.Conn = c
	room.BroadcastFn = createBroadcastFunc(room, logger)
	room.BroadcastToPlayerFn = createBroadcastToPlayerFunc(room, logger)
	snapshot := room.SnapshotLocked()
	room.Mu.Unlock()

	sess.roomID = room.ID
	sess.playerID = owner.ID
	sess.bound = true

	sendWsMessage(c, game.Event{Type: game.EventRoomCreated, Payload: map[string]interface{}{
		"room": snapshot,
	}}, logger)
}

func handleJoinRoom(ctx context.Context, c *websocket.Conn, gs *GameServer, sess *session, msg ClientMessage, logger *logrus.Logger) {
	name := strings.TrimSpace(msg.PlayerName)
	if name == "" {
		sendError(ctx, c, "INVALID_NAME", "player name is required")
		return
	}
	if sess.bound {
		sendError(ctx, c, "ALREADY_IN_ROOM", "connection is already bound to a room")
		return
	}

	roomID := strings.ToUpper(strings.TrimSpace(msg.RoomID))
	room, player, err := gs.Registry.JoinRoom(roomID, name)
	if err != nil {
		sendError(ctx, c, game.CodeRoomNotFoundOrStarted, "")
		return
	}

	room.Mu.Lock()
	player.Conn = c
	if room.BroadcastFn == nil {
		room.BroadcastFn = createBroadcastFunc(room, logger)
		room.BroadcastToPlayerFn = createBroadcastToPlayerFunc(room, logger)
	}
	snapshot := room.SnapshotLocked()
	room.BroadcastFn(game.Event{Type: game.EventPlayerJoined, Payload: map[string]interface{}{
		"players": snapshot.Players,
	}})
	room.Mu.Unlock()

	sess.roomID = room.ID
	sess.playerID = player.ID
	sess.bound = true

	sendWsMessage(c, game.Event{Type: game.EventRoomJoined, Payload: map[string]interface{}{
		"room": snapshot,
	}}, logger)
}

// claimedRoomMatches accepts an omitted roomId; a non-empty one must
// name the room the connection is bound to. Acting on a mismatched
// claim would silently target the wrong room from the client's point
// of view.
func claimedRoomMatches(claimed, bound string) bool {
	claimed = strings.ToUpper(strings.TrimSpace(claimed))
	return claimed == "" || claimed == bound
}

func mergedGenres(msg ClientMessage) []string {
	if len(msg.Genres) > 0 {
		return msg.Genres
	}
	if msg.Genre != "" {
		return []string{msg.Genre}
	}
	return nil
}

// createBroadcastFunc returns a function suitable for Room.BroadcastFn.
// It is invoked with the room lock held, so it snapshots the connections
// and marshals synchronously, then sends asynchronously.
func createBroadcastFunc(room *game.Room, logger *logrus.Logger) func(ev game.Event) {
	return func(ev game.Event) {
		conns := connectedConns(room.Players)

		data, err := json.Marshal(ev)
		if err != nil {
			logger.Errorf("failed to marshal broadcast event (%s) for room %s: %v", ev.Type, room.ID, err)
			return
		}

		go func(conns []*websocket.Conn, data []byte) {
			for _, conn := range conns {
				writeWithTimeout(conn, data, logger)
			}
		}(conns, data)
	}
}

// createBroadcastToPlayerFunc returns a function suitable for
// Room.BroadcastToPlayerFn. Also invoked with the room lock held.
func createBroadcastToPlayerFunc(room *game.Room, logger *logrus.Logger) func(playerID uuid.UUID, ev game.Event) {
	return func(playerID uuid.UUID, ev game.Event) {
		var target *websocket.Conn
		for _, p := range room.Players {
			if p.ID == playerID {
				if p.Connected && p.Conn != nil {
					target = p.Conn
				}
				break
			}
		}
		if target == nil {
			return
		}

		data, err := json.Marshal(ev)
		if err != nil {
			logger.Errorf("failed to marshal private event (%s) for player %s: %v", ev.Type, playerID, err)
			return
		}
		go writeWithTimeout(target, data, logger)
	}
}

func connectedConns(players []*models.Player) []*websocket.Conn {
	conns := make([]*websocket.Conn, 0, len(players))
	for _, p := range players {
		if p.Connected && p.Conn != nil {
			conns = append(conns, p.Conn)
		}
	}
	return conns
}

func writeWithTimeout(conn *websocket.Conn, data []byte, logger *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		logger.Warnf("failed to write websocket message: %v", err)
	}
}

// sendWsMessage marshals a message and sends it to one client.
func sendWsMessage(c *websocket.Conn, message interface{}, logger *logrus.Logger) {
	data, err := json.Marshal(message)
	if err != nil {
		logger.Errorf("error marshaling websocket message: %v", err)
		return
	}
	writeWithTimeout(c, data, logger)
}

// sendError sends a structured error event to one client. Room state is
// never touched by a rejected intent.
func sendError(ctx context.Context, c *websocket.Conn, code, message string) {
	payload := map[string]interface{}{"code": code}
	if message != "" {
		payload["message"] = message
	}
	data, err := json.Marshal(game.Event{Type: game.EventError, Payload: payload})
	if err != nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = c.Write(writeCtx, websocket.MessageText, data)
}
