package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarini/trackdown/internal/game"
	"github.com/dmarini/trackdown/internal/models"
)

type stubProvider struct {
	tracks []models.Track
}

func (p *stubProvider) Playlist(_ context.Context, _ game.PlaylistRequest) ([]models.Track, error) {
	return p.tracks, nil
}

func newWSTestServer(t *testing.T, provider game.PlaylistProvider) (*httptest.Server, *GameServer) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	gs := NewGameServer(logger, provider)
	srv := httptest.NewServer(RoomWSHandler(logger, gs))
	t.Cleanup(srv.Close)
	return srv, gs
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{"room"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func send(t *testing.T, c *websocket.Conn, msg interface{}) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, data))
}

// readEvent blocks for the next event from the server. Broadcasts and
// direct replies can interleave, so tests that care about a specific
// event use awaitEvent instead.
func readEvent(t *testing.T, c *websocket.Conn) game.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := c.Read(ctx)
	require.NoError(t, err)

	var ev game.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

// awaitEvent reads events until one of the wanted type arrives.
func awaitEvent(t *testing.T, c *websocket.Conn, want game.EventType) game.Event {
	t.Helper()
	for i := 0; i < 20; i++ {
		ev := readEvent(t, c)
		if ev.Type == want {
			return ev
		}
	}
	t.Fatalf("event %s never arrived", want)
	return game.Event{}
}

func createRoom(t *testing.T, c *websocket.Conn, name string) string {
	t.Helper()
	send(t, c, map[string]string{"type": "create_room", "playerName": name})
	ev := awaitEvent(t, c, game.EventRoomCreated)

	room, ok := ev.Payload["room"].(map[string]interface{})
	require.True(t, ok)
	roomID, ok := room["id"].(string)
	require.True(t, ok)
	return roomID
}

func TestCreateRoomOverWebSocket(t *testing.T) {
	srv, gs := newWSTestServer(t, &stubProvider{})
	c := dialWS(t, srv)

	send(t, c, map[string]string{"type": "create_room", "playerName": "Ana"})
	ev := awaitEvent(t, c, game.EventRoomCreated)

	roomPayload := ev.Payload["room"].(map[string]interface{})
	roomID := roomPayload["id"].(string)
	assert.Len(t, roomID, 5)
	assert.Equal(t, "LOBBY", roomPayload["state"])

	players := roomPayload["players"].([]interface{})
	require.Len(t, players, 1)
	assert.Equal(t, "Ana", players[0].(map[string]interface{})["name"])

	room, ok := gs.Registry.Get(roomID)
	require.True(t, ok)
	assert.Equal(t, game.RoomLobby, room.Snapshot().State)
}

func TestCreateRoomRequiresName(t *testing.T) {
	srv, _ := newWSTestServer(t, &stubProvider{})
	c := dialWS(t, srv)

	send(t, c, map[string]string{"type": "create_room", "playerName": "   "})
	ev := awaitEvent(t, c, game.EventError)
	assert.Equal(t, "INVALID_NAME", ev.Payload["code"])
}

func TestJoinRoomOverWebSocket(t *testing.T) {
	srv, _ := newWSTestServer(t, &stubProvider{})
	owner := dialWS(t, srv)
	guest := dialWS(t, srv)

	roomID := createRoom(t, owner, "Ana")

	// Room codes are case-insensitive on the way in.
	send(t, guest, map[string]string{"type": "join_room", "playerName": "Beto", "roomId": strings.ToLower(roomID)})
	joined := awaitEvent(t, guest, game.EventRoomJoined)

	roomPayload := joined.Payload["room"].(map[string]interface{})
	players := roomPayload["players"].([]interface{})
	require.Len(t, players, 2)

	// The owner hears about the new player.
	notice := awaitEvent(t, owner, game.EventPlayerJoined)
	assert.Len(t, notice.Payload["players"].([]interface{}), 2)
}

func TestJoinUnknownRoomOverWebSocket(t *testing.T) {
	srv, _ := newWSTestServer(t, &stubProvider{})
	c := dialWS(t, srv)

	send(t, c, map[string]string{"type": "join_room", "playerName": "Beto", "roomId": "ZZZZZ"})
	ev := awaitEvent(t, c, game.EventError)
	assert.Equal(t, game.CodeRoomNotFoundOrStarted, ev.Payload["code"])
}

func TestSecondBindOnSameConnectionRejected(t *testing.T) {
	srv, _ := newWSTestServer(t, &stubProvider{})
	c := dialWS(t, srv)

	createRoom(t, c, "Ana")
	send(t, c, map[string]string{"type": "create_room", "playerName": "Ana again"})
	ev := awaitEvent(t, c, game.EventError)
	assert.Equal(t, "ALREADY_IN_ROOM", ev.Payload["code"])
}

func TestPingPong(t *testing.T) {
	srv, _ := newWSTestServer(t, &stubProvider{})
	c := dialWS(t, srv)

	send(t, c, map[string]string{"type": "ping"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(data))
}

func TestFullRoundOverWebSocket(t *testing.T) {
	provider := &stubProvider{tracks: []models.Track{
		{Title: "Song 1", Artist: "Artist 1", PreviewURL: "https://p/1.m4a"},
	}}
	srv, gs := newWSTestServer(t, provider)

	// Real timers, shrunk so the test is quick.
	gs.Engine.CountdownLead = 5 * time.Millisecond
	gs.Engine.GuessWindow = time.Second
	gs.Engine.WinnerDelay = 5 * time.Millisecond
	gs.Engine.TimeoutDelay = 5 * time.Millisecond

	owner := dialWS(t, srv)
	guest := dialWS(t, srv)

	roomID := createRoom(t, owner, "Ana")
	send(t, guest, map[string]string{"type": "join_room", "playerName": "Beto", "roomId": roomID})
	awaitEvent(t, guest, game.EventRoomJoined)

	send(t, owner, map[string]interface{}{"type": "start_game", "rounds": 1})

	started := awaitEvent(t, guest, game.EventGameStarted)
	assert.Equal(t, float64(1), started.Payload["totalRounds"])

	round := awaitEvent(t, guest, game.EventNewRound)
	assert.Equal(t, "https://p/1.m4a", round.Payload["previewUrl"])

	send(t, guest, map[string]string{"type": "submit_guess", "guess": "not even close"})
	wrong := awaitEvent(t, guest, game.EventWrongGuess)
	assert.Equal(t, game.EventWrongGuess, wrong.Type)

	send(t, guest, map[string]string{"type": "submit_guess", "guess": "song 1"})
	winner := awaitEvent(t, owner, game.EventRoundWinner)
	assert.Equal(t, "Beto", winner.Payload["playerName"])

	over := awaitEvent(t, guest, game.EventGameOver)
	players := over.Payload["players"].([]interface{})
	require.Len(t, players, 2)
}

func TestIntentForDifferentRoomRejected(t *testing.T) {
	srv, _ := newWSTestServer(t, &stubProvider{})
	c := dialWS(t, srv)

	roomID := createRoom(t, c, "Ana")

	send(t, c, map[string]string{"type": "submit_guess", "guess": "anything", "roomId": "ZZZZZ"})
	ev := awaitEvent(t, c, game.EventError)
	assert.Equal(t, "ROOM_MISMATCH", ev.Payload["code"])

	send(t, c, map[string]interface{}{"type": "start_game", "roomId": "XXXXX", "rounds": 1})
	ev = awaitEvent(t, c, game.EventError)
	assert.Equal(t, "ROOM_MISMATCH", ev.Payload["code"])

	// The bound room's own id is fine, in any case.
	send(t, c, map[string]interface{}{"type": "start_game", "roomId": strings.ToLower(roomID), "rounds": 1})
	awaitEvent(t, c, game.EventGameLoading)
}

func TestMergedGenres(t *testing.T) {
	assert.Equal(t, []string{"rock", "pop"}, mergedGenres(ClientMessage{Genres: []string{"rock", "pop"}, Genre: "jazz"}))
	assert.Equal(t, []string{"jazz"}, mergedGenres(ClientMessage{Genre: "jazz"}))
	assert.Nil(t, mergedGenres(ClientMessage{}))
}
