package game

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dmarini/trackdown/internal/models"
)

// PlaylistRequest carries the owner's game configuration to the playlist
// provider. Decade and Language are free-form filters forwarded opaquely.
type PlaylistRequest struct {
	Genres     []string
	Decade     string
	Language   string
	Difficulty string // "easy" | "hard"
	Rounds     int
}

// PlaylistProvider produces the ordered track sequence for a game. It may
// fail or under-deliver; the engine adopts whatever it gets.
type PlaylistProvider interface {
	Playlist(ctx context.Context, req PlaylistRequest) ([]models.Track, error)
}

// Engine drives rooms through the round state machine: countdown, open
// guess window, resolution, next round or game over. All mutations of a
// room happen under that room's mutex; timer callbacks re-acquire it and
// are suppressed when stale.
type Engine struct {
	registry *Registry
	provider PlaylistProvider
	sched    Scheduler
	log      *logrus.Logger

	Matcher MatcherConfig

	CountdownLead time.Duration // "get ready" lead before each round
	GuessWindow   time.Duration // how long a round stays open
	WinnerDelay   time.Duration // pause after a correct guess
	TimeoutDelay  time.Duration // pause after an unguessed round

	// FetchTimeout bounds the playlist provider call during LOADING.
	FetchTimeout time.Duration
}

func NewEngine(registry *Registry, provider PlaylistProvider, sched Scheduler, log *logrus.Logger) *Engine {
	return &Engine{
		registry:      registry,
		provider:      provider,
		sched:         sched,
		log:           log,
		Matcher:       DefaultMatcherConfig(),
		CountdownLead: 3 * time.Second,
		GuessWindow:   30 * time.Second,
		WinnerDelay:   1 * time.Second,
		TimeoutDelay:  5 * time.Second,
		FetchTimeout:  60 * time.Second,
	}
}

// StartGame moves a room into LOADING and fetches the playlist
// asynchronously. Only the owner may start; any other requester is
// ignored. A finished room may be started again for a fresh game with
// new tracks and a clean score sheet. On provider failure or an empty
// result the room reverts to LOBBY and the owner may retry.
func (e *Engine) StartGame(roomID string, requesterID uuid.UUID, req PlaylistRequest) {
	room, ok := e.registry.Get(roomID)
	if !ok {
		return
	}

	room.Mu.Lock()
	if room.State != RoomLobby && room.State != RoomEnded {
		room.Mu.Unlock()
		e.log.WithFields(logrus.Fields{"room": roomID, "state": room.State}).Debug("start ignored: game in progress")
		return
	}
	owner := room.Owner()
	if owner == nil || owner.ID != requesterID {
		room.Mu.Unlock()
		e.log.WithField("room", roomID).Debug("start ignored: requester is not the owner")
		return
	}

	if req.Rounds <= 0 {
		req.Rounds = room.TotalRounds
	}
	if req.Rounds > MaxTotalRounds {
		req.Rounds = MaxTotalRounds
	}

	room.State = RoomLoading
	room.fireEvent(Event{Type: EventGameLoading, Payload: map[string]interface{}{
		"message": "generating playlist",
	}})
	room.Mu.Unlock()

	go e.loadPlaylist(room, req)
}

// loadPlaylist runs the provider call outside the room lock, then applies
// the outcome. If the room has moved on from LOADING in the meantime the
// result is discarded.
func (e *Engine) loadPlaylist(room *Room, req PlaylistRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), e.FetchTimeout)
	tracks, err := e.provider.Playlist(ctx, req)
	cancel()

	room.Mu.Lock()
	defer room.Mu.Unlock()

	if room.State != RoomLoading {
		e.log.WithFields(logrus.Fields{"room": room.ID, "state": room.State}).Debug("discarding playlist result: room moved on")
		return
	}

	if err != nil || len(tracks) == 0 {
		room.State = RoomLobby
		if err != nil {
			e.log.WithFields(logrus.Fields{"room": room.ID, "error": err}).Warn("playlist generation failed")
		} else {
			e.log.WithField("room", room.ID).Warn("playlist generation returned no playable tracks")
		}
		room.fireEvent(errorEvent(CodeGenerationFailed, "could not generate a playlist, try different filters"))
		return
	}

	// The provider may under-deliver; the returned length becomes the
	// authoritative round count.
	room.Tracks = tracks
	room.TotalRounds = len(tracks)
	room.CurrentRound = 0
	room.CurrentTrack = nil
	room.RoundOpen = false
	for _, p := range room.Players {
		p.Score = 0
	}
	room.State = RoomPlaying

	e.log.WithFields(logrus.Fields{"room": room.ID, "rounds": room.TotalRounds}).Info("game started")
	room.fireEvent(Event{Type: EventGameStarted, Payload: map[string]interface{}{
		"totalRounds": room.TotalRounds,
	}})
	e.beginCountdownLocked(room)
}

// beginCountdownLocked announces the pre-round countdown and schedules
// the round opening, or ends the game when all tracks are used up.
// Assumes lock is held.
func (e *Engine) beginCountdownLocked(room *Room) {
	if room.State != RoomPlaying {
		return
	}
	if room.CurrentRound >= room.TotalRounds {
		e.endGameLocked(room)
		return
	}

	room.fireEvent(Event{Type: EventStartCountdown, Payload: map[string]interface{}{
		"duration": int(e.CountdownLead / time.Second),
	}})
	e.sched.AfterFunc(e.CountdownLead, func() {
		room.Mu.Lock()
		defer room.Mu.Unlock()
		e.openRoundLocked(room)
	})
}

// openRoundLocked assigns the next track, opens the guess window and arms
// the round timeout. The timeout carries the assigned track as its
// generation token. Assumes lock is held.
func (e *Engine) openRoundLocked(room *Room) {
	if room.State != RoomPlaying || room.RoundOpen {
		return
	}
	if room.CurrentRound >= room.TotalRounds {
		e.endGameLocked(room)
		return
	}

	track := &room.Tracks[room.CurrentRound]
	room.CurrentTrack = track
	room.CurrentRound++
	room.RoundOpen = true

	e.log.WithFields(logrus.Fields{"room": room.ID, "round": room.CurrentRound}).Info("round open")
	room.fireEvent(Event{Type: EventNewRound, Payload: map[string]interface{}{
		"roundNumber": room.CurrentRound,
		"previewUrl":  track.PreviewURL,
	}})

	e.sched.AfterFunc(e.GuessWindow, func() {
		room.Mu.Lock()
		defer room.Mu.Unlock()
		e.resolveTimeoutLocked(room, track)
	})
}

// resolveTimeoutLocked closes an unguessed round. A timeout whose token
// no longer matches the room's current track fired for an already
// resolved round and is a no-op. Assumes lock is held.
func (e *Engine) resolveTimeoutLocked(room *Room, token *models.Track) {
	if room.State != RoomPlaying || !room.RoundOpen || room.CurrentTrack != token {
		e.log.WithField("room", room.ID).Debug("stale round timeout suppressed")
		return
	}

	room.RoundOpen = false
	e.log.WithFields(logrus.Fields{"room": room.ID, "round": room.CurrentRound}).Info("round timed out")
	room.fireEvent(Event{Type: EventRoundTimeout, Payload: map[string]interface{}{
		"song": *token,
	}})
	e.sched.AfterFunc(e.TimeoutDelay, func() {
		room.Mu.Lock()
		defer room.Mu.Unlock()
		e.beginCountdownLocked(room)
	})
}

// SubmitGuess arbitrates a guess against the open round. Reading the
// round flag, matching, flipping the flag and awarding the point happen
// as one step under the room lock, so at most one guess can win a round;
// anything arriving after the flip is a no-op. Guesses outside an open
// round are dropped silently: with network races they are expectable,
// not errors.
func (e *Engine) SubmitGuess(roomID string, playerID uuid.UUID, guess string) {
	room, ok := e.registry.Get(roomID)
	if !ok {
		return
	}

	room.Mu.Lock()
	defer room.Mu.Unlock()

	if room.State != RoomPlaying || !room.RoundOpen || room.CurrentTrack == nil {
		return
	}
	player := room.playerByID(playerID)
	if player == nil {
		return
	}

	if !Matches(guess, room.CurrentTrack.Title, e.Matcher) {
		room.fireEventToPlayer(playerID, Event{Type: EventWrongGuess})
		return
	}

	room.RoundOpen = false
	player.Score++
	track := *room.CurrentTrack

	e.log.WithFields(logrus.Fields{
		"room":   room.ID,
		"round":  room.CurrentRound,
		"winner": player.Name,
	}).Info("round won")

	room.fireEvent(Event{Type: EventUpdateScores, Payload: map[string]interface{}{
		"players": room.scoreboard(),
	}})
	room.fireEvent(Event{Type: EventRoundWinner, Payload: map[string]interface{}{
		"playerName": player.Name,
		"song":       track,
	}})
	e.sched.AfterFunc(e.WinnerDelay, func() {
		room.Mu.Lock()
		defer room.Mu.Unlock()
		e.beginCountdownLocked(room)
	})
}

// HandleDisconnect marks a player as gone without touching in-flight
// round state; their score line stays on the board. When the last
// connected player leaves, the room is removed from the registry;
// outstanding timers then fire against an orphaned room nobody can
// observe or rejoin.
func (e *Engine) HandleDisconnect(roomID string, playerID uuid.UUID) {
	room, ok := e.registry.Get(roomID)
	if !ok {
		return
	}

	room.Mu.Lock()
	player := room.playerByID(playerID)
	if player == nil {
		room.Mu.Unlock()
		return
	}
	player.Connected = false
	player.Conn = nil

	anyConnected := false
	for _, p := range room.Players {
		if p.Connected {
			anyConnected = true
			break
		}
	}
	name := player.Name
	players := room.scoreboard()
	room.Mu.Unlock()

	if !anyConnected {
		e.registry.Remove(roomID)
		return
	}

	room.Mu.Lock()
	room.fireEvent(Event{Type: EventPlayerLeft, Payload: map[string]interface{}{
		"playerName": name,
		"players":    players,
	}})
	room.Mu.Unlock()
}

// endGameLocked closes the game instance. The room keeps its final
// scores until every player disconnects or the owner starts a new
// game. Assumes lock is held.
func (e *Engine) endGameLocked(room *Room) {
	room.State = RoomEnded
	room.RoundOpen = false
	room.CurrentTrack = nil

	e.log.WithField("room", room.ID).Info("game over")
	room.fireEvent(Event{Type: EventGameOver, Payload: map[string]interface{}{
		"players": room.scoreboard(),
	}})
}
