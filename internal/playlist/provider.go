package playlist

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dmarini/trackdown/internal/game"
	"github.com/dmarini/trackdown/internal/models"
)

// resolveConcurrency bounds parallel catalog lookups per playlist build.
const resolveConcurrency = 4

// searchPoolSize is how many catalog hits a random search fetches before
// sampling; more than the round count so repeat games vary.
const searchPoolSize = 50

// Provider builds the ordered track sequence for a game. The preferred
// path asks the curator model for themed suggestions and resolves them
// against the iTunes catalog; when the curator is disabled or comes back
// empty it falls back to a random catalog search over the same filters.
type Provider struct {
	curator *Curator // nil when no API key is configured
	catalog *ITunesClient
	log     *logrus.Logger
}

func NewProvider(curator *Curator, catalog *ITunesClient, log *logrus.Logger) *Provider {
	return &Provider{curator: curator, catalog: catalog, log: log}
}

// Playlist implements game.PlaylistProvider. It may return fewer tracks
// than requested; the engine adopts the shorter list. An empty result or
// an error means generation failed.
func (p *Provider) Playlist(ctx context.Context, req game.PlaylistRequest) ([]models.Track, error) {
	if p.curator != nil {
		tracks, err := p.curated(ctx, req)
		if err != nil {
			p.log.WithField("error", err).Warn("curated playlist failed, falling back to catalog search")
		} else if len(tracks) > 0 {
			return tracks, nil
		}
	}
	return p.random(ctx, req)
}

// curated resolves the curator's suggestions to playable tracks,
// preserving suggestion order. Suggestions without a catalog preview are
// skipped, which is why ~30% more are requested than needed.
func (p *Provider) curated(ctx context.Context, req game.PlaylistRequest) ([]models.Track, error) {
	overshoot := req.Rounds + (req.Rounds+2)/3
	suggestions, err := p.curator.Suggest(ctx, req, overshoot)
	if err != nil {
		return nil, err
	}

	resolved := make([]*models.Track, len(suggestions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for i, s := range suggestions {
		i, s := i, s
		g.Go(func() error {
			track, err := p.catalog.FindPreview(gctx, s.Artist, s.Title)
			if err != nil {
				// One miss is not worth failing the playlist.
				p.log.WithFields(logrus.Fields{"artist": s.Artist, "title": s.Title, "error": err}).
					Debug("preview resolution failed")
				return nil
			}
			resolved[i] = track
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, req.Rounds)
	for _, t := range resolved {
		if t == nil {
			continue
		}
		tracks = append(tracks, *t)
		if len(tracks) == req.Rounds {
			break
		}
	}
	return tracks, nil
}

// random does a term search over the joined filters and samples the
// round count from the hit pool. Easy games sample from the head of the
// relevance ranking, hard games from the whole pool.
func (p *Provider) random(ctx context.Context, req game.PlaylistRequest) ([]models.Track, error) {
	term := strings.TrimSpace(strings.Join(req.Genres, " ") + " " + req.Decade)
	if term == "" {
		term = "pop"
	}

	results, err := p.catalog.Search(ctx, term, searchPoolSize)
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	if req.Language != "" {
		filtered := make([]models.Track, 0, len(results))
		for _, t := range results {
			if detectLanguage(t.Title+" "+t.Artist) == req.Language {
				filtered = append(filtered, t)
			}
		}
		// An over-strict filter should not sink the game.
		if len(filtered) > 0 {
			results = filtered
		}
	}

	pool := results
	if req.Difficulty == "easy" && len(pool) > searchPoolSize/2 {
		pool = pool[:searchPoolSize/2]
	}
	pool = append([]models.Track(nil), pool...)
	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	if len(pool) > req.Rounds {
		pool = pool[:req.Rounds]
	}
	return pool, nil
}
