package playlist

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dmarini/trackdown/internal/models"
)

// DefaultITunesBaseURL is the public iTunes Search API endpoint.
const DefaultITunesBaseURL = "https://itunes.apple.com"

// ITunesClient looks up playable previews in the iTunes catalog.
type ITunesClient struct {
	baseURL    string
	httpClient *http.Client
	log        *logrus.Logger
}

func NewITunesClient(baseURL string, log *logrus.Logger) *ITunesClient {
	if baseURL == "" {
		baseURL = DefaultITunesBaseURL
	}
	return &ITunesClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

type itunesResult struct {
	TrackName  string `json:"trackName"`
	ArtistName string `json:"artistName"`
	PreviewURL string `json:"previewUrl"`
	Artwork    string `json:"artworkUrl100"`
}

type itunesResponse struct {
	ResultCount int            `json:"resultCount"`
	Results     []itunesResult `json:"results"`
}

// Search runs a free-text term search and returns every hit that has a
// playable preview.
func (c *ITunesClient) Search(ctx context.Context, term string, limit int) ([]models.Track, error) {
	resp, err := c.search(ctx, term, limit)
	if err != nil {
		return nil, err
	}
	tracks := make([]models.Track, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.PreviewURL == "" {
			continue
		}
		tracks = append(tracks, models.Track{
			Title:      r.TrackName,
			Artist:     r.ArtistName,
			PreviewURL: r.PreviewURL,
			ArtworkURL: r.Artwork,
		})
	}
	return tracks, nil
}

// FindPreview resolves an artist+title pair to the most relevant track
// with a playable preview. Returns nil without error when the catalog
// has no usable match; callers just move on to the next candidate.
func (c *ITunesClient) FindPreview(ctx context.Context, artist, title string) (*models.Track, error) {
	resp, err := c.search(ctx, artist+" "+title, 1)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 || resp.Results[0].PreviewURL == "" {
		return nil, nil
	}
	r := resp.Results[0]
	return &models.Track{
		Title:      r.TrackName,
		Artist:     r.ArtistName,
		PreviewURL: r.PreviewURL,
		ArtworkURL: r.Artwork,
	}, nil
}

func (c *ITunesClient) search(ctx context.Context, term string, limit int) (*itunesResponse, error) {
	q := url.Values{}
	q.Set("term", term)
	q.Set("media", "music")
	q.Set("entity", "song")
	q.Set("limit", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build itunes request: %w", err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("itunes search: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("itunes search: unexpected status %d", res.StatusCode)
	}

	var parsed itunesResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode itunes response: %w", err)
	}
	return &parsed, nil
}
