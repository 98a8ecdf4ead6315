package playlist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dmarini/trackdown/internal/game"
)

// Suggestion is one artist/title pair proposed by the curator model.
// Suggestions still have to be resolved against the catalog before they
// are playable.
type Suggestion struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

// CuratorConfig configures the chat-completions endpoint used for song
// list generation. Any OpenAI-compatible API works.
type CuratorConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
}

// Curator asks a language model for a themed song list. Every failure
// mode degrades to an empty suggestion list; the provider falls back to
// catalog search instead.
type Curator struct {
	cfg        CuratorConfig
	httpClient *http.Client
	log        *logrus.Logger
}

func NewCurator(cfg CuratorConfig, log *logrus.Logger) *Curator {
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	return &Curator{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Suggest asks for count songs matching the request filters.
func (c *Curator) Suggest(ctx context.Context, req game.PlaylistRequest, count int) ([]Suggestion, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		Messages: []chatMessage{
			{Role: "system", Content: "You are an expert music curator. Reply with a raw JSON array only, no prose."},
			{Role: "user", Content: buildPrompt(req, count)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal curator request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build curator request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("curator call: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("curator call: unexpected status %d", res.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode curator response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("curator returned no choices")
	}

	var suggestions []Suggestion
	content := stripCodeFence(parsed.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &suggestions); err != nil {
		return nil, fmt.Errorf("parse curator suggestions: %w", err)
	}
	return suggestions, nil
}

func buildPrompt(req game.PlaylistRequest, count int) string {
	genres := strings.Join(req.Genres, ", ")
	if genres == "" {
		genres = "pop"
	}
	decade := req.Decade
	if decade == "" {
		decade = "any"
	}
	language := req.Language
	if language == "" {
		language = "any"
	}
	obscurity := "well-known commercial hits"
	if req.Difficulty == "hard" {
		obscurity = "lesser-known songs, B-sides or niche artists, no global hits"
	}

	return fmt.Sprintf(
		`Create a playlist of %d songs that strictly match these criteria:
- Genres: %s
- Decade/period: %s
- Language: %s
- Obscurity level: %s

Return a JSON array of objects with exactly the keys "artist" and "title".
Example: [{"artist": "Queen", "title": "Bohemian Rhapsody"}]`,
		count, genres, decade, language, obscurity)
}

// stripCodeFence removes a ```json ... ``` wrapper that some models add
// despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
