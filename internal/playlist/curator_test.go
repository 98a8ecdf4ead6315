package playlist

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarini/trackdown/internal/game"
)

func chatReply(content string) string {
	resp := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestSuggest(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		fmt.Fprint(w, chatReply(`[{"artist":"Queen","title":"Bohemian Rhapsody"},{"artist":"ABBA","title":"Waterloo"}]`))
	}))
	defer srv.Close()

	curator := NewCurator(CuratorConfig{
		BaseURL: srv.URL,
		APIKey:  "sk-test",
		Model:   "gpt-4o-mini",
	}, newTestLogger())

	suggestions, err := curator.Suggest(context.Background(), game.PlaylistRequest{
		Genres:     []string{"rock", "disco"},
		Decade:     "1970s",
		Difficulty: "easy",
	}, 7)
	require.NoError(t, err)

	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotReq.Model)
	assert.InDelta(t, 0.7, gotReq.Temperature, 0.001)
	require.Len(t, gotReq.Messages, 2)
	prompt := gotReq.Messages[1].Content
	assert.Contains(t, prompt, "7 songs")
	assert.Contains(t, prompt, "rock, disco")
	assert.Contains(t, prompt, "1970s")
	assert.Contains(t, prompt, "well-known commercial hits")

	require.Len(t, suggestions, 2)
	assert.Equal(t, Suggestion{Artist: "Queen", Title: "Bohemian Rhapsody"}, suggestions[0])
	assert.Equal(t, Suggestion{Artist: "ABBA", Title: "Waterloo"}, suggestions[1])
}

func TestSuggestHardPrompt(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		fmt.Fprint(w, chatReply(`[]`))
	}))
	defer srv.Close()

	curator := NewCurator(CuratorConfig{BaseURL: srv.URL, Model: "m"}, newTestLogger())
	_, err := curator.Suggest(context.Background(), game.PlaylistRequest{Difficulty: "hard"}, 5)
	require.NoError(t, err)

	prompt := gotReq.Messages[1].Content
	assert.Contains(t, prompt, "lesser-known songs")
	assert.Contains(t, prompt, "Genres: pop", "missing filters get defaults")
	assert.Contains(t, prompt, "Decade/period: any")
}

func TestSuggestStripsCodeFence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatReply("```json\n[{\"artist\":\"Nena\",\"title\":\"99 Luftballons\"}]\n```"))
	}))
	defer srv.Close()

	curator := NewCurator(CuratorConfig{BaseURL: srv.URL, Model: "m"}, newTestLogger())
	suggestions, err := curator.Suggest(context.Background(), game.PlaylistRequest{}, 1)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "Nena", suggestions[0].Artist)
}

func TestSuggestErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"upstream error", http.StatusTooManyRequests, "", "429"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "no choices"},
		{"prose instead of JSON", http.StatusOK, chatReply("Here are some songs you might like!"), "parse curator suggestions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			curator := NewCurator(CuratorConfig{BaseURL: srv.URL, Model: "m"}, newTestLogger())
			_, err := curator.Suggest(context.Background(), game.PlaylistRequest{}, 3)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `[1]`, stripCodeFence("```json\n[1]\n```"))
	assert.Equal(t, `[1]`, stripCodeFence("```\n[1]\n```"))
	assert.Equal(t, `[1]`, stripCodeFence("  [1]  "))
}
