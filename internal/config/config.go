package config

import (
	"os"

	"github.com/dmarini/trackdown/internal/playlist"
)

// Config collects the process configuration from environment variables.
// A .env file is loaded by godotenv/autoload in main before this runs.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string

	// LogLevel is a logrus level name ("debug", "info", ...).
	LogLevel string

	// Curator settings. The curator is disabled when APIKey is empty and
	// playlists fall back to random catalog search.
	CuratorBaseURL string
	CuratorAPIKey  string
	CuratorModel   string

	// ITunesBaseURL overrides the catalog endpoint, mainly for tests.
	ITunesBaseURL string
}

func Load() Config {
	return Config{
		Addr:           ":" + getenv("PORT", "8080"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		CuratorBaseURL: getenv("CURATOR_BASE_URL", "https://api.openai.com/v1"),
		CuratorAPIKey:  os.Getenv("CURATOR_API_KEY"),
		CuratorModel:   getenv("CURATOR_MODEL", "gpt-4o-mini"),
		ITunesBaseURL:  getenv("ITUNES_BASE_URL", playlist.DefaultITunesBaseURL),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
