package main

import (
	"log"
	"net/http"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/dmarini/trackdown/internal/config"
	"github.com/dmarini/trackdown/internal/handlers"
	"github.com/dmarini/trackdown/internal/middleware"
	"github.com/dmarini/trackdown/internal/playlist"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
		logger.Warnf("unknown LOG_LEVEL %q, using info", cfg.LogLevel)
	}
	logger.SetLevel(level)

	catalog := playlist.NewITunesClient(cfg.ITunesBaseURL, logger)
	var curator *playlist.Curator
	if cfg.CuratorAPIKey != "" {
		curator = playlist.NewCurator(playlist.CuratorConfig{
			BaseURL: cfg.CuratorBaseURL,
			APIKey:  cfg.CuratorAPIKey,
			Model:   cfg.CuratorModel,
		}, logger)
	} else {
		logger.Warn("no curator API key configured, playlists fall back to catalog search")
	}
	provider := playlist.NewProvider(curator, catalog, logger)

	srv := handlers.NewGameServer(logger, provider)

	mux := http.NewServeMux()
	mux.Handle("/ws", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.RoomWSHandler(logger, srv),
	)))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	logger.Infof("Running on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
